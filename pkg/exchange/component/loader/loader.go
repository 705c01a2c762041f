// Package loader bulk-loads headerless CSV files into the HR tables through the batch ingestor.
package loader

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/tigerroll/hrsync/pkg/exchange/core/domain/schema"
	"github.com/tigerroll/hrsync/pkg/exchange/engine/ingest"
	"github.com/tigerroll/hrsync/pkg/exchange/support/util/exception"
	"github.com/tigerroll/hrsync/pkg/exchange/support/util/logger"
)

const moduleName = "loader"

// Summary counts the rows of one loaded file.
type Summary struct {
	Entity   string `json:"entity"`
	Rows     int    `json:"rows"`
	Accepted int    `json:"accepted"`
	Rejected int    `json:"rejected"`
}

// rejectLine is one line of the rejects file.
type rejectLine struct {
	Entity string                 `json:"entity"`
	Line   int                    `json:"line"`
	Record map[string]interface{} `json:"record"`
	Error  string                 `json:"error"`
}

// Option configures a Loader.
type Option func(*Loader)

// WithChunkSize sets how many rows are handed to the ingestor at once. It is capped at the
// ingestor's batch limit.
func WithChunkSize(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.chunkSize = n
		}
	}
}

// WithRejects writes every rejected row as a JSON line to w.
func WithRejects(w io.Writer) Option {
	return func(l *Loader) {
		l.rejects = w
	}
}

// Loader reads CSV rows and feeds them to an Ingestor.
type Loader struct {
	ingestor  *ingest.Ingestor
	chunkSize int
	rejects   io.Writer
}

// New creates a Loader.
func New(ingestor *ingest.Ingestor, opts ...Option) *Loader {
	l := &Loader{ingestor: ingestor, chunkSize: ingestor.MaxRecords()}
	for _, opt := range opts {
		opt(l)
	}
	if l.chunkSize > ingestor.MaxRecords() {
		l.chunkSize = ingestor.MaxRecords()
	}
	return l
}

// LoadFile loads the CSV file at path into d's table.
func (l *Loader) LoadFile(ctx context.Context, d *schema.Descriptor, path string) (*Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, exception.NewExchangeErrorf(moduleName, exception.ErrInvalidRequest, "Failed to open %s", path, err)
	}
	defer f.Close()

	logger.Infof("Loading '%s' into '%s'.", path, d.Table)
	return l.Load(ctx, d, f)
}

// Load reads headerless CSV rows from r. Columns are assigned in descriptor order and every row
// must have exactly one cell per column, otherwise nothing is loaded. Empty cells are left out
// of the record.
func (l *Loader) Load(ctx context.Context, d *schema.Descriptor, r io.Reader) (*Summary, error) {
	rows, err := l.read(d, r)
	if err != nil {
		return nil, err
	}

	sum := &Summary{Entity: d.Entity, Rows: len(rows)}
	for start := 0; start < len(rows); start += l.chunkSize {
		end := start + l.chunkSize
		if end > len(rows) {
			end = len(rows)
		}
		out, err := l.ingestor.IngestBatch(ctx, d, rows[start:end])
		if out != nil {
			sum.Accepted += len(out.Accepted)
			sum.Rejected += len(out.Rejected)
			if wErr := l.writeRejects(d, start, rows[start:end], out.Rejected); wErr != nil {
				logger.Errorf("Failed to write rejects for '%s': %v", d.Entity, wErr)
			}
		}
		if err != nil {
			return sum, err
		}
	}

	logger.Infof("Loaded %d rows into '%s': %d accepted, %d rejected.", sum.Rows, d.Table, sum.Accepted, sum.Rejected)
	return sum, nil
}

func (l *Loader) read(d *schema.Descriptor, r io.Reader) ([]map[string]interface{}, error) {
	columns := d.Columns()
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(columns)
	cr.ReuseRecord = true

	var rows []map[string]interface{}
	for {
		cells, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) && errors.Is(perr.Err, csv.ErrFieldCount) {
				return nil, exception.NewExchangeErrorf(moduleName, exception.ErrInvalidRequest,
					"Number of columns on line %d does not match %s (want %d)", perr.Line, d.Table, len(columns)).
					WithDetail("line", perr.Line).
					WithDetail("columns", len(columns))
			}
			return nil, exception.NewExchangeErrorf(moduleName, exception.ErrInvalidRequest, "Failed to read CSV for %s", d.Table, err)
		}

		rec := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			cell := strings.TrimSpace(cells[i])
			if cell == "" {
				continue
			}
			if col.Type == schema.Timestamp {
				cell = normalizeTimestamp(cell)
			}
			rec[col.Name] = cell
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

// normalizeTimestamp rewrites RFC 3339 values ("2021-11-07T02:48:42Z") to the fixed layout in
// UTC. Anything else is returned unchanged for the reconciler to judge.
func normalizeTimestamp(s string) string {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return s
	}
	return t.UTC().Format(schema.TimestampLayout)
}

func (l *Loader) writeRejects(d *schema.Descriptor, offset int, chunk []map[string]interface{}, rejected []ingest.Rejection) error {
	if l.rejects == nil || len(rejected) == 0 {
		return nil
	}
	enc := json.NewEncoder(l.rejects)
	next := 0
	for _, rej := range rejected {
		line := 0
		for ; next < len(chunk); next++ {
			if sameRecord(chunk[next], rej.Record) {
				line = offset + next + 1
				next++
				break
			}
		}
		if err := enc.Encode(rejectLine{Entity: d.Entity, Line: line, Record: rej.Record, Error: rej.Error}); err != nil {
			return fmt.Errorf("failed to encode reject: %w", err)
		}
	}
	return nil
}

// sameRecord reports whether a and b are the same map. The ingestor hands back the input maps.
func sameRecord(a, b map[string]interface{}) bool {
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}
