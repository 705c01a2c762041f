package backup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/tigerroll/hrsync/pkg/exchange/support/util/logger"
)

var parquetMagic = []byte("PAR1")

// ParquetCodec reads and writes Parquet files with OPTIONAL INT64 and UTF8 columns.
type ParquetCodec struct {
	compression parquet.CompressionCodec
}

// NewParquetCodec creates a ParquetCodec. compression is "SNAPPY", "GZIP" or "NONE".
func NewParquetCodec(compression string) (*ParquetCodec, error) {
	codec, err := getCompressionCodec(compression)
	if err != nil {
		return nil, err
	}
	return &ParquetCodec{compression: codec}, nil
}

// getCompressionCodec returns the Parquet compression codec from a string.
func getCompressionCodec(compressionType string) (parquet.CompressionCodec, error) {
	switch strings.ToUpper(compressionType) {
	case "SNAPPY":
		return parquet.CompressionCodec_SNAPPY, nil
	case "GZIP", "DEFLATE":
		return parquet.CompressionCodec_GZIP, nil
	case "NONE", "":
		return parquet.CompressionCodec_UNCOMPRESSED, nil
	default:
		return 0, fmt.Errorf("unsupported compression type: %s", compressionType)
	}
}

func (c *ParquetCodec) Format() string      { return FormatParquet }
func (c *ParquetCodec) Extension() string   { return ".parquet" }
func (c *ParquetCodec) ContentType() string { return "application/vnd.apache.parquet" }

func (c *ParquetCodec) Sniff(header []byte) bool {
	return bytes.HasPrefix(header, parquetMagic)
}

type parquetNode struct {
	Tag    string        `json:"Tag"`
	Fields []parquetNode `json:"Fields,omitempty"`
}

// Schema returns the parquet-go JSON schema for f.
func (c *ParquetCodec) Schema(f *File) (string, error) {
	root := parquetNode{
		Tag:    fmt.Sprintf("name=%s, repetitiontype=REQUIRED", f.SchemaName()),
		Fields: make([]parquetNode, len(f.Fields)),
	}
	for i, fld := range f.Fields {
		switch fld.Type {
		case FieldInt:
			root.Fields[i].Tag = fmt.Sprintf("name=%s, type=INT64, repetitiontype=OPTIONAL", fld.Name)
		default:
			root.Fields[i].Tag = fmt.Sprintf("name=%s, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL", fld.Name)
		}
	}
	b, err := json.Marshal(root)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Encode writes f as a single Parquet file.
func (c *ParquetCodec) Encode(w io.Writer, f *File) (err error) {
	schemaJSON, err := c.Schema(f)
	if err != nil {
		return fmt.Errorf("failed to build parquet schema for '%s': %w", f.Table, err)
	}

	mf := newMemFile(nil)
	pw, err := writer.NewJSONWriter(schemaJSON, mf, 1)
	if err != nil {
		return fmt.Errorf("failed to create parquet writer for '%s': %w", f.Table, err)
	}
	pw.CompressionType = c.compression

	for idx, row := range f.Rows {
		line, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("failed to marshal row %d of '%s': %w", idx, f.Table, err)
		}
		if err := pw.Write(string(line)); err != nil {
			return fmt.Errorf("failed to write row %d of '%s' to parquet: %w", idx, f.Table, err)
		}
	}

	// WriteStop can panic on malformed column data.
	func() {
		defer func() {
			if r := recover(); r != nil {
				if rErr, ok := r.(error); ok {
					err = rErr
				} else {
					err = fmt.Errorf("panic value: %v", r)
				}
				logger.Errorf("Caught panic during parquet WriteStop for '%s': %v", f.Table, err)
			}
		}()
		err = pw.WriteStop()
	}()
	if err != nil {
		return fmt.Errorf("failed to finalize parquet file for '%s': %w", f.Table, err)
	}

	if _, err := w.Write(mf.Bytes()); err != nil {
		return fmt.Errorf("failed to write parquet file for '%s': %w", f.Table, err)
	}
	return nil
}

// Decode reads a Parquet file without a predeclared schema.
func (c *ParquetCodec) Decode(r io.Reader) (f *File, err error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet file: %w", err)
	}
	if !c.Sniff(data) {
		return nil, fmt.Errorf("invalid parquet file: missing magic header")
	}

	defer func() {
		if rec := recover(); rec != nil {
			f, err = nil, fmt.Errorf("invalid parquet file: %v", rec)
		}
	}()

	pr, err := reader.NewParquetReader(newMemFile(data), nil, 1)
	if err != nil {
		return nil, fmt.Errorf("invalid parquet file: %w", err)
	}
	defer pr.ReadStop()

	// The reader renames footer elements to Go identifiers; Infos keeps the names as written.
	elems := pr.Footer.GetSchema()
	if len(elems) == 0 {
		return nil, fmt.Errorf("invalid parquet file: empty schema")
	}
	infos := pr.SchemaHandler.Infos
	exName := func(i int) string {
		if i < len(infos) && infos[i].ExName != "" {
			return infos[i].ExName
		}
		return elems[i].GetName()
	}

	f = &File{Table: tableFromSchemaName(exName(0))}
	for i, el := range elems[1:] {
		ft := FieldString
		if el.Type != nil && (*el.Type == parquet.Type_INT64 || *el.Type == parquet.Type_INT32) {
			ft = FieldInt
		}
		f.Fields = append(f.Fields, Field{Name: exName(i + 1), Type: ft})
	}

	exNames := make(map[string]string, len(infos))
	for _, info := range infos {
		exNames[info.InName] = info.ExName
	}

	num := int(pr.GetNumRows())
	if num == 0 {
		return f, nil
	}
	res, err := pr.ReadByNumber(num)
	if err != nil {
		return nil, fmt.Errorf("invalid parquet file: %w", err)
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("invalid parquet file: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var rows []map[string]interface{}
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("invalid parquet file: %w", err)
	}

	f.Rows = make([]map[string]interface{}, 0, len(rows))
	for _, rec := range rows {
		row := make(map[string]interface{}, len(rec))
		for k, v := range rec {
			if ex, ok := exNames[k]; ok && ex != "" {
				k = ex
			}
			row[k] = unwrapJSONNumber(v)
		}
		f.Rows = append(f.Rows, row)
	}
	return f, nil
}

func unwrapJSONNumber(v interface{}) interface{} {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if fl, err := n.Float64(); err == nil {
		return fl
	}
	return n.String()
}
