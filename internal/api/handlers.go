// Package api is the HTTP transport of hrsync: batch ingestion, table backups and restores.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tigerroll/hrsync/pkg/exchange/adapter/storage"
	"github.com/tigerroll/hrsync/pkg/exchange/component/backup"
	"github.com/tigerroll/hrsync/pkg/exchange/core/domain/schema"
	"github.com/tigerroll/hrsync/pkg/exchange/engine/ingest"
	"github.com/tigerroll/hrsync/pkg/exchange/support/util/exception"
	"github.com/tigerroll/hrsync/pkg/exchange/support/util/logger"
)

const moduleName = "api"

// HealthCheck reports whether the store is reachable.
type HealthCheck func(ctx context.Context) error

// Handler serves the data routes.
type Handler struct {
	registry       *schema.Registry
	ingestor       *ingest.Ingestor
	exporter       *backup.Exporter
	importer       *backup.Importer
	store          storage.StorageExecutor
	health         HealthCheck
	maxUploadBytes int64

	mu           sync.Mutex
	restoreLocks map[string]*sync.Mutex
}

// NewHandler creates a Handler. store is where ExportAll publishes archives; the handler
// streams them back and deletes them.
func NewHandler(registry *schema.Registry, ingestor *ingest.Ingestor, exporter *backup.Exporter, importer *backup.Importer,
	store storage.StorageExecutor, health HealthCheck, maxUploadBytes int64) *Handler {
	return &Handler{
		registry:       registry,
		ingestor:       ingestor,
		exporter:       exporter,
		importer:       importer,
		store:          store,
		health:         health,
		maxUploadBytes: maxUploadBytes,
		restoreLocks:   make(map[string]*sync.Mutex),
	}
}

// ingestResponse is the body of a batch POST.
type ingestResponse struct {
	Message       string                   `json:"message"`
	AcceptedCount int                      `json:"acceptedCount"`
	Accepted      []map[string]interface{} `json:"accepted"`
	Rejected      []ingest.Rejection       `json:"rejected"`
}

// restoreResponse is the body of a restore POST.
type restoreResponse struct {
	Message  string             `json:"message"`
	Rejected []ingest.Rejection `json:"rejected"`
	Warning  string             `json:"warning,omitempty"`
}

// Root greets.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Welcome to the HR Transactions API"})
}

// Health pings the store.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			logger.Warnf("Health check failed: %v", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ingest returns the batch POST handler for d. The body is one JSON object or an array of them.
func (h *Handler) Ingest(d *schema.Descriptor) http.HandlerFunc {
	label := strings.TrimSuffix(d.Entity, "s") + "(s)"
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := decodeRecords(r.Body)
		if err != nil {
			writeError(w, err)
			return
		}

		out, err := h.ingestor.IngestBatch(r.Context(), d, records)
		if err != nil {
			writeError(w, err)
			return
		}

		resp := ingestResponse{
			Message:       fmt.Sprintf("%d %s created successfully", len(out.Accepted), label),
			AcceptedCount: len(out.Accepted),
			Accepted:      out.Accepted,
		}
		if len(out.Rejected) > 0 {
			resp.Rejected = out.Rejected
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// decodeRecords reads one object or an array of objects. Numbers are kept as json.Number.
func decodeRecords(body io.Reader) ([]map[string]interface{}, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		return nil, exception.NewExchangeErrorf(moduleName, exception.ErrInvalidRequest, "Invalid JSON body", err)
	}

	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) == 0 || (trimmed[0] != '{' && trimmed[0] != '[') {
		return nil, exception.NewExchangeErrorf(moduleName, exception.ErrInvalidRequest,
			"Request must be a register or a list of registers")
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if trimmed[0] == '{' {
		var rec map[string]interface{}
		if err := dec.Decode(&rec); err != nil {
			return nil, exception.NewExchangeErrorf(moduleName, exception.ErrInvalidRequest, "Invalid JSON body", err)
		}
		return []map[string]interface{}{rec}, nil
	}
	var recs []map[string]interface{}
	if err := dec.Decode(&recs); err != nil {
		return nil, exception.NewExchangeErrorf(moduleName, exception.ErrInvalidRequest,
			"Request must be a register or a list of registers", err)
	}
	return recs, nil
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*schema.Descriptor, bool) {
	d, err := h.registry.Lookup(chi.URLParam(r, "entity"))
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return d, true
}

// BackupTable streams a single-table backup file.
func (h *Handler) BackupTable(w http.ResponseWriter, r *http.Request) {
	d, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if _, err := h.exporter.EncodeTable(r.Context(), d, &buf); err != nil {
		writeError(w, err)
		return
	}

	codec := h.exporter.Codec()
	w.Header().Set("Content-Type", codec.ContentType())
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="%s"`, h.exporter.FileName(d.Table, time.Now())))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		logger.Warnf("Failed to send backup of '%s': %v", d.Table, err)
	}
}

// BackupAll builds and publishes the full archive, streams it back and deletes it.
func (h *Handler) BackupAll(w http.ResponseWriter, r *http.Request) {
	archive, err := h.exporter.ExportAll(r.Context(), h.registry.All())
	if err != nil {
		writeError(w, err)
		return
	}
	defer func() {
		if err := h.store.DeleteObject(context.Background(), archive.Bucket, archive.ObjectName); err != nil {
			logger.Errorf("Failed to delete served archive '%s': %v", archive.ObjectName, err)
		}
	}()

	rc, err := h.store.Download(r.Context(), archive.Bucket, archive.ObjectName)
	if err != nil {
		writeError(w, exception.NewExchangeErrorf(moduleName, nil, "Failed to open archive %s", archive.Name, err))
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, archive.Name))
	if archive.Size > 0 {
		w.Header().Set("Content-Length", fmt.Sprint(archive.Size))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		logger.Warnf("Failed to stream archive '%s': %v", archive.Name, err)
	}
}

// Restore replaces a table with the uploaded multipart "file".
func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	d, ok := h.lookup(w, r)
	if !ok {
		return
	}

	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, exception.NewExchangeErrorf(moduleName, exception.ErrInvalidRequest,
				"Upload exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, exception.NewExchangeErrorf(moduleName, exception.ErrInvalidRequest, "Missing multipart field 'file'", err))
		return
	}
	defer file.Close()

	lock := h.restoreLock(d.Table)
	lock.Lock()
	defer lock.Unlock()

	res, err := h.importer.RestoreTable(r.Context(), file, d)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := restoreResponse{Message: res.Message(), Warning: res.Warning()}
	if len(res.Outcome.Rejected) > 0 {
		resp.Rejected = res.Outcome.Rejected
	}
	writeJSON(w, http.StatusOK, resp)
}

// restoreLock returns the mutex serializing restores of table.
func (h *Handler) restoreLock(table string) *sync.Mutex {
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.restoreLocks[table]
	if !ok {
		l = &sync.Mutex{}
		h.restoreLocks[table] = l
	}
	return l
}
