package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tigerroll/hrsync/pkg/exchange/core/metrics"
)

// RouterParams collects what NewRouter needs besides the handler.
type RouterParams struct {
	User     string
	Password string
	Recorder metrics.MetricRecorder
	// Metrics serves /metrics when set.
	Metrics http.Handler
}

// NewRouter wires the routes. /, /healthz and /metrics are public; everything else requires
// basic authentication. The backup and restore routes are also served under /avro for clients
// of the earlier Avro-only API.
func NewRouter(h *Handler, p RouterParams) http.Handler {
	if p.Recorder == nil {
		p.Recorder = metrics.NewNoOpMetricRecorder()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(Instrument(p.Recorder))

	r.Get("/", h.Root)
	r.Get("/healthz", h.Health)
	if p.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", p.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(BasicAuth(p.User, p.Password))
		for _, d := range h.registry.All() {
			r.Post("/"+d.Entity, h.Ingest(d))
		}
		for _, prefix := range []string{"", "/avro"} {
			r.Get(prefix+"/backup/all", h.BackupAll)
			r.Get(prefix+"/backup/{entity}", h.BackupTable)
			r.Post(prefix+"/restore/{entity}", h.Restore)
		}
	})
	return r
}
