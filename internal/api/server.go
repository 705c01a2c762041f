package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/fx"

	"github.com/tigerroll/hrsync/pkg/exchange/adapter/database"
	"github.com/tigerroll/hrsync/pkg/exchange/adapter/storage"
	"github.com/tigerroll/hrsync/pkg/exchange/component/backup"
	config "github.com/tigerroll/hrsync/pkg/exchange/core/config"
	"github.com/tigerroll/hrsync/pkg/exchange/core/domain/schema"
	"github.com/tigerroll/hrsync/pkg/exchange/core/metrics"
	"github.com/tigerroll/hrsync/pkg/exchange/engine/ingest"
	"github.com/tigerroll/hrsync/pkg/exchange/support/util/logger"
)

// NewHTTPServer builds the http.Server for the configured address and timeouts.
func NewHTTPServer(cfg *config.ServerConfig, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Address,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
	}
}

// HandlerParams collects the dependencies of the HTTP handler.
type HandlerParams struct {
	fx.In

	Config   *config.Config
	Registry *schema.Registry
	Ingestor *ingest.Ingestor
	Exporter *backup.Exporter
	Importer *backup.Importer
	Store    storage.StorageExecutor
	Conn     database.DBConnection
}

// NewHandlerFromParams adapts NewHandler to Fx.
func NewHandlerFromParams(p HandlerParams) *Handler {
	maxUpload := int64(p.Config.HRSync.Server.MaxUploadMB) << 20
	return NewHandler(p.Registry, p.Ingestor, p.Exporter, p.Importer, p.Store, p.Conn.RefreshConnection, maxUpload)
}

// RouterDeps collects what the router needs from the container.
type RouterDeps struct {
	fx.In

	Config   *config.ServerConfig
	Handler  *Handler
	Recorder metrics.MetricRecorder
	Metrics  http.Handler `name:"metrics_handler" optional:"true"`
}

// NewRouterFromDeps adapts NewRouter to Fx.
func NewRouterFromDeps(d RouterDeps) http.Handler {
	return NewRouter(d.Handler, RouterParams{
		User:     d.Config.User,
		Password: d.Config.Password,
		Recorder: d.Recorder,
		Metrics:  d.Metrics,
	})
}

type serverParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Server    *http.Server
	Backup    *config.BackupConfig
	Store     storage.StorageExecutor
}

// registerServerHook starts the listener on start and drains it on stop. With sweep_on_start,
// archives left behind by an earlier process are deleted before serving.
func registerServerHook(p serverParams) {
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if p.Backup.SweepOnStart {
				n, err := backup.SweepArchives(ctx, p.Store, p.Backup.Bucket, p.Backup.Prefix)
				if err != nil {
					logger.Warnf("Archive sweep incomplete: %v", err)
				} else if n > 0 {
					logger.Infof("Swept %d leftover archive(s).", n)
				}
			}

			ln, err := net.Listen("tcp", p.Server.Addr)
			if err != nil {
				return err
			}
			logger.Infof("HTTP server listening on %s", ln.Addr())
			go func() {
				if err := p.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Errorf("HTTP server stopped: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Infof("Shutting down HTTP server.")
			return p.Server.Shutdown(ctx)
		},
	})
}

// Module provides the handler, router and server, and runs the server with the application.
var Module = fx.Options(
	fx.Provide(NewHandlerFromParams),
	fx.Provide(NewRouterFromDeps),
	fx.Provide(NewHTTPServer),
	fx.Invoke(registerServerHook),
)
