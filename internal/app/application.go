// Package app assembles hrsync with Fx.
package app

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/fx"

	"github.com/tigerroll/hrsync/internal/api"
	gormadapter "github.com/tigerroll/hrsync/pkg/exchange/adapter/database/gorm"
	storageAdapter "github.com/tigerroll/hrsync/pkg/exchange/adapter/storage"
	"github.com/tigerroll/hrsync/pkg/exchange/adapter/storage/gcs"
	"github.com/tigerroll/hrsync/pkg/exchange/adapter/storage/local"
	"github.com/tigerroll/hrsync/pkg/exchange/component/backup"
	config "github.com/tigerroll/hrsync/pkg/exchange/core/config"
	"github.com/tigerroll/hrsync/pkg/exchange/core/domain/schema"
	"github.com/tigerroll/hrsync/pkg/exchange/engine/ingest"
	promMetrics "github.com/tigerroll/hrsync/pkg/exchange/infrastructure/metrics"
	"github.com/tigerroll/hrsync/pkg/exchange/infrastructure/provision"
	"github.com/tigerroll/hrsync/pkg/exchange/support/util/logger"
)

// LoadConfig loads configuration and applies the configured log level.
func LoadConfig(envFilePath string, embeddedConfig config.EmbeddedConfig) (*config.Config, error) {
	cfg, err := config.LoadConfig(envFilePath, embeddedConfig)
	if err != nil {
		return nil, err
	}
	logger.SetLogLevel(cfg.HRSync.System.Logging.Level)
	logger.Debugf("Log level set to: %s", cfg.HRSync.System.Logging.Level)
	return cfg, nil
}

// DBProviderOptions selects dialect modules from a comma-separated list such as "sqlite,mysql".
// An empty list selects every dialect.
func DBProviderOptions(adapters string) []fx.Option {
	if strings.TrimSpace(adapters) == "" {
		adapters = "sqlite,mysql,postgres"
	}
	options := make([]fx.Option, 0, len(DBProviderModules))
	for _, name := range strings.Split(adapters, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if m, ok := DBProviderModules[name]; ok {
			options = append(options, m)
			logger.Debugf("DB Provider '%s' selected and registered.", name)
		} else {
			logger.Warnf("DB Provider '%s' is configured but not recognized/supported. Skipping.", name)
		}
	}
	return options
}

// baseOptions are the modules every command needs: configuration, stores, telemetry and the
// exchange components. Tables are provisioned on start.
func baseOptions(cfg *config.Config, dbProviderOptions []fx.Option) []fx.Option {
	return []fx.Option{
		fx.Supply(cfg),
		logger.Module,
		config.Module,
		fx.Options(dbProviderOptions...),
		gormadapter.Module,
		local.Module,
		gcs.Module,
		storageAdapter.Module,
		promMetrics.Module,
		provision.Module,
		Module,
	}
}

// RunServer runs the HTTP server until ctx is cancelled or Fx receives a stop signal.
func RunServer(ctx context.Context, cfg *config.Config, dbProviderOptions []fx.Option) error {
	opts := append(baseOptions(cfg, dbProviderOptions), api.Module)
	app := fx.New(opts...)
	if err := app.Err(); err != nil {
		return err
	}

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("start application: %w", err)
	}
	select {
	case <-ctx.Done():
		logger.Infof("Context cancelled; stopping.")
	case sig := <-app.Done():
		logger.Infof("Received signal '%v'; stopping.", sig)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), app.StopTimeout())
	defer cancel()
	return app.Stop(stopCtx)
}

// Components are the exchange components one-shot commands run against.
type Components struct {
	Registry *schema.Registry
	Ingestor *ingest.Ingestor
	Exporter *backup.Exporter
	Importer *backup.Importer
	Store    storageAdapter.StorageExecutor
}

// RunOnce starts the application, hands the components to fn and stops the application again.
func RunOnce(ctx context.Context, cfg *config.Config, dbProviderOptions []fx.Option, fn func(context.Context, Components) error) (err error) {
	var c Components
	opts := append(baseOptions(cfg, dbProviderOptions), fx.Populate(&c.Registry, &c.Ingestor, &c.Exporter, &c.Importer, &c.Store))
	app := fx.New(opts...)
	if err := app.Err(); err != nil {
		return err
	}
	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("start application: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), app.StopTimeout())
		defer cancel()
		if stopErr := app.Stop(stopCtx); stopErr != nil && err == nil {
			err = stopErr
		}
	}()
	return fn(ctx, c)
}
