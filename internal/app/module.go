package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/fx"

	"github.com/tigerroll/hrsync/pkg/exchange/adapter/database"
	mysqlAdapter "github.com/tigerroll/hrsync/pkg/exchange/adapter/database/gorm/mysql"
	postgresAdapter "github.com/tigerroll/hrsync/pkg/exchange/adapter/database/gorm/postgres"
	sqliteAdapter "github.com/tigerroll/hrsync/pkg/exchange/adapter/database/gorm/sqlite"
	"github.com/tigerroll/hrsync/pkg/exchange/adapter/storage"
	"github.com/tigerroll/hrsync/pkg/exchange/component/backup"
	config "github.com/tigerroll/hrsync/pkg/exchange/core/config"
	"github.com/tigerroll/hrsync/pkg/exchange/core/domain/schema"
	"github.com/tigerroll/hrsync/pkg/exchange/core/metrics"
	"github.com/tigerroll/hrsync/pkg/exchange/core/tx"
	"github.com/tigerroll/hrsync/pkg/exchange/engine/ingest"
	"github.com/tigerroll/hrsync/pkg/exchange/engine/reconcile"
	promMetrics "github.com/tigerroll/hrsync/pkg/exchange/infrastructure/metrics"
	"github.com/tigerroll/hrsync/pkg/exchange/support/util/logger"
)

// DBProviderModules maps a database type to the Fx module contributing its provider.
var DBProviderModules = map[string]fx.Option{
	"sqlite":   sqliteAdapter.Module,
	"mysql":    mysqlAdapter.Module,
	"postgres": postgresAdapter.Module,
}

// NewLocation loads the zone naive timestamps are read in.
func NewLocation(cfg *config.Config) (*time.Location, error) {
	name := cfg.HRSync.System.Timezone
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid system.timezone %q: %w", name, err)
	}
	return loc, nil
}

// NewIngestor builds the batch ingestor from configuration.
func NewIngestor(cfg *config.BatchConfig, txManager tx.TransactionManager, loc *time.Location,
	recorder metrics.MetricRecorder, tracer metrics.Tracer) *ingest.Ingestor {
	return ingest.NewIngestor(txManager,
		ingest.WithMaxRecords(cfg.MaxRecords),
		ingest.WithReconciler(reconcile.New(loc)),
		ingest.WithMetricRecorder(recorder),
		ingest.WithTracer(tracer),
	)
}

// Codecs groups the configured encoding codec with the set restore decodes from.
type Codecs struct {
	fx.Out

	Preferred backup.Codec
	Set       *backup.CodecSet
}

// NewCodecs builds the configured codec. Restores accept every supported format.
func NewCodecs(cfg *config.BackupConfig) (Codecs, error) {
	preferred, err := backup.NewCodec(cfg.Format, cfg.Compression)
	if err != nil {
		return Codecs{}, err
	}
	var others []backup.Codec
	for _, format := range []string{backup.FormatAvro, backup.FormatParquet} {
		if format == preferred.Format() {
			continue
		}
		c, err := backup.NewCodec(format, cfg.Compression)
		if err != nil {
			return Codecs{}, err
		}
		others = append(others, c)
	}
	return Codecs{Preferred: preferred, Set: backup.NewCodecSet(preferred, others...)}, nil
}

// NewArtifactStore resolves the storage connection archives are published to.
func NewArtifactStore(cfg *config.BackupConfig, resolver storage.StorageConnectionResolver) (storage.StorageExecutor, error) {
	conn, err := resolver.ResolveStorageConnection(context.Background(), cfg.StorageRef)
	if err != nil {
		return nil, fmt.Errorf("resolve artifact storage '%s': %w", cfg.StorageRef, err)
	}
	logger.Debugf("Artifact storage '%s' (%s) resolved.", conn.Name(), conn.Type())
	return conn, nil
}

// NewExporter builds the exporter on the default connection.
func NewExporter(cfg *config.BackupConfig, conn database.DBConnection, codec backup.Codec, store storage.StorageExecutor,
	recorder metrics.MetricRecorder, tracer metrics.Tracer) *backup.Exporter {
	return backup.NewExporter(conn, codec,
		backup.WithArtifactStorage(store, cfg.Bucket, cfg.Prefix),
		backup.WithStagingDir(cfg.StagingDir),
		backup.WithExporterMetrics(recorder, tracer),
	)
}

// NewImporter builds the importer.
func NewImporter(codecs *backup.CodecSet, txManager tx.TransactionManager, ingestor *ingest.Ingestor, loc *time.Location,
	recorder metrics.MetricRecorder, tracer metrics.Tracer) *backup.Importer {
	return backup.NewImporter(codecs, txManager, ingestor,
		backup.WithLocation(loc),
		backup.WithImporterMetrics(recorder, tracer),
	)
}

// Module provides the exchange components built from configuration.
var Module = fx.Options(
	fx.Provide(schema.DefaultRegistry),
	fx.Provide(NewLocation),
	fx.Provide(NewIngestor),
	fx.Provide(NewCodecs),
	fx.Provide(NewArtifactStore),
	fx.Provide(NewExporter),
	fx.Provide(NewImporter),
	fx.Provide(fx.Annotate(
		func(r *promMetrics.PrometheusRecorder) http.Handler { return r.Handler() },
		fx.ResultTags(`name:"metrics_handler"`),
	)),
)
