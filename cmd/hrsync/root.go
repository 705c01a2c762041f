package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/tigerroll/hrsync/internal/app"
	config "github.com/tigerroll/hrsync/pkg/exchange/core/config"
)

// globalOptions are the flags shared by every subcommand.
type globalOptions struct {
	embedded   config.EmbeddedConfig
	envFile    string
	dbAdapters string
}

func (o *globalOptions) load() (*config.Config, []fx.Option, error) {
	cfg, err := app.LoadConfig(o.envFile, o.embedded)
	if err != nil {
		return nil, nil, err
	}
	return cfg, app.DBProviderOptions(o.dbAdapters), nil
}

func newRootCommand(embedded []byte) *cobra.Command {
	opts := &globalOptions{embedded: embedded}
	rc := &cobra.Command{
		Use:   "hrsync",
		Short: "HR batch exchange engine",
		Long: `
Ingests departments, jobs and hired employees in validated batches, and backs
up and restores whole tables as Avro or Parquet files.
`,
		SilenceUsage: true,
	}

	envFile := os.Getenv("ENV_FILE_PATH")
	if envFile == "" {
		envFile = ".env"
	}
	flags := rc.PersistentFlags()
	flags.StringVar(&opts.envFile, "env-file", envFile, ".env file loaded before configuration is expanded")
	flags.StringVar(&opts.dbAdapters, "db-adapters", os.Getenv("DB_ADAPTORS"), "comma-separated database dialects to register (default: all)")

	rc.AddCommand(
		newServeCommand(opts),
		newLoadCommand(opts),
		newBackupCommand(opts),
		newRestoreCommand(opts),
	)
	return rc
}
