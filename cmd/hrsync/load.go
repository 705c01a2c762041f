package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tigerroll/hrsync/internal/app"
	"github.com/tigerroll/hrsync/pkg/exchange/component/loader"
)

func newLoadCommand(opts *globalOptions) *cobra.Command {
	var (
		entity  string
		rejects string
		chunk   int
	)
	cmd := &cobra.Command{
		Use:   "load FILE",
		Short: "Load a headerless CSV file into an entity",
		Long: `
Reads a headerless CSV file whose columns follow the entity's column order and
ingests it in batches. Rejected rows are reported and optionally written as
JSON lines to --rejects.
`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			cfg, dbOptions, err := opts.load()
			if err != nil {
				return err
			}
			return app.RunOnce(c.Context(), cfg, dbOptions, func(ctx context.Context, comp app.Components) error {
				d, err := comp.Registry.Lookup(entity)
				if err != nil {
					return err
				}

				loaderOpts := []loader.Option{loader.WithChunkSize(chunk)}
				if rejects != "" {
					f, err := os.Create(rejects)
					if err != nil {
						return err
					}
					defer f.Close()
					loaderOpts = append(loaderOpts, loader.WithRejects(f))
				}

				sum, err := loader.New(comp.Ingestor, loaderOpts...).LoadFile(ctx, d, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(c.OutOrStdout(), "%s: %d rows, %d accepted, %d rejected\n", sum.Entity, sum.Rows, sum.Accepted, sum.Rejected)
				return nil
			})
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&entity, "entity", "e", "", "target entity (departments, jobs, employees)")
	flags.StringVar(&rejects, "rejects", "", "file rejected rows are written to as JSON lines")
	flags.IntVar(&chunk, "chunk-size", 0, "records per batch (default and maximum: batch.max_records)")
	_ = cmd.MarkFlagRequired("entity")
	return cmd
}
