package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tigerroll/hrsync/internal/app"
)

func newRestoreCommand(opts *globalOptions) *cobra.Command {
	var (
		entity string
		file   string
	)
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Replace a table with the contents of a backup file",
		Long: `
Deletes every row of the entity's table and reinserts the rows of the backup
file. Rows the store rejects are reported and are not in the table afterwards.
`,
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
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()

				res, err := comp.Importer.RestoreTable(ctx, f, d)
				if err != nil {
					return err
				}
				w := c.OutOrStdout()
				fmt.Fprintln(w, res.Message())
				for _, r := range res.Outcome.Rejected {
					fmt.Fprintf(w, "rejected %v: %s\n", r.Record, r.Error)
				}
				if warning := res.Warning(); warning != "" {
					fmt.Fprintln(c.ErrOrStderr(), warning)
				}
				return nil
			})
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&entity, "entity", "e", "", "entity to restore")
	flags.StringVarP(&file, "file", "f", "", "backup file (Avro or Parquet)")
	_ = cmd.MarkFlagRequired("entity")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
