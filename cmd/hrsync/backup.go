package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tigerroll/hrsync/internal/app"
)

func newBackupCommand(opts *globalOptions) *cobra.Command {
	var (
		entity string
		out    string
	)
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Back up one table or all tables",
		Long: `
Writes a backup file of one entity to --out, or with --entity all builds the
full archive, publishes it to artifact storage and copies it to --out.
`,
		RunE: func(c *cobra.Command, args []string) error {
			cfg, dbOptions, err := opts.load()
			if err != nil {
				return err
			}
			if err := os.MkdirAll(out, 0o755); err != nil {
				return err
			}
			return app.RunOnce(c.Context(), cfg, dbOptions, func(ctx context.Context, comp app.Components) error {
				if entity == "all" {
					archive, err := comp.Exporter.ExportAll(ctx, comp.Registry.All())
					if err != nil {
						return err
					}
					p := filepath.Join(out, archive.Name)
					if err := copyArchive(ctx, comp, archive.Bucket, archive.ObjectName, p); err != nil {
						return err
					}
					fmt.Fprintf(c.OutOrStdout(), "%s (%d tables)\n", p, len(archive.Members))
					return nil
				}

				d, err := comp.Registry.Lookup(entity)
				if err != nil {
					return err
				}
				p, err := comp.Exporter.WriteTable(ctx, d, out)
				if err != nil {
					return err
				}
				fmt.Fprintln(c.OutOrStdout(), p)
				return nil
			})
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&entity, "entity", "e", "all", "entity to back up, or \"all\"")
	flags.StringVarP(&out, "out", "o", ".", "output directory")
	return cmd
}

// copyArchive copies a published archive to a local path.
func copyArchive(ctx context.Context, comp app.Components, bucket, objectName, dst string) error {
	rc, err := comp.Store.Download(ctx, bucket, objectName)
	if err != nil {
		return err
	}
	defer rc.Close()

	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
