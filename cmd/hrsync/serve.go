package main

import (
	"github.com/spf13/cobra"

	"github.com/tigerroll/hrsync/internal/app"
)

func newServeCommand(opts *globalOptions) *cobra.Command {
	var address string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(c *cobra.Command, args []string) error {
			cfg, dbOptions, err := opts.load()
			if err != nil {
				return err
			}
			if address != "" {
				cfg.HRSync.Server.Address = address
			}
			return app.RunServer(c.Context(), cfg, dbOptions)
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "listen address, overrides server.address")
	return cmd
}
