package main

import (
	"os/signal"
	"syscall"

	"cctv-checklist/internal/services/webapp"

	"github.com/spf13/cobra"
)

func (c *cli) serveCmd() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local HTTP API (no auth, bind to localhost)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg := c.cfg
			if cmd.Flags().Changed("listen") {
				cfg.ListenAddr = listen
			}
			cat, err := c.loadCatalog(ctx)
			if err != nil {
				return err
			}
			return webapp.Run(ctx, webapp.Options{Config: cfg, Catalog: cat, Logger: c.logger})
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default 127.0.0.1:8787)")
	return cmd
}
