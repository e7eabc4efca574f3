package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/clover/pkg/server"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, sync, err := root.bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var opts []server.AppOption
			if migrate {
				opts = append(opts, server.WithMigrations())
			}
			app := server.NewApp(cfg, logger, opts...)
			if err := app.Start(ctx); err != nil {
				return err
			}
			defer func() {
				if err := app.Stop(context.Background()); err != nil {
					logger.WithError(err).Error("Failed to stop dependencies")
				}
			}()

			return app.Serve(ctx)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply pending migrations before serving")
	return cmd
}

func newMigrateCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, sync, err := root.bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = sync() }()

			return server.NewApp(cfg, logger).RunMigrations(cmd.Context())
		},
	}
}
