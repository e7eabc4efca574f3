package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Gobusters/ectologger"
	"github.com/spf13/cobra"

	"github.com/Ramsey-B/clover/config"
	"github.com/Ramsey-B/clover/pkg/server"
)

type rootOptions struct {
	envFiles []string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "clover",
		Short: "Lead deduplication and merge service",
		Long: `clover finds duplicate leads within a tenant and merges them,
moving every dependent record onto the surviving lead.

Configuration is read from the environment and optional .env files.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, "env files to load before reading the environment")

	cmd.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newDuplicatesCmd(opts),
		newMergeCmd(opts),
		newAutoMergeCmd(opts),
	)
	return cmd
}

// bootstrap loads configuration and builds the logger shared by every command
func (o *rootOptions) bootstrap() (*config.Config, ectologger.Logger, func() error, error) {
	cfg, err := config.Load(o.envFiles...)
	if err != nil {
		return nil, nil, nil, err
	}
	logger, sync, err := server.NewLogger(cfg.LogLevel, cfg.PrettyLogs)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, sync, nil
}

// withApp starts the service dependencies, runs fn and stops them again
func (o *rootOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, app *server.App) error) error {
	cfg, logger, sync, err := o.bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := server.NewApp(cfg, logger)
	if err := app.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := app.Stop(context.Background()); err != nil {
			logger.WithError(err).Error("Failed to stop dependencies")
		}
	}()

	return fn(ctx, app)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
