package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pario-ai/conduit/pkg/metrics"
	"github.com/pario-ai/conduit/pkg/orchestrator"
	"github.com/pario-ai/conduit/pkg/server"
	"github.com/pario-ai/conduit/pkg/tracker"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the orchestrator HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			col := metrics.New()
			opts := []orchestrator.Option{
				orchestrator.WithLogger(logger),
				orchestrator.WithMetrics(col),
			}
			if cfg.Tracker.Enabled {
				tr, err := tracker.New(cfg.DBPath)
				if err != nil {
					return fmt.Errorf("init tracker: %w", err)
				}
				defer func() { _ = tr.Close() }()
				opts = append(opts, orchestrator.WithTracker(tr))
			}

			m, err := orchestrator.New(cfg, opts...)
			if err != nil {
				return err
			}
			defer m.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			m.Start(ctx)
			srv := server.New(cfg, m, server.WithLogger(logger), server.WithMetrics(col))

			logger.Info("starting conduit",
				zap.String("config", configPath),
				zap.Int("providers", len(cfg.Providers)),
				zap.Bool("tracker", cfg.Tracker.Enabled))
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "conduit.yaml", "path to config file")
	return cmd
}
