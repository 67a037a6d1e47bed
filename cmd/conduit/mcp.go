package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pario-ai/conduit/pkg/mcp"
	"github.com/pario-ai/conduit/pkg/orchestrator"
	"github.com/pario-ai/conduit/pkg/tracker"
)

func newMCPCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the orchestrator as an MCP server on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			opts := []orchestrator.Option{orchestrator.WithLogger(logger)}
			var tr tracker.Tracker
			if cfg.Tracker.Enabled {
				st, err := tracker.New(cfg.DBPath)
				if err != nil {
					return fmt.Errorf("init tracker: %w", err)
				}
				defer func() { _ = st.Close() }()
				tr = st
				opts = append(opts, orchestrator.WithTracker(st))
			}

			m, err := orchestrator.New(cfg, opts...)
			if err != nil {
				return err
			}
			defer m.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			m.Start(ctx)

			return mcp.New(m, tr, logger, version).Run(ctx, os.Stdin, os.Stdout)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "conduit.yaml", "path to config file")
	return cmd
}
