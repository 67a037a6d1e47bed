package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pario-ai/conduit/pkg/orchestrator"
	"github.com/pario-ai/conduit/pkg/tracker"
)

func newCallCmd() *cobra.Command {
	var (
		configPath string
		payload    string
		providers  []string
	)

	cmd := &cobra.Command{
		Use:   "call <operation>",
		Short: "Run one orchestrated call and print the response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if !json.Valid([]byte(payload)) {
				return fmt.Errorf("--payload is not valid JSON")
			}

			opts := []orchestrator.Option{orchestrator.WithLogger(logger)}
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

			var res orchestrator.Result
			if len(providers) > 0 {
				res, err = m.Call(ctx, args[0], providers, json.RawMessage(payload))
			} else {
				res, err = m.CallOperation(ctx, args[0], json.RawMessage(payload))
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(os.Stderr, "provider: %s\n", res.Provider)
			_, err = fmt.Fprintln(os.Stdout, string(res.Value))
			return err
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "conduit.yaml", "path to config file")
	cmd.Flags().StringVarP(&payload, "payload", "p", "{}", "operation parameters as JSON")
	cmd.Flags().StringSliceVar(&providers, "provider", nil, "provider chain in order (default: the operation's route)")
	return cmd
}
