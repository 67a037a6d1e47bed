package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pario-ai/conduit/pkg/config"
	"github.com/pario-ai/conduit/pkg/tracker"
)

func newStatsCmd() *cobra.Command {
	var (
		configPath string
		operation  string
		since      time.Duration
		recent     int
		prune      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show call outcomes recorded by the tracker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			tr, err := tracker.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer tr.Close()

			ctx := context.Background()

			if prune > 0 {
				n, err := tr.Prune(ctx, time.Now().UTC().Add(-prune))
				if err != nil {
					return err
				}
				fmt.Printf("Pruned %d records.\n", n)
				return nil
			}

			// Recent calls view
			if recent > 0 {
				records, err := tr.Recent(ctx, operation, recent)
				if err != nil {
					return err
				}
				if len(records) == 0 {
					fmt.Println("No calls recorded.")
					return nil
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "TIME\tOPERATION\tPROVIDER\tOUTCOME\tATTEMPTS\tLATENCY\tREQUEST ID")
				for _, r := range records {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%dms\t%s\n",
						r.CreatedAt.Format("2006-01-02T15:04:05"), r.Operation, dash(r.Provider), r.Outcome,
						r.Attempts, r.LatencyMs, dash(r.RequestID))
				}
				return w.Flush()
			}

			// Default: outcome summary
			summaries, err := tr.Summary(ctx, operation, time.Now().UTC().Add(-since))
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				fmt.Println("No calls recorded.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "OPERATION\tPROVIDER\tOUTCOME\tCALLS\tAVG LATENCY\tMAX ATTEMPTS")
			for _, s := range summaries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.0fms\t%d\n",
					s.Operation, dash(s.Provider), s.Outcome, s.Count, s.AvgLatencyMs, s.MaxAttempts)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "conduit.yaml", "path to config file")
	cmd.Flags().StringVar(&operation, "operation", "", "filter by operation")
	cmd.Flags().DurationVar(&since, "since", 24*time.Hour, "summarize calls newer than this")
	cmd.Flags().IntVar(&recent, "recent", 0, "list the N most recent calls instead of a summary")
	cmd.Flags().DurationVar(&prune, "prune", 0, "delete records older than this and exit")
	return cmd
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
