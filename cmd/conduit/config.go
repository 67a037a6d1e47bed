package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pario-ai/conduit/pkg/config"
)

func newConfigCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the config file and print providers and routes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			o := cfg.Orchestrator
			fmt.Printf("cache ttl %v, sweep %v, retries %d, base delay %v, timeout %v\n\n",
				o.CacheTTL, o.SweepInterval, o.MaxRetries, o.BaseRetryDelay, o.RequestTimeout)

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tTYPE\tURL\tRATE LIMIT")
			for _, p := range cfg.Providers {
				typ := p.Type
				if typ == "" {
					typ = "openai"
				}
				limit := "none"
				if p.RateLimit != nil {
					limit = fmt.Sprintf("%d/%v", p.RateLimit.Requests, p.RateLimit.Window)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Name, typ, p.URL, limit)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if len(cfg.Router.Routes) > 0 {
				fmt.Println()
				for _, r := range cfg.Router.Routes {
					fmt.Printf("%s -> %s\n", r.Operation, strings.Join(r.Providers, " -> "))
				}
			}
			fmt.Println("\nconfig OK")
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "conduit.yaml", "path to config file")
	cmd.AddCommand(checkCmd)
	return cmd
}
