package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/pario-ai/conduit/pkg/models"
)

// The response cache lives in the serving process, so these commands talk
// to a running server.
func newCacheCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear a running server's response cache",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			var stats models.CacheStats
			if err := cacheRequest(http.MethodGet, addr+"/v1/cache/stats", &stats); err != nil {
				return err
			}
			fmt.Printf("Entries:   %d\nHits:      %d\nMisses:    %d\nEvictions: %d\n",
				stats.Entries, stats.Hits, stats.Misses, stats.Evictions)
			return nil
		},
	}

	var prefix string
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			target := addr + "/v1/cache"
			if prefix != "" {
				target += "?prefix=" + url.QueryEscape(prefix)
			}
			var out struct {
				Removed int `json:"removed"`
			}
			if err := cacheRequest(http.MethodDelete, target, &out); err != nil {
				return err
			}
			fmt.Printf("Removed %d entries.\n", out.Removed)
			return nil
		},
	}
	clearCmd.Flags().StringVar(&prefix, "prefix", "", `only clear keys with this prefix (e.g. "lookup:")`)

	cmd.PersistentFlags().StringVar(&addr, "addr", "http://localhost:8080", "conduit server address")
	cmd.AddCommand(statsCmd, clearCmd)
	return cmd
}

func cacheRequest(method, target string, out any) error {
	req, err := http.NewRequest(method, target, nil)
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("contact server: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
