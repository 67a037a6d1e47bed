package mcp

import (
	"fmt"
	"strings"

	"github.com/pario-ai/conduit/pkg/models"
)

// formatSummary formats call summaries as a text table.
func formatSummary(rows []models.CallSummary) string {
	if len(rows) == 0 {
		return "No calls recorded."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-20s %-16s %-14s %8s %12s %12s\n",
		"Operation", "Provider", "Outcome", "Calls", "Avg Latency", "Max Attempts")
	b.WriteString(strings.Repeat("-", 87) + "\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "%-20s %-16s %-14s %8d %10.0fms %12d\n",
			r.Operation, orDash(r.Provider), r.Outcome, r.Count, r.AvgLatencyMs, r.MaxAttempts)
	}
	return b.String()
}

// formatRecords formats call records, newest first.
func formatRecords(records []models.CallRecord) string {
	if len(records) == 0 {
		return "No calls recorded."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-20s %-20s %-16s %-14s %8s %10s\n",
		"Time", "Operation", "Provider", "Outcome", "Attempts", "Latency")
	b.WriteString(strings.Repeat("-", 93) + "\n")
	for _, r := range records {
		fmt.Fprintf(&b, "%-20s %-20s %-16s %-14s %8d %8dms\n",
			r.CreatedAt.Format("2006-01-02 15:04:05"),
			r.Operation, orDash(r.Provider), r.Outcome, r.Attempts, r.LatencyMs)
		if r.Error != "" {
			fmt.Fprintf(&b, "  error: %s\n", r.Error)
		}
	}
	return b.String()
}

// formatCacheStats formats cache stats as text.
func formatCacheStats(stats models.CacheStats) string {
	total := stats.Hits + stats.Misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}
	return fmt.Sprintf("Cache Statistics\n"+
		"  Entries:   %d\n"+
		"  Hits:      %d\n"+
		"  Misses:    %d\n"+
		"  Evictions: %d\n"+
		"  Hit Rate:  %.1f%%\n",
		stats.Entries, stats.Hits, stats.Misses, stats.Evictions, hitRate)
}

func formatInvalidated(prefix string, n int) string {
	if prefix == "" {
		return fmt.Sprintf("Removed %d cache entries.", n)
	}
	return fmt.Sprintf("Removed %d cache entries with prefix %q.", n, prefix)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
