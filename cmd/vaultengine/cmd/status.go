package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// newStatusCmd creates the status command.
func newStatusCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index and cache statistics for the vault",
		RunE: func(cmd *cobra.Command, _ []string) error {
			root, err := resolveRoot(path)
			if err != nil {
				return err
			}

			a, err := newApp(root)
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.Store.CollectionStats(cmd.Context())
			if err != nil {
				return fmt.Errorf("collection stats: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "vault:      %s\n", a.Config.Vault.Path)
			fmt.Fprintf(cmd.OutOrStdout(), "state dir:  %s\n", a.StateDir)
			fmt.Fprintf(cmd.OutOrStdout(), "documents:  %d\n", stats.DocumentCount)
			fmt.Fprintf(cmd.OutOrStdout(), "chunks:     %d\n", stats.ChunkCount)
			fmt.Fprintf(cmd.OutOrStdout(), "vectors:    %d\n", stats.VectorCount)

			for name, s := range a.Cache.AllStats() {
				fmt.Fprintf(cmd.OutOrStdout(), "cache %-15s hits=%d misses=%d evictions=%d size=%d\n",
					name, s.Hits, s.Misses, s.Evictions, s.Size)
			}

			printQueryMetrics(cmd, a)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "Vault root (default: current directory)")
	return cmd
}

// printQueryMetrics reports this process's in-memory query telemetry plus
// the durable counts persisted by earlier runs against the same vault, so
// query patterns accumulate across invocations instead of resetting with
// every command.
func printQueryMetrics(cmd *cobra.Command, a *app) {
	if a.QueryMetrics == nil {
		return
	}
	snap := a.QueryMetrics.Snapshot()
	fmt.Fprintf(cmd.OutOrStdout(), "queries (this run): %d (zero-result: %d)\n",
		snap.TotalQueries, snap.ZeroResultCount)

	if a.MetricsStore == nil {
		return
	}
	today := time.Now().Format("2006-01-02")
	if counts, err := a.MetricsStore.GetQueryTypeCounts(today, today); err == nil {
		for qt, n := range counts {
			fmt.Fprintf(cmd.OutOrStdout(), "queries today %-10s %d\n", qt, n)
		}
	}
	if terms, err := a.MetricsStore.GetTopTerms(5); err == nil && len(terms) > 0 {
		fmt.Fprint(cmd.OutOrStdout(), "top terms:")
		for _, t := range terms {
			fmt.Fprintf(cmd.OutOrStdout(), " %s(%d)", t.Term, t.Count)
		}
		fmt.Fprintln(cmd.OutOrStdout())
	}
	if zero, err := a.MetricsStore.GetZeroResultQueries(5); err == nil && len(zero) > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "recent zero-result queries: %v\n", zero)
	}
	if lat, err := a.MetricsStore.GetLatencyCounts(today, today); err == nil {
		for bucket, n := range lat {
			fmt.Fprintf(cmd.OutOrStdout(), "latency %-6s %d\n", bucket, n)
		}
	}
}
