package cmd

import (
	"context"
	"fmt"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/amanmcp/vaultengine/internal/logging"
)

// newLogsCmd creates the logs command.
func newLogsCmd() *cobra.Command {
	var path string
	var n int
	var level string
	var pattern string
	var follow bool
	var noColor bool

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View the engine's debug log",
		Long:  `Tails (or follows) the engine log written by --debug mode.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logPath, err := logging.FindLogFile(path)
			if err != nil {
				return err
			}

			var re *regexp.Regexp
			if pattern != "" {
				re, err = regexp.Compile(pattern)
				if err != nil {
					return fmt.Errorf("compile pattern: %w", err)
				}
			}

			viewer := logging.NewViewer(logging.ViewerConfig{
				Level:   level,
				Pattern: re,
				NoColor: noColor,
			}, cmd.OutOrStdout())

			entries, err := viewer.Tail(logPath, n)
			if err != nil {
				return fmt.Errorf("tail log: %w", err)
			}
			viewer.Print(entries)

			if !follow {
				return nil
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			ch := make(chan logging.LogEntry, 64)
			go func() {
				_ = viewer.Follow(ctx, logPath, ch)
				close(ch)
			}()

			for entry := range ch {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), viewer.FormatEntry(entry))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "Explicit log file path (default: ~/.vaultengine/logs/engine.log)")
	cmd.Flags().IntVar(&n, "lines", 100, "Number of lines to show")
	cmd.Flags().StringVar(&level, "level", "", "Minimum level to show (debug, info, warn, error)")
	cmd.Flags().StringVar(&pattern, "grep", "", "Only show lines matching this regular expression")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow the log file for new entries")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	return cmd
}
