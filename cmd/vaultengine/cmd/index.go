package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/amanmcp/vaultengine/internal/ingest"
)

// newIndexCmd creates the index command.
func newIndexCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Run a full sync of the vault into the index",
		Long:  `Enumerates every recognized file, skipping unchanged ones, and rewrites the rest into the vector store.`,
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

			lock := ingest.NewFileLock(a.StateDir)
			acquired, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire ingest lock: %w", err)
			}
			if !acquired {
				return fmt.Errorf("another vaultengine process is already indexing %s", root)
			}
			defer lock.Unlock()

			start := time.Now()
			result, err := a.Pipeline.FullSync(cmd.Context())
			if err != nil {
				return fmt.Errorf("full sync: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(),
				"scanned %d, rewritten %d, skipped %d, deleted %d, failed %d (%s)\n",
				result.Scanned, result.Rewritten, result.Skipped, result.Deleted, result.Failed,
				time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "Vault root (default: current directory)")
	return cmd
}

func resolveRoot(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	return os.Getwd()
}
