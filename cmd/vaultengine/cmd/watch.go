package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/amanmcp/vaultengine/internal/ingest"
	"github.com/amanmcp/vaultengine/internal/watcher"
)

// newWatchCmd creates the watch command.
func newWatchCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run an initial full sync, then keep the index current as files change",
		Long:  `Starts the vault monitor: watches for create/modify/delete/rename events and applies each incrementally, falling back to a full resync if the event queue saturates.`,
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
				return fmt.Errorf("another vaultengine process is already watching %s", root)
			}
			defer lock.Unlock()

			watchOpts := watcher.DefaultOptions()
			watchOpts.DebounceWindow = time.Duration(a.Config.Monitor.DebounceMs) * time.Millisecond
			w, err := watcher.NewHybridWatcher(watchOpts)
			if err != nil {
				return fmt.Errorf("create watcher: %w", err)
			}

			handle := func(ctx context.Context, ev watcher.FileEvent) error {
				return a.Pipeline.Incremental(ctx, ev)
			}
			fullSync := func(ctx context.Context) error {
				_, err := a.Pipeline.FullSync(ctx)
				return err
			}

			monitor := watcher.NewMonitor(w, handle, fullSync)
			monitor.QueueCapacity = a.Config.Monitor.QueueCapacity

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(cmd.OutOrStdout(), "watching %s (state: %s)\n", root, a.StateDir)
			if err := monitor.Start(ctx, root); err != nil {
				return fmt.Errorf("start monitor: %w", err)
			}

			<-ctx.Done()
			fmt.Fprintln(cmd.OutOrStdout(), "shutting down")
			return monitor.Stop()
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "Vault root (default: current directory)")
	return cmd
}
