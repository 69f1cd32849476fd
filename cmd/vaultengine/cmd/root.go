// Package cmd provides the CLI commands for vaultengine.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/amanmcp/vaultengine/internal/logging"
	"github.com/amanmcp/vaultengine/pkg/version"
)

// Debug logging flag.
var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the vaultengine CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vaultengine",
		Short: "Local-first semantic search over a markdown vault",
		Long: `vaultengine indexes a directory of markdown notes, embeds each chunk,
and serves semantic search over them entirely locally.

Run 'vaultengine init' once to configure a vault, then 'vaultengine index'
to build the initial index and 'vaultengine watch' to keep it current.`,
		Version:            version.Version,
		PersistentPreRunE:  startDebugLogging,
		PersistentPostRunE: stopDebugLogging,
	}

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Write detailed debug logs to ~/.vaultengine/logs/engine.log")
	cmd.SetVersionTemplate("vaultengine version {{.Version}}\n")

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startDebugLogging enables quiet file-only logging if --debug was set.
func startDebugLogging(_ *cobra.Command, _ []string) error {
	if !debugMode {
		return nil
	}
	cleanup, err := logging.SetupQuietMode()
	if err != nil {
		return err
	}
	loggingCleanup = cleanup
	return nil
}

// stopDebugLogging flushes and closes the debug log file, if open.
func stopDebugLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
