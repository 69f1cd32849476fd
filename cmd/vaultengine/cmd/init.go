package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/amanmcp/vaultengine/internal/config"
)

// newInitCmd creates the init command.
func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Create a .vaultengine state directory and default config",
		Long:  `Initializes a vault at path (default: current directory), writing <path>/.vaultengine/config.toml.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			absRoot, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("resolve working directory: %w", err)
			}
			if root != "." {
				absRoot = root
			}

			stateDir := stateDirFor(absRoot)
			if _, err := os.Stat(stateDir); err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s already exists, leaving it unchanged\n", stateDir)
				return nil
			}

			cfg := config.Default()
			cfg.Vault.Path = absRoot
			if err := cfg.Write(stateDir); err != nil {
				return fmt.Errorf("write config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "initialized vault at %s (state: %s)\n", absRoot, stateDir)
			fmt.Fprintln(cmd.OutOrStdout(), "run 'vaultengine index' to build the initial index")
			return nil
		},
	}

	return cmd
}
