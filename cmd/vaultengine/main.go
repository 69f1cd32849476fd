// Package main provides the entry point for the vaultengine CLI.
package main

import (
	"os"

	"github.com/amanmcp/vaultengine/cmd/vaultengine/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
