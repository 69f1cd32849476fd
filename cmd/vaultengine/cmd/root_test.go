package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_HasAllSubcommands(t *testing.T) {
	root := NewRootCmd()

	for _, name := range []string{"init", "index", "watch", "search", "status", "logs", "version"} {
		found, _, err := root.Find([]string{name})
		require.NoError(t, err, "subcommand %q should resolve", name)
		assert.Equal(t, name, found.Name())
	}
}

func TestRootCmd_Use(t *testing.T) {
	root := NewRootCmd()

	assert.Equal(t, "vaultengine", root.Use)
}
