package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amanmcp/vaultengine/internal/config"
)

func withTempCwd(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	oldWd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tmpDir))
	t.Cleanup(func() { _ = os.Chdir(oldWd) })
	return tmpDir
}

func TestInitCmd_CreatesStateDir(t *testing.T) {
	tmpDir := withTempCwd(t)

	var stdout bytes.Buffer
	cmd := newInitCmd()
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{})

	err := cmd.Execute()

	require.NoError(t, err)
	cfgPath := filepath.Join(tmpDir, ".vaultengine", "config.toml")
	_, statErr := os.Stat(cfgPath)
	assert.NoError(t, statErr, "config.toml should be written")
	assert.Contains(t, stdout.String(), "initialized vault")
}

func TestInitCmd_WrittenConfigLoadsBack(t *testing.T) {
	tmpDir := withTempCwd(t)

	cmd := newInitCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())

	stateDir := filepath.Join(tmpDir, ".vaultengine")
	cfg, err := config.Load(stateDir)
	require.NoError(t, err)
	assert.Equal(t, tmpDir, cfg.Vault.Path)
}

func TestInitCmd_AlreadyInitialized_LeavesConfigUnchanged(t *testing.T) {
	tmpDir := withTempCwd(t)

	first := newInitCmd()
	first.SetOut(&bytes.Buffer{})
	first.SetArgs([]string{})
	require.NoError(t, first.Execute())

	cfgPath := filepath.Join(tmpDir, ".vaultengine", "config.toml")
	before, err := os.ReadFile(cfgPath)
	require.NoError(t, err)

	var stdout bytes.Buffer
	second := newInitCmd()
	second.SetOut(&stdout)
	second.SetArgs([]string{})
	require.NoError(t, second.Execute())

	after, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, before, after, "second init should not rewrite the existing config")
	assert.Contains(t, stdout.String(), "already exists")
}

func TestInitCmd_ExplicitPathArgument(t *testing.T) {
	parent := t.TempDir()
	target := filepath.Join(parent, "myvault")
	require.NoError(t, os.MkdirAll(target, 0o755))

	cmd := newInitCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{target})

	err := cmd.Execute()

	require.NoError(t, err)
	_, statErr := os.Stat(filepath.Join(target, ".vaultengine", "config.toml"))
	assert.NoError(t, statErr)
}
