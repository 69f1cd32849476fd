package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedNote(t *testing.T, root, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(body), 0o644))
}

func TestIndexCmd_ScansAndRewritesNotes(t *testing.T) {
	tmpDir := withTempCwd(t)
	seedNote(t, tmpDir, "one.md", "# One\n\nSome note content about vault engines.\n")
	seedNote(t, tmpDir, "two.md", "# Two\n\nAnother note, different topic entirely.\n")

	var stdout bytes.Buffer
	cmd := newIndexCmd()
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{})

	err := cmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "scanned 2")
	assert.Contains(t, stdout.String(), "rewritten 2")
}

func TestIndexCmd_NoFiles_ScansZero(t *testing.T) {
	withTempCwd(t)

	var stdout bytes.Buffer
	cmd := newIndexCmd()
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{})

	err := cmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "scanned 0")
}

func TestIndexCmd_ExplicitPath(t *testing.T) {
	root := t.TempDir()
	seedNote(t, root, "only.md", "# Only\n\nContent.\n")

	var stdout bytes.Buffer
	cmd := newIndexCmd()
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{"--path", root})

	err := cmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "scanned 1")
}
