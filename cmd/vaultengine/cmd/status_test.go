package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCmd_ReportsDocumentAndChunkCounts(t *testing.T) {
	tmpDir := withTempCwd(t)
	seedNote(t, tmpDir, "note.md", "# Note\n\nSome content for the status check.\n")

	indexCmd := newIndexCmd()
	indexCmd.SetOut(&bytes.Buffer{})
	indexCmd.SetArgs([]string{})
	require.NoError(t, indexCmd.Execute())

	var stdout bytes.Buffer
	cmd := newStatusCmd()
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{})

	err := cmd.Execute()

	require.NoError(t, err)
	output := stdout.String()
	assert.Contains(t, output, "documents:  1")
	assert.Contains(t, output, "vault:")
	assert.Contains(t, output, "state dir:")
}

func TestStatusCmd_AfterSearch_ReportsPersistedQueryMetrics(t *testing.T) {
	tmpDir := withTempCwd(t)
	seedNote(t, tmpDir, "note.md", "# Note\n\nSome content for the status check.\n")

	indexCmd := newIndexCmd()
	indexCmd.SetOut(&bytes.Buffer{})
	indexCmd.SetArgs([]string{})
	require.NoError(t, indexCmd.Execute())

	// The search command's own app flushes its QueryMetrics to
	// <state dir>/telemetry.db on a.Close(), so a later, separate status
	// invocation against the same vault can read it back.
	searchCmd := newSearchCmd()
	searchCmd.SetOut(&bytes.Buffer{})
	searchCmd.SetArgs([]string{"status check"})
	require.NoError(t, searchCmd.Execute())

	var stdout bytes.Buffer
	cmd := newStatusCmd()
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{})

	err := cmd.Execute()

	require.NoError(t, err)
	output := stdout.String()
	assert.Contains(t, output, "queries (this run): 0")
	assert.Contains(t, output, "queries today semantic")
	assert.Contains(t, output, "top terms:")
	assert.Contains(t, output, "status(1)")
	assert.Contains(t, output, "check(1)")
}

func TestStatusCmd_EmptyVault_ReportsZeroCounts(t *testing.T) {
	withTempCwd(t)

	var stdout bytes.Buffer
	cmd := newStatusCmd()
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{})

	err := cmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "documents:  0")
}
