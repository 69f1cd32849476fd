package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchCmd_ReturnsIndexedNote(t *testing.T) {
	tmpDir := withTempCwd(t)
	seedNote(t, tmpDir, "vaults.md", "# Vaults\n\nA vault engine indexes markdown notes for semantic search.\n")

	indexCmd := newIndexCmd()
	indexCmd.SetOut(&bytes.Buffer{})
	indexCmd.SetArgs([]string{})
	require.NoError(t, indexCmd.Execute())

	var stdout bytes.Buffer
	searchCmd := newSearchCmd()
	searchCmd.SetOut(&stdout)
	searchCmd.SetArgs([]string{"vault engine markdown"})

	err := searchCmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "vaults.md")
}

func TestSearchCmd_EmptyVault_ReportsNoResults(t *testing.T) {
	withTempCwd(t)

	var stdout bytes.Buffer
	cmd := newSearchCmd()
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{"anything"})

	err := cmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "no results")
}

func TestSearchCmd_KeywordFilterExcludesNonMatches(t *testing.T) {
	tmpDir := withTempCwd(t)
	seedNote(t, tmpDir, "a.md", "# A\n\nNotes about apples and orchards.\n")
	seedNote(t, tmpDir, "b.md", "# B\n\nNotes about bananas and plantations.\n")

	indexCmd := newIndexCmd()
	indexCmd.SetOut(&bytes.Buffer{})
	indexCmd.SetArgs([]string{})
	require.NoError(t, indexCmd.Execute())

	var stdout bytes.Buffer
	cmd := newSearchCmd()
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{"--keyword", "bananas", "notes"})

	err := cmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "b.md")
	assert.NotContains(t, stdout.String(), "a.md")
}

func TestSearchCmd_RequiresQueryArgument(t *testing.T) {
	withTempCwd(t)

	cmd := newSearchCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	err := cmd.Execute()

	assert.Error(t, err)
}
