package cmd

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_Help(t *testing.T) {
	// Given: a root command
	cmd := NewRootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})

	// When: executing with --help
	err := cmd.Execute()

	// Then: it should list the main commands
	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "index")
	assert.Contains(t, output, "query")
	assert.Contains(t, output, "stats")
	assert.Contains(t, output, "checkpoint")
}

func TestRootCmd_UnknownCommand(t *testing.T) {
	// Given: a root command
	cmd := NewRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"frobnicate"})

	// When: executing an unknown subcommand
	err := cmd.Execute()

	// Then: it should fail
	assert.Error(t, err)
}

func TestStatsCmd_EmptyWithoutIndex(t *testing.T) {
	// Given: an isolated environment with no index
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("VAB_DATA_DIR", t.TempDir())
	t.Setenv("VAB_EMBEDDER", "static")

	cmd := NewRootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"stats", "--json"})

	// When: requesting stats
	err := cmd.Execute()

	// Then: it should report zero documents rather than fail
	require.NoError(t, err)

	var stats struct {
		TotalDocs  int    `json:"total_docs"`
		LastUpdate string `json:"last_update"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &stats))
	assert.Equal(t, 0, stats.TotalDocs)
	assert.Equal(t, "N/A", stats.LastUpdate)
}

func TestQueryCmd_EmptyWithoutIndex(t *testing.T) {
	// Given: an isolated environment with no index
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("VAB_DATA_DIR", t.TempDir())
	t.Setenv("VAB_EMBEDDER", "static")

	cmd := NewRootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"query", "victorian", "ballgown"})

	// When: querying before any index exists
	err := cmd.Execute()

	// Then: it should print an empty result rather than fail
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "No results found")
}

func TestCheckpointCmd_NotIndexedYet(t *testing.T) {
	// Given: an isolated environment with no checkpoint
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("VAB_DATA_DIR", t.TempDir())

	cmd := NewRootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"checkpoint"})

	// When: showing the checkpoint
	err := cmd.Execute()

	// Then: it should report nothing indexed yet
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "N/A")
}
