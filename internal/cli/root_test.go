package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/gtfsprep/internal/engine"
)

func execRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestNewRootCmd_Subcommands(t *testing.T) {
	cmd := NewRootCmd()
	assert.Equal(t, "gtfsprep", cmd.Use)

	want := []string{
		"install-env", "process-data", "import-gtfs", "import-vp", "check-monotonic",
		"tables", "runs", "publish", "version", "completion",
	}
	for _, name := range want {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}

	sub, _, err := cmd.Find([]string{"process_data"})
	require.NoError(t, err)
	assert.Equal(t, "process-data", sub.Name())

	for _, flag := range []string{"config", "project-dir", "input", "output-dir", "date", "operator", "manifest", "database", "state", "env", "verbose", "output"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestCompletion(t *testing.T) {
	tests := []struct {
		shell string
		want  string
	}{
		{"bash", "bash completion"},
		{"zsh", "#compdef gtfsprep"},
		{"fish", "complete -c gtfsprep"},
		{"powershell", "Register-ArgumentCompleter"},
	}
	for _, tt := range tests {
		t.Run(tt.shell, func(t *testing.T) {
			out, err := execRoot(t, "completion", tt.shell)
			require.NoError(t, err)
			assert.Contains(t, out, tt.want)
		})
	}

	_, err := execRoot(t, "completion", "tcsh")
	require.Error(t, err)
}

func TestRoot_LoadsProjectConfig(t *testing.T) {
	dir := t.TempDir()
	yml := "input_dir: data/in\noutput_dir: data/out\nanalysis_date: \"2024-10-17\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gtfsprep.yaml"), []byte(yml), 0o600))

	out, err := execRoot(t, "--project-dir", dir, "-o", "json", "tables")
	require.NoError(t, err)

	var infos []engine.TableInfo
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	require.NotEmpty(t, infos)
	assert.Equal(t, filepath.Join(dir, "data", "in", "trips_2024-10-17.parquet"), infos[0].Path)
	assert.False(t, infos[0].Exists)
	assert.FileExists(t, filepath.Join(dir, ".gtfsprep", "state.db"))
}

func TestRoot_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	_, err := execRoot(t, "--project-dir", dir, "--date", "yesterday", "tables")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analysis_date")
}
