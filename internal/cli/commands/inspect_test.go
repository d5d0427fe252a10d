package commands

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/gtfsprep/internal/cli/output"
	"github.com/leapstack-labs/gtfsprep/internal/cli/testutil"
	"github.com/leapstack-labs/gtfsprep/internal/config"
	"github.com/leapstack-labs/gtfsprep/internal/engine"
)

func TestTables_JSON(t *testing.T) {
	cfg := testutil.SetupTestProject(t)
	cfg.OutputFormat = string(output.ModeJSON)

	res := testutil.ExecuteCommand(t, NewTablesCommand(), cfg)
	require.NoError(t, res.Err)

	var infos []engine.TableInfo
	require.NoError(t, json.Unmarshal([]byte(res.Out), &infos))
	require.Len(t, infos, 2*len(config.KnownTables))

	byKey := map[string]engine.TableInfo{}
	for _, info := range infos {
		byKey[info.Folder+"/"+info.Table] = info
	}
	assert.True(t, byKey["input/trips"].Exists)
	assert.Equal(t, int64(4), byKey["input/trips"].Rows)
	assert.False(t, byKey["output/trips"].Exists)
}

func TestTables_Markdown(t *testing.T) {
	cfg := testutil.SetupTestProject(t)

	res := testutil.ExecuteCommand(t, NewTablesCommand(), cfg)
	require.NoError(t, res.Err)
	assert.Contains(t, res.Out, "| Folder | Table | Rows | Columns | Path |")
	assert.Contains(t, res.Out, "| input | trips | 4 |")
	assert.Contains(t, res.Out, "| output | trips | - | - |")
}

func TestCheckMonotonic(t *testing.T) {
	cfg := testutil.SetupTestProject(t)
	require.NoError(t, testutil.ExecuteCommand(t, NewProcessDataCommand(), cfg).Err)

	cfg.OutputFormat = string(output.ModeJSON)
	res := testutil.ExecuteCommand(t, NewCheckMonotonicCommand(), cfg)
	require.NoError(t, res.Err)

	var report monotonicReport
	require.NoError(t, json.Unmarshal([]byte(res.Out), &report))
	assert.Equal(t, 1, report.Trips)
	assert.Zero(t, report.NonMonotonic)
	assert.Equal(t, []engine.TripMonotonic{{Key: "d1", TripID: "t1", Stops: 4, Monotonic: true}}, report.Results)
}

func TestCheckMonotonic_MissingFile(t *testing.T) {
	cfg := testutil.SetupTestProject(t)

	res := testutil.ExecuteCommand(t, NewCheckMonotonicCommand(), cfg)
	require.Error(t, res.Err)
}

func TestRuns(t *testing.T) {
	cfg := testutil.SetupTestProject(t)
	require.NoError(t, testutil.ExecuteCommand(t, NewInstallEnvCommand(), cfg).Err)
	require.NoError(t, testutil.ExecuteCommand(t, NewProcessDataCommand(), cfg).Err)

	cfg.OutputFormat = string(output.ModeJSON)
	res := testutil.ExecuteCommand(t, NewRunsCommand(), cfg, "--limit", "5")
	require.NoError(t, res.Err)

	var runs []RunView
	require.NoError(t, json.Unmarshal([]byte(res.Out), &runs))
	require.Len(t, runs, 2)
	assert.Equal(t, "process_data", runs[0].Task)
	assert.Equal(t, "completed", runs[0].Status)
	require.Len(t, runs[0].Steps, 2)
	assert.Equal(t, "stop_times_direction", runs[0].Steps[0].Step)
	assert.Equal(t, int64(9), runs[0].Steps[0].Rows)
	assert.Equal(t, "install_env", runs[1].Task)
	assert.Empty(t, runs[1].Steps)
}

func TestRuns_Empty(t *testing.T) {
	cfg := testutil.SetupTestProject(t)

	res := testutil.ExecuteCommand(t, NewRunsCommand(), cfg)
	require.NoError(t, res.Err)
	assert.Contains(t, res.Out, "No runs recorded yet")
}

func TestPublish_RequiresDSN(t *testing.T) {
	cfg := testutil.SetupTestProject(t)

	res := testutil.ExecuteCommand(t, NewPublishCommand(), cfg)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "dsn")
}
