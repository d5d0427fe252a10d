package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/gtfsprep/internal/cli/output"
	"github.com/leapstack-labs/gtfsprep/internal/cli/testutil"
	"github.com/leapstack-labs/gtfsprep/internal/config"
)

func TestInstallEnv(t *testing.T) {
	cfg := testutil.SetupTestProject(t)

	res := testutil.ExecuteCommand(t, NewInstallEnvCommand(), cfg)
	require.NoError(t, res.Err)

	assert.Contains(t, res.Out, "- **Task**: install_env")
	assert.Contains(t, res.Out, "- **Status**: Completed")
	assert.DirExists(t, filepath.Join(filepath.Dir(cfg.Manifest), "cache"))
	assert.DirExists(t, cfg.OutputDir)

	// Installing again is safe.
	res = testutil.ExecuteCommand(t, NewInstallEnvCommand(), cfg)
	require.NoError(t, res.Err)
}

func TestInstallEnv_Failures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(t *testing.T, cfg *config.Config)
		wantErr string
	}{
		{
			name: "missing manifest",
			mutate: func(t *testing.T, cfg *config.Config) {
				require.NoError(t, os.Remove(cfg.Manifest))
			},
			wantErr: "manifest",
		},
		{
			name: "required table missing",
			mutate: func(t *testing.T, cfg *config.Config) {
				require.NoError(t, os.Remove(cfg.InputTable(config.TableStops)))
			},
			wantErr: "required table stops",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testutil.SetupTestProject(t)
			cfg.OutputFormat = string(output.ModeJSON)
			tt.mutate(t, cfg)

			res := testutil.ExecuteCommand(t, NewInstallEnvCommand(), cfg)
			require.Error(t, res.Err)
			assert.Contains(t, res.Err.Error(), tt.wantErr)
			assert.Contains(t, res.Out, `"status": "failed"`)
		})
	}
}
