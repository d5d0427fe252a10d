// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/gtfsprep/internal/cli/config"
	"github.com/leapstack-labs/gtfsprep/internal/cli/output"
	sharedtest "github.com/leapstack-labs/gtfsprep/internal/testutil"
)

// Manifest is a requirements manifest matching the fixture tables.
const Manifest = `name: ladot-sample
directories: [cache]
tables:
  - name: stop_times
    required: true
    columns: [feed_key, trip_id, stop_id, stop_sequence]
  - name: stops
    required: true
    columns: [feed_key, stop_id, stop_lat, stop_lon]
`

// SetupTestProject creates a temporary project with the fixture input
// tables, a manifest and a file-backed state database.
func SetupTestProject(t *testing.T) *config.Config {
	t.Helper()

	dir := t.TempDir()
	cfg := sharedtest.NewConfig(dir)
	cfg.StatePath = filepath.Join(dir, ".gtfsprep", "state.db")
	cfg.Manifest = filepath.Join(dir, "requirements.yaml")
	cfg.OutputFormat = string(output.ModeMarkdown)

	require.NoError(t, os.WriteFile(cfg.Manifest, []byte(Manifest), 0o600))
	sharedtest.WriteFixtures(t, sharedtest.NewDuckDB(t), cfg.InputDir)
	return cfg
}

// Result holds the captured output of a command.
type Result struct {
	Out    string
	ErrOut string
	Err    error
}

// ExecuteCommand runs cmd with cfg and a test logger in its context.
func ExecuteCommand(t *testing.T, cmd *cobra.Command, cfg *config.Config, args ...string) Result {
	t.Helper()

	out, errOut := new(bytes.Buffer), new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)

	ctx := config.WithConfig(context.Background(), cfg)
	ctx = config.WithLogger(ctx, sharedtest.NewTestLogger(t))

	err := cmd.ExecuteContext(ctx)
	return Result{Out: out.String(), ErrOut: errOut.String(), Err: err}
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode.
// Output is captured in buffers for inspection.
func NewTestRenderer(mode output.Mode) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRenderer(out, errOut, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}
