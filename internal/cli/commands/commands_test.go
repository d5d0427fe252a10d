package commands

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
)

func TestCommandMetadata(t *testing.T) {
	tests := []struct {
		name    string
		use     string
		aliases []string
		flags   []string
	}{
		{name: "install-env", use: "install-env", aliases: []string{"install_env"}},
		{name: "process-data", use: "process-data", aliases: []string{"process_data"}, flags: []string{"select", "downstream", "watch", "json"}},
		{name: "import-gtfs", use: "import-gtfs <gtfs.zip|url>", flags: []string{"feed-key", "dataset-key", "name"}},
		{name: "import-vp", use: "import-vp <feed.pb>...", flags: []string{"dataset-key", "feed-key", "timezone"}},
		{name: "check-monotonic", use: "check-monotonic", flags: []string{"path"}},
		{name: "tables", use: "tables"},
		{name: "runs", use: "runs", flags: []string{"limit"}},
		{name: "publish", use: "publish", flags: []string{"dsn", "schema", "tables"}},
	}

	constructors := map[string]func() *cobra.Command{
		"install-env":     NewInstallEnvCommand,
		"process-data":    NewProcessDataCommand,
		"import-gtfs":     NewImportGTFSCommand,
		"import-vp":       NewImportVPCommand,
		"check-monotonic": NewCheckMonotonicCommand,
		"tables":          NewTablesCommand,
		"runs":            NewRunsCommand,
		"publish":         NewPublishCommand,
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := constructors[tt.name]()

			assert.Equal(t, tt.use, cmd.Use)
			assert.Equal(t, tt.name, cmd.Name())
			assert.NotEmpty(t, cmd.Short, "Short should not be empty")
			assert.NotEmpty(t, cmd.Long, "Long should not be empty")
			assert.NotNil(t, cmd.RunE)
			if tt.aliases != nil {
				assert.Equal(t, tt.aliases, cmd.Aliases)
			}
			for _, flag := range tt.flags {
				assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
			}
		})
	}
}

func TestSplitCSV(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitCSV(" a, ,b,"))
	assert.Nil(t, splitCSV(""))
}
