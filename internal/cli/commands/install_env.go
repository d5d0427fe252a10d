package commands

import (
	"github.com/spf13/cobra"
)

// NewInstallEnvCommand creates the install-env command.
func NewInstallEnvCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "install-env",
		Aliases: []string{"install_env"},
		Short:   "Materialize the environment from the requirements manifest",
		Long: `Read the requirements manifest and materialize it: create the declared
directories, apply DuckDB settings and extensions, and check that every
required input table exists with its declared columns.

Running it again with the same manifest is safe.`,
		Example: `  # Install from ./requirements.yaml
  gtfsprep install-env

  # Install from another manifest
  gtfsprep install-env --manifest envs/ci.yaml`,
		RunE: runInstallEnv,
	}
	return cmd
}

func runInstallEnv(cmd *cobra.Command, _ []string) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	run, installErr := cc.Engine.Install(cmd.Context())
	if run != nil {
		if err := renderRun(cc.Renderer, newRunView(cc.Engine.GetStateStore(), run)); err != nil {
			return err
		}
	}
	return installErr
}
