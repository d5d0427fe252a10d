package commands

import (
	"strconv"

	"github.com/leapstack-labs/gtfsprep/internal/cli/output"
	"github.com/spf13/cobra"
)

// NewTablesCommand creates the tables command.
func NewTablesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List input and sample tables",
		Long:  `List every known table in the input and output folders for the analysis date, with row and column counts.`,
		RunE:  runTables,
	}
}

func runTables(cmd *cobra.Command, _ []string) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	infos, err := cc.Engine.Tables(cmd.Context())
	if err != nil {
		return err
	}

	r := cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(infos)
	}

	rows := make([][]string, 0, len(infos))
	for _, info := range infos {
		count, cols := "-", "-"
		if info.Exists {
			count = strconv.FormatInt(info.Rows, 10)
			cols = strconv.Itoa(info.Columns)
		}
		rows = append(rows, []string{info.Folder, info.Table, count, cols, info.Path})
	}
	r.Table([]string{"Folder", "Table", "Rows", "Columns", "Path"}, rows)
	return nil
}
