package commands

import (
	"fmt"
	"strconv"

	"github.com/leapstack-labs/gtfsprep/internal/cli/output"
	"github.com/leapstack-labs/gtfsprep/internal/publish"
	"github.com/spf13/cobra"
)

// PublishOptions holds options for the publish command.
type PublishOptions struct {
	DSN    string
	Schema string
	Tables string
}

// NewPublishCommand creates the publish command.
func NewPublishCommand() *cobra.Command {
	opts := &PublishOptions{}

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Load the sample tables into Postgres",
		Long: `Copy every sample table in the output folder into Postgres, replacing
tables of the same name in the target schema.

The DSN defaults to publish.dsn in gtfsprep.yaml (environment variables are
expanded) or GTFSPREP_PUBLISH_DSN.`,
		Example: `  gtfsprep publish --dsn postgres://localhost/transit --schema sample
  gtfsprep publish --tables trips,stops`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPublish(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.DSN, "dsn", "", "Postgres connection string")
	cmd.Flags().StringVar(&opts.Schema, "schema", "", "Target schema")
	cmd.Flags().StringVar(&opts.Tables, "tables", "", "Comma-separated list of tables to publish")

	return cmd
}

func runPublish(cmd *cobra.Command, opts *PublishOptions) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	dsn := cc.Cfg.Publish.DSN
	if opts.DSN != "" {
		dsn = opts.DSN
	}
	schema := cc.Cfg.Publish.Schema
	if opts.Schema != "" {
		schema = opts.Schema
	}

	ctx := cmd.Context()
	db, err := cc.Engine.DB(ctx)
	if err != nil {
		return err
	}

	results, err := publish.Publish(ctx, db, publish.Options{
		DSN:    dsn,
		Schema: schema,
		Tables: splitCSV(opts.Tables),
		Dir:    cc.Cfg.OutputDir,
		Date:   cc.Cfg.AnalysisDate,
		Logger: cc.Logger,
	})
	if err != nil {
		return err
	}

	r := cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(results)
	}
	rows := make([][]string, 0, len(results))
	for _, res := range results {
		rows = append(rows, []string{res.Table, res.Target, strconv.FormatInt(res.Rows, 10)})
	}
	r.Table([]string{"Table", "Target", "Rows"}, rows)
	r.Success(fmt.Sprintf("Published %d tables", len(results)))
	return nil
}
