package commands

import (
	"fmt"
	"os"
	"sort"

	"github.com/leapstack-labs/gtfsprep/internal/cli/output"
	"github.com/leapstack-labs/gtfsprep/internal/config"
	"github.com/leapstack-labs/gtfsprep/internal/gtfs"
	"github.com/spf13/cobra"
)

// ImportGTFSOptions holds options for the import-gtfs command.
type ImportGTFSOptions struct {
	FeedKey    string
	DatasetKey string
	Name       string
}

// NewImportGTFSCommand creates the import-gtfs command.
func NewImportGTFSCommand() *cobra.Command {
	opts := &ImportGTFSOptions{}

	cmd := &cobra.Command{
		Use:   "import-gtfs <gtfs.zip|url>",
		Short: "Import a GTFS schedule zip as input tables",
		Long: `Read a GTFS schedule archive from a file or an http(s) URL and write the
trips, stops, stop_times and shapes input tables for the analysis date.
Rows are tagged with the feed key, dataset key and operator name.`,
		Example: `  gtfsprep import-gtfs ladot.zip --feed-key f1 --dataset-key d1 --name "LA DOT Schedule"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImportGTFS(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.FeedKey, "feed-key", "", "Feed key written to every row")
	cmd.Flags().StringVar(&opts.DatasetKey, "dataset-key", "", "Schedule GTFS dataset key")
	cmd.Flags().StringVar(&opts.Name, "name", "", "Operator name written to trips")
	_ = cmd.MarkFlagRequired("feed-key")
	_ = cmd.MarkFlagRequired("dataset-key")

	return cmd
}

func runImportGTFS(cmd *cobra.Command, src string, opts *ImportGTFSOptions) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	feed, err := gtfs.Load(ctx, src, cc.Logger)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cc.Cfg.InputDir, 0750); err != nil {
		return fmt.Errorf("failed to create input folder: %w", err)
	}
	db, err := cc.Engine.DB(ctx)
	if err != nil {
		return err
	}

	counts, err := feed.Export(ctx, db, gtfs.ExportOptions{
		FeedKey:    opts.FeedKey,
		DatasetKey: opts.DatasetKey,
		Name:       opts.Name,
		Date:       cc.Cfg.AnalysisDate,
		Dir:        cc.Cfg.InputDir,
	})
	if err != nil {
		return fmt.Errorf("failed to import %s: %w", src, err)
	}
	return renderTableCounts(cc.Renderer, cc.Cfg, counts)
}

// tableCount is one written table.
type tableCount struct {
	Table string `json:"table"`
	Path  string `json:"path"`
	Rows  int64  `json:"rows"`
}

func renderTableCounts(r *output.Renderer, cfg *config.Config, counts map[string]int64) error {
	tables := make([]string, 0, len(counts))
	for t := range counts {
		tables = append(tables, t)
	}
	sort.Strings(tables)

	written := make([]tableCount, 0, len(tables))
	for _, t := range tables {
		written = append(written, tableCount{Table: t, Path: cfg.InputTable(t), Rows: counts[t]})
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(written)
	}

	rows := make([][]string, 0, len(written))
	for _, w := range written {
		rows = append(rows, []string{w.Table, fmt.Sprintf("%d", w.Rows), w.Path})
	}
	r.Table([]string{"Table", "Rows", "Path"}, rows)
	r.Success(fmt.Sprintf("Wrote %d tables", len(written)))
	return nil
}
