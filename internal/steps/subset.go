package steps

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/gtfsprep/internal/adapter"
	"github.com/leapstack-labs/gtfsprep/internal/config"
)

func init() {
	Register(SubsetTables, func() Step { return &SubsetStep{} })
}

const (
	rtTripsTable   = "subset_rt_trips"
	crosswalkTable = "subset_crosswalk"
)

// SubsetStep filters every configured table down to the trips that have
// vehicle positions for the selected operators and writes the result to the
// output folder.
type SubsetStep struct{}

func (s *SubsetStep) Name() string        { return SubsetTables }
func (s *SubsetStep) DependsOn() []string { return []string{StopTimesDirection} }

// Run builds the rt trip list and the feed crosswalk, then exports each
// table concurrently. It returns the total number of rows exported.
func (s *SubsetStep) Run(ctx context.Context, env *Env) (int64, error) {
	log := env.logger().With("step", SubsetTables)

	if env.Config.SharesFolders() {
		return 0, fmt.Errorf("output folder %s is the input folder; refusing to overwrite input tables", env.Config.OutputDir)
	}

	tables := env.Config.Subset.Tables
	if len(tables) == 0 {
		tables = config.KnownTables
	}
	for _, t := range tables {
		if !config.IsKnownTable(t) {
			return 0, fmt.Errorf("cannot subset unknown table %q", t)
		}
	}

	inputs := []string{config.TableTrips, config.TableVP}
	for _, t := range tables {
		if t != config.TableTrips && t != config.TableVP {
			inputs = append(inputs, t)
		}
	}
	if err := registerInputs(ctx, env, inputs...); err != nil {
		return 0, err
	}

	if err := env.DB.Exec(ctx, rtTripsSQL(env.Config.OperatorSet())); err != nil {
		return 0, fmt.Errorf("failed to select rt trips: %w", err)
	}
	if err := env.DB.Exec(ctx, crosswalkSQL); err != nil {
		return 0, fmt.Errorf("failed to build crosswalk: %w", err)
	}
	defer func() {
		_ = env.DB.Exec(context.Background(), "DROP TABLE IF EXISTS "+rtTripsTable)
		_ = env.DB.Exec(context.Background(), "DROP TABLE IF EXISTS "+crosswalkTable)
	}()

	limit := env.Config.Subset.Concurrency
	if limit < 1 {
		limit = 1
	}

	var total atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, table := range tables {
		g.Go(func() error {
			out := env.Config.OutputTable(table)
			n, err := env.DB.CopyToParquet(gctx, subsetQuery(table), out)
			if err != nil {
				return fmt.Errorf("subset %s: %w", table, err)
			}
			log.Info("exported table", "table", table, "path", out, "rows", n)
			total.Add(n)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return total.Load(), nil
}

// rtTripsSQL selects the scheduled trips that also appear in vp. An empty
// operator list keeps every operator.
func rtTripsSQL(operators []string) string {
	var b strings.Builder
	b.WriteString("CREATE OR REPLACE TABLE " + rtTripsTable + ` AS
SELECT DISTINCT
	name,
	gtfs_dataset_key AS schedule_gtfs_dataset_key,
	feed_key,
	trip_id,
	shape_id,
	trip_instance_key
FROM trips
WHERE trip_instance_key IN (SELECT DISTINCT trip_instance_key FROM vp)`)
	if len(operators) > 0 {
		b.WriteString("\n\tAND name IN (" + adapter.QuoteList(operators) + ")")
	}
	return b.String()
}

const crosswalkSQL = "CREATE OR REPLACE TABLE " + crosswalkTable + ` AS
SELECT DISTINCT feed_key, gtfs_dataset_key AS schedule_gtfs_dataset_key
FROM trips
WHERE feed_key IN (SELECT feed_key FROM ` + rtTripsTable + ")"

const (
	inRTFeeds     = "feed_key IN (SELECT feed_key FROM " + rtTripsTable + ")"
	inRTTrips     = "trip_id IN (SELECT trip_id FROM " + rtTripsTable + ")"
	inRTShapes    = "shape_id IN (SELECT shape_id FROM " + rtTripsTable + ")"
	inRTOperators = "schedule_gtfs_dataset_key IN (SELECT schedule_gtfs_dataset_key FROM " + rtTripsTable + ")"
)

// subsetQuery returns the export query for a known table.
func subsetQuery(table string) string {
	var where string
	switch table {
	case config.TableVP:
		return fmt.Sprintf("SELECT * FROM %s WHERE %s AND %s", table, inRTOperators, inRTTrips)
	case config.TableShapes:
		where = inRTFeeds + " AND " + inRTShapes
	case config.TableStops:
		where = inRTFeeds
	default:
		where = inRTFeeds + " AND " + inRTTrips
	}
	return fmt.Sprintf(`SELECT * EXCLUDE (feed_key)
FROM (SELECT * FROM %s WHERE %s) AS t
INNER JOIN %s USING (feed_key)`, table, where, crosswalkTable)
}
