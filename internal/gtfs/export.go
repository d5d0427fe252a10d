package gtfs

import (
	"context"
	"database/sql/driver"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/leapstack-labs/gtfsprep/internal/adapter"
	"github.com/leapstack-labs/gtfsprep/internal/config"
)

// tripInstanceNamespace scopes trip_instance_key uuids.
var tripInstanceNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://gtfsprep/trip_instance_key"))

// TripInstanceKey identifies one trip of one feed on one service date. The
// same inputs always give the same key.
func TripInstanceKey(feedKey, tripID, date string) string {
	return uuid.NewSHA1(tripInstanceNamespace, []byte(feedKey+"\x00"+tripID+"\x00"+date)).String()
}

// ExportOptions identify the feed being imported.
type ExportOptions struct {
	FeedKey    string
	DatasetKey string
	Name       string
	Date       string
	// Dir is the folder the parquet tables are written to.
	Dir string
}

type stagedTable struct {
	table  string
	schema string
	fill   func(adapter.AppendFunc) error
}

// Export writes trips, stops, stop_times and shapes parquet tables for the
// feed and returns the row count of each table written.
func (f *Feed) Export(ctx context.Context, db adapter.Adapter, opts ExportOptions) (map[string]int64, error) {
	if opts.FeedKey == "" || opts.DatasetKey == "" {
		return nil, fmt.Errorf("feed key and dataset key are required")
	}

	tables := []stagedTable{
		{
			table: config.TableTrips,
			schema: `name VARCHAR, gtfs_dataset_key VARCHAR, feed_key VARCHAR, trip_id VARCHAR,
				shape_id VARCHAR, trip_instance_key VARCHAR, route_id VARCHAR, direction_id BIGINT`,
			fill: func(appendRow adapter.AppendFunc) error {
				for _, t := range f.Trips {
					var direction driver.Value
					if d, err := strconv.ParseInt(t.DirectionID, 10, 64); err == nil {
						direction = d
					}
					if err := appendRow(opts.Name, opts.DatasetKey, opts.FeedKey, t.TripID,
						nullString(t.ShapeID), TripInstanceKey(opts.FeedKey, t.TripID, opts.Date),
						t.RouteID, direction); err != nil {
						return err
					}
				}
				return nil
			},
		},
		{
			table:  config.TableStops,
			schema: `feed_key VARCHAR, stop_id VARCHAR, stop_name VARCHAR, stop_lat DOUBLE, stop_lon DOUBLE`,
			fill: func(appendRow adapter.AppendFunc) error {
				for _, s := range f.Stops {
					// a stop without a location cannot be projected
					if s.Latitude.Blank() || s.Longitude.Blank() {
						continue
					}
					if err := appendRow(opts.FeedKey, s.StopID, s.StopName, float64(s.Latitude), float64(s.Longitude)); err != nil {
						return err
					}
				}
				return nil
			},
		},
		{
			table:  config.TableStopTimes,
			schema: `feed_key VARCHAR, trip_id VARCHAR, stop_id VARCHAR, stop_sequence BIGINT, arrival_sec DOUBLE`,
			fill: func(appendRow adapter.AppendFunc) error {
				for _, st := range f.StopTimes {
					sec, ok, err := ParseTime(st.ArrivalTime)
					if err != nil {
						return fmt.Errorf("trip %s stop %s: %w", st.TripID, st.StopID, err)
					}
					var arrival driver.Value
					if ok {
						arrival = sec
					}
					if err := appendRow(opts.FeedKey, st.TripID, st.StopID, int64(st.Sequence), arrival); err != nil {
						return err
					}
				}
				return nil
			},
		},
		{
			table: config.TableShapes,
			schema: `feed_key VARCHAR, shape_id VARCHAR, shape_pt_lat DOUBLE, shape_pt_lon DOUBLE,
				shape_pt_sequence BIGINT`,
			fill: func(appendRow adapter.AppendFunc) error {
				for _, p := range f.Shapes {
					if p.Latitude.Blank() || p.Longitude.Blank() {
						continue
					}
					if err := appendRow(opts.FeedKey, p.ShapeID, float64(p.Latitude), float64(p.Longitude), int64(p.Sequence)); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}

	counts := make(map[string]int64, len(tables))
	for _, t := range tables {
		n, err := stageAndCopy(ctx, db, "gtfs_import_"+t.table, t.schema, t.fill,
			config.TablePath(opts.Dir, t.table, opts.Date))
		if err != nil {
			return nil, fmt.Errorf("export %s: %w", t.table, err)
		}
		counts[t.table] = n
	}
	return counts, nil
}

// stageAndCopy loads rows into a scratch table and writes it to path.
func stageAndCopy(ctx context.Context, db adapter.Adapter, scratch, schema string, fill func(adapter.AppendFunc) error, path string) (int64, error) {
	if err := db.Exec(ctx, fmt.Sprintf("CREATE OR REPLACE TABLE %s (%s)", scratch, schema)); err != nil {
		return 0, err
	}
	defer func() { _ = db.Exec(context.Background(), "DROP TABLE IF EXISTS "+scratch) }()

	if err := db.Append(ctx, scratch, fill); err != nil {
		return 0, err
	}
	return db.CopyToParquet(ctx, "SELECT * FROM "+scratch, path)
}

func nullString(s string) driver.Value {
	if s == "" {
		return nil
	}
	return s
}
