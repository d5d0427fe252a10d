package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/gtfsprep/internal/adapter"
	"github.com/leapstack-labs/gtfsprep/internal/config"
)

// FixtureDate is the analysis date used by the sample dataset.
const FixtureDate = "2024-10-16"

// The sample dataset has two feeds. Feed f1 ("LA DOT Schedule", dataset d1)
// runs t1 (four stops: north, east, south), t2 (two stops, north) and t3
// (a single stop). Feed f2 ("Big Blue Bus", dataset d2) runs t9 (two stops,
// west). Vehicle positions exist for t1 and t9 only. Stop times for t1 also
// reference s404, which is missing from stops.
var fixtureTables = map[string]string{
	config.TableTrips: `
		SELECT * FROM (VALUES
			('LA DOT Schedule', 'd1', 'f1', 't1', 'sh1', 'k1', 'r1', 0),
			('LA DOT Schedule', 'd1', 'f1', 't2', 'sh2', 'k2', 'r1', 1),
			('LA DOT Schedule', 'd1', 'f1', 't3', 'sh1', 'k3', 'r1', 0),
			('Big Blue Bus',    'd2', 'f2', 't9', 'sh9', 'k9', 'r9', 0)
		) AS t(name, gtfs_dataset_key, feed_key, trip_id, shape_id, trip_instance_key, route_id, direction_id)`,

	config.TableStops: `
		SELECT feed_key, stop_id, stop_name, stop_lat::DOUBLE AS stop_lat, stop_lon::DOUBLE AS stop_lon FROM (VALUES
			('f1', 's1', 'First & Main',   34.00, -118.25),
			('f1', 's2', 'Second & Main',  34.01, -118.25),
			('f1', 's3', 'Second & Spring', 34.01, -118.24),
			('f1', 's4', 'First & Spring', 34.00, -118.24),
			('f2', 's9', 'Ocean & Wilshire', 34.02, -118.50),
			('f2', 's8', 'Ocean & Colorado', 34.02, -118.51)
		) AS t(feed_key, stop_id, stop_name, stop_lat, stop_lon)`,

	config.TableStopTimes: `
		SELECT feed_key, trip_id, stop_id, stop_sequence::BIGINT AS stop_sequence, arrival_sec::DOUBLE AS arrival_sec FROM (VALUES
			('f1', 't1', 's1', 1, 100),
			('f1', 't1', 's2', 2, 200),
			('f1', 't1', 's3', 3, 300),
			('f1', 't1', 's4', 4, 400),
			('f1', 't1', 's404', 5, 500),
			('f1', 't2', 's4', 1, 1000),
			('f1', 't2', 's3', 2, 1100),
			('f1', 't3', 's1', 1, 2000),
			('f2', 't9', 's9', 1, 3000),
			('f2', 't9', 's8', 2, 3100)
		) AS t(feed_key, trip_id, stop_id, stop_sequence, arrival_sec)`,

	config.TableShapes: `
		SELECT feed_key, shape_id, shape_pt_lat::DOUBLE AS shape_pt_lat, shape_pt_lon::DOUBLE AS shape_pt_lon,
			shape_pt_sequence::BIGINT AS shape_pt_sequence FROM (VALUES
			('f1', 'sh1', 34.00, -118.25, 1),
			('f1', 'sh1', 34.01, -118.25, 2),
			('f1', 'sh1', 34.01, -118.24, 3),
			('f1', 'sh1', 34.00, -118.24, 4),
			('f1', 'sh2', 34.00, -118.24, 1),
			('f1', 'sh2', 34.01, -118.24, 2),
			('f2', 'sh9', 34.02, -118.50, 1),
			('f2', 'sh9', 34.02, -118.51, 2)
		) AS t(feed_key, shape_id, shape_pt_lat, shape_pt_lon, shape_pt_sequence)`,

	config.TableVP: `
		SELECT schedule_gtfs_dataset_key, trip_id, trip_instance_key, vehicle_id,
			location_timestamp_local::TIMESTAMP AS location_timestamp_local,
			latitude::DOUBLE AS latitude, longitude::DOUBLE AS longitude FROM (VALUES
			('d1', 't1', 'k1', 'v1', '2024-10-16 08:00:00', 34.000, -118.25),
			('d1', 't1', 'k1', 'v1', '2024-10-16 08:01:00', 34.005, -118.25),
			('d1', 't1', 'k1', 'v1', '2024-10-16 08:02:00', 34.010, -118.25),
			('d2', 't9', 'k9', 'v9', '2024-10-16 09:00:00', 34.020, -118.50),
			('d2', 't9', 'k9', 'v9', '2024-10-16 09:01:00', 34.020, -118.51),
			('d1', 'tX', 'kX', 'v2', '2024-10-16 10:00:00', 34.100, -118.30)
		) AS t(schedule_gtfs_dataset_key, trip_id, trip_instance_key, vehicle_id, location_timestamp_local, latitude, longitude)`,
}

// FixtureQuery returns the SQL producing a sample table.
func FixtureQuery(table string) string {
	return fixtureTables[table]
}

// WriteFixtures writes the named sample tables (all input tables when none
// are given) to dir as <table>_<FixtureDate>.parquet.
func WriteFixtures(t testing.TB, db adapter.Adapter, dir string, tables ...string) {
	t.Helper()
	if len(tables) == 0 {
		tables = []string{config.TableTrips, config.TableStops, config.TableStopTimes, config.TableShapes, config.TableVP}
	}
	for _, table := range tables {
		query, ok := fixtureTables[table]
		require.True(t, ok, "no fixture for table %s", table)

		_, err := db.CopyToParquet(context.Background(), query, config.TablePath(dir, table, FixtureDate))
		require.NoError(t, err, "writing fixture %s", table)
	}
}

// NewDuckDB opens an in-memory DuckDB adapter closed at test cleanup.
func NewDuckDB(t testing.TB) adapter.Adapter {
	t.Helper()
	db, err := adapter.Open(context.Background(), adapter.Config{Type: "duckdb"}, NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// NewConfig returns a config rooted at dir with input and output folders
// under it and the fixture analysis date.
func NewConfig(dir string) *config.Config {
	cfg := &config.Config{
		InputDir:     filepath.Join(dir, "full_data"),
		OutputDir:    filepath.Join(dir, "sample_data"),
		AnalysisDate: FixtureDate,
		Operators:    []string{config.DefaultOperator},
		StatePath:    ":memory:",
		ProjectRoot:  dir,
	}
	config.ApplyDefaults(cfg)
	return cfg
}
