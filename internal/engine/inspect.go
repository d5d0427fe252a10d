package engine

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"

	"github.com/leapstack-labs/gtfsprep/internal/adapter"
	"github.com/leapstack-labs/gtfsprep/internal/config"
	"github.com/leapstack-labs/gtfsprep/internal/geo"
)

// Folder labels used by Tables.
const (
	FolderInput  = "input"
	FolderOutput = "output"
)

// TableInfo describes one known table in the input or output folder.
type TableInfo struct {
	Folder  string `json:"folder"`
	Table   string `json:"table"`
	Path    string `json:"path"`
	Exists  bool   `json:"exists"`
	Rows    int64  `json:"rows"`
	Columns int    `json:"columns"`
}

// Tables reports every known table in both folders.
func (e *Engine) Tables(ctx context.Context) ([]TableInfo, error) {
	db, err := e.DB(ctx)
	if err != nil {
		return nil, err
	}

	var out []TableInfo
	for _, folder := range []string{FolderInput, FolderOutput} {
		for _, table := range config.KnownTables {
			info := TableInfo{Folder: folder, Table: table, Path: e.cfg.InputTable(table)}
			if folder == FolderOutput {
				info.Path = e.cfg.OutputTable(table)
			}
			if _, err := os.Stat(info.Path); err == nil {
				meta, err := db.ParquetMetadata(ctx, info.Path)
				if err != nil {
					return nil, err
				}
				info.Exists = true
				info.Rows = meta.RowCount
				info.Columns = len(meta.Columns)
			}
			out = append(out, info)
		}
	}
	return out, nil
}

// TripMonotonic reports whether stop_meters strictly increase along a trip.
type TripMonotonic struct {
	Key       string `json:"key"`
	TripID    string `json:"trip_id"`
	Stops     int    `json:"stops"`
	Monotonic bool   `json:"monotonic"`
}

// CheckMonotonic groups stop_meters per trip of a stop_times_direction file,
// ordered by stop_sequence. Trips are keyed by feed_key, or by
// schedule_gtfs_dataset_key for subset output. Null stop_meters make a trip
// non-monotonic.
func (e *Engine) CheckMonotonic(ctx context.Context, path string) ([]TripMonotonic, error) {
	if path == "" {
		path = e.cfg.OutputTable(config.TableStopTimesDirection)
	}
	db, err := e.DB(ctx)
	if err != nil {
		return nil, err
	}

	cols, err := db.DescribeParquet(ctx, path)
	if err != nil {
		return nil, err
	}
	keyCol := ""
	for _, c := range cols {
		if c.Name == "feed_key" || (keyCol == "" && c.Name == "schedule_gtfs_dataset_key") {
			keyCol = c.Name
		}
	}
	if keyCol == "" {
		return nil, fmt.Errorf("%s has neither feed_key nor schedule_gtfs_dataset_key", path)
	}

	rows, err := db.Query(ctx, fmt.Sprintf(
		"SELECT %s, trip_id, stop_meters FROM read_parquet(%s) ORDER BY %s, trip_id, stop_sequence",
		adapter.QuoteIdent(keyCol), adapter.QuoteLiteral(path), adapter.QuoteIdent(keyCol)))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var (
		out    []TripMonotonic
		meters []float64
	)
	flush := func() {
		if len(out) == 0 {
			return
		}
		last := &out[len(out)-1]
		last.Stops = len(meters)
		last.Monotonic = geo.IsMonotonic(meters)
		// a single stop has nothing to compare, even without a distance
		for _, m := range meters {
			if len(meters) > 1 && math.IsNaN(m) {
				last.Monotonic = false
			}
		}
		meters = meters[:0]
	}
	for rows.Next() {
		var (
			key, trip string
			m         sql.NullFloat64
		)
		if err := rows.Scan(&key, &trip, &m); err != nil {
			return nil, fmt.Errorf("failed to scan stop meters: %w", err)
		}
		if len(out) == 0 || out[len(out)-1].Key != key || out[len(out)-1].TripID != trip {
			flush()
			out = append(out, TripMonotonic{Key: key, TripID: trip})
		}
		if m.Valid {
			meters = append(meters, m.Float64)
		} else {
			meters = append(meters, math.NaN())
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stop meters: %w", err)
	}
	flush()
	return out, nil
}
