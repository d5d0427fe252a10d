package steps

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strconv"

	"github.com/leapstack-labs/gtfsprep/internal/adapter"
	"github.com/leapstack-labs/gtfsprep/internal/config"
	"github.com/leapstack-labs/gtfsprep/internal/geo"
)

func init() {
	Register(StopTimesDirection, func() Step { return &DirectionStep{} })
}

const directionScratch = "stop_times_direction_scratch"

const directionSchema = `CREATE OR REPLACE TABLE ` + directionScratch + ` (
	feed_key VARCHAR,
	trip_id VARCHAR,
	stop_id VARCHAR,
	stop_sequence BIGINT,
	arrival_sec DOUBLE,
	stop_name VARCHAR,
	stop_lat DOUBLE,
	stop_lon DOUBLE,
	stop_primary_direction VARCHAR,
	stop_meters DOUBLE,
	stop_id2 VARCHAR,
	stop_seq_pair VARCHAR,
	stop_id_pair VARCHAR
)`

const stopTimesQuery = `
SELECT
	st.feed_key,
	st.trip_id,
	st.stop_id,
	st.stop_sequence::BIGINT,
	st.arrival_sec::DOUBLE,
	s.stop_name,
	s.stop_lat::DOUBLE,
	s.stop_lon::DOUBLE
FROM stop_times st
INNER JOIN stops s ON st.feed_key = s.feed_key AND st.stop_id = s.stop_id
ORDER BY st.feed_key, st.trip_id, st.stop_sequence`

// DirectionStep derives the direction of travel at every scheduled stop and
// writes stop_times_direction to the input folder.
type DirectionStep struct{}

func (s *DirectionStep) Name() string        { return StopTimesDirection }
func (s *DirectionStep) DependsOn() []string { return nil }

type stopRow struct {
	feedKey    string
	tripID     string
	stopID     string
	seq        int64
	arrivalSec sql.NullFloat64
	stopName   sql.NullString
	lat, lon   float64
}

type tripKey struct{ feedKey, id string }

// Run joins stop_times to stops, computes directions and stop pairs per trip
// and exports the result.
func (s *DirectionStep) Run(ctx context.Context, env *Env) (int64, error) {
	log := env.logger().With("step", StopTimesDirection)

	project, err := geo.Projector(env.Config.ProjectCRS)
	if err != nil {
		return 0, err
	}
	if err := registerInputs(ctx, env, config.TableStopTimes, config.TableStops); err != nil {
		return 0, err
	}

	shapes, err := loadTripShapes(ctx, env, project)
	if err != nil {
		return 0, err
	}
	log.Debug("loaded trip shapes", "trips", len(shapes))

	if err := env.DB.Exec(ctx, directionSchema); err != nil {
		return 0, fmt.Errorf("failed to create scratch table: %w", err)
	}
	defer func() {
		_ = env.DB.Exec(context.Background(), "DROP TABLE IF EXISTS "+directionScratch)
	}()

	err = env.DB.Append(ctx, directionScratch, func(appendRow adapter.AppendFunc) error {
		rows, err := env.DB.Query(ctx, stopTimesQuery)
		if err != nil {
			return err
		}
		defer func() { _ = rows.Close() }()

		var trip []stopRow
		flush := func() error {
			if len(trip) == 0 {
				return nil
			}
			k := tripKey{trip[0].feedKey, trip[0].tripID}
			err := appendTrip(trip, shapes[k], project, appendRow)
			trip = trip[:0]
			return err
		}

		for rows.Next() {
			var r stopRow
			if err := rows.Scan(&r.feedKey, &r.tripID, &r.stopID, &r.seq, &r.arrivalSec, &r.stopName, &r.lat, &r.lon); err != nil {
				return fmt.Errorf("failed to scan stop time: %w", err)
			}
			if len(trip) > 0 && (trip[0].feedKey != r.feedKey || trip[0].tripID != r.tripID) {
				if err := flush(); err != nil {
					return err
				}
			}
			trip = append(trip, r)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("error iterating stop times: %w", err)
		}
		return flush()
	})
	if err != nil {
		return 0, err
	}

	out := env.Config.InputTable(config.TableStopTimesDirection)
	n, err := env.DB.CopyToParquet(ctx, "SELECT * FROM "+directionScratch, out)
	if err != nil {
		return 0, err
	}
	log.Info("wrote stop times direction", "path", out, "rows", n)
	return n, nil
}

// appendTrip writes one trip's stops, already ordered by stop_sequence.
func appendTrip(trip []stopRow, shape geo.LineString, project func(lon, lat float64) geo.Point, appendRow adapter.AppendFunc) error {
	path := make([]geo.Point, len(trip))
	for i, r := range trip {
		path[i] = project(r.lon, r.lat)
	}
	directions := geo.Directions(path)

	for i, r := range trip {
		var (
			meters  driver.Value
			nextID  driver.Value
			idPair  driver.Value
			nextSeq = "<NA>"
			arrival driver.Value
			name    driver.Value
		)
		if shape != nil {
			meters = shape.Project(path[i])
		}
		if i+1 < len(trip) {
			next := trip[i+1]
			nextID = next.stopID
			idPair = r.stopID + "__" + next.stopID
			nextSeq = strconv.FormatInt(next.seq, 10)
		}
		if r.arrivalSec.Valid {
			arrival = r.arrivalSec.Float64
		}
		if r.stopName.Valid {
			name = r.stopName.String
		}

		err := appendRow(
			r.feedKey, r.tripID, r.stopID, r.seq, arrival, name, r.lat, r.lon,
			string(directions[i]), meters, nextID,
			strconv.FormatInt(r.seq, 10)+"__"+nextSeq, idPair,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// loadTripShapes returns the projected shape of every trip. It returns an
// empty map when the trips or shapes input table is missing.
func loadTripShapes(ctx context.Context, env *Env, project func(lon, lat float64) geo.Point) (map[tripKey]geo.LineString, error) {
	out := make(map[tripKey]geo.LineString)
	if !inputExists(env, config.TableTrips) || !inputExists(env, config.TableShapes) {
		env.logger().Warn("trips or shapes missing, stop_meters will be null")
		return out, nil
	}
	if err := registerInputs(ctx, env, config.TableTrips, config.TableShapes); err != nil {
		return nil, err
	}

	lines := make(map[tripKey]geo.LineString)
	rows, err := env.DB.Query(ctx, `
		SELECT feed_key, shape_id, shape_pt_lat::DOUBLE, shape_pt_lon::DOUBLE
		FROM shapes
		ORDER BY feed_key, shape_id, shape_pt_sequence`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var (
			k        tripKey
			lat, lon float64
		)
		if err := rows.Scan(&k.feedKey, &k.id, &lat, &lon); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan shape point: %w", err)
		}
		lines[k] = append(lines[k], project(lon, lat))
	}
	err = rows.Err()
	_ = rows.Close()
	if err != nil {
		return nil, fmt.Errorf("error iterating shapes: %w", err)
	}

	rows, err = env.DB.Query(ctx, `
		SELECT DISTINCT feed_key, trip_id, shape_id
		FROM trips
		WHERE shape_id IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var trip tripKey
		var shapeID string
		if err := rows.Scan(&trip.feedKey, &trip.id, &shapeID); err != nil {
			return nil, fmt.Errorf("failed to scan trip shape: %w", err)
		}
		if line, ok := lines[tripKey{trip.feedKey, shapeID}]; ok && len(line) > 1 {
			out[trip] = line
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trips: %w", err)
	}
	return out, nil
}
