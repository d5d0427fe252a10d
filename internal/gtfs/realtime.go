package gtfs

import (
	"context"
	"fmt"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/leapstack-labs/gtfsprep/internal/adapter"
	"github.com/leapstack-labs/gtfsprep/internal/config"
)

// VehiclePosition is one vehicle ping from a GTFS-realtime feed.
type VehiclePosition struct {
	TripID    string
	VehicleID string
	Timestamp time.Time
	Latitude  float64
	Longitude float64
}

// DecodeVehiclePositions returns every entity of a FeedMessage that carries
// a position. Entities without a trip id are skipped. A vehicle without its
// own timestamp takes the header timestamp.
func DecodeVehiclePositions(data []byte) ([]VehiclePosition, error) {
	var fm gtfsrtpb.FeedMessage
	if err := proto.Unmarshal(data, &fm); err != nil {
		return nil, fmt.Errorf("failed to decode feed message: %w", err)
	}

	var headerTS uint64
	if fm.Header != nil {
		headerTS = fm.Header.GetTimestamp()
	}

	var out []VehiclePosition
	for _, e := range fm.Entity {
		v := e.GetVehicle()
		if v == nil || v.Position == nil {
			continue
		}
		tripID := v.GetTrip().GetTripId()
		if tripID == "" {
			continue
		}

		ts := v.GetTimestamp()
		if ts == 0 {
			ts = headerTS
		}
		vehicleID := v.GetVehicle().GetId()
		if vehicleID == "" {
			vehicleID = e.GetId()
		}

		out = append(out, VehiclePosition{
			TripID:    tripID,
			VehicleID: vehicleID,
			Timestamp: time.Unix(int64(ts), 0).UTC(),
			Latitude:  float64(v.Position.GetLatitude()),
			Longitude: float64(v.Position.GetLongitude()),
		})
	}
	return out, nil
}

// VPOptions control how vehicle positions are written.
type VPOptions struct {
	DatasetKey string
	// FeedKey keys trip_instance_key so it matches the imported schedule.
	// When empty the dataset key is used.
	FeedKey string
	Date    string
	Dir     string
	// Location converts timestamps to local time. Nil means UTC.
	Location *time.Location
}

// ExportVehiclePositions writes positions as the vp table and returns the
// number of rows written.
func ExportVehiclePositions(ctx context.Context, db adapter.Adapter, positions []VehiclePosition, opts VPOptions) (int64, error) {
	if opts.DatasetKey == "" {
		return 0, fmt.Errorf("dataset key is required")
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	keyFeed := opts.FeedKey
	if keyFeed == "" {
		keyFeed = opts.DatasetKey
	}

	schema := `schedule_gtfs_dataset_key VARCHAR, trip_id VARCHAR, trip_instance_key VARCHAR,
		vehicle_id VARCHAR, location_timestamp_local TIMESTAMP, latitude DOUBLE, longitude DOUBLE`
	fill := func(appendRow adapter.AppendFunc) error {
		for _, p := range positions {
			local := p.Timestamp.In(loc)
			// TIMESTAMP has no zone; keep the local wall clock.
			wall := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), local.Minute(), local.Second(), 0, time.UTC)
			if err := appendRow(opts.DatasetKey, p.TripID, TripInstanceKey(keyFeed, p.TripID, opts.Date),
				nullString(p.VehicleID), wall, p.Latitude, p.Longitude); err != nil {
				return err
			}
		}
		return nil
	}

	n, err := stageAndCopy(ctx, db, "gtfs_import_vp", schema, fill, config.TablePath(opts.Dir, config.TableVP, opts.Date))
	if err != nil {
		return 0, fmt.Errorf("export vp: %w", err)
	}
	return n, nil
}
