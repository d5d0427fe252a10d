package gtfs

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"

	"github.com/leapstack-labs/gtfsprep/internal/adapter"
	"github.com/leapstack-labs/gtfsprep/internal/config"
	"github.com/leapstack-labs/gtfsprep/internal/testutil"
)

var sampleFiles = map[string]string{
	"trips.txt": "\ufeffroute_id,service_id,trip_id,direction_id,shape_id\n" +
		"r1,wk,t1,0,sh1\n" +
		"r1,wk,t2,1,\n",
	"stops.txt": "stop_id,stop_name,stop_lat,stop_lon\n" +
		"s1,\"First & Main\",34.00,-118.25\n" +
		"s2,Second & Main,34.01,-118.25\n",
	"stop_times.txt": "trip_id,arrival_time,departure_time,stop_id,stop_sequence\n" +
		"t1,08:00:00,08:00:00,s1,1\n" +
		"t1,,08:05:00,s2,2\n" +
		"t2,25:10:00,25:10:00,s2,1\n",
	"shapes.txt": "shape_id,shape_pt_lat,shape_pt_lon,shape_pt_sequence\n" +
		"sh1,34.00,-118.25,1\n" +
		"sh1,34.01,-118.25,2\n",
	"agency.txt": "agency_id,agency_name\nladot,LA DOT\n",
}

func zipFiles(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		ok      bool
		wantErr bool
	}{
		{in: "08:00:00", want: 28800, ok: true},
		{in: " 7:05:09", want: 25509, ok: true},
		{in: "25:10:00", want: 90600, ok: true},
		{in: "", ok: false},
		{in: "08:00", wantErr: true},
		{in: "08:61:00", wantErr: true},
		{in: "aa:00:00", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok, err := ParseTime(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse(t *testing.T) {
	feed, err := Parse(zipFiles(t, sampleFiles), testutil.NewTestLogger(t))
	require.NoError(t, err)

	require.Len(t, feed.Trips, 2)
	assert.Equal(t, "t1", feed.Trips[0].TripID, "BOM must not leak into the first header")
	assert.Equal(t, "sh1", feed.Trips[0].ShapeID)
	require.Len(t, feed.Stops, 2)
	assert.Equal(t, "First & Main", feed.Stops[0].StopName)
	assert.Equal(t, CSVFloat(-118.25), feed.Stops[0].Longitude)
	assert.Len(t, feed.StopTimes, 3)
	assert.Len(t, feed.Shapes, 2)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("not a zip"), nil)
	require.Error(t, err)

	files := map[string]string{"trips.txt": sampleFiles["trips.txt"], "stops.txt": sampleFiles["stops.txt"]}
	_, err = Parse(zipFiles(t, files), nil)
	require.True(t, errors.Is(err, ErrMissingFile))
	assert.Contains(t, err.Error(), "stop_times.txt")
}

func TestLoad(t *testing.T) {
	archive := zipFiles(t, sampleFiles)

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "gtfs.zip")
		require.NoError(t, os.WriteFile(path, archive, 0o600))

		feed, err := Load(context.Background(), path, nil)
		require.NoError(t, err)
		assert.Len(t, feed.Trips, 2)
	})

	t.Run("url", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/gtfs.zip" {
				http.NotFound(w, r)
				return
			}
			_, _ = w.Write(archive)
		}))
		defer srv.Close()

		feed, err := Load(context.Background(), srv.URL+"/gtfs.zip", nil)
		require.NoError(t, err)
		assert.Len(t, feed.Stops, 2)

		_, err = Load(context.Background(), srv.URL+"/missing.zip", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "404")
	})
}

func TestTripInstanceKey(t *testing.T) {
	a := TripInstanceKey("f1", "t1", "2024-10-16")
	assert.Equal(t, a, TripInstanceKey("f1", "t1", "2024-10-16"))
	assert.NotEqual(t, a, TripInstanceKey("f1", "t1", "2024-10-17"))
	assert.NotEqual(t, a, TripInstanceKey("f2", "t1", "2024-10-16"))
	assert.Len(t, a, 36)
}

func queryStrings(t *testing.T, db adapter.Adapter, query string) []string {
	t.Helper()
	rows, err := db.Query(context.Background(), query)
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()
	var out []string
	for rows.Next() {
		var s string
		require.NoError(t, rows.Scan(&s))
		out = append(out, s)
	}
	require.NoError(t, rows.Err())
	return out
}

func TestFeed_Export(t *testing.T) {
	db := testutil.NewDuckDB(t)
	dir := t.TempDir()

	feed, err := Parse(zipFiles(t, sampleFiles), nil)
	require.NoError(t, err)

	counts, err := feed.Export(context.Background(), db, ExportOptions{
		FeedKey: "f1", DatasetKey: "d1", Name: "LA DOT Schedule", Date: "2024-10-16", Dir: dir,
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{
		config.TableTrips: 2, config.TableStops: 2, config.TableStopTimes: 3, config.TableShapes: 2,
	}, counts)

	stopTimes := adapter.QuoteLiteral(config.TablePath(dir, config.TableStopTimes, "2024-10-16"))
	assert.Equal(t, []string{"28800", "NULL", "90600"}, queryStrings(t, db,
		"SELECT COALESCE(arrival_sec::BIGINT::VARCHAR, 'NULL') FROM read_parquet("+stopTimes+") ORDER BY trip_id, stop_sequence"))

	trips := adapter.QuoteLiteral(config.TablePath(dir, config.TableTrips, "2024-10-16"))
	assert.Equal(t, []string{TripInstanceKey("f1", "t1", "2024-10-16"), TripInstanceKey("f1", "t2", "2024-10-16")},
		queryStrings(t, db, "SELECT trip_instance_key FROM read_parquet("+trips+") ORDER BY trip_id"))
	assert.Equal(t, []string{"sh1", "NULL"},
		queryStrings(t, db, "SELECT COALESCE(shape_id, 'NULL') FROM read_parquet("+trips+") ORDER BY trip_id"))

	_, err = feed.Export(context.Background(), db, ExportOptions{Dir: dir})
	require.Error(t, err)
}

func TestCSVFloat_UnmarshalCSV(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		blank   bool
		wantErr bool
	}{
		{in: "34.05", want: 34.05},
		{in: " -118.25 ", want: -118.25},
		{in: "0", want: 0},
		{in: "", blank: true},
		{in: "   ", blank: true},
		{in: "north", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var f CSVFloat
			err := f.UnmarshalCSV(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.blank, f.Blank())
			if !tt.blank {
				assert.Equal(t, tt.want, float64(f))
			}
		})
	}
}

func TestFeed_Export_BlankCoordinates(t *testing.T) {
	db := testutil.NewDuckDB(t)
	dir := t.TempDir()

	files := map[string]string{}
	for name, body := range sampleFiles {
		files[name] = body
	}
	files["stops.txt"] += "s3,Unplaced,,\n" + "s4,Half placed,34.02,\n"
	files["shapes.txt"] += "sh1,,,3\n"

	feed, err := Parse(zipFiles(t, files), nil)
	require.NoError(t, err)
	require.Len(t, feed.Stops, 4)

	counts, err := feed.Export(context.Background(), db, ExportOptions{
		FeedKey: "f1", DatasetKey: "d1", Date: "2024-10-16", Dir: dir,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[config.TableStops])
	assert.Equal(t, int64(2), counts[config.TableShapes])

	stops := adapter.QuoteLiteral(config.TablePath(dir, config.TableStops, "2024-10-16"))
	assert.Equal(t, []string{"s1", "s2"}, queryStrings(t, db,
		"SELECT stop_id FROM read_parquet("+stops+") WHERE stop_lat <> 0 AND stop_lon <> 0 ORDER BY stop_id"))
}

func vehicleFeed(t *testing.T) []byte {
	t.Helper()
	fm := &gtfsrtpb.FeedMessage{
		Header: &gtfsrtpb.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Timestamp:           proto.Uint64(1729090800),
		},
		Entity: []*gtfsrtpb.FeedEntity{
			{
				Id: proto.String("e1"),
				Vehicle: &gtfsrtpb.VehiclePosition{
					Trip:      &gtfsrtpb.TripDescriptor{TripId: proto.String("t1")},
					Vehicle:   &gtfsrtpb.VehicleDescriptor{Id: proto.String("v1")},
					Position:  &gtfsrtpb.Position{Latitude: proto.Float32(34.0), Longitude: proto.Float32(-118.25)},
					Timestamp: proto.Uint64(1729090860),
				},
			},
			{
				// no timestamp or vehicle id: header time and entity id are used
				Id: proto.String("e2"),
				Vehicle: &gtfsrtpb.VehiclePosition{
					Trip:     &gtfsrtpb.TripDescriptor{TripId: proto.String("t2")},
					Position: &gtfsrtpb.Position{Latitude: proto.Float32(34.01), Longitude: proto.Float32(-118.24)},
				},
			},
			{
				Id:      proto.String("no-trip"),
				Vehicle: &gtfsrtpb.VehiclePosition{Position: &gtfsrtpb.Position{Latitude: proto.Float32(1), Longitude: proto.Float32(1)}},
			},
			{
				Id:      proto.String("no-position"),
				Vehicle: &gtfsrtpb.VehiclePosition{Trip: &gtfsrtpb.TripDescriptor{TripId: proto.String("t3")}},
			},
		},
	}
	data, err := proto.Marshal(fm)
	require.NoError(t, err)
	return data
}

func TestDecodeVehiclePositions(t *testing.T) {
	positions, err := DecodeVehiclePositions(vehicleFeed(t))
	require.NoError(t, err)
	require.Len(t, positions, 2)

	assert.Equal(t, "t1", positions[0].TripID)
	assert.Equal(t, "v1", positions[0].VehicleID)
	assert.Equal(t, time.Unix(1729090860, 0).UTC(), positions[0].Timestamp)
	assert.InDelta(t, -118.25, positions[0].Longitude, 1e-4)

	assert.Equal(t, "e2", positions[1].VehicleID)
	assert.Equal(t, time.Unix(1729090800, 0).UTC(), positions[1].Timestamp)

	_, err = DecodeVehiclePositions([]byte{0xff, 0xff})
	require.Error(t, err)
}

func TestExportVehiclePositions(t *testing.T) {
	db := testutil.NewDuckDB(t)
	dir := t.TempDir()

	positions, err := DecodeVehiclePositions(vehicleFeed(t))
	require.NoError(t, err)

	n, err := ExportVehiclePositions(context.Background(), db, positions, VPOptions{
		DatasetKey: "d1", FeedKey: "f1", Date: "2024-10-16", Dir: dir,
		Location: time.FixedZone("PDT", -7*3600),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	vp := adapter.QuoteLiteral(config.TablePath(dir, config.TableVP, "2024-10-16"))
	assert.Equal(t, []string{"2024-10-16 08:01:00", "2024-10-16 08:00:00"}, queryStrings(t, db,
		"SELECT strftime(location_timestamp_local, '%Y-%m-%d %H:%M:%S') FROM read_parquet("+vp+") ORDER BY trip_id"))
	assert.Equal(t, []string{TripInstanceKey("f1", "t1", "2024-10-16")}, queryStrings(t, db,
		"SELECT trip_instance_key FROM read_parquet("+vp+") WHERE trip_id = 't1'"))

	_, err = ExportVehiclePositions(context.Background(), db, positions, VPOptions{Dir: dir})
	require.Error(t, err)
}
