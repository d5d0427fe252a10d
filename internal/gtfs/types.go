package gtfs

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Trip is a row of trips.txt.
type Trip struct {
	RouteID     string `csv:"route_id"`
	ServiceID   string `csv:"service_id"`
	TripID      string `csv:"trip_id"`
	Headsign    string `csv:"trip_headsign"`
	DirectionID string `csv:"direction_id"`
	ShapeID     string `csv:"shape_id"`
}

// Stop is a row of stops.txt.
type Stop struct {
	StopID    string   `csv:"stop_id"`
	StopName  string   `csv:"stop_name"`
	Latitude  CSVFloat `csv:"stop_lat"`
	Longitude CSVFloat `csv:"stop_lon"`
}

// StopTime is a row of stop_times.txt.
type StopTime struct {
	TripID        string `csv:"trip_id"`
	ArrivalTime   string `csv:"arrival_time"`
	DepartureTime string `csv:"departure_time"`
	StopID        string `csv:"stop_id"`
	Sequence      CSVInt `csv:"stop_sequence"`
}

// ShapePoint is a row of shapes.txt.
type ShapePoint struct {
	ShapeID   string   `csv:"shape_id"`
	Latitude  CSVFloat `csv:"shape_pt_lat"`
	Longitude CSVFloat `csv:"shape_pt_lon"`
	Sequence  CSVInt   `csv:"shape_pt_sequence"`
}

// CSVFloat is a float column that may be blank.
type CSVFloat float64

// UnmarshalCSV parses a float. Blank values are NaN.
func (f *CSVFloat) UnmarshalCSV(csv string) error {
	csv = strings.TrimSpace(csv)
	if csv == "" {
		*f = CSVFloat(math.NaN())
		return nil
	}
	val, err := strconv.ParseFloat(csv, 64)
	if err != nil {
		return err
	}
	*f = CSVFloat(val)
	return nil
}

// Blank reports whether the column was empty.
func (f CSVFloat) Blank() bool { return math.IsNaN(float64(f)) }

// CSVInt is an integer column that may be blank.
type CSVInt int64

// UnmarshalCSV parses an integer. Blank values are zero.
func (i *CSVInt) UnmarshalCSV(csv string) error {
	csv = strings.TrimSpace(csv)
	if csv == "" {
		*i = 0
		return nil
	}
	val, err := strconv.ParseInt(csv, 10, 64)
	if err != nil {
		return err
	}
	*i = CSVInt(val)
	return nil
}

// ParseTime converts a GTFS HH:MM:SS time to seconds after midnight. Hours
// may exceed 23 for trips running past midnight. Blank times report ok=false.
func ParseTime(s string) (sec float64, ok bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false, nil
	}
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, false, fmt.Errorf("invalid gtfs time %q", s)
	}

	var hms [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return 0, false, fmt.Errorf("invalid gtfs time %q", s)
		}
		hms[i] = v
	}
	if hms[1] > 59 || hms[2] > 59 {
		return 0, false, fmt.Errorf("invalid gtfs time %q", s)
	}
	return float64(hms[0]*3600 + hms[1]*60 + hms[2]), true, nil
}
