// Package gtfs reads GTFS schedule archives and GTFS-realtime vehicle
// positions and writes them as gtfsprep input tables.
package gtfs

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/gocarina/gocsv"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrMissingFile is returned when an archive lacks a required table.
var ErrMissingFile = errors.New("gtfs archive is missing a required file")

// Feed holds the schedule tables gtfsprep uses.
type Feed struct {
	Trips     []*Trip
	Stops     []*Stop
	StopTimes []*StopTime
	Shapes    []*ShapePoint
}

func init() {
	gocsv.SetCSVReader(gtfsCSVReader)
}

// GTFS allows optional trailing columns and files often start with a BOM.
func gtfsCSVReader(in io.Reader) gocsv.CSVReader {
	r := csv.NewReader(transform.NewReader(in, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return r
}

// Load reads a GTFS zip from a local path or an http(s) URL.
func Load(ctx context.Context, src string, logger *slog.Logger) (*Feed, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var (
		body []byte
		err  error
	)
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		body, err = fetch(ctx, src)
	} else {
		body, err = os.ReadFile(src)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read gtfs archive %s: %w", src, err)
	}

	feed, err := Parse(body, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src, err)
	}
	logger.Debug("loaded gtfs feed", "source", src,
		"trips", len(feed.Trips), "stops", len(feed.Stops),
		"stop_times", len(feed.StopTimes), "shape_points", len(feed.Shapes))
	return feed, nil
}

func fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// Parse decodes a GTFS zip archive held in memory. trips.txt, stops.txt
// and stop_times.txt are required; shapes.txt is optional.
func Parse(archive []byte, logger *slog.Logger) (*Feed, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("failed to open zip: %w", err)
	}

	feed := &Feed{}
	seen := map[string]bool{}
	for _, zf := range zr.File {
		name := path.Base(zf.Name)
		var out any
		switch name {
		case "trips.txt":
			out = &feed.Trips
		case "stops.txt":
			out = &feed.Stops
		case "stop_times.txt":
			out = &feed.StopTimes
		case "shapes.txt":
			out = &feed.Shapes
		default:
			logger.Debug("skipping gtfs file", "file", zf.Name)
			continue
		}
		if err := unmarshalZipped(zf, out); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		seen[name] = true
	}

	for _, name := range []string{"trips.txt", "stops.txt", "stop_times.txt"} {
		if !seen[name] {
			return nil, fmt.Errorf("%w: %s", ErrMissingFile, name)
		}
	}
	return feed, nil
}

func unmarshalZipped(zf *zip.File, out any) error {
	f, err := zf.Open()
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return gocsv.Unmarshal(f, out)
}
