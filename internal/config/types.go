// Package config provides the shared configuration types for gtfsprep.
// This package is decoupled from CLI concerns so the engine and the
// processing steps can depend on it without importing cobra.
package config

import (
	"path/filepath"
	"strings"
)

// Config is the full gtfsprep configuration.
type Config struct {
	InputDir     string   `koanf:"input_dir"`
	OutputDir    string   `koanf:"output_dir"`
	AnalysisDate string   `koanf:"analysis_date"`
	ProjectCRS   string   `koanf:"project_crs"`
	Operators    []string `koanf:"operators"`

	Manifest     string `koanf:"manifest"`
	StatePath    string `koanf:"state_path"`
	DatabasePath string `koanf:"database"`
	Environment  string `koanf:"environment"`
	Verbose      bool   `koanf:"verbose"`
	OutputFormat string `koanf:"output"`

	Pipeline PipelineConfig `koanf:"pipeline"`
	Subset   SubsetConfig   `koanf:"subset"`
	DuckDB   DuckDBConfig   `koanf:"duckdb"`
	Publish  PublishConfig  `koanf:"publish"`

	// ProjectRoot is the directory relative paths were resolved against.
	ProjectRoot string `koanf:"-"`
}

// PipelineConfig controls which steps process-data runs.
type PipelineConfig struct {
	Steps []string `koanf:"steps"`
}

// SubsetConfig controls the subset_tables step.
type SubsetConfig struct {
	Tables      []string `koanf:"tables"`
	Concurrency int      `koanf:"concurrency"`
}

// DuckDBConfig holds engine settings applied to every DuckDB connection.
type DuckDBConfig struct {
	Settings   map[string]any `koanf:"settings"`
	Extensions []string       `koanf:"extensions"`
}

// PublishConfig holds the Postgres target for the publish command.
type PublishConfig struct {
	DSN    string `koanf:"dsn"`
	Schema string `koanf:"schema"`
}

// Table names understood by the processing steps.
const (
	TableTrips              = "trips"
	TableShapes             = "shapes"
	TableStops              = "stops"
	TableStopTimes          = "stop_times"
	TableVP                 = "vp"
	TableStopTimesDirection = "stop_times_direction"
)

// KnownTables lists every table in export order.
var KnownTables = []string{
	TableTrips,
	TableShapes,
	TableStops,
	TableStopTimes,
	TableVP,
	TableStopTimesDirection,
}

// IsKnownTable reports whether name is one of KnownTables.
func IsKnownTable(name string) bool {
	for _, t := range KnownTables {
		if t == name {
			return true
		}
	}
	return false
}

// TablePath returns folder/<table>_<date>.parquet.
func TablePath(folder, table, date string) string {
	return filepath.Join(folder, table+"_"+date+".parquet")
}

// InputTable returns the path of a table in the input folder.
func (c *Config) InputTable(table string) string {
	return TablePath(c.InputDir, table, c.AnalysisDate)
}

// OutputTable returns the path of a table in the output folder.
func (c *Config) OutputTable(table string) string {
	return TablePath(c.OutputDir, table, c.AnalysisDate)
}

// OperatorSet returns the configured operator names, trimmed and
// deduplicated. An empty result means every operator is kept.
func (c *Config) OperatorSet() []string {
	seen := make(map[string]bool, len(c.Operators))
	out := make([]string, 0, len(c.Operators))
	for _, op := range c.Operators {
		op = strings.TrimSpace(op)
		if op == "" || seen[op] {
			continue
		}
		seen[op] = true
		out = append(out, op)
	}
	return out
}
