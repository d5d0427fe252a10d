// Package config loads gtfsprep configuration for the CLI.
//
// The configuration types live in internal/config so the engine and steps
// can share them; they are re-exported here via type aliases for convenience.
package config

import sharedcfg "github.com/leapstack-labs/gtfsprep/internal/config"

// Config is an alias for the shared configuration.
type Config = sharedcfg.Config

// Config file names searched for in the project root, in order.
var configFileNames = []string{"gtfsprep.yaml", "gtfsprep.yml"}

// EnvPrefix is the prefix of environment variables that override config keys.
const EnvPrefix = "GTFSPREP_"

// nestedSections are config sections whose env vars map to dotted keys,
// e.g. GTFSPREP_SUBSET_CONCURRENCY -> subset.concurrency.
var nestedSections = []string{"pipeline", "subset", "duckdb", "publish"}

// listKeys are keys whose env values are comma separated lists.
var listKeys = map[string]bool{
	"operators":         true,
	"pipeline.steps":    true,
	"subset.tables":     true,
	"duckdb.extensions": true,
}
