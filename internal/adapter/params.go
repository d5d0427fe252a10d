package adapter

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// DuckDBParams holds DuckDB-specific configuration.
// Parsed from Config.Params using mapstructure.
type DuckDBParams struct {
	// Extensions to install and load (e.g., "spatial", "httpfs")
	Extensions []string `mapstructure:"extensions"`

	// Settings to apply on every connection (e.g., memory_limit, threads)
	Settings map[string]string `mapstructure:"settings"`
}

// ParseDuckDBParams decodes adapter params. Scalar settings are converted to
// strings so `threads: 4` and `threads: "4"` are equivalent.
func ParseDuckDBParams(params map[string]any) (*DuckDBParams, error) {
	out := &DuckDBParams{}
	if len(params) == 0 {
		return out, nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create params decoder: %w", err)
	}
	if err := dec.Decode(params); err != nil {
		return nil, fmt.Errorf("invalid duckdb params: %w", err)
	}

	for name := range out.Settings {
		if !isSettingName(name) {
			return nil, fmt.Errorf("invalid duckdb setting name %q", name)
		}
	}
	for _, ext := range out.Extensions {
		if !isSettingName(ext) {
			return nil, fmt.Errorf("invalid duckdb extension name %q", ext)
		}
	}
	return out, nil
}

func isSettingName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}
