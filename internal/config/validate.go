package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/leapstack-labs/gtfsprep/internal/geo"
)

// DateLayout is the analysis_date format.
const DateLayout = "2006-01-02"

var outputFormats = []string{"auto", "text", "markdown", "json"}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.InputDir == "" {
		errs = append(errs, fmt.Errorf("input_dir is required"))
	}
	if c.OutputDir == "" {
		errs = append(errs, fmt.Errorf("output_dir is required"))
	}
	if c.InputDir != "" && c.OutputDir != "" && c.SharesFolders() {
		errs = append(errs, fmt.Errorf("output_dir %q must differ from input_dir", c.OutputDir))
	}
	if _, err := time.Parse(DateLayout, c.AnalysisDate); err != nil {
		errs = append(errs, fmt.Errorf("analysis_date %q must be YYYY-MM-DD", c.AnalysisDate))
	}
	if !strings.EqualFold(strings.TrimSpace(c.ProjectCRS), geo.ProjectCRS) {
		errs = append(errs, fmt.Errorf("project_crs %q is not supported (want %s)", c.ProjectCRS, geo.ProjectCRS))
	}
	if c.OutputFormat != "" && !contains(outputFormats, c.OutputFormat) {
		errs = append(errs, fmt.Errorf("output %q must be one of %s", c.OutputFormat, strings.Join(outputFormats, ", ")))
	}
	for _, table := range c.Subset.Tables {
		if !IsKnownTable(table) {
			errs = append(errs, fmt.Errorf("subset.tables: unknown table %q", table))
		}
	}
	if c.Subset.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("subset.concurrency must not be negative"))
	}

	return errors.Join(errs...)
}

// SharesFolders reports whether the input and output folders resolve to the
// same directory.
func (c *Config) SharesFolders() bool {
	return sameDir(c.InputDir, c.OutputDir)
}

func sameDir(a, b string) bool {
	a, b = filepath.Clean(a), filepath.Clean(b)
	if a == b {
		return true
	}
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
