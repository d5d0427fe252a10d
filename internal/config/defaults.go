package config

// Default configuration values.
const (
	DefaultInputDir      = "full_data"
	DefaultOutputDir     = "sample_data"
	DefaultAnalysisDate  = "2024-10-16"
	DefaultProjectCRS    = "EPSG:3310"
	DefaultOperator      = "LA DOT Schedule"
	DefaultManifest      = "requirements.yaml"
	DefaultStateFile     = ".gtfsprep/state.db"
	DefaultEnv           = "dev"
	DefaultOutput        = "auto"
	DefaultConcurrency   = 4
	DefaultPublishSchema = "public"
)

// DefaultSteps is the process-data step order.
var DefaultSteps = []string{"stop_times_direction", "subset_tables"}

// Defaults returns the default values keyed the way koanf expects them.
func Defaults() map[string]any {
	return map[string]any{
		"input_dir":          DefaultInputDir,
		"output_dir":         DefaultOutputDir,
		"analysis_date":      DefaultAnalysisDate,
		"project_crs":        DefaultProjectCRS,
		"operators":          []string{DefaultOperator},
		"manifest":           DefaultManifest,
		"state_path":         DefaultStateFile,
		"database":           "",
		"environment":        DefaultEnv,
		"verbose":            false,
		"output":             DefaultOutput,
		"pipeline.steps":     append([]string(nil), DefaultSteps...),
		"subset.tables":      append([]string(nil), KnownTables...),
		"subset.concurrency": DefaultConcurrency,
		"publish.schema":     DefaultPublishSchema,
	}
}

// ApplyDefaults fills zero values of a Config built without the loader.
func ApplyDefaults(c *Config) {
	if c == nil {
		return
	}
	if c.InputDir == "" {
		c.InputDir = DefaultInputDir
	}
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}
	if c.AnalysisDate == "" {
		c.AnalysisDate = DefaultAnalysisDate
	}
	if c.ProjectCRS == "" {
		c.ProjectCRS = DefaultProjectCRS
	}
	if c.Manifest == "" {
		c.Manifest = DefaultManifest
	}
	if c.StatePath == "" {
		c.StatePath = DefaultStateFile
	}
	if c.Environment == "" {
		c.Environment = DefaultEnv
	}
	if c.OutputFormat == "" {
		c.OutputFormat = DefaultOutput
	}
	if len(c.Pipeline.Steps) == 0 {
		c.Pipeline.Steps = append([]string(nil), DefaultSteps...)
	}
	if len(c.Subset.Tables) == 0 {
		c.Subset.Tables = append([]string(nil), KnownTables...)
	}
	if c.Subset.Concurrency <= 0 {
		c.Subset.Concurrency = DefaultConcurrency
	}
	if c.Publish.Schema == "" {
		c.Publish.Schema = DefaultPublishSchema
	}
}
