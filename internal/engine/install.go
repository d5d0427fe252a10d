package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/leapstack-labs/gtfsprep/internal/adapter"
	"github.com/leapstack-labs/gtfsprep/internal/manifest"
	"github.com/leapstack-labs/gtfsprep/internal/state"
)

// Install materializes the environment described by the manifest: it
// creates directories, applies DuckDB settings and extensions, and checks
// that required input tables carry their declared columns. The returned run
// is non-nil whenever the state store could record it.
func (e *Engine) Install(ctx context.Context) (*state.Run, error) {
	e.logger.Info("installing environment", "manifest", e.cfg.Manifest, "environment", e.cfg.Environment)

	run, err := e.store.CreateRun(state.TaskInstall, e.cfg.Environment, e.cfg.AnalysisDate)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	m, installErr := e.install(ctx)
	if installErr != nil {
		e.logger.Info("install failed", "run_id", run.ID, "error", installErr.Error())
		e.record(e.store.CompleteRun(run.ID, state.RunStatusFailed, installErr.Error()), "failed to complete run", "run_id", run.ID)
	} else {
		e.record(e.store.SaveEnvironment(&state.Environment{
			Name:         e.cfg.Environment,
			ManifestPath: m.Path,
			ManifestHash: m.Hash,
			InstalledAt:  time.Now().UTC(),
		}), "failed to save environment", "environment", e.cfg.Environment)
		e.record(e.store.CompleteRun(run.ID, state.RunStatusCompleted, ""), "failed to complete run", "run_id", run.ID)
		e.logger.Info("environment installed", "run_id", run.ID, "manifest", m.Name)
	}

	if latest, err := e.store.GetRun(run.ID); err == nil {
		run = latest
	}
	return run, installErr
}

func (e *Engine) install(ctx context.Context) (*manifest.Manifest, error) {
	m, err := manifest.Load(e.cfg.Manifest)
	if err != nil {
		return nil, err
	}

	if err := e.createDirectories(m); err != nil {
		return nil, err
	}

	if err := e.applyManifestDuckDB(ctx, m); err != nil {
		return nil, err
	}

	if err := e.checkTables(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// createDirectories creates the manifest's directories, relative to the
// manifest file, plus the configured input, output and state directories.
func (e *Engine) createDirectories(m *manifest.Manifest) error {
	base := filepath.Dir(m.Path)
	dirs := make([]string, 0, len(m.Directories)+3)
	for _, d := range m.Directories {
		if !filepath.IsAbs(d) {
			d = filepath.Join(base, d)
		}
		dirs = append(dirs, d)
	}
	dirs = append(dirs, e.cfg.InputDir, e.cfg.OutputDir)
	if e.cfg.StatePath != "" && e.cfg.StatePath != ":memory:" {
		dirs = append(dirs, filepath.Dir(e.cfg.StatePath))
	}

	for _, d := range dirs {
		if err := os.MkdirAll(d, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", d, err)
		}
		e.logger.Debug("directory ready", "path", d)
	}
	return nil
}

// applyManifestDuckDB merges the manifest's DuckDB settings and extensions
// into the connection. Manifest settings win over configured ones.
func (e *Engine) applyManifestDuckDB(ctx context.Context, m *manifest.Manifest) error {
	e.dbMu.Lock()
	connected := e.dbConnected
	if !connected {
		settings := make(map[string]any, len(e.cfg.DuckDB.Settings)+len(m.DuckDB.Settings))
		for k, v := range e.cfg.DuckDB.Settings {
			settings[k] = v
		}
		for k, v := range m.DuckDB.Settings {
			settings[k] = v
		}
		extensions := append(append([]string(nil), e.cfg.DuckDB.Extensions...), m.DuckDB.Extensions...)
		e.dbConfig.Params = duckDBParams(settings, extensions)
	}
	e.dbMu.Unlock()

	db, err := e.DB(ctx)
	if err != nil {
		return err
	}
	if !connected {
		return nil
	}

	params, err := adapter.ParseDuckDBParams(duckDBParams(m.DuckDB.Settings, nil))
	if err != nil {
		return err
	}
	names := make([]string, 0, len(params.Settings))
	for name := range params.Settings {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		stmt := fmt.Sprintf("SET %s = %s", name, adapter.QuoteLiteral(params.Settings[name]))
		if err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply duckdb setting %s: %w", name, err)
		}
	}
	for _, ext := range m.DuckDB.Extensions {
		if err := db.InstallExtension(ctx, ext); err != nil {
			return err
		}
	}
	return nil
}

// checkTables verifies every required table exists in the input folder with
// its declared columns. Optional tables are checked only when present.
func (e *Engine) checkTables(ctx context.Context, m *manifest.Manifest) error {
	db, err := e.DB(ctx)
	if err != nil {
		return err
	}

	for _, t := range m.Tables {
		path := e.cfg.InputTable(t.Name)
		if _, err := os.Stat(path); err != nil {
			if t.Required {
				return fmt.Errorf("required table %s: %w", t.Name, err)
			}
			e.logger.Warn("optional table missing", "table", t.Name, "path", path)
			continue
		}

		cols, err := db.DescribeParquet(ctx, path)
		if err != nil {
			return fmt.Errorf("failed to describe table %s: %w", t.Name, err)
		}
		have := make(map[string]bool, len(cols))
		for _, c := range cols {
			have[c.Name] = true
		}

		var missing []string
		for _, c := range t.Columns {
			if !have[c] {
				missing = append(missing, c)
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("table %s is missing columns: %s", t.Name, strings.Join(missing, ", "))
		}
		e.logger.Debug("table verified", "table", t.Name, "columns", len(cols))
	}
	return nil
}
