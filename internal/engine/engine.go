// Package engine runs the gtfsprep tasks: install_env materializes the
// environment a manifest describes and process_data executes the processing
// steps in dependency order, recording every run in the state store.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/leapstack-labs/gtfsprep/internal/adapter"
	"github.com/leapstack-labs/gtfsprep/internal/config"
	"github.com/leapstack-labs/gtfsprep/internal/state"
)

// ErrCycle is returned when the configured steps depend on each other in a
// cycle.
var ErrCycle = errors.New("step dependency cycle")

// Engine orchestrates task execution.
type Engine struct {
	// Database adapter (lazy initialized)
	db          adapter.Adapter
	dbConfig    adapter.Config
	dbConnected bool
	dbMu        sync.Mutex

	logger *slog.Logger
	store  state.Store
	cfg    *config.Config
}

// Config holds engine configuration.
type Config struct {
	// Project is the resolved gtfsprep configuration.
	Project *config.Config
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
	// Store overrides the SQLite store opened at Project.StatePath.
	Store state.Store
}

// New creates an engine. The state store is opened immediately; DuckDB is
// connected the first time a task needs it.
func New(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Project == nil {
		return nil, fmt.Errorf("engine requires a configuration")
	}
	project := cfg.Project
	config.ApplyDefaults(project)

	logger.Debug("initializing engine", "input_dir", project.InputDir, "environment", project.Environment)

	store := cfg.Store
	if store == nil {
		sqlite := state.NewSQLiteStore(logger)
		if err := sqlite.Open(project.StatePath); err != nil {
			return nil, fmt.Errorf("failed to open state store: %w", err)
		}
		store = sqlite
	}
	if err := store.InitSchema(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize state schema: %w", err)
	}

	return &Engine{
		dbConfig: adapter.Config{
			Type:   "duckdb",
			Path:   project.DatabasePath,
			Params: duckDBParams(project.DuckDB.Settings, project.DuckDB.Extensions),
		},
		logger: logger,
		store:  store,
		cfg:    project,
	}, nil
}

func duckDBParams(settings map[string]any, extensions []string) map[string]any {
	params := make(map[string]any)
	if len(settings) > 0 {
		params["settings"] = settings
	}
	if len(extensions) > 0 {
		params["extensions"] = extensions
	}
	return params
}

// ensureDBConnected lazily connects to DuckDB.
func (e *Engine) ensureDBConnected(ctx context.Context) error {
	e.dbMu.Lock()
	defer e.dbMu.Unlock()

	if e.dbConnected {
		return nil
	}

	e.logger.Debug("connecting to database", "adapter_type", e.dbConfig.Type, "path", e.dbConfig.Path)

	db, err := adapter.Open(ctx, e.dbConfig, e.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	e.db = db
	e.dbConnected = true
	return nil
}

// DB returns the connected DuckDB adapter, connecting on first use.
func (e *Engine) DB(ctx context.Context) (adapter.Adapter, error) {
	if err := e.ensureDBConnected(ctx); err != nil {
		return nil, err
	}
	return e.db, nil
}

// Close releases all resources.
func (e *Engine) Close() error {
	e.logger.Debug("closing engine")

	var errs []error
	if e.db != nil {
		if err := e.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing engine: %w", errors.Join(errs...))
	}
	return nil
}

// GetStateStore returns the state store.
func (e *Engine) GetStateStore() state.Store {
	return e.store
}

// Config returns the configuration the engine runs with.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// record logs state store failures. They never replace a task's own error.
func (e *Engine) record(err error, msg string, args ...any) {
	if err != nil {
		e.logger.Warn(msg, append(args, "error", err)...)
	}
}
