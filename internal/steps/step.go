// Package steps holds the processing steps run by process-data and the
// registry the engine resolves them from.
package steps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/leapstack-labs/gtfsprep/internal/adapter"
	"github.com/leapstack-labs/gtfsprep/internal/config"
)

// Step names.
const (
	StopTimesDirection = "stop_times_direction"
	SubsetTables       = "subset_tables"
)

// ErrUnknownStep is matched by UnknownStepError.
var ErrUnknownStep = errors.New("unknown step")

// Env is what a step runs against.
type Env struct {
	DB     adapter.Adapter
	Config *config.Config
	Logger *slog.Logger
}

func (e *Env) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.Logger
}

// Step is a unit of processing. Run returns the number of rows it wrote.
type Step interface {
	Name() string
	DependsOn() []string
	Run(ctx context.Context, env *Env) (int64, error)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]func() Step)
)

// Register adds a step factory to the registry.
// Called by step implementations in their init() functions.
func Register(name string, factory func() Step) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Get returns a new instance of the named step.
func Get(name string) (Step, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, &UnknownStepError{Name: name, Available: List()}
	}
	return factory(), nil
}

// List returns all registered step names (sorted).
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve returns the named steps in the given order. Duplicates are
// dropped.
func Resolve(names []string) ([]Step, error) {
	seen := make(map[string]bool, len(names))
	out := make([]Step, 0, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		s, err := Get(name)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// UnknownStepError is returned when a step name is not registered.
type UnknownStepError struct {
	Name      string
	Available []string
}

func (e *UnknownStepError) Error() string {
	return fmt.Sprintf("unknown step %q (available: %v)", e.Name, e.Available)
}

// Is reports whether target is ErrUnknownStep.
func (e *UnknownStepError) Is(target error) bool {
	return target == ErrUnknownStep
}

// registerInputs exposes each input parquet table as a view of the same
// name. Missing files are an error.
func registerInputs(ctx context.Context, env *Env, tables ...string) error {
	for _, table := range tables {
		path := env.Config.InputTable(table)
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("input table %s: %w", table, err)
		}
		if err := env.DB.RegisterParquetView(ctx, table, path); err != nil {
			return err
		}
	}
	return nil
}

func inputExists(env *Env, table string) bool {
	_, err := os.Stat(env.Config.InputTable(table))
	return err == nil
}
