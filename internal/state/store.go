// Package state records gtfsprep task runs, step outcomes and installed
// environments in a SQLite database.
package state

import "time"

// RunStatus represents the status of a task run.
type RunStatus string

// Run status values.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// StepRunStatus represents the status of a single step within a run.
type StepRunStatus string

// Step run status values.
const (
	StepRunStatusPending StepRunStatus = "pending"
	StepRunStatusRunning StepRunStatus = "running"
	StepRunStatusSuccess StepRunStatus = "success"
	StepRunStatusFailed  StepRunStatus = "failed"
	StepRunStatusSkipped StepRunStatus = "skipped"
)

// Task names recorded on runs.
const (
	TaskInstall = "install_env"
	TaskProcess = "process_data"
)

// Run is one invocation of a task.
type Run struct {
	ID           string
	Task         string
	Environment  string
	AnalysisDate string
	Status       RunStatus
	StartedAt    time.Time
	CompletedAt  *time.Time
	Error        string
}

// StepRun is the outcome of one step within a run.
type StepRun struct {
	ID           string
	RunID        string
	Step         string
	Position     int
	Status       StepRunStatus
	RowsAffected int64
	Error        string
	StartedAt    time.Time
	CompletedAt  *time.Time
	ExecutionMS  int64
}

// Environment records a successful install-env.
type Environment struct {
	Name         string
	ManifestPath string
	ManifestHash string
	InstalledAt  time.Time
}

// Store is the state persistence interface used by the engine.
type Store interface {
	Open(path string) error
	Close() error
	InitSchema() error

	CreateRun(task, env, analysisDate string) (*Run, error)
	GetRun(id string) (*Run, error)
	CompleteRun(id string, status RunStatus, errMsg string) error
	GetLatestRun(task string) (*Run, error)
	ListRuns(limit int) ([]*Run, error)

	RecordStepRun(stepRun *StepRun) error
	UpdateStepRun(id string, status StepRunStatus, rowsAffected int64, errMsg string) error
	GetStepRunsForRun(runID string) ([]*StepRun, error)

	SaveEnvironment(env *Environment) error
	GetEnvironment(name string) (*Environment, error)
}
