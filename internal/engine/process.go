package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/leapstack-labs/gtfsprep/internal/dag"
	"github.com/leapstack-labs/gtfsprep/internal/state"
	"github.com/leapstack-labs/gtfsprep/internal/steps"
)

// Event types emitted during Process.
const (
	EventRunStart     = "run_start"
	EventStepComplete = "step_complete"
	EventRunComplete  = "run_complete"
)

// Event reports progress of a process run.
type Event struct {
	Type       string `json:"type"`
	RunID      string `json:"run_id"`
	Step       string `json:"step,omitempty"`
	Status     string `json:"status,omitempty"`
	Rows       int64  `json:"rows"`
	DurationMS int64  `json:"duration_ms,omitempty"`
	Steps      int    `json:"steps,omitempty"`
	Error      string `json:"error,omitempty"`
}

// ProcessOptions controls which steps run.
type ProcessOptions struct {
	// Select limits the run to the named steps. Empty runs every
	// configured step.
	Select []string
	// Downstream adds the dependents of the selected steps.
	Downstream bool
	// OnEvent, when set, receives progress events.
	OnEvent func(Event)
}

type plannedStep struct {
	step    steps.Step
	stepRun *state.StepRun
}

// Plan resolves the configured steps and returns them in execution order:
// every step after the steps it depends on. Dependencies that are not part
// of the pipeline are assumed to have run already.
func (e *Engine) Plan(opts ProcessOptions) ([]steps.Step, error) {
	resolved, err := steps.Resolve(e.cfg.Pipeline.Steps)
	if err != nil {
		return nil, err
	}

	graph := dag.NewGraph()
	for _, s := range resolved {
		graph.AddNode(s.Name(), s)
	}
	for _, s := range resolved {
		for _, dep := range s.DependsOn() {
			if _, ok := graph.GetNode(dep); !ok {
				continue
			}
			if err := graph.AddEdge(dep, s.Name()); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrCycle, err)
			}
		}
	}

	if len(opts.Select) > 0 {
		for _, name := range opts.Select {
			if _, ok := graph.GetNode(name); !ok {
				available := make([]string, 0, graph.NodeCount())
				for _, n := range graph.Nodes() {
					available = append(available, n.ID)
				}
				return nil, &steps.UnknownStepError{Name: name, Available: available}
			}
		}
		selected := opts.Select
		if opts.Downstream {
			selected = graph.GetAffectedNodes(opts.Select)
		}
		graph = graph.Subgraph(selected)
	}

	sorted, err := graph.TopologicalSort()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCycle, err)
	}

	out := make([]steps.Step, len(sorted))
	for i, node := range sorted {
		out[i] = node.Data.(steps.Step)
	}
	return out, nil
}

// Process runs the pipeline one step at a time in dependency order. When a
// step fails, the steps after it are skipped and the step's error is
// returned. Cancelling ctx between steps marks the run cancelled.
func (e *Engine) Process(ctx context.Context, opts ProcessOptions) (*state.Run, error) {
	e.logger.Info("starting run", "environment", e.cfg.Environment, "analysis_date", e.cfg.AnalysisDate)

	emit := opts.OnEvent
	if emit == nil {
		emit = func(Event) {}
	}

	run, err := e.store.CreateRun(state.TaskProcess, e.cfg.Environment, e.cfg.AnalysisDate)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	e.logger.Debug("created run", "run_id", run.ID)

	finish := func(status state.RunStatus, runErr error) (*state.Run, error) {
		msg := ""
		if runErr != nil {
			msg = runErr.Error()
			e.logger.Info("run finished", "run_id", run.ID, "status", status, "error", msg)
		} else {
			e.logger.Info("run completed", "run_id", run.ID)
		}
		e.record(e.store.CompleteRun(run.ID, status, msg), "failed to complete run", "run_id", run.ID)
		emit(Event{Type: EventRunComplete, RunID: run.ID, Status: string(status), Error: msg})
		if latest, err := e.store.GetRun(run.ID); err == nil {
			run = latest
		}
		return run, runErr
	}

	planned, err := e.Plan(opts)
	if err != nil {
		emit(Event{Type: EventRunStart, RunID: run.ID})
		return finish(state.RunStatusFailed, fmt.Errorf("failed to plan steps: %w", err))
	}
	emit(Event{Type: EventRunStart, RunID: run.ID, Steps: len(planned)})

	if err := e.ensureDBConnected(ctx); err != nil {
		return finish(state.RunStatusFailed, err)
	}

	prepared := make([]plannedStep, 0, len(planned))
	for i, s := range planned {
		stepRun := &state.StepRun{
			RunID:    run.ID,
			Step:     s.Name(),
			Position: i,
			Status:   state.StepRunStatusPending,
		}
		if err := e.store.RecordStepRun(stepRun); err != nil {
			return finish(state.RunStatusFailed, fmt.Errorf("%s: failed to record step run: %w", s.Name(), err))
		}
		prepared = append(prepared, plannedStep{step: s, stepRun: stepRun})
	}

	status, runErr := e.executeSteps(ctx, prepared, emit)
	return finish(status, runErr)
}

// executeSteps runs prepared steps in order and stops at the first failure.
func (e *Engine) executeSteps(ctx context.Context, prepared []plannedStep, emit func(Event)) (state.RunStatus, error) {
	env := &steps.Env{DB: e.db, Config: e.cfg, Logger: e.logger}

	skipRest := func(from int, reason string) {
		for _, p := range prepared[from:] {
			e.record(e.store.UpdateStepRun(p.stepRun.ID, state.StepRunStatusSkipped, 0, reason),
				"failed to update step run", "step", p.step.Name())
			emit(Event{Type: EventStepComplete, RunID: p.stepRun.RunID, Step: p.step.Name(),
				Status: string(state.StepRunStatusSkipped), Error: reason})
		}
	}

	for i, p := range prepared {
		name := p.step.Name()
		if err := ctx.Err(); err != nil {
			skipRest(i, "skipped: run cancelled")
			return state.RunStatusCancelled, err
		}

		e.record(e.store.UpdateStepRun(p.stepRun.ID, state.StepRunStatusRunning, 0, ""), "failed to update step run", "step", name)
		e.logger.Info("running step", "step", name)

		start := time.Now()
		rows, err := p.step.Run(ctx, env)
		elapsed := time.Since(start).Milliseconds()

		if err != nil {
			e.logger.Debug("step failed", "step", name, "error", err)
			e.record(e.store.UpdateStepRun(p.stepRun.ID, state.StepRunStatusFailed, 0, err.Error()), "failed to update step run", "step", name)
			emit(Event{Type: EventStepComplete, RunID: p.stepRun.RunID, Step: name,
				Status: string(state.StepRunStatusFailed), DurationMS: elapsed, Error: err.Error()})

			skipRest(i+1, fmt.Sprintf("skipped: upstream step %s failed", name))

			status := state.RunStatusFailed
			if errors.Is(err, context.Canceled) {
				status = state.RunStatusCancelled
			}
			return status, fmt.Errorf("step %s: %w", name, err)
		}

		e.logger.Info("step completed", "step", name, "rows", rows, "exec_ms", elapsed)
		e.record(e.store.UpdateStepRun(p.stepRun.ID, state.StepRunStatusSuccess, rows, ""), "failed to update step run", "step", name)
		emit(Event{Type: EventStepComplete, RunID: p.stepRun.RunID, Step: name,
			Status: string(state.StepRunStatusSuccess), Rows: rows, DurationMS: elapsed})
	}
	return state.RunStatusCompleted, nil
}
