package commands

import (
	"fmt"
	"time"

	"github.com/leapstack-labs/gtfsprep/internal/cli/output"
	"github.com/leapstack-labs/gtfsprep/internal/state"
	"github.com/spf13/cobra"
)

// RunView is the rendered form of a run and its steps.
type RunView struct {
	ID           string     `json:"id"`
	Task         string     `json:"task"`
	Environment  string     `json:"environment"`
	AnalysisDate string     `json:"analysis_date"`
	Status       string     `json:"status"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	Error        string     `json:"error,omitempty"`
	Steps        []StepView `json:"steps,omitempty"`
}

// StepView is the rendered form of a step run.
type StepView struct {
	Step        string `json:"step"`
	Status      string `json:"status"`
	Rows        int64  `json:"rows"`
	ExecutionMS int64  `json:"execution_ms"`
	Error       string `json:"error,omitempty"`
}

func newRunView(store state.Store, run *state.Run) RunView {
	v := RunView{
		ID:           run.ID,
		Task:         run.Task,
		Environment:  run.Environment,
		AnalysisDate: run.AnalysisDate,
		Status:       string(run.Status),
		StartedAt:    run.StartedAt,
		CompletedAt:  run.CompletedAt,
		Error:        run.Error,
	}
	stepRuns, err := store.GetStepRunsForRun(run.ID)
	if err != nil {
		return v
	}
	for _, sr := range stepRuns {
		v.Steps = append(v.Steps, StepView{
			Step:        sr.Step,
			Status:      string(sr.Status),
			Rows:        sr.RowsAffected,
			ExecutionMS: sr.ExecutionMS,
			Error:       sr.Error,
		})
	}
	return v
}

// renderRun prints one run with its step outcomes.
func renderRun(r *output.Renderer, v RunView) error {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(v)
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(2, fmt.Sprintf("Run %s", v.ID)))
		r.Println(output.FormatKeyValue("Task", v.Task))
		r.Println(output.FormatKeyValue("Status", output.StatusTitle(v.Status)))
		r.Println(output.FormatKeyValue("Analysis Date", v.AnalysisDate))
		if v.Error != "" {
			r.Println(output.FormatKeyValue("Error", v.Error))
		}
		r.Println()
	default:
		r.StatusLine(fmt.Sprintf("%s %s", v.Task, v.ID), v.Status, output.StatusTitle(v.Status))
		if v.Error != "" {
			r.Muted("  " + v.Error)
		}
	}

	if len(v.Steps) > 0 {
		rows := make([][]string, 0, len(v.Steps))
		for _, s := range v.Steps {
			rows = append(rows, []string{s.Step, s.Status, fmt.Sprintf("%d", s.Rows), fmt.Sprintf("%dms", s.ExecutionMS), s.Error})
		}
		r.Table([]string{"Step", "Status", "Rows", "Time", "Error"}, rows)
	}
	return nil
}

// RunsOptions holds options for the runs command.
type RunsOptions struct {
	Limit int
}

// NewRunsCommand creates the runs command.
func NewRunsCommand() *cobra.Command {
	opts := &RunsOptions{}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent task runs",
		Long:  `List recent install_env and process_data runs, newest first, with the outcome of each step.`,
		Example: `  # Show the last 10 runs
  gtfsprep runs

  # Show the last 3 runs as JSON
  gtfsprep runs --limit 3 -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRuns(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 10, "Maximum number of runs to show")

	return cmd
}

func runRuns(cmd *cobra.Command, opts *RunsOptions) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	store := cc.Engine.GetStateStore()
	runs, err := store.ListRuns(opts.Limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	views := make([]RunView, 0, len(runs))
	for _, run := range runs {
		views = append(views, newRunView(store, run))
	}

	r := cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(views)
	}
	if len(views) == 0 {
		r.Muted("No runs recorded yet")
		return nil
	}
	r.Header(1, fmt.Sprintf("Runs (%d)", len(views)))
	for _, v := range views {
		if err := renderRun(r, v); err != nil {
			return err
		}
	}
	return nil
}
