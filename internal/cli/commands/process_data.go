package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/leapstack-labs/gtfsprep/internal/cli/output"
	"github.com/leapstack-labs/gtfsprep/internal/engine"
	"github.com/spf13/cobra"
)

// ProcessDataOptions holds options for the process-data command.
type ProcessDataOptions struct {
	Select     string
	Downstream bool
	Watch      bool
	JSONOutput bool
}

// NewProcessDataCommand creates the process-data command.
func NewProcessDataCommand() *cobra.Command {
	opts := &ProcessDataOptions{}

	cmd := &cobra.Command{
		Use:     "process-data",
		Aliases: []string{"process_data"},
		Short:   "Run the processing steps",
		Long: `Run the processing pipeline in dependency order: stop_times_direction
derives the direction of travel between stops, then subset_tables writes the
sample tables. When a step fails, the steps after it are skipped.

Use --select to run specific steps and --downstream to add their dependents.
Use --watch to re-run whenever a table in the input folder changes.`,
		Example: `  # Run every step
  gtfsprep process-data

  # Re-run only the subset
  gtfsprep process-data --select subset_tables

  # Emit JSON lines for CI
  gtfsprep process-data --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProcessData(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Select, "select", "s", "", "Comma-separated list of steps to run")
	cmd.Flags().BoolVar(&opts.Downstream, "downstream", false, "Include downstream dependents when using --select")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Re-run when input tables change")
	cmd.Flags().BoolVar(&opts.JSONOutput, "json", false, "Output as JSON lines for progress tracking")

	return cmd
}

func runProcessData(cmd *cobra.Command, opts *ProcessDataOptions) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := cc.Renderer
	popts := engine.ProcessOptions{
		Select:     splitCSV(opts.Select),
		Downstream: opts.Downstream,
		OnEvent:    eventPrinter(r, opts.JSONOutput),
	}

	if opts.Watch {
		return cc.Engine.Watch(ctx, popts, engine.DefaultDebounce)
	}
	return processOnce(ctx, cc, popts, opts.JSONOutput)
}

func processOnce(ctx context.Context, cc *CommandContext, popts engine.ProcessOptions, jsonLines bool) error {
	start := time.Now()
	run, runErr := cc.Engine.Process(ctx, popts)
	if run == nil || jsonLines {
		return runErr
	}

	if err := renderRun(cc.Renderer, newRunView(cc.Engine.GetStateStore(), run)); err != nil {
		return err
	}
	if cc.Renderer.EffectiveMode() != output.ModeJSON {
		cc.Renderer.Muted(fmt.Sprintf("Completed in %s", time.Since(start).Round(time.Millisecond)))
	}
	return runErr
}

// eventPrinter reports progress as JSON lines, or as one status line per
// step on an interactive terminal.
func eventPrinter(r *output.Renderer, jsonLines bool) func(engine.Event) {
	if jsonLines {
		return func(ev engine.Event) { _ = r.JSONLine(ev) }
	}
	if !r.IsTTY() || r.EffectiveMode() != output.ModeText {
		return nil
	}
	return func(ev engine.Event) {
		switch ev.Type {
		case engine.EventRunStart:
			r.Muted(fmt.Sprintf("Running %d steps (run %s)", ev.Steps, ev.RunID))
		case engine.EventStepComplete:
			detail := fmt.Sprintf("%d rows, %dms", ev.Rows, ev.DurationMS)
			if ev.Error != "" {
				detail = ev.Error
			}
			r.StatusLine(ev.Step, ev.Status, detail)
		}
	}
}
