package commands

import (
	"fmt"
	"strconv"

	"github.com/leapstack-labs/gtfsprep/internal/cli/output"
	"github.com/leapstack-labs/gtfsprep/internal/engine"
	"github.com/spf13/cobra"
)

// NewCheckMonotonicCommand creates the check-monotonic command.
func NewCheckMonotonicCommand() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "check-monotonic",
		Short: "Check that stop_meters increase along every trip",
		Long: `Read a stop_times_direction table, order each trip's stops by
stop_sequence and report whether stop_meters strictly increase.

Defaults to the sample stop_times_direction table in the output folder.`,
		Example: `  gtfsprep check-monotonic
  gtfsprep check-monotonic --path full_data/stop_times_direction_2024-10-16.parquet`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheckMonotonic(cmd, path)
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "stop_times_direction parquet file to check")

	return cmd
}

// monotonicReport is the JSON form of check-monotonic.
type monotonicReport struct {
	Trips        int                    `json:"trips"`
	NonMonotonic int                    `json:"non_monotonic"`
	Results      []engine.TripMonotonic `json:"results"`
}

func runCheckMonotonic(cmd *cobra.Command, path string) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	results, err := cc.Engine.CheckMonotonic(cmd.Context(), path)
	if err != nil {
		return err
	}

	report := monotonicReport{Trips: len(results), Results: results}
	for _, res := range results {
		if !res.Monotonic {
			report.NonMonotonic++
		}
	}

	r := cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(report)
	}

	rows := make([][]string, 0, len(results))
	for _, res := range results {
		rows = append(rows, []string{res.Key, res.TripID, strconv.Itoa(res.Stops), strconv.FormatBool(res.Monotonic)})
	}
	r.Table([]string{"Key", "Trip", "Stops", "Monotonic"}, rows)

	if report.NonMonotonic == 0 {
		r.Success(fmt.Sprintf("All %d trips are monotonic", report.Trips))
	} else {
		r.Warning(fmt.Sprintf("%d of %d trips are not monotonic", report.NonMonotonic, report.Trips))
	}
	return nil
}
