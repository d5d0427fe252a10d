package state

import (
	"database/sql"
	"fmt"
	"time"
)

// RecordStepRun inserts a step outcome row. ID and StartedAt are filled in
// when empty.
func (s *SQLiteStore) RecordStepRun(stepRun *StepRun) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	if stepRun.ID == "" {
		stepRun.ID = generateID()
	}
	if stepRun.StartedAt.IsZero() {
		stepRun.StartedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(
		`INSERT INTO step_runs (id, run_id, step, position, status, rows_affected, error, started_at, execution_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		stepRun.ID, stepRun.RunID, stepRun.Step, stepRun.Position, stepRun.Status,
		stepRun.RowsAffected, nullable(stepRun.Error), stepRun.StartedAt, stepRun.ExecutionMS,
	)
	if err != nil {
		return fmt.Errorf("failed to record step run: %w", err)
	}
	return nil
}

// UpdateStepRun sets the status of a step run. Moving to running restarts
// its clock; any other status completes it.
func (s *SQLiteStore) UpdateStepRun(id string, status StepRunStatus, rowsAffected int64, errMsg string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	now := time.Now().UTC()

	var (
		result sql.Result
		err    error
	)
	if status == StepRunStatusRunning {
		result, err = s.db.Exec(
			`UPDATE step_runs SET status = ?, started_at = ? WHERE id = ?`,
			status, now, id,
		)
	} else {
		var startedAt time.Time
		if err := s.db.QueryRow(`SELECT started_at FROM step_runs WHERE id = ?`, id).Scan(&startedAt); err != nil {
			if err == sql.ErrNoRows {
				return fmt.Errorf("step run not found: %s", id)
			}
			return fmt.Errorf("failed to get step run start time: %w", err)
		}

		result, err = s.db.Exec(
			`UPDATE step_runs SET status = ?, rows_affected = ?, completed_at = ?, error = ?, execution_ms = ? WHERE id = ?`,
			status, rowsAffected, now, nullable(errMsg), now.Sub(startedAt).Milliseconds(), id,
		)
	}
	if err != nil {
		return fmt.Errorf("failed to update step run: %w", err)
	}

	rowsUpdated, _ := result.RowsAffected()
	if rowsUpdated == 0 {
		return fmt.Errorf("step run not found: %s", id)
	}
	return nil
}

// GetStepRunsForRun retrieves the step outcomes of a run in execution order.
func (s *SQLiteStore) GetStepRunsForRun(runID string) ([]*StepRun, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(
		`SELECT id, run_id, step, position, status, rows_affected, error, started_at, completed_at, execution_ms
		 FROM step_runs WHERE run_id = ? ORDER BY position, started_at`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get step runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var stepRuns []*StepRun
	for rows.Next() {
		sr := &StepRun{}
		var completedAt sql.NullTime
		var errMsg sql.NullString

		if err := rows.Scan(&sr.ID, &sr.RunID, &sr.Step, &sr.Position, &sr.Status, &sr.RowsAffected,
			&errMsg, &sr.StartedAt, &completedAt, &sr.ExecutionMS); err != nil {
			return nil, fmt.Errorf("failed to scan step run: %w", err)
		}
		if completedAt.Valid {
			sr.CompletedAt = &completedAt.Time
		}
		if errMsg.Valid {
			sr.Error = errMsg.String
		}
		stepRuns = append(stepRuns, sr)
	}
	return stepRuns, rows.Err()
}
