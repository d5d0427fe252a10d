package state

import (
	"path/filepath"
	"testing"
	"time"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore(nil)
	if err := store.Open(":memory:"); err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	if err := store.InitSchema(); err != nil {
		t.Fatalf("failed to init schema: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_OpenClose(t *testing.T) {
	store := NewSQLiteStore(nil)

	if err := store.Open(":memory:"); err != nil {
		t.Fatalf("failed to open in-memory store: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

func TestSQLiteStore_FileBacked(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".gtfsprep", "state.db")

	store := NewSQLiteStore(nil)
	if err := store.Open(path); err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	if err := store.InitSchema(); err != nil {
		t.Fatalf("failed to init schema: %v", err)
	}
	run, err := store.CreateRun(TaskInstall, "dev", "")
	if err != nil {
		t.Fatalf("failed to create run: %v", err)
	}
	_ = store.Close()

	// Reopen: migrations are idempotent and data persists.
	store = NewSQLiteStore(nil)
	if err := store.Open(path); err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer store.Close()
	if err := store.InitSchema(); err != nil {
		t.Fatalf("failed to re-run migrations: %v", err)
	}
	if _, err := store.GetRun(run.ID); err != nil {
		t.Fatalf("run did not persist: %v", err)
	}

	version, err := store.GetMigrationVersion()
	if err != nil {
		t.Fatalf("failed to get migration version: %v", err)
	}
	if version != 1 {
		t.Errorf("expected migration version 1, got %d", version)
	}
}

func TestSQLiteStore_InitSchema(t *testing.T) {
	store := setupTestStore(t)

	for _, table := range []string{"runs", "step_runs", "environments"} {
		rows, err := store.db.Query("SELECT 1 FROM " + table + " LIMIT 1")
		if err != nil {
			t.Errorf("table %s does not exist: %v", table, err)
			continue
		}
		_ = rows.Close()
	}
}

func TestSQLiteStore_NotOpened(t *testing.T) {
	store := NewSQLiteStore(nil)

	if _, err := store.CreateRun(TaskProcess, "dev", ""); err == nil {
		t.Error("expected error from unopened store")
	}
	if err := store.InitSchema(); err == nil {
		t.Error("expected error from unopened store")
	}
	if err := store.Close(); err != nil {
		t.Errorf("closing an unopened store should be a no-op: %v", err)
	}
}

func TestSQLiteStore_RunLifecycle(t *testing.T) {
	tests := []struct {
		name       string
		status     RunStatus
		errMsg     string
		wantErrMsg string
	}{
		{name: "completed", status: RunStatusCompleted},
		{name: "failed", status: RunStatusFailed, errMsg: "boom", wantErrMsg: "boom"},
		{name: "cancelled", status: RunStatusCancelled, errMsg: "context canceled", wantErrMsg: "context canceled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := setupTestStore(t)

			run, err := store.CreateRun(TaskProcess, "dev", "2024-10-16")
			if err != nil {
				t.Fatalf("failed to create run: %v", err)
			}
			if run.ID == "" {
				t.Fatal("run ID should not be empty")
			}
			if run.Status != RunStatusRunning {
				t.Errorf("expected status running, got %s", run.Status)
			}

			if err := store.CompleteRun(run.ID, tt.status, tt.errMsg); err != nil {
				t.Fatalf("failed to complete run: %v", err)
			}

			got, err := store.GetRun(run.ID)
			if err != nil {
				t.Fatalf("failed to get run: %v", err)
			}
			if got.Status != tt.status {
				t.Errorf("expected status %s, got %s", tt.status, got.Status)
			}
			if got.Error != tt.wantErrMsg {
				t.Errorf("expected error %q, got %q", tt.wantErrMsg, got.Error)
			}
			if got.CompletedAt == nil {
				t.Error("completed_at should be set")
			}
			if got.Task != TaskProcess || got.AnalysisDate != "2024-10-16" || got.Environment != "dev" {
				t.Errorf("unexpected run fields: %+v", got)
			}
		})
	}
}

func TestSQLiteStore_GetRun_NotFound(t *testing.T) {
	store := setupTestStore(t)

	if _, err := store.GetRun("missing"); err == nil {
		t.Error("expected error for missing run")
	}
	if err := store.CompleteRun("missing", RunStatusCompleted, ""); err == nil {
		t.Error("expected error completing missing run")
	}
}

func TestSQLiteStore_ListRunsAndLatest(t *testing.T) {
	store := setupTestStore(t)

	latest, err := store.GetLatestRun(TaskProcess)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if latest != nil {
		t.Fatal("expected no latest run on empty store")
	}

	var ids []string
	for _, task := range []string{TaskInstall, TaskProcess, TaskProcess} {
		run, err := store.CreateRun(task, "dev", "2024-10-16")
		if err != nil {
			t.Fatalf("failed to create run: %v", err)
		}
		ids = append(ids, run.ID)
		time.Sleep(2 * time.Millisecond)
	}

	runs, err := store.ListRuns(2)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != ids[2] || runs[1].ID != ids[1] {
		t.Errorf("runs not newest first: %s, %s", runs[0].ID, runs[1].ID)
	}

	latest, err = store.GetLatestRun(TaskInstall)
	if err != nil {
		t.Fatalf("failed to get latest run: %v", err)
	}
	if latest == nil || latest.ID != ids[0] {
		t.Errorf("expected latest install run %s, got %+v", ids[0], latest)
	}
}

func TestSQLiteStore_StepRuns(t *testing.T) {
	store := setupTestStore(t)

	run, err := store.CreateRun(TaskProcess, "dev", "2024-10-16")
	if err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	first := &StepRun{RunID: run.ID, Step: "stop_times_direction", Position: 0, Status: StepRunStatusPending}
	second := &StepRun{RunID: run.ID, Step: "subset_tables", Position: 1, Status: StepRunStatusPending}
	for _, sr := range []*StepRun{second, first} {
		if err := store.RecordStepRun(sr); err != nil {
			t.Fatalf("failed to record step run: %v", err)
		}
		if sr.ID == "" {
			t.Fatal("step run ID should be generated")
		}
	}

	if err := store.UpdateStepRun(first.ID, StepRunStatusRunning, 0, ""); err != nil {
		t.Fatalf("failed to mark running: %v", err)
	}
	if err := store.UpdateStepRun(first.ID, StepRunStatusFailed, 0, "no stops"); err != nil {
		t.Fatalf("failed to mark failed: %v", err)
	}
	if err := store.UpdateStepRun(second.ID, StepRunStatusSkipped, 0, "skipped: upstream step stop_times_direction failed"); err != nil {
		t.Fatalf("failed to mark skipped: %v", err)
	}

	stepRuns, err := store.GetStepRunsForRun(run.ID)
	if err != nil {
		t.Fatalf("failed to get step runs: %v", err)
	}
	if len(stepRuns) != 2 {
		t.Fatalf("expected 2 step runs, got %d", len(stepRuns))
	}
	if stepRuns[0].Step != "stop_times_direction" || stepRuns[1].Step != "subset_tables" {
		t.Errorf("step runs not in position order: %s, %s", stepRuns[0].Step, stepRuns[1].Step)
	}
	if stepRuns[0].Status != StepRunStatusFailed || stepRuns[0].Error != "no stops" {
		t.Errorf("unexpected first step run: %+v", stepRuns[0])
	}
	if stepRuns[1].Status != StepRunStatusSkipped || stepRuns[1].CompletedAt == nil {
		t.Errorf("unexpected second step run: %+v", stepRuns[1])
	}

	if err := store.UpdateStepRun("missing", StepRunStatusSuccess, 1, ""); err == nil {
		t.Error("expected error updating missing step run")
	}
}

func TestSQLiteStore_Environment(t *testing.T) {
	store := setupTestStore(t)

	env, err := store.GetEnvironment("ladot-sample")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env != nil {
		t.Fatal("expected no environment before install")
	}

	if err := store.SaveEnvironment(&Environment{Name: "ladot-sample", ManifestPath: "requirements.yaml", ManifestHash: "aaa"}); err != nil {
		t.Fatalf("failed to save environment: %v", err)
	}
	if err := store.SaveEnvironment(&Environment{Name: "ladot-sample", ManifestPath: "requirements.yaml", ManifestHash: "bbb"}); err != nil {
		t.Fatalf("failed to update environment: %v", err)
	}

	env, err = store.GetEnvironment("ladot-sample")
	if err != nil {
		t.Fatalf("failed to get environment: %v", err)
	}
	if env == nil || env.ManifestHash != "bbb" {
		t.Errorf("expected updated hash bbb, got %+v", env)
	}
	if env != nil && env.InstalledAt.IsZero() {
		t.Error("installed_at should be set")
	}
}
