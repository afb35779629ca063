package history_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"albumrun/internal/classify"
	"albumrun/internal/execution"
	"albumrun/internal/history"
	"albumrun/internal/report"
	"albumrun/internal/testsupport"
)

func TestRunLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	run, err := store.BeginRun(ctx, history.RunParams{Root: "/music", MaxJobs: 4, MaxRetries: 3})
	if err != nil {
		t.Fatalf("BeginRun returned error: %v", err)
	}
	if run.ID == "" || run.Finished() {
		t.Fatalf("unexpected new run: %+v", run)
	}

	units := []classify.WorkUnit{
		{ID: "A/One", Path: "/music/A/One", Kind: classify.KindSingle},
		{ID: "A/Box", Path: "/music/A/Box", Kind: classify.KindMultiDisc},
	}
	results := []execution.JobResult{
		{Index: 1, Unit: units[1], Status: execution.StatusFailed, AttemptsUsed: 3, LogPath: "/logs/002.log", Duration: 1500 * time.Millisecond, Error: "exit status 1"},
		{Index: 0, Unit: units[0], Status: execution.StatusSucceeded, AttemptsUsed: 1, Duration: time.Second},
	}
	for _, r := range results {
		if err := store.RecordResult(ctx, run.ID, r); err != nil {
			t.Fatalf("RecordResult returned error: %v", err)
		}
	}
	summary := report.Summarize(units, results)
	if err := store.FinishRun(ctx, run.ID, summary, false); err != nil {
		t.Fatalf("FinishRun returned error: %v", err)
	}

	got, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun returned error: %v", err)
	}
	if !got.Finished() || got.Total != 2 || got.Succeeded != 1 || got.Failed != 1 || got.Root != "/music" {
		t.Fatalf("unexpected stored run: %+v", got)
	}

	stored, err := store.Results(ctx, run.ID)
	if err != nil {
		t.Fatalf("Results returned error: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 results, got %d", len(stored))
	}
	if stored[0].UnitID != "A/One" || stored[1].UnitID != "A/Box" {
		t.Fatalf("results not in input order: %+v", stored)
	}
	failed := stored[1]
	if failed.Status != "failed" || failed.Attempts != 3 || failed.Kind != "multi-disc-group" ||
		failed.LogPath != "/logs/002.log" || failed.Error != "exit status 1" || failed.Duration != 1500*time.Millisecond {
		t.Fatalf("unexpected failed result: %+v", failed)
	}
	if stored[0].LogPath != "" || stored[0].Error != "" {
		t.Fatalf("expected empty optional fields, got %+v", stored[0])
	}
}

func TestGetRunByPrefix(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	ctx := context.Background()

	run, err := store.BeginRun(ctx, history.RunParams{Root: "/music", MaxJobs: 1, MaxRetries: 1})
	if err != nil {
		t.Fatalf("BeginRun returned error: %v", err)
	}
	got, err := store.GetRun(ctx, run.ShortID())
	if err != nil {
		t.Fatalf("GetRun by prefix returned error: %v", err)
	}
	if got.ID != run.ID {
		t.Fatalf("unexpected run %s, want %s", got.ID, run.ID)
	}

	if _, err := store.GetRun(ctx, "zzzz"); !errors.Is(err, history.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.FinishRun(ctx, "missing", report.RunSummary{}, false); !errors.Is(err, history.ErrNotFound) {
		t.Fatalf("expected ErrNotFound finishing unknown run, got %v", err)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		run, err := store.BeginRun(ctx, history.RunParams{Root: "/music", MaxJobs: 1, MaxRetries: 1, DryRun: i == 2})
		if err != nil {
			t.Fatalf("BeginRun returned error: %v", err)
		}
		ids = append(ids, run.ID)
		time.Sleep(2 * time.Millisecond)
	}

	runs, err := store.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns returned error: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != ids[2] || runs[1].ID != ids[1] {
		t.Fatalf("unexpected run order: %+v", runs)
	}
	if !runs[0].DryRun || runs[1].DryRun {
		t.Fatalf("dry-run flag not persisted: %+v", runs)
	}

	all, err := store.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns returned error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(all))
	}
}

func TestReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "history.db")
	store, err := history.Open(path)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	run, err := store.BeginRun(context.Background(), history.RunParams{Root: "/music", MaxJobs: 1, MaxRetries: 1})
	if err != nil {
		t.Fatalf("BeginRun returned error: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	reopened, err := history.Open(path)
	if err != nil {
		t.Fatalf("reopen returned error: %v", err)
	}
	defer reopened.Close()
	if _, err := reopened.GetRun(context.Background(), run.ID); err != nil {
		t.Fatalf("expected run to survive reopen: %v", err)
	}
}
