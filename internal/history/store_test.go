package history_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"patina/internal/config"
	"patina/internal/history"
	"patina/internal/pipeline"
	"patina/internal/services/gemini"
)

func testStore(t *testing.T) *history.Store {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.Provider.APIKey = "test"
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.OutputDir = filepath.Join(base, "out")

	store, err := history.Open(&cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleReport(runID string) pipeline.Report {
	now := time.Now()
	return pipeline.Report{
		RunID:      runID,
		Status:     pipeline.RunCompleted,
		StartedAt:  now.Add(-time.Minute),
		FinishedAt: now,
		Items: []pipeline.ItemReport{
			{
				ItemID:     "item-1",
				Name:       "scan-1.png",
				Status:     pipeline.StatusCompleted,
				PhotoCount: 2,
				Duration:   42 * time.Second,
				Photos: []pipeline.PhotoReport{
					{
						Index:        0,
						Label:        "photo 1",
						Width:        449,
						Height:       449,
						Rotation:     90,
						Restored:     true,
						Improvements: []string{"removed scratches"},
						OutputPath:   "/out/scan-1_photo_01.jpg",
						Notes: []gemini.VerificationNote{
							{Stage: "restoration", Passed: true, Confidence: 0.9, Summary: "looks good"},
						},
					},
					{Index: 1, Label: "photo 2", Width: 300, Height: 200, Restored: true},
				},
			},
			{
				ItemID:      "item-2",
				Name:        "scan-2.png",
				Status:      pipeline.StatusFailed,
				FailedStage: pipeline.StageRestore,
				Error:       "restore failed after 3 attempt(s)",
			},
		},
	}
}

func TestRecordAndGetRun(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if err := store.RecordRun(ctx, sampleReport("run-1")); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}

	run, items, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != string(pipeline.RunCompleted) {
		t.Errorf("run status = %q", run.Status)
	}
	if run.TotalItems != 2 || run.Completed != 1 || run.Failed != 1 {
		t.Errorf("run counters = %+v", run)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}

	first := items[0]
	if first.Name != "scan-1.png" || first.Status != string(pipeline.StatusCompleted) {
		t.Errorf("first item = %+v", first)
	}
	if len(first.Photos) != 2 {
		t.Fatalf("photos = %d, want 2", len(first.Photos))
	}
	if first.Photos[0].Rotation != 90 || !first.Photos[0].Restored {
		t.Errorf("photo = %+v", first.Photos[0])
	}
	if first.Photos[0].NotesPassed == nil || !*first.Photos[0].NotesPassed {
		t.Error("verification note outcome not persisted")
	}
	if first.Duration != 42*time.Second {
		t.Errorf("duration = %v", first.Duration)
	}

	second := items[1]
	if second.FailedStage != string(pipeline.StageRestore) || second.Error == "" {
		t.Errorf("second item = %+v", second)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	older := sampleReport("run-old")
	older.StartedAt = time.Now().Add(-2 * time.Hour)
	older.FinishedAt = older.StartedAt.Add(time.Minute)
	if err := store.RecordRun(ctx, older); err != nil {
		t.Fatalf("RecordRun old: %v", err)
	}
	if err := store.RecordRun(ctx, sampleReport("run-new")); err != nil {
		t.Fatalf("RecordRun new: %v", err)
	}

	runs, err := store.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(runs))
	}
	if runs[0].ID != "run-new" || runs[1].ID != "run-old" {
		t.Errorf("order = %s, %s", runs[0].ID, runs[1].ID)
	}
}

func TestStatsAndClear(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if err := store.RecordRun(ctx, sampleReport("run-1")); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Runs != 1 || stats.ItemsCompleted != 1 || stats.ItemsFailed != 1 {
		t.Errorf("stats = %+v", stats)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	stats, err = store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats after clear: %v", err)
	}
	if stats.Runs != 0 {
		t.Errorf("runs after clear = %d", stats.Runs)
	}
}

func TestGetRunMissing(t *testing.T) {
	store := testStore(t)
	if _, _, err := store.GetRun(context.Background(), "nope"); err == nil {
		t.Fatal("expected error for missing run")
	}
}
