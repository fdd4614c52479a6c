package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hoanghai1803/minernews/internal/models"
)

func TestCreateAndFinishRun(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	started := time.Date(2025, 9, 20, 19, 0, 0, 0, time.UTC)
	run := &models.Run{
		ID:        "run-1",
		StartedAt: started,
		Status:    models.RunRunning,
		Model:     "gemini-2.5-flash",
	}
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun() error: %v", err)
	}

	finished := started.Add(3 * time.Minute)
	run.FinishedAt = &finished
	run.Status = models.RunCompleted
	run.Candidates = 7
	run.Attempted = 5
	run.Written = 4
	run.Skipped = 1
	if err := store.FinishRun(ctx, run); err != nil {
		t.Fatalf("FinishRun() error: %v", err)
	}

	got, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun() error: %v", err)
	}
	if got.Status != models.RunCompleted {
		t.Errorf("Status = %q, want %q", got.Status, models.RunCompleted)
	}
	if got.Candidates != 7 || got.Attempted != 5 || got.Written != 4 || got.Skipped != 1 {
		t.Errorf("counts = %d/%d/%d/%d, want 7/5/4/1", got.Candidates, got.Attempted, got.Written, got.Skipped)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, started)
	}
	if got.FinishedAt == nil || !got.FinishedAt.Equal(finished) {
		t.Errorf("FinishedAt = %v, want %v", got.FinishedAt, finished)
	}
}

func TestFinishRun_NotFound(t *testing.T) {
	store := newTestStore(t)

	err := store.FinishRun(context.Background(), &models.Run{ID: "missing", Status: models.RunFailed})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("FinishRun() error = %v, want ErrNotFound", err)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.GetRun(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRun() error = %v, want ErrNotFound", err)
	}
}

func TestGetRecentRuns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		run := &models.Run{ID: id, StartedAt: base.Add(time.Duration(i) * time.Hour), Status: models.RunRunning}
		if err := store.CreateRun(ctx, run); err != nil {
			t.Fatalf("CreateRun(%s) error: %v", id, err)
		}
	}

	runs, err := store.GetRecentRuns(ctx, 2)
	if err != nil {
		t.Fatalf("GetRecentRuns() error: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].ID != "c" || runs[1].ID != "b" {
		t.Errorf("order = %s,%s, want c,b", runs[0].ID, runs[1].ID)
	}
	if runs[0].FinishedAt != nil {
		t.Errorf("unfinished run has FinishedAt %v", runs[0].FinishedAt)
	}
}
