package handlers

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/hoanghai1803/minernews/internal/models"
	"github.com/hoanghai1803/minernews/internal/report"
	"github.com/hoanghai1803/minernews/internal/storage"
)

// newTestStore creates an in-memory SQLite store with migrations applied and
// default sources seeded. It registers a cleanup function to close the database
// when the test completes.
func newTestStore(t *testing.T) *storage.Store {
	t.Helper()

	db, err := storage.OpenDatabase(":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := storage.RunMigrations(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	store := storage.NewStore(db)
	if err := store.SeedDefaults(context.Background()); err != nil {
		t.Fatalf("seeding defaults: %v", err)
	}

	return store
}

// writeTestReport writes a report for article into dir via the real writer
// and returns its file name.
func writeTestReport(t *testing.T, dir string, article models.Article, at time.Time, body string) string {
	t.Helper()

	w, err := report.NewWriter(dir, report.DefaultSlugMaxLength)
	if err != nil {
		t.Fatalf("creating writer: %v", err)
	}
	path, err := w.Write(&models.AnalysisResult{
		Article:     article,
		Model:       "gemini-2.5-flash",
		GeneratedAt: at,
		Body:        body,
	})
	if err != nil {
		t.Fatalf("writing report: %v", err)
	}
	return filepath.Base(path)
}
