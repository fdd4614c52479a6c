// Package ledger tracks which article URLs already have a report, so a
// periodic run does not analyze the same article twice.
//
// The in-memory Set is the source of truth for one processing pass. It is
// loaded from the persisted index and a scan of the report directory,
// updated after each successful write, and persisted when the pass ends.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/hoanghai1803/minernews/internal/models"
	"github.com/hoanghai1803/minernews/internal/report"
)

// Index is the persisted form of the ledger.
type Index interface {
	ListProcessed(ctx context.Context) ([]models.ProcessedArticle, error)
	UpsertProcessed(ctx context.Context, entries []models.ProcessedArticle) error
	ReplaceProcessed(ctx context.Context, entries []models.ProcessedArticle) error
}

// Set is the processed-article set for one pass. It is safe for concurrent
// use.
type Set struct {
	mu      sync.Mutex
	entries map[string]models.ProcessedArticle
	dirty   map[string]struct{}
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{
		entries: make(map[string]models.ProcessedArticle),
		dirty:   make(map[string]struct{}),
	}
}

// HasSeen reports whether a report already exists for rawURL.
func (s *Set) HasSeen(rawURL string) bool {
	key := Normalize(rawURL)

	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key]
	return ok
}

// Get returns the entry recorded for rawURL.
func (s *Set) Get(rawURL string) (models.ProcessedArticle, bool) {
	key := Normalize(rawURL)

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	return e, ok
}

// MarkSeen records that a report was written for entry.URL. Marking a URL
// that is already present is a no-op.
func (s *Set) MarkSeen(entry models.ProcessedArticle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.add(entry, true)
}

// add inserts entry unless its URL is present. Caller holds s.mu.
func (s *Set) add(entry models.ProcessedArticle, dirty bool) bool {
	key := Normalize(entry.URL)
	if key == "" {
		return false
	}
	if _, ok := s.entries[key]; ok {
		return false
	}
	s.entries[key] = entry
	if dirty {
		s.dirty[key] = struct{}{}
	}
	return true
}

// Len returns the number of processed URLs.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Entries returns every entry, ordered by URL.
func (s *Set) Entries() []models.ProcessedArticle {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.ProcessedArticle, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sortEntries(out)
	return out
}

// Dirty returns the entries that are not yet in the persisted index,
// ordered by URL.
func (s *Set) Dirty() []models.ProcessedArticle {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.ProcessedArticle, 0, len(s.dirty))
	for key := range s.dirty {
		out = append(out, s.entries[key])
	}
	sortEntries(out)
	return out
}

func (s *Set) clearDirty() {
	s.mu.Lock()
	s.dirty = make(map[string]struct{})
	s.mu.Unlock()
}

func sortEntries(entries []models.ProcessedArticle) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].URL < entries[j].URL
	})
}

// Normalize returns the dedup key for rawURL: scheme and host lowercased,
// fragment dropped, trailing slash on the path removed. The query string is
// kept because some news sites identify articles by it.
func Normalize(rawURL string) string {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	if u.Path != "/" {
		u.Path = strings.TrimSuffix(u.Path, "/")
	} else {
		u.Path = ""
	}
	u.RawPath = ""
	return u.String()
}

// Load builds the Set for a pass from the persisted index and the reports
// found in reportsDir. Read failures are logged and leave the
// corresponding part empty; reprocessing is preferred over refusing to run.
//
// Index entries whose report file no longer exists are dropped, so deleting
// a report makes its article eligible again. Reports on disk that the index
// does not know about are marked dirty and written back by Persist.
func Load(ctx context.Context, idx Index, reportsDir string) *Set {
	set := NewSet()

	if idx != nil {
		entries, err := idx.ListProcessed(ctx)
		if err != nil {
			slog.Warn("ledger index unreadable, starting without it", "error", err)
		}
		for _, e := range entries {
			if _, err := os.Stat(filepath.Join(reportsDir, e.ReportPath)); err != nil {
				slog.Debug("dropping ledger entry without report", "url", e.URL, "report", e.ReportPath)
				continue
			}
			set.add(e, false)
		}
	}

	reports, err := report.ScanDir(reportsDir)
	if err != nil {
		slog.Warn("report directory unreadable, ledger may be incomplete", "dir", reportsDir, "error", err)
	}

	var backfilled, duplicates int
	set.mu.Lock()
	for _, r := range reports {
		added := set.add(models.ProcessedArticle{
			URL:         r.URL,
			Title:       r.Title,
			ReportPath:  r.Name,
			ProcessedAt: r.AnalysisDate,
		}, true)
		if added {
			backfilled++
		} else if e, ok := set.entries[Normalize(r.URL)]; ok && e.ReportPath != r.Name {
			duplicates++
		}
	}
	set.mu.Unlock()

	if duplicates > 0 {
		slog.Info("reports share a url with an earlier report", "count", duplicates)
	}
	slog.Debug("ledger loaded", "entries", set.Len(), "backfilled", backfilled)
	return set
}

// Persist writes the dirty entries to the index.
func Persist(ctx context.Context, idx Index, set *Set) error {
	dirty := set.Dirty()
	if len(dirty) == 0 {
		return nil
	}
	if err := idx.UpsertProcessed(ctx, dirty); err != nil {
		return fmt.Errorf("persisting ledger: %w", err)
	}
	set.clearDirty()
	return nil
}

// Rebuild replaces the index with the reports found in reportsDir and
// returns the number of entries written. Unlike Load, an unreadable
// directory is an error.
func Rebuild(ctx context.Context, idx Index, reportsDir string) (int, error) {
	reports, err := report.ScanDir(reportsDir)
	if err != nil {
		return 0, err
	}

	set := NewSet()
	for _, r := range reports {
		set.add(models.ProcessedArticle{
			URL:         r.URL,
			Title:       r.Title,
			ReportPath:  r.Name,
			ProcessedAt: r.AnalysisDate,
		}, false)
	}

	entries := set.Entries()
	if err := idx.ReplaceProcessed(ctx, entries); err != nil {
		return 0, fmt.Errorf("rebuilding ledger: %w", err)
	}
	return len(entries), nil
}
