package feeds

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hoanghai1803/minernews/internal/models"
	"github.com/hoanghai1803/minernews/internal/report"
)

func TestLoadArticleList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "articles.yaml")
	content := `articles:
  - title: Bitcoin Difficulty Hits Another All-Time High
    url: https://example.com/x
    source: Example News
    published: 2025-09-20T19:09:52+02:00
  - title: Miner Reports Q3 Output
    url: https://example.com/y
    body: |
      Full text of the report.
  - title: Missing URL
  - title: Bad scheme
    url: ftp://example.com/z
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	articles, err := LoadArticleList(path)
	if err != nil {
		t.Fatalf("LoadArticleList() error: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("got %d articles, want 2", len(articles))
	}

	first := articles[0]
	if first.URL != "https://example.com/x" || first.Source != "Example News" {
		t.Errorf("first = %+v", first)
	}
	want := time.Date(2025, 9, 20, 17, 9, 52, 0, time.UTC)
	if first.PublishedAt == nil || !first.PublishedAt.Equal(want) || first.PublishedAt.Location() != time.UTC {
		t.Errorf("PublishedAt = %v, want %v", first.PublishedAt, want)
	}

	if !articles[1].HasBody() {
		t.Error("second article should have a body")
	}
}

func TestLoadArticleList_Errors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("articles: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{filepath.Join(dir, "missing.yaml"), bad} {
		_, err := LoadArticleList(path)
		var srcErr *SourceError
		if !errors.As(err, &srcErr) {
			t.Errorf("LoadArticleList(%s) error = %v, want *SourceError", filepath.Base(path), err)
		}
	}
}

func TestLoadArticleList_TrimsFieldsForRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "articles.yaml")
	content := `articles:
  - title: "  Hashprice Slides Again  "
    url: " https://example.com/hashprice "
    source: " Example News "
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	articles, err := LoadArticleList(path)
	if err != nil {
		t.Fatalf("LoadArticleList() error: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("got %d articles, want 1", len(articles))
	}
	a := articles[0]
	if a.Title != "Hashprice Slides Again" || a.URL != "https://example.com/hashprice" || a.Source != "Example News" {
		t.Errorf("article = %+v, want trimmed fields", a)
	}

	data, err := report.Render(&models.AnalysisResult{
		Article:     a,
		Model:       "gemini-2.5-flash",
		GeneratedAt: time.Date(2025, 9, 20, 19, 9, 52, 0, time.UTC),
		Body:        "Hashprice fell.",
	})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	parsed, err := report.Parse(data)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if parsed.Title != a.Title || parsed.URL != a.URL {
		t.Errorf("round trip = %q %q, want %q %q", parsed.Title, parsed.URL, a.Title, a.URL)
	}
}
