package feeds

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hoanghai1803/minernews/internal/models"
)

const rssTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>%s</title>
  <link>https://example.com</link>
  <description>test feed</description>
  %s
</channel>
</rss>`

func rssItem(title, link string, published time.Time) string {
	return fmt.Sprintf(`<item><title>%s</title><link>%s</link><description>about %s</description><pubDate>%s</pubDate></item>`,
		title, link, title, published.Format(time.RFC1123Z))
}

func newTestFetcher() *Fetcher {
	f := NewFetcher()
	f.delay = 0
	return f
}

func TestFetchAll(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)

	mux := http.NewServeMux()
	mux.HandleFunc("/a.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprintf(w, rssTemplate, "Feed A",
			rssItem("Newer A", "https://news.example.com/newer", now.Add(-1*time.Hour))+
				rssItem("Shared story", "https://news.example.com/shared", now.Add(-3*time.Hour)))
	})
	mux.HandleFunc("/b.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprintf(w, rssTemplate, "Feed B",
			rssItem("Shared story again", "https://news.example.com/shared/", now.Add(-2*time.Hour))+
				rssItem("Oldest B", "https://news.example.com/oldest", now.Add(-5*time.Hour)))
	})
	mux.HandleFunc("/broken.xml", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	sources := []models.FeedSource{
		{ID: 1, Name: "A", FeedURL: srv.URL + "/a.xml"},
		{ID: 2, Name: "B", FeedURL: srv.URL + "/b.xml"},
		{ID: 3, Name: "Broken", FeedURL: srv.URL + "/broken.xml"},
	}

	result, err := newTestFetcher().FetchAll(context.Background(), sources, FetchOptions{LookbackDays: 3})
	if err != nil {
		t.Fatalf("FetchAll() error: %v", err)
	}

	if len(result.Failed) != 1 || result.Failed[0].Source != "Broken" {
		t.Errorf("Failed = %+v, want only Broken", result.Failed)
	}

	var urls []string
	for _, a := range result.Articles {
		urls = append(urls, a.URL)
	}
	want := []string{
		"https://news.example.com/oldest",
		"https://news.example.com/shared",
		"https://news.example.com/newer",
	}
	if len(urls) != len(want) {
		t.Fatalf("got URLs %v, want %v", urls, want)
	}
	for i := range want {
		if urls[i] != want[i] {
			t.Errorf("urls[%d] = %q, want %q", i, urls[i], want[i])
		}
	}
}

func TestFetchAll_AllFailedIsSourceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	sources := []models.FeedSource{
		{Name: "X", FeedURL: srv.URL + "/x.xml"},
		{Name: "Y", FeedURL: srv.URL + "/y.xml"},
	}

	_, err := newTestFetcher().FetchAll(context.Background(), sources, FetchOptions{})
	var srcErr *SourceError
	if !errors.As(err, &srcErr) {
		t.Fatalf("error = %v, want *SourceError", err)
	}
	if len(srcErr.Failed) != 2 {
		t.Errorf("Failed = %d, want 2", len(srcErr.Failed))
	}
}

func TestFetchAll_NoSources(t *testing.T) {
	_, err := newTestFetcher().FetchAll(context.Background(), nil, FetchOptions{})
	var srcErr *SourceError
	if !errors.As(err, &srcErr) {
		t.Fatalf("error = %v, want *SourceError", err)
	}
}

func TestWaitForRateLimit_SpacesRequests(t *testing.T) {
	f := NewFetcher()
	f.delay = 50 * time.Millisecond
	ctx := context.Background()

	start := time.Now()
	for range 3 {
		if err := f.waitForRateLimit(ctx, "example.com"); err != nil {
			t.Fatalf("waitForRateLimit() error: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Errorf("three requests took %v, want at least 100ms", elapsed)
	}

	// Other domains are not delayed.
	start = time.Now()
	if err := f.waitForRateLimit(ctx, "other.example.com"); err != nil {
		t.Fatalf("waitForRateLimit() error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 40*time.Millisecond {
		t.Errorf("first request to a new domain took %v", elapsed)
	}
}

func TestWaitForRateLimit_Canceled(t *testing.T) {
	f := NewFetcher()
	f.delay = time.Hour
	_ = f.waitForRateLimit(context.Background(), "example.com")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := f.waitForRateLimit(ctx, "example.com"); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestDedupeAndSort(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	in := []models.Article{
		{Title: "undated b", URL: "https://x.com/b"},
		{Title: "late", URL: "https://x.com/late", PublishedAt: &t2},
		{Title: "undated a", URL: "https://x.com/a"},
		{Title: "early", URL: "https://x.com/early", PublishedAt: &t1},
		{Title: "dup", URL: "HTTPS://X.COM/early#frag", PublishedAt: &t2},
	}

	got := dedupeAndSort(in)
	wantTitles := []string{"early", "late", "undated a", "undated b"}
	if len(got) != len(wantTitles) {
		t.Fatalf("got %d articles, want %d", len(got), len(wantTitles))
	}
	for i, w := range wantTitles {
		if got[i].Title != w {
			t.Errorf("got[%d] = %q, want %q", i, got[i].Title, w)
		}
	}
}
