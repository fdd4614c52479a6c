package feeds

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"github.com/hoanghai1803/minernews/internal/ledger"
	"github.com/hoanghai1803/minernews/internal/models"
)

const (
	httpTimeout    = 30 * time.Second
	maxConcurrent  = 10
	rateLimitDelay = 1 * time.Second
	maxWords       = 5000
)

// FetchOptions controls how feeds are fetched and filtered.
type FetchOptions struct {
	// MaxPerFeed caps the number of items taken from each feed. 0 means no cap.
	MaxPerFeed int

	// LookbackDays drops items published more than N days ago. Undated items
	// are always kept. 0 disables the filter.
	LookbackDays int

	// Keywords keeps only items whose title or summary contains at least one
	// keyword, case-insensitively. An empty list keeps everything.
	Keywords []string
}

// FailedFeed records a feed that could not be fetched.
type FailedFeed struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// FetchResult contains the candidate articles and any feed failures.
type FetchResult struct {
	Articles []models.Article
	Failed   []FailedFeed
}

// SourceError means no article list could be obtained at all. It is fatal
// for the run.
type SourceError struct {
	Failed []FailedFeed
	Err    error
}

func (e *SourceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("article source unavailable: %v", e.Err)
	}
	return fmt.Sprintf("article source unavailable: all %d feeds failed", len(e.Failed))
}

func (e *SourceError) Unwrap() error { return e.Err }

// Fetcher handles RSS feed fetching with per-domain rate limiting and
// bounded concurrency.
type Fetcher struct {
	client      *http.Client
	rateLimiter map[string]time.Time // per-domain last request time
	mu          sync.Mutex           // protects rateLimiter
	delay       time.Duration
}

// NewFetcher creates a Fetcher with a 30-second timeout HTTP client that
// sends browser-like headers.
func NewFetcher() *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: httpTimeout,
			Transport: &userAgentTransport{
				base: http.DefaultTransport,
			},
		},
		rateLimiter: make(map[string]time.Time),
		delay:       rateLimitDelay,
	}
}

// userAgentTransport wraps an http.RoundTripper to inject a custom User-Agent
// header on every request.
type userAgentTransport struct {
	base http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	// Some news sites reject non-browser agents.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "application/rss+xml,application/atom+xml,application/xml;q=0.9,text/html;q=0.8,*/*;q=0.7")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	return t.base.RoundTrip(req)
}

// FetchAll fetches all sources concurrently with at most 10 goroutines.
// Individual failures are collected in FetchResult.Failed. When every source
// fails, or there are no sources, a *SourceError is returned.
//
// The returned articles are deduplicated by URL and sorted oldest first,
// with undated items last.
func (f *Fetcher) FetchAll(ctx context.Context, sources []models.FeedSource, opts FetchOptions) (*FetchResult, error) {
	if len(sources) == 0 {
		return nil, &SourceError{Err: fmt.Errorf("no active feed sources")}
	}

	var (
		result FetchResult
		mu     sync.Mutex
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)

	for _, src := range sources {
		g.Go(func() error {
			articles, err := f.fetchSingleFeed(gctx, src, opts)
			if err != nil {
				slog.Warn("failed to fetch feed",
					"source", src.Name,
					"url", src.FeedURL,
					"error", err,
				)

				mu.Lock()
				result.Failed = append(result.Failed, FailedFeed{
					Source: src.Name,
					Error:  err.Error(),
				})
				mu.Unlock()

				return nil // skip failures, don't fail the batch
			}

			mu.Lock()
			result.Articles = append(result.Articles, articles...)
			mu.Unlock()

			slog.Info("fetched feed",
				"source", src.Name,
				"items", len(articles),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetching feeds: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(result.Failed) == len(sources) {
		return nil, &SourceError{Failed: result.Failed}
	}

	result.Articles = dedupeAndSort(result.Articles)
	return &result, nil
}

// fetchSingleFeed retrieves and parses a feed from a single source.
func (f *Fetcher) fetchSingleFeed(ctx context.Context, source models.FeedSource, opts FetchOptions) ([]models.Article, error) {
	domain := extractDomain(source.FeedURL)
	if err := f.waitForRateLimit(ctx, domain); err != nil {
		return nil, err
	}

	fp := gofeed.NewParser()
	fp.Client = f.client

	feed, err := fp.ParseURLWithContext(source.FeedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parsing feed %q: %w", source.FeedURL, err)
	}

	return parseFeedItems(source, feed, opts, time.Now()), nil
}

// ExtractBody fetches the full article text from the given URL using
// go-readability. The returned text is truncated to 5000 words.
func (f *Fetcher) ExtractBody(ctx context.Context, articleURL string) (string, error) {
	domain := extractDomain(articleURL)
	if err := f.waitForRateLimit(ctx, domain); err != nil {
		return "", err
	}

	text, err := extractFullText(ctx, f.client, articleURL)
	if err != nil {
		return "", fmt.Errorf("extracting article from %q: %w", articleURL, err)
	}

	return truncateWords(text, maxWords), nil
}

// waitForRateLimit enforces a minimum delay between requests to the same
// domain. It blocks until the delay has elapsed or ctx is done.
func (f *Fetcher) waitForRateLimit(ctx context.Context, domain string) error {
	f.mu.Lock()
	var wait time.Duration
	next := time.Now()
	if lastReq, ok := f.rateLimiter[domain]; ok {
		if earliest := lastReq.Add(f.delay); earliest.After(next) {
			wait = earliest.Sub(next)
			next = earliest
		}
	}
	// Reserve the slot before sleeping so concurrent callers queue up.
	f.rateLimiter[domain] = next
	f.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// dedupeAndSort orders articles by publication date ascending, undated last,
// then by URL, and collapses duplicate URLs keeping the earliest entry.
func dedupeAndSort(articles []models.Article) []models.Article {
	sorted := slices.Clone(articles)
	sort.SliceStable(sorted, func(i, j int) bool {
		pi, pj := sorted[i].PublishedAt, sorted[j].PublishedAt
		switch {
		case pi != nil && pj != nil && !pi.Equal(*pj):
			return pi.Before(*pj)
		case pi != nil && pj == nil:
			return true
		case pi == nil && pj != nil:
			return false
		}
		return sorted[i].URL < sorted[j].URL
	})

	seen := make(map[string]bool, len(sorted))
	out := make([]models.Article, 0, len(sorted))
	for _, a := range sorted {
		key := ledger.Normalize(a.URL)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, a)
	}
	return out
}

// extractDomain parses a URL and returns its hostname. If parsing fails, it
// returns the raw URL as a fallback key.
func extractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}
