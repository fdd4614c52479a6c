package ai

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hoanghai1803/minernews/internal/models"
)

// scriptedProvider returns the queued results in order, then the last one forever.
type scriptedProvider struct {
	mu      sync.Mutex
	results []scriptedResult
	calls   int
}

type scriptedResult struct {
	body string
	err  error
}

func (p *scriptedProvider) Model() string { return "test-model" }

func (p *scriptedProvider) Analyze(ctx context.Context, _ models.Article) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := min(p.calls, len(p.results)-1)
	p.calls++
	return p.results[i].body, p.results[i].err
}

type sleepRecorder struct {
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func fixedClock() time.Time { return time.Date(2025, 9, 20, 19, 9, 52, 0, time.UTC) }

func newTestRequester(p AIProvider, maxRetries int, rec *sleepRecorder) *Requester {
	return NewRequester(p, RequesterConfig{
		Timeout:    time.Second,
		MaxRetries: maxRetries,
		Backoff:    2 * time.Second,
	}, WithClock(fixedClock), WithSleep(rec.sleep))
}

func TestRequester_Success(t *testing.T) {
	p := &scriptedProvider{results: []scriptedResult{{body: "analysis"}}}
	r := newTestRequester(p, 3, &sleepRecorder{})

	got, err := r.Analyze(context.Background(), testArticle)
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if got.Body != "analysis" || got.Model != "test-model" {
		t.Errorf("result = %+v", got)
	}
	if !got.GeneratedAt.Equal(fixedClock()) {
		t.Errorf("GeneratedAt = %v, want %v", got.GeneratedAt, fixedClock())
	}
	if got.Article.URL != testArticle.URL {
		t.Errorf("Article.URL = %q", got.Article.URL)
	}
}

func TestRequester_RetriesTransientWithBackoff(t *testing.T) {
	transient := statusError(503, "unavailable")
	p := &scriptedProvider{results: []scriptedResult{
		{err: transient},
		{err: transient},
		{body: "finally"},
	}}
	rec := &sleepRecorder{}
	r := newTestRequester(p, 3, rec)

	got, err := r.Analyze(context.Background(), testArticle)
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if got.Body != "finally" {
		t.Errorf("Body = %q", got.Body)
	}
	if p.calls != 3 {
		t.Errorf("calls = %d, want 3", p.calls)
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second}
	if len(rec.delays) != len(want) {
		t.Fatalf("delays = %v, want %v", rec.delays, want)
	}
	for i := range want {
		if rec.delays[i] != want[i] {
			t.Errorf("delay[%d] = %v, want %v", i, rec.delays[i], want[i])
		}
	}
}

func TestRequester_GivesUpAfterMaxRetries(t *testing.T) {
	p := &scriptedProvider{results: []scriptedResult{{err: statusError(429, "slow down")}}}
	r := newTestRequester(p, 2, &sleepRecorder{})

	_, err := r.Analyze(context.Background(), testArticle)
	if !IsTransient(err) {
		t.Fatalf("error = %v, want transient", err)
	}
	if p.calls != 3 {
		t.Errorf("calls = %d, want 3", p.calls)
	}
}

func TestRequester_PermanentNotRetried(t *testing.T) {
	p := &scriptedProvider{results: []scriptedResult{{err: statusError(400, "bad input")}}}
	rec := &sleepRecorder{}
	r := newTestRequester(p, 3, rec)

	_, err := r.Analyze(context.Background(), testArticle)
	if !IsPermanent(err) {
		t.Fatalf("error = %v, want permanent", err)
	}
	if p.calls != 1 {
		t.Errorf("calls = %d, want 1", p.calls)
	}
	if len(rec.delays) != 0 {
		t.Errorf("unexpected backoff sleeps: %v", rec.delays)
	}
}

func TestRequester_BlankBodyIsPermanent(t *testing.T) {
	p := &scriptedProvider{results: []scriptedResult{{body: " \n\t "}}}
	r := newTestRequester(p, 3, &sleepRecorder{})

	_, err := r.Analyze(context.Background(), testArticle)
	if !IsPermanent(err) {
		t.Fatalf("error = %v, want permanent", err)
	}
	if p.calls != 1 {
		t.Errorf("calls = %d, want 1", p.calls)
	}
}

func TestRequester_InvalidArticleIsPermanent(t *testing.T) {
	p := &scriptedProvider{results: []scriptedResult{{body: "x"}}}
	r := newTestRequester(p, 3, &sleepRecorder{})

	_, err := r.Analyze(context.Background(), models.Article{Title: "no url"})
	if !IsPermanent(err) {
		t.Fatalf("error = %v, want permanent", err)
	}
	if p.calls != 0 {
		t.Errorf("provider called %d times for invalid article", p.calls)
	}
}

// slowProvider blocks until its context is done.
type slowProvider struct{}

func (slowProvider) Model() string { return "slow" }

func (slowProvider) Analyze(ctx context.Context, _ models.Article) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestRequester_TimeoutIsTransient(t *testing.T) {
	r := NewRequester(slowProvider{}, RequesterConfig{Timeout: 10 * time.Millisecond},
		WithSleep((&sleepRecorder{}).sleep))

	_, err := r.Analyze(context.Background(), testArticle)
	if !IsTransient(err) {
		t.Fatalf("error = %v, want transient", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want to wrap DeadlineExceeded", err)
	}
}

func TestRequester_ParentCancelStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &scriptedProvider{results: []scriptedResult{{body: "x"}}}
	r := newTestRequester(p, 3, &sleepRecorder{})

	_, err := r.Analyze(ctx, testArticle)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}
