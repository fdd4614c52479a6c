package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hoanghai1803/minernews/internal/models"
)

// RequesterConfig controls timeouts, retries and rate limiting for model calls.
type RequesterConfig struct {
	Timeout           time.Duration // per attempt
	MaxRetries        int           // retries after the first attempt, Transient errors only
	Backoff           time.Duration // base delay, doubled on each retry
	RequestsPerMinute int           // 0 disables rate limiting
}

// RequesterOption customizes a Requester.
type RequesterOption func(*Requester)

// WithClock sets the clock used to stamp AnalysisResult.GeneratedAt.
func WithClock(now func() time.Time) RequesterOption {
	return func(r *Requester) { r.now = now }
}

// WithSleep replaces the backoff sleep. The function must return early with
// ctx.Err() when ctx is done.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) RequesterOption {
	return func(r *Requester) { r.sleep = sleep }
}

// Requester wraps an AIProvider with per-call timeouts, a shared rate limit
// and bounded retries with exponential backoff. It is safe for concurrent use.
type Requester struct {
	provider   AIProvider
	limiter    *rate.Limiter
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewRequester creates a Requester for the given provider.
func NewRequester(provider AIProvider, cfg RequesterConfig, opts ...RequesterOption) *Requester {
	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Limit(float64(cfg.RequestsPerMinute) / 60.0)
	}
	r := &Requester{
		provider:   provider,
		limiter:    rate.NewLimiter(limit, 1),
		timeout:    cfg.Timeout,
		maxRetries: max(cfg.MaxRetries, 0),
		backoff:    cfg.Backoff,
		now:        time.Now,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Model returns the identifier of the underlying model.
func (r *Requester) Model() string { return r.provider.Model() }

// Analyze requests an analysis of the article. Transient failures are retried
// up to the configured bound. Permanent failures, including a blank model
// response, are returned immediately as *RequestError.
func (r *Requester) Analyze(ctx context.Context, article models.Article) (*models.AnalysisResult, error) {
	if err := article.Validate(); err != nil {
		return nil, permanentErr(err)
	}

	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			delay := r.backoff * time.Duration(1<<(attempt-1))
			slog.Warn("retrying analysis request",
				"url", article.URL, "attempt", attempt+1, "delay", delay, "error", lastErr)
			if err := r.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		if err := r.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		body, err := r.attempt(ctx, article)
		if err == nil {
			return &models.AnalysisResult{
				Article:     article,
				Model:       r.provider.Model(),
				GeneratedAt: r.now().UTC(),
				Body:        body,
			}, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !IsTransient(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("giving up after %d attempts: %w", r.maxRetries+1, lastErr)
}

func (r *Requester) attempt(ctx context.Context, article models.Article) (string, error) {
	callCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	body, err := r.provider.Analyze(callCtx, article)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return "", transientErr(err)
		}
		return "", classify(err)
	}
	if strings.TrimSpace(body) == "" {
		return "", permanentErr(errors.New("empty analysis body"))
	}
	return body, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
