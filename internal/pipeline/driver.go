// Package pipeline runs one processing pass: load candidate articles, drop
// the ones already reported, request an analysis for each remaining article
// and write the reports.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hoanghai1803/minernews/internal/ai"
	"github.com/hoanghai1803/minernews/internal/ledger"
	"github.com/hoanghai1803/minernews/internal/models"
)

// ErrSystemicWrite is returned when report writes keep failing back to back,
// which points at the output directory rather than a single article.
var ErrSystemicWrite = errors.New("repeated report write failures")

// Analyzer produces an analysis for one article.
type Analyzer interface {
	Analyze(ctx context.Context, article models.Article) (*models.AnalysisResult, error)
	Model() string
}

// ReportWriter persists an analysis and returns the path of the new report.
type ReportWriter interface {
	Write(result *models.AnalysisResult) (string, error)
}

// BodyExtractor fetches the full text of an article page.
type BodyExtractor interface {
	ExtractBody(ctx context.Context, url string) (string, error)
}

// RunRecorder stores the audit record of each pass.
type RunRecorder interface {
	CreateRun(ctx context.Context, run *models.Run) error
	FinishRun(ctx context.Context, run *models.Run) error
}

// Config wires the collaborators of a Driver. Analyzer, Index, Runs and
// Extractor are optional.
type Config struct {
	RunID     string
	Source    Source
	Analyzer  Analyzer // nil when no credentials are configured
	Writer    ReportWriter
	Ledger    *ledger.Set
	Index     ledger.Index
	Runs      RunRecorder
	Extractor BodyExtractor
	Clock     *Clock

	Concurrency      int
	MaxArticles      int
	MaxWriteFailures int
	DryRun           bool
}

// Driver sequences a single pass. Create one per pass.
type Driver struct {
	cfg Config

	mu                sync.Mutex // serializes ledger check, write and MarkSeen; guards counters
	summary           Summary
	consecutiveWrites int
	systemic          error
	missingCreds      bool
}

// NewDriver returns a Driver for cfg, filling in defaults.
func NewDriver(cfg Config) *Driver {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.MaxWriteFailures < 1 {
		cfg.MaxWriteFailures = 3
	}
	if cfg.Clock == nil {
		cfg.Clock = NewClock(nil)
	}
	if cfg.Ledger == nil {
		cfg.Ledger = ledger.NewSet()
	}
	return &Driver{cfg: cfg}
}

// Run executes the pass. The returned Summary is always non-nil. A non-nil
// error means the pass failed: the source was unavailable, writes failed
// systemically or ctx was cancelled. Per-article failures are only counted.
func (d *Driver) Run(ctx context.Context) (*Summary, error) {
	d.summary = Summary{RunID: d.cfg.RunID, DryRun: d.cfg.DryRun}
	if d.cfg.Analyzer != nil {
		d.summary.Model = d.cfg.Analyzer.Model()
	}

	run := &models.Run{
		ID:        d.cfg.RunID,
		StartedAt: d.cfg.Clock.Now(),
		Status:    models.RunRunning,
		Model:     d.summary.Model,
	}
	d.recordStart(ctx, run)

	err := d.run(ctx)

	switch {
	case err != nil:
		d.summary.Status = models.RunFailed
		d.summary.Err = err
	case d.cfg.DryRun:
		d.summary.Status = models.RunCompleted
	case d.cfg.Analyzer == nil || d.missingCreds:
		d.summary.Status = models.RunSkipped
	default:
		d.summary.Status = models.RunCompleted
	}

	d.recordFinish(ctx, run)
	d.transition(Idle)

	summary := d.summary
	return &summary, err
}

func (d *Driver) run(ctx context.Context) error {
	d.transition(Loading)
	articles, err := d.cfg.Source.Articles(ctx)
	if err != nil {
		return fmt.Errorf("loading articles: %w", err)
	}
	d.summary.Candidates = len(articles)

	d.transition(Filtering)
	pending := d.filter(articles)
	d.summary.Pending = pending

	if d.cfg.DryRun {
		slog.Info("dry run: nothing will be requested or written", "pending", len(pending))
		return nil
	}
	if len(pending) == 0 {
		slog.Info("no new articles to process", "candidates", len(articles))
		return nil
	}
	if d.cfg.Analyzer == nil {
		slog.Warn("no AI credentials configured, skipping analysis", "pending", len(pending))
		for _, a := range pending {
			d.skipMissingCredentials(a)
		}
		return nil
	}

	err = d.process(ctx, pending)
	d.persistLedger(ctx)
	return err
}

// filter drops invalid and already reported articles, then applies the
// batch bound. Duplicate URLs inside the batch are collapsed.
func (d *Driver) filter(articles []models.Article) []models.Article {
	seen := make(map[string]bool, len(articles))
	var pending []models.Article
	for _, a := range articles {
		if err := a.Validate(); err != nil {
			slog.Warn("skipping article", "url", a.URL, "reason", err)
			d.summary.Invalid++
			d.summary.Skipped++
			continue
		}
		key := ledger.Normalize(a.URL)
		if seen[key] || d.cfg.Ledger.HasSeen(a.URL) {
			slog.Debug("article already reported", "url", a.URL)
			d.summary.AlreadySeen++
			continue
		}
		seen[key] = true

		if d.cfg.MaxArticles > 0 && len(pending) >= d.cfg.MaxArticles {
			d.summary.Deferred++
			continue
		}
		pending = append(pending, a)
	}
	if d.summary.Deferred > 0 {
		slog.Info("batch limit reached, remaining articles deferred to the next run",
			"limit", d.cfg.MaxArticles, "deferred", d.summary.Deferred)
	}
	return pending
}

// process runs the request and write stages over pending with at most
// Concurrency articles in flight.
func (d *Driver) process(ctx context.Context, pending []models.Article) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Concurrency)

	for _, article := range pending {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return d.processOne(gctx, article)
		})
	}

	err := g.Wait()
	if d.systemic != nil {
		return d.systemic
	}
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return fmt.Errorf("run interrupted: %w", ctx.Err())
	}
	return nil
}

func (d *Driver) processOne(ctx context.Context, article models.Article) error {
	if d.stopping() {
		return nil
	}
	if d.credentialsMissing() {
		d.skipMissingCredentials(article)
		return nil
	}
	d.countAttempt()

	if d.cfg.Extractor != nil && !article.HasBody() {
		body, err := d.cfg.Extractor.ExtractBody(ctx, article.URL)
		if err != nil {
			slog.Debug("full text unavailable, using feed content", "url", article.URL, "error", err)
		} else {
			article.Body = body
		}
	}

	d.transitionFor(Requesting, article.URL)
	result, err := d.cfg.Analyzer.Analyze(ctx, article)
	if err != nil {
		d.analysisFailed(ctx, article, err)
		return nil
	}

	d.transitionFor(Writing, article.URL)
	return d.write(article, result)
}

func (d *Driver) write(article models.Article, result *models.AnalysisResult) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cfg.Ledger.HasSeen(article.URL) {
		slog.Info("skipping article", "url", article.URL, "reason", "reported by another worker")
		d.summary.AlreadySeen++
		return nil
	}

	path, err := d.cfg.Writer.Write(result)
	if err != nil {
		d.consecutiveWrites++
		d.summary.WriteFailures++
		d.summary.Skipped++
		slog.Error("skipping article", "url", article.URL, "reason", "write failed", "error", err)

		if d.consecutiveWrites >= d.cfg.MaxWriteFailures {
			d.systemic = fmt.Errorf("%w: %d in a row, last: %v", ErrSystemicWrite, d.consecutiveWrites, err)
			return d.systemic
		}
		return nil
	}

	d.consecutiveWrites = 0
	d.cfg.Ledger.MarkSeen(models.ProcessedArticle{
		URL:         article.URL,
		Title:       article.Title,
		ReportPath:  filepath.Base(path),
		ProcessedAt: result.GeneratedAt,
	})
	d.summary.Written++
	d.summary.Reports = append(d.summary.Reports, path)
	slog.Info("report written", "url", article.URL, "path", path)
	return nil
}

func (d *Driver) analysisFailed(ctx context.Context, article models.Article, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if ctx.Err() != nil {
		d.summary.Skipped++
		d.summary.Interrupted++
		slog.Warn("skipping article", "url", article.URL, "reason", "run interrupted")
		return
	}
	if errors.Is(err, ai.ErrMissingCredentials) {
		d.missingCreds = true
		d.summary.Skipped++
		slog.Warn("skipping article", "url", article.URL, "reason", "missing AI credentials")
		return
	}

	d.summary.AnalysisFailures++
	d.summary.Skipped++
	reason := "analysis failed"
	if ai.IsPermanent(err) {
		reason = "analysis rejected"
	}
	slog.Warn("skipping article", "url", article.URL, "reason", reason, "error", err)
}

func (d *Driver) countAttempt() {
	d.mu.Lock()
	d.summary.Attempted++
	d.mu.Unlock()
}

func (d *Driver) stopping() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.systemic != nil
}

func (d *Driver) credentialsMissing() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.missingCreds
}

// skipMissingCredentials counts an article that is never sent for analysis
// because the provider has no usable API key.
func (d *Driver) skipMissingCredentials(article models.Article) {
	d.mu.Lock()
	d.summary.Skipped++
	d.mu.Unlock()
	slog.Warn("skipping article", "url", article.URL, "reason", "missing AI credentials")
}

func (d *Driver) persistLedger(ctx context.Context) {
	if d.cfg.Index == nil {
		return
	}
	// Persist what was written even when the pass was interrupted.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := ledger.Persist(pctx, d.cfg.Index, d.cfg.Ledger); err != nil {
		slog.Error("failed to persist ledger", "error", err)
	}
}

func (d *Driver) recordStart(ctx context.Context, run *models.Run) {
	if d.cfg.Runs == nil || d.cfg.DryRun || run.ID == "" {
		return
	}
	if err := d.cfg.Runs.CreateRun(ctx, run); err != nil {
		slog.Warn("failed to record run start", "run_id", run.ID, "error", err)
	}
}

func (d *Driver) recordFinish(ctx context.Context, run *models.Run) {
	if d.cfg.Runs == nil || d.cfg.DryRun || run.ID == "" {
		return
	}
	finished := d.cfg.Clock.Now()
	run.FinishedAt = &finished
	run.Status = d.summary.Status
	run.Candidates = d.summary.Candidates
	run.Attempted = d.summary.Attempted
	run.Written = d.summary.Written
	run.Skipped = d.summary.Skipped
	if d.summary.Err != nil {
		run.Error = d.summary.Err.Error()
	}

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := d.cfg.Runs.FinishRun(rctx, run); err != nil {
		slog.Warn("failed to record run result", "run_id", run.ID, "error", err)
	}
}

func (d *Driver) transition(s State) {
	slog.Debug("run state", "run_id", d.cfg.RunID, "state", s.String())
}

func (d *Driver) transitionFor(s State, url string) {
	slog.Debug("run state", "run_id", d.cfg.RunID, "state", s.String(), "url", url)
}
