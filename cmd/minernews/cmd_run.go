package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hoanghai1803/minernews/internal/ai"
	"github.com/hoanghai1803/minernews/internal/config"
	"github.com/hoanghai1803/minernews/internal/feeds"
	"github.com/hoanghai1803/minernews/internal/ledger"
	"github.com/hoanghai1803/minernews/internal/pipeline"
	"github.com/hoanghai1803/minernews/internal/report"
	"github.com/hoanghai1803/minernews/internal/storage"
)

var runFlags struct {
	articles string
	dryRun   bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one processing pass over the news feeds",
	Args:  cobra.NoArgs,
	RunE:  runPass,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.articles, "articles", "", "YAML article list to process instead of the feeds")
	f.BoolVar(&runFlags.dryRun, "dry-run", false, "list the articles that would be processed without calling the AI")
}

func runPass(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A broken ledger database must not block the pass: the report
	// directory scan still prevents duplicates.
	var (
		index   ledger.Index
		runs    pipeline.RunRecorder
		sources pipeline.SourceLister = pipeline.StaticSources(storage.DefaultSources())
	)
	store, err := openStore(ctx, cfg)
	if err != nil {
		slog.Warn("ledger database unavailable, continuing without it",
			"path", cfg.Run.LedgerPath, "error", err)
	} else {
		defer store.Close()
		index, runs, sources = store, store, store
	}

	writer, err := report.NewWriter(cfg.Reports.Directory, cfg.Reports.SlugMaxLength)
	if err != nil {
		return err
	}

	clock := pipeline.NewClock(time.Now)
	fetcher := feeds.NewFetcher()

	var source pipeline.Source
	if runFlags.articles != "" {
		source = &pipeline.ListSource{Path: runFlags.articles}
	} else {
		source = &pipeline.FeedSource{
			Sources: sources,
			Fetcher: fetcher,
			Options: feeds.FetchOptions{
				MaxPerFeed:   cfg.Feeds.MaxArticlesPerFeed,
				LookbackDays: cfg.Feeds.LookbackDays,
				Keywords:     cfg.Feeds.Keywords,
			},
		}
	}

	dcfg := pipeline.Config{
		RunID:            uuid.NewString(),
		Source:           source,
		Writer:           writer,
		Ledger:           ledger.Load(ctx, index, cfg.Reports.Directory),
		Index:            index,
		Runs:             runs,
		Clock:            clock,
		Concurrency:      cfg.Run.Concurrency,
		MaxArticles:      cfg.Run.MaxArticles,
		MaxWriteFailures: cfg.Reports.MaxConsecutiveWriteFailures,
		DryRun:           runFlags.dryRun,
	}
	if cfg.Feeds.ExtractFullText {
		dcfg.Extractor = fetcher
	}

	requester, err := newRequester(ctx, cfg, clock)
	if err != nil {
		return err
	}
	if requester != nil {
		dcfg.Analyzer = requester
	}

	summary, runErr := pipeline.NewDriver(dcfg).Run(ctx)
	summary.Print(cmd.OutOrStdout())

	if summary.ExitCode() != 0 {
		return fmt.Errorf("run %s failed: %w", summary.RunID, runErr)
	}
	return nil
}

// newRequester builds the analysis client. It returns nil without an error
// when no API key is configured, which makes the pass a skipped run.
func newRequester(ctx context.Context, cfg *config.Config, clock *pipeline.Clock) (*ai.Requester, error) {
	provider, err := ai.NewProvider(ctx, ai.ProviderConfig{
		Provider: cfg.AI.Provider,
		APIKey:   cfg.AI.APIKey,
		Model:    cfg.AI.Model,
		BaseURL:  cfg.AI.BaseURL,
		Timeout:  cfg.AI.Timeout(),
	})
	if errors.Is(err, ai.ErrMissingCredentials) {
		slog.Warn("no AI API key configured, articles will be skipped", "provider", cfg.AI.Provider)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("creating AI provider: %w", err)
	}

	slog.Info("AI provider configured", "provider", cfg.AI.Provider, "model", provider.Model())
	return ai.NewRequester(provider, ai.RequesterConfig{
		Timeout:           cfg.AI.Timeout(),
		MaxRetries:        cfg.AI.MaxRetries,
		Backoff:           cfg.AI.Backoff(),
		RequestsPerMinute: cfg.AI.RequestsPerMinute,
	}, ai.WithClock(clock.Now)), nil
}
