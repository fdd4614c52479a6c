package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hoanghai1803/minernews/internal/feeds"
	"github.com/hoanghai1803/minernews/internal/models"
)

// Source supplies the candidate articles for a pass. An error means there is
// nothing to process and fails the pass.
type Source interface {
	Articles(ctx context.Context) ([]models.Article, error)
}

// SourceLister returns the feeds to poll.
type SourceLister interface {
	GetActiveSources(ctx context.Context) ([]models.FeedSource, error)
}

// StaticSources is a fixed feed list, used when the source table cannot be
// read.
type StaticSources []models.FeedSource

// GetActiveSources returns the active entries.
func (s StaticSources) GetActiveSources(context.Context) ([]models.FeedSource, error) {
	var active []models.FeedSource
	for _, src := range s {
		if src.IsActive {
			active = append(active, src)
		}
	}
	return active, nil
}

// FeedSource polls the active RSS/Atom feeds.
type FeedSource struct {
	Sources SourceLister
	Fetcher *feeds.Fetcher
	Options feeds.FetchOptions
}

// Articles fetches every active feed and returns the merged candidates.
func (s *FeedSource) Articles(ctx context.Context) ([]models.Article, error) {
	sources, err := s.Sources.GetActiveSources(ctx)
	if err != nil {
		return nil, &feeds.SourceError{Err: fmt.Errorf("listing feed sources: %w", err)}
	}

	result, err := s.Fetcher.FetchAll(ctx, sources, s.Options)
	if err != nil {
		return nil, err
	}
	if len(result.Failed) > 0 {
		slog.Warn("some feeds could not be fetched", "failed", len(result.Failed), "total", len(sources))
	}
	return result.Articles, nil
}

// ListSource reads a static YAML article list.
type ListSource struct {
	Path string
}

// Articles loads the list from disk.
func (s *ListSource) Articles(context.Context) ([]models.Article, error) {
	return feeds.LoadArticleList(s.Path)
}
