package models

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// FeedSource represents a news feed we poll for mining articles.
type FeedSource struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	FeedURL   string    `json:"feed_url"`
	SiteURL   string    `json:"site_url"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Article is a candidate news item handed to the analysis stage. It is
// never modified after the source adapter creates it.
type Article struct {
	Title       string     `json:"title" yaml:"title"`
	URL         string     `json:"url" yaml:"url"`
	Source      string     `json:"source,omitempty" yaml:"source"`
	PublishedAt *time.Time `json:"published_at,omitempty" yaml:"published"`
	Summary     string     `json:"summary,omitempty" yaml:"summary"`
	Body        string     `json:"body,omitempty" yaml:"body"`
}

// HasBody reports whether the article carries its full text.
func (a Article) HasBody() bool {
	return strings.TrimSpace(a.Body) != ""
}

// HasSummary reports whether the article carries a feed summary.
func (a Article) HasSummary() bool {
	return strings.TrimSpace(a.Summary) != ""
}

// Validate checks the required fields. The URL must be an absolute http or
// https URL because it is the deduplication key.
func (a Article) Validate() error {
	if strings.TrimSpace(a.Title) == "" {
		return errors.New("article title is empty")
	}
	if strings.TrimSpace(a.URL) == "" {
		return errors.New("article url is empty")
	}
	u, err := url.Parse(strings.TrimSpace(a.URL))
	if err != nil {
		return fmt.Errorf("article url %q: %w", a.URL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("article url %q: must be an absolute http(s) URL", a.URL)
	}
	return nil
}

// AnalysisResult is the output of one successful analysis call. It is
// written to disk exactly once.
type AnalysisResult struct {
	Article     Article   `json:"article"`
	Model       string    `json:"model"`
	GeneratedAt time.Time `json:"generated_at"`
	Body        string    `json:"body"`
}

// ProcessedArticle is one ledger entry: an article URL and the report that
// was written for it.
type ProcessedArticle struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	ReportPath  string    `json:"report_path"`
	ProcessedAt time.Time `json:"processed_at"`
}
