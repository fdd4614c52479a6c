package feeds

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hoanghai1803/minernews/internal/models"
)

// articleList is the on-disk shape of a static article list:
//
//	articles:
//	  - title: Bitcoin Difficulty Hits Another All-Time High
//	    url: https://example.com/x
//	    published: 2025-09-20T12:00:00Z
type articleList struct {
	Articles []models.Article `yaml:"articles"`
}

// LoadArticleList reads a YAML article list. A missing or unparsable file is
// a *SourceError. Entries that fail validation are logged and dropped.
func LoadArticleList(path string) ([]models.Article, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &SourceError{Err: fmt.Errorf("reading article list: %w", err)}
	}

	var list articleList
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, &SourceError{Err: fmt.Errorf("parsing article list %s: %w", path, err)}
	}

	articles := make([]models.Article, 0, len(list.Articles))
	for i, a := range list.Articles {
		a.Title = strings.TrimSpace(a.Title)
		a.URL = strings.TrimSpace(a.URL)
		a.Source = strings.TrimSpace(a.Source)
		if err := a.Validate(); err != nil {
			slog.Warn("skipping invalid article list entry", "index", i, "url", a.URL, "error", err)
			continue
		}
		if a.PublishedAt != nil {
			t := a.PublishedAt.UTC()
			a.PublishedAt = &t
		}
		articles = append(articles, a)
	}

	return dedupeAndSort(articles), nil
}
