package feeds

import (
	"html"
	"log/slog"
	"regexp"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/mmcdole/gofeed"

	"github.com/hoanghai1803/minernews/internal/models"
)

var (
	htmlTagPattern = regexp.MustCompile("<[^>]*>")
	spaceRun       = regexp.MustCompile(`\s+`)
)

// converter turns feed item HTML content into markdown for the prompt.
var converter = md.NewConverter("", true, nil)

// parseFeedItems converts gofeed items into candidate articles, applying the
// lookback window, keyword filter and per-feed cap. Items with nil
// PublishedParsed pass the lookback filter. Items with empty Title or Link
// are skipped.
func parseFeedItems(source models.FeedSource, feed *gofeed.Feed, opts FetchOptions, now time.Time) []models.Article {
	var cutoff time.Time
	if opts.LookbackDays > 0 {
		cutoff = now.AddDate(0, 0, -opts.LookbackDays)
	}

	var articles []models.Article
	for _, item := range feed.Items {
		if opts.MaxPerFeed > 0 && len(articles) >= opts.MaxPerFeed {
			break
		}

		title := strings.TrimSpace(item.Title)
		link := strings.TrimSpace(item.Link)
		if title == "" || link == "" {
			continue
		}

		published := item.PublishedParsed
		if published == nil {
			published = item.UpdatedParsed
		}
		if published != nil && !cutoff.IsZero() && published.Before(cutoff) {
			continue
		}

		summary := stripHTML(item.Description)
		if !matchesKeywords(opts.Keywords, title, summary) {
			continue
		}

		var publishedAt *time.Time
		if published != nil {
			t := published.UTC()
			publishedAt = &t
		}

		articles = append(articles, models.Article{
			Title:       title,
			URL:         link,
			Source:      source.Name,
			PublishedAt: publishedAt,
			Summary:     summary,
			Body:        contentToMarkdown(item.Content),
		})
	}

	return articles
}

// matchesKeywords reports whether any keyword occurs in the title or summary,
// ignoring case. An empty keyword list matches everything.
func matchesKeywords(keywords []string, title, summary string) bool {
	if len(keywords) == 0 {
		return true
	}
	haystack := strings.ToLower(title + " " + summary)
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}

// contentToMarkdown converts an item's HTML content into markdown, truncated
// to maxWords. Conversion failures fall back to stripped text.
func contentToMarkdown(content string) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	out, err := converter.ConvertString(content)
	if err != nil {
		slog.Debug("html to markdown conversion failed", "error", err)
		out = stripHTML(content)
	}
	return truncateWords(strings.TrimSpace(out), maxWords)
}

// stripHTML removes HTML tags from s, unescapes HTML entities and collapses
// whitespace.
func stripHTML(s string) string {
	clean := htmlTagPattern.ReplaceAllString(s, " ")
	clean = html.UnescapeString(clean)
	return strings.TrimSpace(spaceRun.ReplaceAllString(clean, " "))
}
