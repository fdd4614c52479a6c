package ai

import (
	"fmt"
	"strings"
	"time"

	"github.com/hoanghai1803/minernews/internal/models"
)

const analysisSystemPrompt = `You are an analyst covering the Bitcoin mining industry. Read the news article provided and write an analysis for miners, investors and infrastructure operators. Cover: what happened, why it matters for hashrate, difficulty, hashprice or miner economics, the likely short-term and long-term impact, and any risks or open questions. Be specific about numbers, companies and regions mentioned in the article. Write in Markdown using short sections and bullet points. Do NOT repeat the article title as a heading and do NOT add a closing signature.`

// urlOnlyInstruction replaces the article content when neither a body nor a
// summary is available.
const urlOnlyInstruction = "No article text is available. Base your analysis on the title and URL, and say clearly which points are inferred."

// maxPromptBodyRunes caps the article text embedded in the prompt.
const maxPromptBodyRunes = 24000

// AnalysisPrompt builds the system and user prompts for analysing a single
// article. The body is preferred over the summary when both are present.
func AnalysisPrompt(a models.Article) (systemPrompt string, userPrompt string) {
	systemPrompt = analysisSystemPrompt

	var b strings.Builder
	fmt.Fprintf(&b, "Article Title: %s\n", a.Title)
	fmt.Fprintf(&b, "Article URL: %s\n", a.URL)
	if a.Source != "" {
		fmt.Fprintf(&b, "Source: %s\n", a.Source)
	}
	if a.PublishedAt != nil {
		fmt.Fprintf(&b, "Published: %s\n", a.PublishedAt.UTC().Format(time.RFC3339))
	}

	switch {
	case a.HasBody():
		b.WriteString("\nArticle Content:\n")
		b.WriteString(truncateRunes(a.Body, maxPromptBodyRunes))
	case a.HasSummary():
		b.WriteString("\nArticle Summary:\n")
		b.WriteString(truncateRunes(a.Summary, maxPromptBodyRunes))
	default:
		b.WriteString("\n")
		b.WriteString(urlOnlyInstruction)
	}

	userPrompt = b.String()
	return systemPrompt, userPrompt
}

func truncateRunes(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
