// Package export bundles analysis reports into a Word document digest.
package export

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gingfrederik/docx"

	"github.com/hoanghai1803/minernews/internal/report"
)

// ErrNoReports is returned when no report falls inside the requested window.
var ErrNoReports = errors.New("no reports to export")

const separator = "--------------------------------------------------"

// Digest writes every report in reportsDir analyzed at or after since to a
// .docx file at outPath, oldest first. A zero since includes all reports.
// It returns the number of reports included.
func Digest(reportsDir string, since time.Time, outPath string) (int, error) {
	reports, err := report.ScanDir(reportsDir)
	if err != nil {
		return 0, err
	}

	var selected []*report.Report
	for _, r := range reports {
		if !since.IsZero() && r.AnalysisDate.Before(since) {
			continue
		}
		selected = append(selected, r)
	}
	if len(selected) == 0 {
		return 0, ErrNoReports
	}

	f := docx.NewFile()

	run := f.AddParagraph().AddText("Bitcoin Mining News Digest")
	run.Size(20)
	run = f.AddParagraph().AddText(digestSubtitle(selected))
	run.Size(10)
	run.Color("808080")
	f.AddParagraph() // Spacer

	for _, r := range selected {
		run = f.AddParagraph().AddText(r.Title)
		run.Size(16)

		meta := fmt.Sprintf("Analyzed: %s | Model: %s | %d min read",
			r.AnalysisDate.UTC().Format("2006-01-02 15:04 MST"), r.Model, report.ReadingMinutes(r.Body))
		run = f.AddParagraph().AddText(meta)
		run.Size(10)
		run.Color("808080")

		run = f.AddParagraph().AddText(r.URL)
		run.Size(10)
		run.Color("0000FF")

		for _, para := range paragraphs(r.Body) {
			f.AddParagraph().AddText(para)
		}
		f.AddParagraph().AddText(separator)
	}

	if dir := filepath.Dir(outPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("creating export directory %q: %w", dir, err)
		}
	}
	if err := f.Save(outPath); err != nil {
		return 0, fmt.Errorf("saving digest %q: %w", outPath, err)
	}

	slog.Info("digest written", "path", outPath, "reports", len(selected))
	return len(selected), nil
}

func digestSubtitle(reports []*report.Report) string {
	first := reports[0].AnalysisDate.UTC().Format("2006-01-02")
	last := reports[len(reports)-1].AnalysisDate.UTC().Format("2006-01-02")
	if first == last {
		return fmt.Sprintf("%d reports, %s", len(reports), first)
	}
	return fmt.Sprintf("%d reports, %s to %s", len(reports), first, last)
}

// paragraphs splits markdown on blank lines and strips the heading and
// emphasis markers Word would show literally.
func paragraphs(body string) []string {
	var out []string
	for _, block := range strings.Split(body, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		lines := strings.Split(block, "\n")
		for i, line := range lines {
			line = strings.TrimLeft(strings.TrimSpace(line), "#")
			line = strings.ReplaceAll(line, "**", "")
			lines[i] = strings.TrimSpace(line)
		}
		out = append(out, strings.Join(lines, " "))
	}
	return out
}
