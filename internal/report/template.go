package report

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/hoanghai1803/minernews/internal/models"
)

// Footer is the attribution line closing every report.
const Footer = "*This report was automatically generated by the Bitcoin Mining News Bot using AI analysis.*"

const reportHeading = "# Bitcoin Mining News Analysis Report"

const analysisHeading = "## AI Analysis"

const reportTemplate = reportHeading + `

## Article Information
- **Title**: {{.Title}}
- **URL**: {{.URL}}
- **Analysis Date**: {{.AnalysisDate}}
- **AI Model**: {{.Model}}

---

` + analysisHeading + `

{{.Body}}

---

` + Footer + "\n"

var tmpl = template.Must(template.New("report").Parse(reportTemplate))

// Header field prefixes, in file order.
const (
	titlePrefix = "- **Title**: "
	urlPrefix   = "- **URL**: "
	datePrefix  = "- **Analysis Date**: "
	modelPrefix = "- **AI Model**: "
)

// ErrNotReport is returned when a file does not have the report layout.
var ErrNotReport = errors.New("not an analysis report")

// Header holds the metadata block of a report.
type Header struct {
	Title        string    `json:"title"`
	URL          string    `json:"url"`
	AnalysisDate time.Time `json:"analysis_date"`
	Model        string    `json:"model"`
}

// Report is a parsed report file.
type Report struct {
	Header
	Name string `json:"name"`
	Path string `json:"-"`
	Body string `json:"-"`
}

type templateData struct {
	Title        string
	URL          string
	AnalysisDate string
	Model        string
	Body         string
}

// Render produces the report document for result.
func Render(result *models.AnalysisResult) ([]byte, error) {
	data := templateData{
		Title:        singleLine(result.Article.Title),
		URL:          singleLine(result.Article.URL),
		AnalysisDate: result.GeneratedAt.UTC().Format(time.RFC3339),
		Model:        singleLine(result.Model),
		Body:         strings.TrimSpace(result.Body),
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("executing report template: %w", err)
	}
	return buf.Bytes(), nil
}

// Parse reads the header and analysis body back out of a rendered report.
func Parse(data []byte) (*Report, error) {
	var (
		r        Report
		seen     int
		inBody   bool
		body     []string
		sawTitle bool
	)

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")

		if inBody {
			body = append(body, line)
			continue
		}

		switch {
		case line == reportHeading:
			sawTitle = true
		case strings.HasPrefix(line, titlePrefix):
			r.Title = strings.TrimPrefix(line, titlePrefix)
			seen++
		case strings.HasPrefix(line, urlPrefix):
			r.URL = strings.TrimPrefix(line, urlPrefix)
			seen++
		case strings.HasPrefix(line, datePrefix):
			ts, err := time.Parse(time.RFC3339, strings.TrimPrefix(line, datePrefix))
			if err != nil {
				return nil, fmt.Errorf("%w: bad analysis date: %v", ErrNotReport, err)
			}
			r.AnalysisDate = ts
			seen++
		case strings.HasPrefix(line, modelPrefix):
			r.Model = strings.TrimPrefix(line, modelPrefix)
			seen++
		case line == analysisHeading:
			inBody = true
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scanning report: %w", err)
	}

	if !sawTitle || seen < 4 {
		return nil, ErrNotReport
	}

	r.Body = extractBody(body)
	return &r, nil
}

// extractBody strips the blank lines around the analysis and the trailing
// separator plus footer.
func extractBody(lines []string) string {
	end := len(lines)
	for i := len(lines) - 1; i >= 0; i-- {
		if lines[i] == Footer {
			end = i
			break
		}
	}
	lines = lines[:end]

	// Drop the "---" separator that precedes the footer.
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) == "" {
			continue
		}
		if lines[i] == "---" {
			lines = lines[:i]
		}
		break
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// singleLine folds line breaks so a header field stays on one line.
func singleLine(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.TrimSpace(s)
}
