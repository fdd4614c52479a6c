package handlers

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hoanghai1803/minernews/internal/report"
)

// reportSummary is one entry of GET /api/reports.
type reportSummary struct {
	Name           string    `json:"name"`
	Title          string    `json:"title"`
	URL            string    `json:"url"`
	AnalysisDate   time.Time `json:"analysis_date"`
	Model          string    `json:"model"`
	ReadingMinutes int       `json:"reading_minutes"`
}

// ListReports handles GET /api/reports. Reports are returned newest first.
func ListReports(reportsDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reports, err := report.ScanDir(reportsDir)
		if err != nil {
			slog.Error("failed to scan reports", "dir", reportsDir, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to list reports")
			return
		}

		out := make([]reportSummary, 0, len(reports))
		for i := len(reports) - 1; i >= 0; i-- {
			rep := reports[i]
			out = append(out, reportSummary{
				Name:           rep.Name,
				Title:          rep.Title,
				URL:            rep.URL,
				AnalysisDate:   rep.AnalysisDate,
				Model:          rep.Model,
				ReadingMinutes: report.ReadingMinutes(rep.Body),
			})
		}

		writeJSON(w, http.StatusOK, out)
	}
}

// GetReport handles GET /api/reports/{name}. It serves the raw markdown.
// Only names produced by the report namer are accepted, which also rules
// out path traversal.
func GetReport(reportsDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		if !report.IsReportName(name) {
			writeError(w, http.StatusNotFound, "Report not found")
			return
		}

		data, err := os.ReadFile(filepath.Join(reportsDir, name))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				writeError(w, http.StatusNotFound, "Report not found")
				return
			}
			slog.Error("failed to read report", "name", name, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to read report")
			return
		}

		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
