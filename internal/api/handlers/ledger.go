package handlers

import (
	"net/http"
	"time"

	"github.com/hoanghai1803/minernews/internal/ledger"
	"github.com/hoanghai1803/minernews/internal/storage"
)

type ledgerStatus struct {
	URL         string     `json:"url"`
	Seen        bool       `json:"seen"`
	Title       string     `json:"title,omitempty"`
	ReportPath  string     `json:"report_path,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// CheckLedger handles GET /api/ledger?url=U. It reports whether a report
// exists for U, using the same rules as a processing run.
func CheckLedger(store *storage.Store, reportsDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		url := r.URL.Query().Get("url")
		if ledger.Normalize(url) == "" {
			writeError(w, http.StatusBadRequest, "Missing url parameter")
			return
		}

		set := ledger.Load(r.Context(), store, reportsDir)
		status := ledgerStatus{URL: url}
		if e, ok := set.Get(url); ok {
			processed := e.ProcessedAt
			status.Seen = true
			status.Title = e.Title
			status.ReportPath = e.ReportPath
			status.ProcessedAt = &processed
		}

		writeJSON(w, http.StatusOK, status)
	}
}
