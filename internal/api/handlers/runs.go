package handlers

import (
	"log/slog"
	"net/http"

	"github.com/hoanghai1803/minernews/internal/storage"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 200
)

// GetRuns handles GET /api/runs?limit=N. It returns the most recent runs.
func GetRuns(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := parseLimit(r, defaultRunsLimit, maxRunsLimit)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		runs, err := store.GetRecentRuns(r.Context(), limit)
		if err != nil {
			slog.Error("failed to get runs", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to get runs")
			return
		}

		writeJSON(w, http.StatusOK, runs)
	}
}
