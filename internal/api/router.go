package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hoanghai1803/minernews/internal/api/handlers"
	"github.com/hoanghai1803/minernews/internal/storage"
)

// NewRouter creates the read-mostly HTTP API over the reports directory,
// the run history and the feed sources.
func NewRouter(store *storage.Store, reportsDir string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(RequestLogger)
	r.Use(Recovery)
	r.Use(CORS)

	r.Route("/api", func(api chi.Router) {
		api.Get("/reports", handlers.ListReports(reportsDir))
		api.Get("/reports/{name}", handlers.GetReport(reportsDir))

		api.Get("/runs", handlers.GetRuns(store))
		api.Get("/ledger", handlers.CheckLedger(store, reportsDir))

		api.Get("/sources", handlers.GetSources(store))
		api.Put("/sources/{id}", handlers.ToggleSource(store))
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	return r
}
