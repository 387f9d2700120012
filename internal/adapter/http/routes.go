package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Version is reported by GET /api/v1/.
var Version = "0.1.0"

// MountRoutes registers all API routes on the given chi router. mw is
// applied to the /api/v1 group only, so /health and /ws stay outside rate
// limiting and idempotency.
func MountRoutes(r chi.Router, h *Handlers, mw ...func(http.Handler) http.Handler) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw...)

		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"version": Version})
		})

		// Orchestration
		r.Post("/orchestrate", h.Orchestrate)
		r.Post("/orchestrate/batch", h.OrchestrateBatch)
		r.Post("/ingest", h.Ingest)
		r.Post("/actions/validate", h.ValidateActions)

		// Policy profiles
		r.Get("/policies", h.ListPolicyProfiles)
		r.Get("/policies/{name}", h.GetPolicyProfile)

		// Audit trail
		r.Get("/proposals", h.ListProposals)
		r.Get("/proposals/{id}", h.GetProposal)

		// Entity directory used by free-text ingestion
		r.Get("/directory", h.GetDirectory)
		r.Put("/directory/{kind}/{id}", h.PutDirectoryEntity)
		r.Delete("/directory/{kind}/{id}", h.DeleteDirectoryEntity)

		// Generation backend
		r.Get("/models", h.ListModels)
	})
}
