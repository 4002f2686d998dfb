// Package solverapi exposes the solver service HTTP surface: image upload,
// job status, job info, and a liveness probe.
package solverapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/skyanchor/skyanchor/internal/api/middleware"
)

// Dependencies holds everything the solver router needs.
type Dependencies struct {
	Solver Solver
	// BinPath is reported by the health endpoint.
	BinPath string
	// APIKeyHash enables API-key auth when non-empty.
	APIKeyHash string
}

// NewRouter builds the chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Health stays open for probes.
	r.Get("/health", NewHealthHandler(deps.BinPath))

	r.Group(func(r chi.Router) {
		r.Use(mw.APIKey(deps.APIKeyHash))

		r.Post("/upload", NewUploadHandler(deps.Solver))
		r.Get("/jobs/{jobID}", NewStatusHandler(deps.Solver))
		r.Get("/jobs/{jobID}/info", NewInfoHandler(deps.Solver))
	})

	return r
}
