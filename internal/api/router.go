package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/skyanchor/skyanchor/internal/api/middleware"
)

// Dependencies holds all handler and middleware dependencies for the
// backend router.
type Dependencies struct {
	RateLimit *mw.RateLimit

	HealthHandler  http.HandlerFunc
	SolveHandler   http.HandlerFunc
	HistoryHandler http.HandlerFunc
}

// NewRouter builds the chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	r.Get("/api/v1/health", deps.HealthHandler)

	r.Group(func(r chi.Router) {
		r.Use(mw.Identity)

		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimit.Limit)
			r.Post("/api/v1/positioning/solve", deps.SolveHandler)
		})

		r.Get("/api/v1/positioning/history", deps.HistoryHandler)
	})

	return r
}
