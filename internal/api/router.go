// Package api wires the HTTP surface of the service: router, middleware,
// and handlers.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/kiranshivaraju/jobpilot/internal/api/middleware"
	"github.com/kiranshivaraju/jobpilot/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	MetricsHandler http.Handler

	HealthHandler       http.HandlerFunc
	TriggerCycleHandler http.HandlerFunc
	CycleStatusHandler  http.HandlerFunc

	ListInstructionsHandler      http.HandlerFunc
	ActivateInstructionHandler   http.HandlerFunc
	DeactivateInstructionHandler http.HandlerFunc

	ListChangesHandler   http.HandlerFunc
	GetChangeHandler     http.HandlerFunc
	ProposeChangeHandler http.HandlerFunc
	ApproveChangeHandler http.HandlerFunc
	RejectChangeHandler  http.HandlerFunc
	CreateKeyHandler     http.HandlerFunc
	ListKeysHandler      http.HandlerFunc
	RevokeKeyHandler     http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public endpoints
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Post("/api/v1/cycles", orNotImplemented(deps.TriggerCycleHandler))
		r.Get("/api/v1/cycles/status", orNotImplemented(deps.CycleStatusHandler))

		r.Get("/api/v1/instructions", orNotImplemented(deps.ListInstructionsHandler))
		r.Post("/api/v1/instructions/{instructionID}/activate", orNotImplemented(deps.ActivateInstructionHandler))
		r.Post("/api/v1/instructions/{instructionID}/deactivate", orNotImplemented(deps.DeactivateInstructionHandler))

		r.Get("/api/v1/changes", orNotImplemented(deps.ListChangesHandler))
		r.Post("/api/v1/changes", orNotImplemented(deps.ProposeChangeHandler))
		r.Get("/api/v1/changes/{changeID}", orNotImplemented(deps.GetChangeHandler))
		r.Post("/api/v1/changes/{changeID}/approve", orNotImplemented(deps.ApproveChangeHandler))
		r.Post("/api/v1/changes/{changeID}/reject", orNotImplemented(deps.RejectChangeHandler))

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope("admin"))

			r.Post("/api/v1/admin/keys", orNotImplemented(deps.CreateKeyHandler))
			r.Get("/api/v1/admin/keys", orNotImplemented(deps.ListKeysHandler))
			r.Delete("/api/v1/admin/keys/{keyID}", orNotImplemented(deps.RevokeKeyHandler))
		})
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
