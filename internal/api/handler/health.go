package handler

import (
	"net/http"

	"github.com/kiranshivaraju/jobpilot/internal/api/response"
	"github.com/kiranshivaraju/jobpilot/internal/cache"
	"github.com/kiranshivaraju/jobpilot/internal/store"
)

// NewHealthHandler returns GET /api/v1/health. Reports degraded when a
// backing service does not answer.
func NewHealthHandler(st store.Store, ca cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type health struct {
			Status   string `json:"status"`
			Database string `json:"database"`
			Redis    string `json:"redis"`
		}

		h := health{Status: "ok", Database: "ok", Redis: "ok"}
		if err := st.Ping(r.Context()); err != nil {
			h.Status, h.Database = "degraded", "unreachable"
		}
		if err := ca.Ping(r.Context()); err != nil {
			h.Status, h.Redis = "degraded", "unreachable"
		}

		if h.Status != "ok" {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED", "One or more backing services are unreachable", h)
			return
		}
		response.JSON(w, h)
	}
}
