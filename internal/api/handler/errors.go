// Package handler implements the HTTP endpoints of the boundary API.
package handler

import (
	"errors"
	"net/http"

	"github.com/kiranshivaraju/jobpilot/internal/api/response"
	"github.com/kiranshivaraju/jobpilot/internal/store"
)

// respondStoreError maps store errors to HTTP responses.
func respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Resource not found", nil)
	case errors.Is(err, store.ErrDuplicateKey):
		response.Error(w, http.StatusConflict, "DUPLICATE", "Resource already exists", nil)
	default:
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
	}
}
