package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/kiranshivaraju/jobpilot/internal/api/middleware"
	"github.com/kiranshivaraju/jobpilot/internal/api/response"
	"github.com/kiranshivaraju/jobpilot/internal/store"
)

// NewListInstructionsHandler returns GET /api/v1/instructions: every
// instruction set the user has, active or not.
func NewListInstructionsHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		instructions, err := st.ListInstructions(r.Context(), userID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Could not list instructions", nil)
			return
		}
		response.JSON(w, instructions)
	}
}

// NewSetInstructionActiveHandler returns POST /api/v1/instructions/{instructionID}/activate
// or .../deactivate depending on active. Toggling to the current state answers
// 409 and changes nothing.
func NewSetInstructionActiveHandler(st store.Store, active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "instructionID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "instructionID must be a UUID", nil)
			return
		}

		changed, err := st.SetInstructionActive(r.Context(), id, userID, active)
		if err != nil {
			respondStoreError(w, err)
			return
		}
		if !changed {
			response.Error(w, http.StatusConflict, "NO_CHANGE",
				"The instruction is already in the requested state", nil)
			return
		}

		state := "inactive"
		if active {
			state = "active"
		}
		response.JSON(w, map[string]string{"status": state})
	}
}
