package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/kiranshivaraju/jobpilot/internal/api/middleware"
	"github.com/kiranshivaraju/jobpilot/internal/api/response"
	"github.com/kiranshivaraju/jobpilot/internal/store"
	"github.com/kiranshivaraju/jobpilot/pkg/models"
)

const (
	defaultChangeLimit = 20
	maxChangeLimit     = 100
)

// Governor is the instruction-governance surface the handlers depend on.
type Governor interface {
	ProposeChange(ctx context.Context, userID uuid.UUID, agentType, proposed, reason string) (*models.ProposedInstructionChange, error)
	Approve(ctx context.Context, id, userID uuid.UUID, feedback *string) (bool, error)
	Reject(ctx context.Context, id, userID uuid.UUID, feedback string) (bool, error)
}

// NewListChangesHandler returns GET /api/v1/changes with status, agent_type,
// page and limit query filters.
func NewListChangesHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		q := r.URL.Query()
		status := q.Get("status")
		if status != "" && status != models.ChangeStatusPending &&
			status != models.ChangeStatusApproved && status != models.ChangeStatusRejected {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"status must be one of pending, approved, rejected", nil)
			return
		}
		agentType := q.Get("agent_type")
		if agentType != "" && !models.ValidAgentType(agentType) {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"unknown agent_type", nil)
			return
		}

		page, _ := strconv.Atoi(q.Get("page"))
		if page < 1 {
			page = 1
		}
		limit, _ := strconv.Atoi(q.Get("limit"))
		if limit < 1 {
			limit = defaultChangeLimit
		}
		if limit > maxChangeLimit {
			limit = maxChangeLimit
		}

		changes, total, err := st.ListChanges(r.Context(), store.ChangeFilter{
			UserID:    userID,
			AgentType: agentType,
			Status:    status,
			Page:      page,
			Limit:     limit,
		})
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Could not list changes", nil)
			return
		}

		response.Collection(w, changes, response.PaginationMeta{
			Page:    page,
			Limit:   limit,
			Total:   total,
			HasNext: page*limit < total,
		})
	}
}

// NewGetChangeHandler returns GET /api/v1/changes/{changeID}.
func NewGetChangeHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "changeID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "changeID must be a UUID", nil)
			return
		}

		change, err := st.GetChange(r.Context(), id, userID)
		if err != nil {
			respondStoreError(w, err)
			return
		}
		response.JSON(w, change)
	}
}

// NewProposeChangeHandler returns POST /api/v1/changes.
func NewProposeChangeHandler(gov Governor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		var req struct {
			AgentType            string `json:"agent_type"`
			ProposedInstructions string `json:"proposed_instructions"`
			Reason               string `json:"reason"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if !models.ValidAgentType(req.AgentType) {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"agent_type must be one of search, draft, communication, scheduling, controller", nil)
			return
		}
		if strings.TrimSpace(req.ProposedInstructions) == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"proposed_instructions is required", nil)
			return
		}

		change, err := gov.ProposeChange(r.Context(), userID, req.AgentType, req.ProposedInstructions, req.Reason)
		if err != nil {
			response.Error(w, http.StatusUnprocessableEntity, "PROPOSAL_REJECTED", err.Error(), nil)
			return
		}
		response.Created(w, change)
	}
}

// NewApproveChangeHandler returns POST /api/v1/changes/{changeID}/approve.
// Approving a non-pending change answers 409 and changes nothing.
func NewApproveChangeHandler(gov Governor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "changeID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "changeID must be a UUID", nil)
			return
		}

		var req struct {
			Feedback *string `json:"feedback"`
		}
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
				return
			}
		}

		applied, err := gov.Approve(r.Context(), id, userID, req.Feedback)
		if err != nil {
			respondStoreError(w, err)
			return
		}
		if !applied {
			response.Error(w, http.StatusConflict, "NOT_PENDING",
				"The change is not pending review", nil)
			return
		}
		response.JSON(w, map[string]string{"status": models.ChangeStatusApproved})
	}
}

// NewRejectChangeHandler returns POST /api/v1/changes/{changeID}/reject.
// Feedback is required.
func NewRejectChangeHandler(gov Governor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "changeID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "changeID must be a UUID", nil)
			return
		}

		var req struct {
			Feedback string `json:"feedback"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if strings.TrimSpace(req.Feedback) == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"feedback is required when rejecting", nil)
			return
		}

		rejected, err := gov.Reject(r.Context(), id, userID, req.Feedback)
		if err != nil {
			respondStoreError(w, err)
			return
		}
		if !rejected {
			response.Error(w, http.StatusConflict, "NOT_PENDING",
				"The change is not pending review", nil)
			return
		}
		response.JSON(w, map[string]string{"status": models.ChangeStatusRejected})
	}
}
