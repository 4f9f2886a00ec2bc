// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/profboard/profboard/internal/adapters/repository"
	"github.com/profboard/profboard/internal/domain/assemble"
	"github.com/profboard/profboard/internal/domain/model"
)

// ModeratorDependencies defines the interface for the moderation workflow.
type ModeratorDependencies interface {
	IsModerator(ctx context.Context, viewerID int64) (bool, error)
	ListSuggestions(ctx context.Context, statuses ...model.SuggestionStatus) ([]model.Suggestion, error)
	GetSuggestion(ctx context.Context, id int64) (model.Suggestion, error)
	CommitSuggestion(ctx context.Context, moderatorID, id int64) error
	ResolveSuggestion(ctx context.Context, moderatorID, id int64, status model.SuggestionStatus) error
}

// ModeratorHandler handles moderator access checks and suggestion review.
type ModeratorHandler struct {
	deps ModeratorDependencies
}

// NewModeratorHandler creates a new moderator handler.
func NewModeratorHandler(deps ModeratorDependencies) *ModeratorHandler {
	return &ModeratorHandler{deps: deps}
}

type accessResponse struct {
	Access bool `json:"access"`
}

// HandleAccess handles GET /moderator requests.
func (h *ModeratorHandler) HandleAccess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	viewer := ViewerFromContext(r.Context())
	if viewer == assemble.AnonymousViewer {
		writeError(w, http.StatusUnauthorized, "unauthorized", ErrUnauthorized)
		return
	}
	access, err := h.deps.IsModerator(r.Context(), viewer)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, accessResponse{Access: access})
}

type suggestionList struct {
	Suggestions []model.Suggestion `json:"suggestions"`
}

// HandleSuggestions handles GET /mod/suggestion requests. Without a status
// filter it lists the review queue: pending and delayed suggestions.
func (h *ModeratorHandler) HandleSuggestions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	if _, ok := h.requireModerator(w, r); !ok {
		return
	}

	statuses := []model.SuggestionStatus{model.SuggestionCheck, model.SuggestionDelayed}
	if raw := r.URL.Query()["status"]; len(raw) > 0 {
		statuses = statuses[:0]
		for _, s := range raw {
			status := model.SuggestionStatus(s)
			if !status.Valid() {
				writeError(w, http.StatusBadRequest, "bad_status", ErrBadRequest)
				return
			}
			statuses = append(statuses, status)
		}
	}

	list, err := h.deps.ListSuggestions(r.Context(), statuses...)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, suggestionList{Suggestions: list})
}

// HandleSuggestion routes GET /mod/suggestion/{id},
// POST /mod/suggestion/{id}/commit and POST /mod/suggestion/{id}/cancel.
func (h *ModeratorHandler) HandleSuggestion(w http.ResponseWriter, r *http.Request) {
	id, action, ok := splitIDPath(r.URL.Path, "/mod/suggestion/")
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	moderator, authorized := h.requireModerator(w, r)
	if !authorized {
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		h.handleGet(w, r, id)
	case action == "commit" && r.Method == http.MethodPost:
		h.handleCommit(w, r, moderator, id)
	case action == "cancel" && r.Method == http.MethodPost:
		h.handleCancel(w, r, moderator, id)
	default:
		http.NotFound(w, r)
	}
}

func (h *ModeratorHandler) handleGet(w http.ResponseWriter, r *http.Request, id int64) {
	s, err := h.deps.GetSuggestion(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *ModeratorHandler) handleCommit(w http.ResponseWriter, r *http.Request, moderator, id int64) {
	if err := h.deps.CommitSuggestion(r.Context(), moderator, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

type cancelRequest struct {
	Status model.SuggestionStatus `json:"status"`
}

func (h *ModeratorHandler) handleCancel(w http.ResponseWriter, r *http.Request, moderator, id int64) {
	req := cancelRequest{Status: model.SuggestionRejected}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	if !req.Status.Valid() || req.Status == model.SuggestionAccepted {
		writeError(w, http.StatusBadRequest, "bad_status", ErrBadRequest)
		return
	}

	if err := h.deps.ResolveSuggestion(r.Context(), moderator, id, req.Status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(req.Status)})
}

// requireModerator resolves the caller and rejects anonymous or
// non-moderator viewers. The boolean reports whether the request may
// continue; on false the response has already been written.
func (h *ModeratorHandler) requireModerator(w http.ResponseWriter, r *http.Request) (int64, bool) {
	viewer := ViewerFromContext(r.Context())
	if viewer == assemble.AnonymousViewer {
		writeError(w, http.StatusUnauthorized, "unauthorized", ErrUnauthorized)
		return 0, false
	}
	access, err := h.deps.IsModerator(r.Context(), viewer)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return 0, false
	}
	if !access {
		writeError(w, http.StatusForbidden, "forbidden", ErrForbidden)
		return 0, false
	}
	return viewer, true
}
