// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/profboard/profboard/internal/adapters/repository"
	"github.com/profboard/profboard/internal/domain/assemble"
	"github.com/profboard/profboard/internal/domain/ledger"
)

// CommentDependencies defines the interface for comment vote operations.
type CommentDependencies interface {
	VoteComment(ctx context.Context, viewerID, commentID int64, karma int) (ledger.KarmaResult, error)
}

// CommentHandler handles comment karma requests.
type CommentHandler struct {
	deps CommentDependencies
}

// NewCommentHandler creates a new comment handler.
func NewCommentHandler(deps CommentDependencies) *CommentHandler {
	return &CommentHandler{deps: deps}
}

type voteRequest struct {
	UserKarma int `json:"user_karma"`
}

// HandleComment handles POST /comment/{id}/vote requests.
func (h *CommentHandler) HandleComment(w http.ResponseWriter, r *http.Request) {
	id, action, ok := splitIDPath(r.URL.Path, "/comment/")
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	if action != "vote" || r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	viewer := ViewerFromContext(r.Context())
	if viewer == assemble.AnonymousViewer {
		writeError(w, http.StatusUnauthorized, "unauthorized", ErrUnauthorized)
		return
	}

	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	result, err := h.deps.VoteComment(r.Context(), viewer, id, req.UserKarma)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrKarmaRange):
			writeError(w, http.StatusBadRequest, "karma_range", err)
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found", err)
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, result)
}
