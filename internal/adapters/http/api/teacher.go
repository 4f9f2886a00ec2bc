// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/profboard/profboard/internal/adapters/repository"
	"github.com/profboard/profboard/internal/domain/assemble"
	"github.com/profboard/profboard/internal/domain/ledger"
	"github.com/profboard/profboard/internal/domain/model"
)

// TeacherDependencies defines the interface for teacher operations.
type TeacherDependencies interface {
	TeacherTree(ctx context.Context, id, viewerID int64) (model.Teacher, error)
	RateTeacher(ctx context.Context, viewerID, teacherID int64, rating int) (ledger.RatingResult, error)
}

// TeacherHandler handles teacher page and rating requests.
type TeacherHandler struct {
	deps TeacherDependencies
}

// NewTeacherHandler creates a new teacher handler.
func NewTeacherHandler(deps TeacherDependencies) *TeacherHandler {
	return &TeacherHandler{deps: deps}
}

type rateRequest struct {
	UserRating int `json:"user_rating"`
}

// HandleTeacher routes GET /teacher/{id} and POST /teacher/{id}/rate.
func (h *TeacherHandler) HandleTeacher(w http.ResponseWriter, r *http.Request) {
	id, action, ok := splitIDPath(r.URL.Path, "/teacher/")
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		h.handleGet(w, r, id)
	case action == "rate" && r.Method == http.MethodPost:
		h.handleRate(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

func (h *TeacherHandler) handleGet(w http.ResponseWriter, r *http.Request, id int64) {
	teacher, err := h.deps.TeacherTree(r.Context(), id, ViewerFromContext(r.Context()))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, teacher)
}

func (h *TeacherHandler) handleRate(w http.ResponseWriter, r *http.Request, id int64) {
	viewer := ViewerFromContext(r.Context())
	if viewer == assemble.AnonymousViewer {
		writeError(w, http.StatusUnauthorized, "unauthorized", ErrUnauthorized)
		return
	}

	var req rateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	result, err := h.deps.RateTeacher(r.Context(), viewer, id, req.UserRating)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrRatingRange):
			writeError(w, http.StatusBadRequest, "rating_range", err)
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found", err)
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// splitIDPath peels a numeric id and an optional single action segment off
// a path below prefix. "/teacher/7/rate" yields (7, "rate", true).
func splitIDPath(path, prefix string) (int64, string, bool) {
	rest := strings.TrimPrefix(path, prefix)
	if rest == "" || rest == path {
		return 0, "", false
	}
	idPart, action, _ := strings.Cut(rest, "/")
	if strings.Contains(action, "/") {
		return 0, "", false
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		return 0, "", false
	}
	return id, action, true
}
