// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/profboard/profboard/internal/adapters/repository"
	"github.com/profboard/profboard/internal/domain/model"
)

// SubjectDependencies defines the interface for subject operations.
type SubjectDependencies interface {
	SubjectTree(ctx context.Context, id, viewerID int64) (model.Subject, error)
}

// SubjectHandler handles subject page requests.
type SubjectHandler struct {
	deps SubjectDependencies
}

// NewSubjectHandler creates a new subject handler.
func NewSubjectHandler(deps SubjectDependencies) *SubjectHandler {
	return &SubjectHandler{deps: deps}
}

// HandleSubject handles GET /subject/{id} requests.
func (h *SubjectHandler) HandleSubject(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id, action, ok := splitIDPath(r.URL.Path, "/subject/")
	if !ok || action != "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	subject, err := h.deps.SubjectTree(r.Context(), id, ViewerFromContext(r.Context()))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, subject)
}
