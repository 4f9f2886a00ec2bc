// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/profboard/profboard/internal/domain/model"
)

// SuggestionDependencies defines the interface for public suggestion intake.
type SuggestionDependencies interface {
	AddSuggestion(ctx context.Context, s model.Suggestion) (int64, error)
}

// SuggestionHandler handles catalog suggestion submissions.
type SuggestionHandler struct {
	deps SuggestionDependencies
}

// NewSuggestionHandler creates a new suggestion handler.
func NewSuggestionHandler(deps SuggestionDependencies) *SuggestionHandler {
	return &SuggestionHandler{deps: deps}
}

type suggestionRequest struct {
	Text    string                `json:"text"`
	Teacher model.SuggestionRef   `json:"teacher"`
	Subject model.SuggestionRef   `json:"subject"`
	Subs    []model.SuggestionRef `json:"subs"`
}

func (s suggestionRequest) validate() error {
	switch {
	case strings.TrimSpace(s.Text) == "":
		return errors.New("missing text")
	case strings.TrimSpace(s.Teacher.Title) == "":
		return errors.New("missing teacher title")
	case strings.TrimSpace(s.Subject.Title) == "":
		return errors.New("missing subject title")
	}
	return nil
}

type suggestionAccepted struct {
	ID int64 `json:"id"`
}

// HandlePostSuggestion handles POST /suggestion requests. Anonymous
// submissions are allowed; the viewer id is recorded when present.
func (h *SuggestionHandler) HandlePostSuggestion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req suggestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	id, err := h.deps.AddSuggestion(r.Context(), model.Suggestion{
		Status:   model.SuggestionCheck,
		ViewerID: ViewerFromContext(r.Context()),
		Text:     req.Text,
		Teacher:  req.Teacher,
		Subject:  req.Subject,
		Subs:     req.Subs,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusCreated, suggestionAccepted{ID: id})
}
