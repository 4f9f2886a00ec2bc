// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"unicode/utf8"

	"github.com/profboard/profboard/internal/domain/types"
)

// minQueryRunes is the shortest query worth ranking; anything below it is
// rejected before touching the snapshot.
const minQueryRunes = 3

// SearchDependencies defines the interface for search operations.
type SearchDependencies interface {
	Search(ctx context.Context, query string, kind types.Kind) []types.SearchItem
}

// SearchHandler handles catalog search requests.
type SearchHandler struct {
	deps SearchDependencies
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(deps SearchDependencies) *SearchHandler {
	return &SearchHandler{deps: deps}
}

type searchResponse struct {
	Results []types.SearchItem `json:"results"`
}

// HandleSearch handles GET /search?query=&strainer= requests. The strainer
// parameter narrows results to one catalog category; empty means both.
func (h *SearchHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	query := r.URL.Query().Get("query")
	if utf8.RuneCountInString(query) < minQueryRunes {
		writeError(w, http.StatusBadRequest, "short_query", ErrShortQuery)
		return
	}

	kind := types.Kind(r.URL.Query().Get("strainer"))
	if kind != "" && !kind.Valid() {
		writeError(w, http.StatusBadRequest, "bad_strainer", ErrBadRequest)
		return
	}

	results := h.deps.Search(r.Context(), query, kind)
	if len(results) == 0 {
		writeError(w, http.StatusNotFound, "no_results", ErrNoResults)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{Results: results})
}
