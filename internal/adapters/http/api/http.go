// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/profboard/profboard/internal/adapters/identity"
	"github.com/profboard/profboard/internal/domain/ledger"
	"github.com/profboard/profboard/internal/domain/model"
	"github.com/profboard/profboard/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Search ranks catalog entries against a free-text query.
	Search(ctx context.Context, query string, kind types.Kind) []types.SearchItem

	// Read operations expose assembled catalog trees.
	TeacherTree(ctx context.Context, id, viewerID int64) (model.Teacher, error)
	SubjectTree(ctx context.Context, id, viewerID int64) (model.Subject, error)

	// Write operations record per-viewer votes.
	RateTeacher(ctx context.Context, viewerID, teacherID int64, rating int) (ledger.RatingResult, error)
	VoteComment(ctx context.Context, viewerID, commentID int64, karma int) (ledger.KarmaResult, error)

	// Moderation operations cover the suggestion workflow.
	IsModerator(ctx context.Context, viewerID int64) (bool, error)
	AddSuggestion(ctx context.Context, s model.Suggestion) (int64, error)
	ListSuggestions(ctx context.Context, statuses ...model.SuggestionStatus) ([]model.Suggestion, error)
	GetSuggestion(ctx context.Context, id int64) (model.Suggestion, error)
	CommitSuggestion(ctx context.Context, moderatorID, id int64) error
	ResolveSuggestion(ctx context.Context, moderatorID, id int64, status model.SuggestionStatus) error
}

// TokenProvider proxies the upstream identity service.
type TokenProvider interface {
	Login(ctx context.Context, username, password string) (identity.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (identity.TokenPair, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler     *HealthHandler
	searchHandler     *SearchHandler
	teacherHandler    *TeacherHandler
	subjectHandler    *SubjectHandler
	commentHandler    *CommentHandler
	suggestionHandler *SuggestionHandler
	moderatorHandler  *ModeratorHandler
	authHandler       *AuthHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, tokens TokenProvider) *Server {
	return &Server{
		healthHandler:     NewHealthHandler(),
		searchHandler:     NewSearchHandler(deps),
		teacherHandler:    NewTeacherHandler(deps),
		subjectHandler:    NewSubjectHandler(deps),
		commentHandler:    NewCommentHandler(deps),
		suggestionHandler: NewSuggestionHandler(deps),
		moderatorHandler:  NewModeratorHandler(deps),
		authHandler:       NewAuthHandler(tokens),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/metrics", MetricsMiddleware(s.healthHandler.HandleHealth, "metrics"))
	mux.HandleFunc("/search", wrap(s.searchHandler.HandleSearch, "search"))
	mux.HandleFunc("/teacher/", wrap(s.teacherHandler.HandleTeacher, "teacher"))
	mux.HandleFunc("/subject/", wrap(s.subjectHandler.HandleSubject, "subject"))
	mux.HandleFunc("/comment/", wrap(s.commentHandler.HandleComment, "comment"))
	mux.HandleFunc("/suggestion", wrap(s.suggestionHandler.HandlePostSuggestion, "suggestion"))
	mux.HandleFunc("/moderator", wrap(s.moderatorHandler.HandleAccess, "moderator"))
	mux.HandleFunc("/mod/suggestion", wrap(s.moderatorHandler.HandleSuggestions, "mod_suggestion"))
	mux.HandleFunc("/mod/suggestion/", wrap(s.moderatorHandler.HandleSuggestion, "mod_suggestion"))
	mux.HandleFunc("/authp/login", MetricsMiddleware(s.authHandler.HandleLogin, "login"))
	mux.HandleFunc("/authp/refresh", MetricsMiddleware(s.authHandler.HandleRefresh, "refresh"))
}

// wrap composes viewer resolution and metrics recording for catalog routes.
func wrap(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return MetricsMiddleware(ViewerMiddleware(next), endpoint)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
