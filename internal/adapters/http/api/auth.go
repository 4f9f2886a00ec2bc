// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/profboard/profboard/internal/adapters/identity"
)

// AuthHandler proxies login and refresh requests to the identity provider.
type AuthHandler struct {
	tokens TokenProvider
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(tokens TokenProvider) *AuthHandler {
	return &AuthHandler{tokens: tokens}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// HandleLogin handles POST /authp/login requests.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	pair, err := h.tokens.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials", err)
			return
		}
		writeError(w, http.StatusBadGateway, "sso_unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// HandleRefresh handles POST /authp/refresh requests.
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	pair, err := h.tokens.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, http.StatusBadGateway, "sso_unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}
