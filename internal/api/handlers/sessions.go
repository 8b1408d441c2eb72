package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/intheknowyyc/server/internal/api/problem"
	"github.com/intheknowyyc/server/internal/auth"
	"github.com/intheknowyyc/server/internal/domain/sessions"
)

// SessionService is the part of *sessions.Service the handlers call.
type SessionService interface {
	Login(ctx context.Context, email, password string) (sessions.Tokens, error)
	Refresh(ctx context.Context, refreshToken string) (sessions.Tokens, error)
	Logout(ctx context.Context, accessToken string) error
}

type SessionsHandler struct {
	Service SessionService
	Env     string
}

func NewSessionsHandler(service SessionService, env string) *SessionsHandler {
	return &SessionsHandler{Service: service, Env: env}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResponse carries either the token pair or an error string.
type loginResponse struct {
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Login exchanges credentials for a token pair. Every credential failure
// gets the same 401 body.
func (h *SessionsHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, r, err, h.Env)
		return
	}

	tokens, err := h.Service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, sessions.ErrAuthenticationFailed) {
			writeJSON(w, http.StatusUnauthorized, loginResponse{Error: "authentication failed"})
			return
		}
		writeError(w, r, err, h.Env)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken})
}

// Refresh issues a new access token. The refresh token is read from the
// token query parameter, falling back to the Authorization header.
func (h *SessionsHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		token, _ = auth.TokenFromHeader(r.Header.Get("Authorization"))
	}
	if token == "" {
		problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Unauthorized", nil, h.Env,
			problem.WithDetail("A refresh token is required."))
		return
	}

	tokens, err := h.Service.Refresh(r.Context(), token)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken})
}

// Logout revokes the refresh token of the identity named by the bearer
// access token.
func (h *SessionsHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, err := auth.TokenFromHeader(r.Header.Get("Authorization"))
	if err != nil {
		problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Unauthorized", nil, h.Env,
			problem.WithDetail("An access token is required."))
		return
	}

	if err := h.Service.Logout(r.Context(), token); err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
