package handlers

import (
	"context"
	"net/http"

	"github.com/intheknowyyc/server/internal/audit"
	"github.com/intheknowyyc/server/internal/auth"
	"github.com/intheknowyyc/server/internal/domain/users"
)

// UserService is the part of *users.Service the handlers call.
type UserService interface {
	Register(ctx context.Context, params users.RegisterParams) (*users.User, error)
	Get(ctx context.Context, caller auth.Identity, id string) (*users.User, error)
	GetByEmail(ctx context.Context, email string) (*users.User, error)
	List(ctx context.Context) ([]users.User, error)
	Update(ctx context.Context, caller auth.Identity, id string, params users.UpdateParams) (*users.User, error)
}

// SessionRevoker ends a user's refresh-token session.
type SessionRevoker interface {
	Revoke(ctx context.Context, userID string) error
}

type UsersHandler struct {
	Service  UserService
	Sessions SessionRevoker
	Env      string
	Audit    *audit.Logger
}

func NewUsersHandler(service UserService, sessions SessionRevoker, env string) *UsersHandler {
	return &UsersHandler{Service: service, Sessions: sessions, Env: env}
}

// Register creates a USER account. Open to anonymous callers.
func (h *UsersHandler) Register(w http.ResponseWriter, r *http.Request) {
	var params users.RegisterParams
	if err := decodeJSON(r, &params); err != nil {
		writeDecodeError(w, r, err, h.Env)
		return
	}

	user, err := h.Service.Register(r.Context(), params)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	w.Header().Set("Location", "/users/"+user.ID)
	writeJSON(w, http.StatusCreated, user)
}

func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.List(r.Context())
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.Service.Get(r.Context(), caller(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UsersHandler) GetByEmail(w http.ResponseWriter, r *http.Request) {
	user, err := h.Service.GetByEmail(r.Context(), r.PathValue("email"))
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	var params users.UpdateParams
	if err := decodeJSON(r, &params); err != nil {
		writeDecodeError(w, r, err, h.Env)
		return
	}

	user, err := h.Service.Update(r.Context(), caller(r), r.PathValue("id"), params)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// RevokeSession deletes the user's refresh token. Admin only, enforced by
// the router.
func (h *UsersHandler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	err := h.Sessions.Revoke(r.Context(), r.PathValue("id"))
	h.Audit.Record(r, "user.revoke_session", "user", r.PathValue("id"), err)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
