package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/intheknowyyc/server/internal/domain/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSessions struct {
	loginErr   error
	refreshErr error
	logoutErr  error

	gotEmail, gotPassword string
	gotRefresh, gotAccess string
}

func (s *stubSessions) Login(_ context.Context, email, password string) (sessions.Tokens, error) {
	s.gotEmail, s.gotPassword = email, password
	if s.loginErr != nil {
		return sessions.Tokens{}, s.loginErr
	}
	return sessions.Tokens{AccessToken: "access-1", RefreshToken: "refresh-1"}, nil
}

func (s *stubSessions) Refresh(_ context.Context, refreshToken string) (sessions.Tokens, error) {
	s.gotRefresh = refreshToken
	if s.refreshErr != nil {
		return sessions.Tokens{}, s.refreshErr
	}
	return sessions.Tokens{AccessToken: "access-2", RefreshToken: refreshToken}, nil
}

func (s *stubSessions) Logout(_ context.Context, accessToken string) error {
	s.gotAccess = accessToken
	return s.logoutErr
}

func decodeBody(t *testing.T, res *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	return body
}

func TestLoginReturnsTokenPair(t *testing.T) {
	stub := &stubSessions{}
	h := NewSessionsHandler(stub, "test")

	req := httptest.NewRequest(http.MethodPost, "/cms/login", strings.NewReader(`{"email":"jane@example.com","password":"hunter22"}`))
	res := httptest.NewRecorder()
	h.Login(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, map[string]any{"accessToken": "access-1", "refreshToken": "refresh-1"}, decodeBody(t, res))
	assert.Equal(t, "jane@example.com", stub.gotEmail)
	assert.Equal(t, "hunter22", stub.gotPassword)
}

func TestLoginFailureBody(t *testing.T) {
	h := NewSessionsHandler(&stubSessions{loginErr: sessions.ErrAuthenticationFailed}, "test")

	req := httptest.NewRequest(http.MethodPost, "/cms/login", strings.NewReader(`{"email":"jane@example.com","password":"wrong"}`))
	res := httptest.NewRecorder()
	h.Login(res, req)

	require.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Equal(t, map[string]any{"error": "authentication failed"}, decodeBody(t, res))
}

func TestLoginStoreFailureIsServerError(t *testing.T) {
	h := NewSessionsHandler(&stubSessions{loginErr: errors.New("db down")}, "test")

	req := httptest.NewRequest(http.MethodPost, "/cms/login", strings.NewReader(`{"email":"a@b.c","password":"x"}`))
	res := httptest.NewRecorder()
	h.Login(res, req)

	assert.Equal(t, http.StatusInternalServerError, res.Code)
	assert.Equal(t, "application/problem+json", res.Header().Get("Content-Type"))
}

func TestLoginMalformedBody(t *testing.T) {
	h := NewSessionsHandler(&stubSessions{}, "test")

	for _, body := range []string{"", "{", `{"email":"a"} {"email":"b"}`} {
		req := httptest.NewRequest(http.MethodPost, "/cms/login", strings.NewReader(body))
		res := httptest.NewRecorder()
		h.Login(res, req)
		assert.Equal(t, http.StatusBadRequest, res.Code, "body %q", body)
	}
}

func TestRefreshTokenSources(t *testing.T) {
	tests := []struct {
		name   string
		target string
		header string
		want   string
	}{
		{name: "query parameter", target: "/cms/refresh-token?token=from-query", want: "from-query"},
		{name: "bearer header", target: "/cms/refresh-token", header: "Bearer from-header", want: "from-header"},
		{name: "query wins", target: "/cms/refresh-token?token=from-query", header: "Bearer from-header", want: "from-query"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubSessions{}
			req := httptest.NewRequest(http.MethodPost, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			res := httptest.NewRecorder()
			NewSessionsHandler(stub, "test").Refresh(res, req)

			require.Equal(t, http.StatusOK, res.Code)
			assert.Equal(t, tt.want, stub.gotRefresh)
			body := decodeBody(t, res)
			assert.Equal(t, "access-2", body["accessToken"])
			assert.Equal(t, tt.want, body["refreshToken"])
		})
	}
}

func TestRefreshFailures(t *testing.T) {
	missing := httptest.NewRecorder()
	NewSessionsHandler(&stubSessions{}, "test").Refresh(missing, httptest.NewRequest(http.MethodPost, "/cms/refresh-token", nil))
	assert.Equal(t, http.StatusUnauthorized, missing.Code)

	for _, err := range []error{sessions.ErrInvalidToken, sessions.ErrTokenExpired} {
		res := httptest.NewRecorder()
		NewSessionsHandler(&stubSessions{refreshErr: err}, "test").
			Refresh(res, httptest.NewRequest(http.MethodPost, "/cms/refresh-token?token=x", nil))
		assert.Equal(t, http.StatusUnauthorized, res.Code)
		assert.Equal(t, err.Error(), decodeBody(t, res)["detail"])
	}
}

func TestLogout(t *testing.T) {
	stub := &stubSessions{}
	req := httptest.NewRequest(http.MethodPost, "/cms/logout", nil)
	req.Header.Set("Authorization", "Bearer access-1")
	res := httptest.NewRecorder()
	NewSessionsHandler(stub, "test").Logout(res, req)

	assert.Equal(t, http.StatusNoContent, res.Code)
	assert.Equal(t, "access-1", stub.gotAccess)

	res = httptest.NewRecorder()
	NewSessionsHandler(stub, "test").Logout(res, httptest.NewRequest(http.MethodPost, "/cms/logout", nil))
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	req = httptest.NewRequest(http.MethodPost, "/cms/logout", nil)
	req.Header.Set("Authorization", "Bearer stale")
	res = httptest.NewRecorder()
	NewSessionsHandler(&stubSessions{logoutErr: sessions.ErrTokenExpired}, "test").Logout(res, req)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}
