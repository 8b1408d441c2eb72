package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/intheknowyyc/server/internal/api/problem"
	"github.com/intheknowyyc/server/internal/auth"
	"github.com/intheknowyyc/server/internal/metrics"
	"github.com/rs/zerolog"
)

// TokenVerifier checks a bearer token's signature and structure.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// IdentityLoader resolves a token subject to a current, enabled identity.
type IdentityLoader interface {
	LoadIdentity(ctx context.Context, subject string) (auth.Identity, error)
}

// Authenticate attaches the caller's identity to the request context when it
// carries a valid access token. Every failure leaves the request anonymous:
// access control happens later, in RequireAuthenticated, RequireRole or the
// domain services. now may be nil.
func Authenticate(verifier TokenVerifier, loader IdentityLoader, now func() time.Time) func(http.Handler) http.Handler {
	if now == nil {
		now = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := strings.TrimSpace(r.Header.Get("Authorization"))
			if header == "" || verifier == nil || loader == nil {
				next.ServeHTTP(w, r)
				return
			}

			identity, reason := resolveIdentity(r.Context(), verifier, loader, header, now())
			if reason != "" {
				metrics.AuthenticatedRequestsTotal.WithLabelValues("anonymous").Inc()
				zerolog.Ctx(r.Context()).Debug().Str("reason", reason).Msg("bearer token ignored")
				next.ServeHTTP(w, r)
				return
			}
			metrics.AuthenticatedRequestsTotal.WithLabelValues("identified").Inc()

			ctx := auth.ContextWithIdentity(r.Context(), identity)
			logger := zerolog.Ctx(ctx).With().Str("user_id", identity.ID).Logger()
			ctx = logger.WithContext(ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// resolveIdentity returns the identity for header or a short reason it was
// rejected.
func resolveIdentity(ctx context.Context, verifier TokenVerifier, loader IdentityLoader, header string, now time.Time) (auth.Identity, string) {
	token, err := auth.TokenFromHeader(header)
	if err != nil {
		return auth.Identity{}, "not a bearer token"
	}

	claims, err := verifier.Verify(token)
	switch {
	case errors.Is(err, auth.ErrInvalidSignature):
		return auth.Identity{}, "invalid signature"
	case err != nil:
		return auth.Identity{}, "malformed token"
	case claims.Kind != auth.KindAccess:
		return auth.Identity{}, "not an access token"
	case claims.Expired(now):
		return auth.Identity{}, "expired"
	}

	identity, err := loader.LoadIdentity(ctx, claims.Subject)
	if err != nil {
		return auth.Identity{}, "identity unavailable"
	}
	return identity, ""
}

// RequireAuthenticated rejects anonymous requests with 401.
func RequireAuthenticated(env string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := auth.IdentityFromContext(r.Context()); !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="intheknow"`)
				problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Unauthorized", nil, env,
					problem.WithDetail("Authentication is required."))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole rejects anonymous requests with 401 and callers holding none
// of roles with 403.
func RequireRole(env string, roles ...auth.Role) func(http.Handler) http.Handler {
	authenticated := RequireAuthenticated(env)
	return func(next http.Handler) http.Handler {
		return authenticated(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !auth.HasRole(auth.RoleFromContext(r.Context()), roles...) {
				problem.Write(w, r, http.StatusForbidden, problem.TypeForbidden, "Forbidden", nil, env,
					problem.WithDetail("You are not authorized to perform this action."))
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}
