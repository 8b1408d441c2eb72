package api

import (
	"context"
	"net/http"

	"github.com/intheknowyyc/server/internal/api/handlers"
	"github.com/intheknowyyc/server/internal/api/middleware"
	"github.com/intheknowyyc/server/internal/audit"
	"github.com/intheknowyyc/server/internal/auth"
	"github.com/intheknowyyc/server/internal/config"
	"github.com/intheknowyyc/server/internal/metrics"
	"github.com/rs/zerolog"
)

// SessionService covers the session operations behind /cms and the admin
// revoke route. *sessions.Service satisfies it.
type SessionService interface {
	handlers.SessionService
	handlers.SessionRevoker
}

// Deps are the services the router dispatches to.
type Deps struct {
	Events     handlers.EventService
	Users      handlers.UserService
	Sessions   SessionService
	Tokens     middleware.TokenVerifier
	Identities middleware.IdentityLoader
	Database   handlers.Database

	Version   string
	GitCommit string
	BuildDate string
}

// NewRouter builds the HTTP handler for the whole API. Background work owned
// by the middleware (the rate-limit sweeper) stops when ctx is done.
func NewRouter(ctx context.Context, cfg config.Config, logger zerolog.Logger, deps Deps) http.Handler {
	env := cfg.Environment

	eventsHandler := handlers.NewEventsHandler(deps.Events, env)
	usersHandler := handlers.NewUsersHandler(deps.Users, deps.Sessions, env)
	sessionsHandler := handlers.NewSessionsHandler(deps.Sessions, env)
	health := handlers.NewHealthChecker(deps.Database, deps.Version, deps.GitCommit)

	auditLog := audit.NewLogger(logger)
	eventsHandler.Audit = auditLog
	usersHandler.Audit = auditLog

	limit := middleware.RateLimit(ctx, cfg.RateLimit, env)
	loginTier := middleware.WithRateLimitTierHandler(middleware.TierLogin)
	signedIn := middleware.RequireAuthenticated(env)
	admin := middleware.RequireRole(env, auth.RoleAdmin)

	public := func(h http.HandlerFunc) http.Handler { return limit(h) }
	member := func(h http.HandlerFunc) http.Handler { return limit(signedIn(h)) }
	adminOnly := func(h http.HandlerFunc) http.Handler { return limit(admin(h)) }

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", health.Live)
	mux.HandleFunc("GET /readyz", health.Ready)
	mux.Handle("GET /version", VersionHandler(deps.Version, deps.GitCommit, deps.BuildDate))
	mux.Handle("GET /metrics", metrics.Handler())

	mux.Handle("POST /cms/login", loginTier(limit(http.HandlerFunc(sessionsHandler.Login))))
	mux.Handle("POST /cms/refresh-token", public(sessionsHandler.Refresh))
	mux.Handle("POST /cms/logout", public(sessionsHandler.Logout))

	mux.Handle("GET /events", public(eventsHandler.List))
	mux.Handle("GET /events/{id}", public(eventsHandler.Get))
	mux.Handle("POST /events", member(eventsHandler.Create))
	mux.Handle("PUT /events/{id}", adminOnly(eventsHandler.Update))
	mux.Handle("DELETE /events/{id}", adminOnly(eventsHandler.Delete))
	for _, method := range []string{http.MethodPost, http.MethodPatch} {
		mux.Handle(method+" /events/{id}/approve", adminOnly(eventsHandler.Approve))
		mux.Handle(method+" /events/{id}/reject", adminOnly(eventsHandler.Reject))
	}

	mux.Handle("POST /users", public(usersHandler.Register))
	mux.Handle("GET /users", adminOnly(usersHandler.List))
	mux.Handle("GET /users/email/{email}", adminOnly(usersHandler.GetByEmail))
	mux.Handle("GET /users/{id}", member(usersHandler.Get))
	mux.Handle("PUT /users/{id}", member(usersHandler.Update))
	mux.Handle("DELETE /users/{id}/refresh-token", adminOnly(usersHandler.RevokeSession))

	maxBody := cfg.Server.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = middleware.DefaultMaxBodySize
	}

	var handler http.Handler = metrics.Routes(mux)
	handler = middleware.Authenticate(deps.Tokens, deps.Identities, nil)(handler)
	handler = middleware.RequestSize(maxBody, env)(handler)
	handler = middleware.CORS(cfg.CORS, logger)(handler)
	handler = middleware.SecurityHeaders(cfg.IsProduction())(handler)
	handler = metrics.HTTPMiddleware(handler)
	handler = middleware.RequestLogging(handler)
	handler = middleware.Tracing(handler)
	handler = middleware.CorrelationID(logger)(handler)
	return handler
}
