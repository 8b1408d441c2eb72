package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/intheknowyyc/server/internal/auth"
	"github.com/intheknowyyc/server/internal/domain/users"
	"github.com/intheknowyyc/server/internal/metrics"
	"github.com/intheknowyyc/server/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrInvalidToken         = errors.New("invalid token")
	ErrTokenExpired         = errors.New("token expired")
)

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 24 * time.Hour
)

const (
	resultSuccess      = "success"
	resultAuthFailed   = "authentication_failed"
	resultInvalidToken = "invalid_token"
	resultExpired      = "token_expired"
	resultError        = "error"
)

// CredentialStore checks passwords and resolves token subjects to identities.
// *users.Service satisfies it.
type CredentialStore interface {
	VerifyCredentials(ctx context.Context, email, password string) (auth.Identity, error)
	LoadIdentity(ctx context.Context, email string) (auth.Identity, error)
}

// Tokens is the pair returned by Login and Refresh.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Service drives the login, refresh and logout lifecycle.
type Service struct {
	credentials     CredentialStore
	codec           *auth.TokenCodec
	ledger          Ledger
	accessTTL       time.Duration
	refreshTTL      time.Duration
	rotateOnRefresh bool
	now             func() time.Time
	logger          zerolog.Logger
	tracer          trace.Tracer
}

type Option func(*Service)

func WithAccessTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.accessTTL = ttl
		}
	}
}

func WithRefreshTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
	}
}

// WithRotateOnRefresh makes every Refresh replace the refresh token and
// treats presentation of an already-replaced token as reuse, revoking the
// identity's live token.
func WithRotateOnRefresh(enabled bool) Option {
	return func(s *Service) {
		s.rotateOnRefresh = enabled
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger.With().Str("component", "sessions").Logger()
	}
}

func NewService(credentials CredentialStore, codec *auth.TokenCodec, ledger Ledger, opts ...Option) *Service {
	s := &Service{
		credentials: credentials,
		codec:       codec,
		ledger:      ledger,
		accessTTL:   DefaultAccessTTL,
		refreshTTL:  DefaultRefreshTTL,
		now:         time.Now,
		logger:      zerolog.Nop(),
		tracer:      telemetry.GetTracer("github.com/intheknowyyc/server/internal/domain/sessions"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login checks credentials, mints an access/refresh pair and replaces any
// refresh token the identity already holds.
//
// Unknown emails, wrong passwords and disabled accounts all fail with
// ErrAuthenticationFailed.
func (s *Service) Login(ctx context.Context, email, password string) (Tokens, error) {
	ctx, span := s.tracer.Start(ctx, "sessions.Login")
	defer span.End()

	identity, err := s.credentials.VerifyCredentials(ctx, email, password)
	if err != nil {
		if isCredentialMiss(err) {
			s.finish(span, "login", resultAuthFailed)
			return Tokens{}, ErrAuthenticationFailed
		}
		s.finish(span, "login", resultError)
		return Tokens{}, fmt.Errorf("verify credentials: %w", err)
	}

	tokens, err := s.mintPair(identity.Email)
	if err != nil {
		s.finish(span, "login", resultError)
		return Tokens{}, err
	}

	if err := s.rotate(ctx, identity.ID, tokens.RefreshToken); err != nil {
		s.finish(span, "login", resultError)
		return Tokens{}, err
	}

	s.finish(span, "login", resultSuccess)
	s.logger.Info().Str("user_id", identity.ID).Msg("user logged in")
	return tokens, nil
}

// Refresh mints a new access token for a refresh token that is present in the
// ledger and not expired. The refresh token is returned unchanged unless
// rotation on refresh is enabled.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	ctx, span := s.tracer.Start(ctx, "sessions.Refresh")
	defer span.End()

	claims, err := s.codec.Verify(refreshToken)
	if err != nil || claims.Kind != auth.KindRefresh {
		s.finish(span, "refresh", resultInvalidToken)
		return Tokens{}, ErrInvalidToken
	}

	record, err := s.ledger.FindByToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			if s.rotateOnRefresh {
				s.revokeOnReuse(ctx, claims.Subject)
			}
			s.finish(span, "refresh", resultInvalidToken)
			return Tokens{}, ErrInvalidToken
		}
		s.finish(span, "refresh", resultError)
		return Tokens{}, fmt.Errorf("find refresh token: %w", err)
	}

	identity, err := s.credentials.LoadIdentity(ctx, claims.Subject)
	if err != nil {
		if isCredentialMiss(err) {
			s.finish(span, "refresh", resultInvalidToken)
			return Tokens{}, ErrInvalidToken
		}
		s.finish(span, "refresh", resultError)
		return Tokens{}, fmt.Errorf("load identity: %w", err)
	}
	if record.UserID != identity.ID {
		s.finish(span, "refresh", resultInvalidToken)
		return Tokens{}, ErrInvalidToken
	}

	now := s.now()
	if claims.Expired(now) || record.Expired(now) {
		s.finish(span, "refresh", resultExpired)
		return Tokens{}, ErrTokenExpired
	}

	access, err := s.codec.Sign(identity.Email, s.accessTTL)
	if err != nil {
		s.finish(span, "refresh", resultError)
		return Tokens{}, fmt.Errorf("sign access token: %w", err)
	}
	tokens := Tokens{AccessToken: access, RefreshToken: refreshToken}

	if s.rotateOnRefresh {
		next, err := s.codec.SignRefresh(identity.Email, s.refreshTTL)
		if err != nil {
			s.finish(span, "refresh", resultError)
			return Tokens{}, fmt.Errorf("sign refresh token: %w", err)
		}
		if err := s.rotate(ctx, identity.ID, next); err != nil {
			s.finish(span, "refresh", resultError)
			return Tokens{}, err
		}
		tokens.RefreshToken = next
	}

	s.finish(span, "refresh", resultSuccess)
	return tokens, nil
}

// Logout deletes the refresh token of the identity named by accessToken.
// Logging out an identity that holds no refresh token succeeds.
func (s *Service) Logout(ctx context.Context, accessToken string) error {
	ctx, span := s.tracer.Start(ctx, "sessions.Logout")
	defer span.End()

	claims, err := s.codec.Verify(accessToken)
	if err != nil || claims.Kind != auth.KindAccess {
		s.finish(span, "logout", resultInvalidToken)
		return ErrInvalidToken
	}
	if claims.Expired(s.now()) {
		s.finish(span, "logout", resultExpired)
		return ErrTokenExpired
	}

	identity, err := s.credentials.LoadIdentity(ctx, claims.Subject)
	if err != nil {
		if isCredentialMiss(err) {
			s.finish(span, "logout", resultInvalidToken)
			return ErrInvalidToken
		}
		s.finish(span, "logout", resultError)
		return fmt.Errorf("load identity: %w", err)
	}

	if err := s.ledger.DeleteByUser(ctx, identity.ID); err != nil {
		s.finish(span, "logout", resultError)
		return fmt.Errorf("delete refresh token: %w", err)
	}

	s.finish(span, "logout", resultSuccess)
	s.logger.Info().Str("user_id", identity.ID).Msg("user logged out")
	return nil
}

// Revoke deletes a user's refresh token, ending their session at the next
// access-token expiry.
func (s *Service) Revoke(ctx context.Context, userID string) error {
	if err := s.ledger.DeleteByUser(ctx, userID); err != nil {
		s.finish(nil, "revoke", resultError)
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	s.finish(nil, "revoke", resultSuccess)
	s.logger.Info().Str("user_id", userID).Msg("refresh token revoked")
	return nil
}

func (s *Service) mintPair(subject string) (Tokens, error) {
	access, err := s.codec.Sign(subject, s.accessTTL)
	if err != nil {
		return Tokens{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := s.codec.SignRefresh(subject, s.refreshTTL)
	if err != nil {
		return Tokens{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return Tokens{AccessToken: access, RefreshToken: refresh}, nil
}

// rotate replaces the user's refresh token in one transaction.
func (s *Service) rotate(ctx context.Context, userID, token string) error {
	return s.ledger.WithTx(ctx, func(ctx context.Context, tx Ledger) error {
		if err := tx.DeleteByUser(ctx, userID); err != nil {
			return fmt.Errorf("revoke previous refresh token: %w", err)
		}
		if err := tx.Save(ctx, userID, token, s.now(), s.refreshTTL); err != nil {
			return fmt.Errorf("save refresh token: %w", err)
		}
		return nil
	})
}

func (s *Service) revokeOnReuse(ctx context.Context, subject string) {
	identity, err := s.credentials.LoadIdentity(ctx, subject)
	if err != nil {
		return
	}
	if err := s.ledger.DeleteByUser(ctx, identity.ID); err != nil {
		s.logger.Error().Err(err).Str("user_id", identity.ID).Msg("revoke after refresh token reuse failed")
		return
	}
	s.logger.Warn().Str("user_id", identity.ID).Msg("replaced refresh token presented; session revoked")
}

func (s *Service) finish(span trace.Span, operation, result string) {
	metrics.SessionOperationsTotal.WithLabelValues(operation, result).Inc()
	if span != nil {
		span.SetAttributes(attribute.String("session.result", result))
	}
}

func isCredentialMiss(err error) bool {
	return errors.Is(err, users.ErrInvalidCredentials) ||
		errors.Is(err, users.ErrNotFound) ||
		errors.Is(err, users.ErrAccountDisabled)
}
