package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/intheknowyyc/server/internal/auth"
	"github.com/intheknowyyc/server/internal/domain/ids"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the cost factor for bcrypt password hashing
const BcryptCost = 12

// Service is the credential store: registration, profile updates and
// credential checks for the session layer.
type Service struct {
	repo      Repository
	logger    zerolog.Logger
	validator *validator.Validate
	hashCost  int
	now       func() time.Time

	dummyOnce sync.Once
	dummyHash []byte
}

type Option func(*Service)

// WithHashCost overrides the bcrypt cost (tests use bcrypt.MinCost).
func WithHashCost(cost int) Option {
	return func(s *Service) {
		s.hashCost = cost
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(repo Repository, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		logger:    logger.With().Str("component", "users").Logger(),
		validator: validator.New(),
		hashCost:  BcryptCost,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a ROLE_USER account.
//
// Returns ErrEmailTaken when the email is already registered and a
// ValidationError when the input is incomplete.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*User, error) {
	return s.create(ctx, params, auth.RoleUser)
}

// EnsureAdmin creates an admin account unless the email is already registered.
// The boolean reports whether a new account was created.
func (s *Service) EnsureAdmin(ctx context.Context, params RegisterParams) (*User, bool, error) {
	existing, err := s.repo.GetByEmail(ctx, normalizeEmail(params.Email))
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, fmt.Errorf("check admin user: %w", err)
	}

	user, err := s.create(ctx, params, auth.RoleAdmin)
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}

func (s *Service) create(ctx context.Context, params RegisterParams, role auth.Role) (*User, error) {
	params.Email = normalizeEmail(params.Email)
	params.FullName = strings.TrimSpace(params.FullName)
	if err := s.validator.Struct(params); err != nil {
		return nil, newValidationError(err)
	}

	if _, err := s.repo.GetByEmail(ctx, params.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("check email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	id, err := ids.NewULID()
	if err != nil {
		return nil, fmt.Errorf("generate user id: %w", err)
	}

	now := s.now().UTC()
	user, err := s.repo.Create(ctx, User{
		ID:           id,
		Email:        params.Email,
		PasswordHash: string(hash),
		FullName:     params.FullName,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("user_id", user.ID).
		Str("role", string(user.Role)).
		Msg("user registered")
	return user, nil
}

// Get returns a user by id. Callers other than admins may only read themselves.
func (s *Service) Get(ctx context.Context, caller auth.Identity, id string) (*User, error) {
	if !caller.IsAdmin() && caller.ID != id {
		return nil, ErrForbidden
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.GetByEmail(ctx, normalizeEmail(email))
}

func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

// Update replaces email, password and full name. Callers other than admins
// may only update themselves.
func (s *Service) Update(ctx context.Context, caller auth.Identity, id string, params UpdateParams) (*User, error) {
	if !caller.IsAdmin() && caller.ID != id {
		return nil, ErrForbidden
	}

	params.Email = normalizeEmail(params.Email)
	params.FullName = strings.TrimSpace(params.FullName)
	if err := s.validator.Struct(params); err != nil {
		return nil, newValidationError(err)
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if params.Email != user.Email {
		if _, err := s.repo.GetByEmail(ctx, params.Email); err == nil {
			return nil, ErrEmailTaken
		} else if !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("check email: %w", err)
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user.Email = params.Email
	user.FullName = params.FullName
	user.PasswordHash = string(hash)
	user.UpdatedAt = s.now().UTC()

	updated, err := s.repo.Update(ctx, *user)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("user_id", updated.ID).
		Str("updated_by", caller.ID).
		Msg("user updated")
	return updated, nil
}

// VerifyCredentials checks an email/password pair.
//
// Unknown emails, wrong passwords and disabled accounts all return
// ErrInvalidCredentials so callers cannot tell them apart.
func (s *Service) VerifyCredentials(ctx context.Context, email, password string) (auth.Identity, error) {
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Spend the same bcrypt time as a real comparison.
			_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
			return auth.Identity{}, ErrInvalidCredentials
		}
		return auth.Identity{}, fmt.Errorf("load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return auth.Identity{}, ErrInvalidCredentials
	}
	if !user.Enabled() {
		s.logger.Debug().Str("user_id", user.ID).Msg("login attempt on disabled account")
		return auth.Identity{}, ErrInvalidCredentials
	}
	return user.Identity(), nil
}

// LoadIdentity resolves the identity named by a token subject.
// Returns ErrNotFound for unknown emails and ErrAccountDisabled for locked or
// expired accounts.
func (s *Service) LoadIdentity(ctx context.Context, email string) (auth.Identity, error) {
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return auth.Identity{}, err
	}
	if !user.Enabled() {
		return auth.Identity{}, ErrAccountDisabled
	}
	return user.Identity(), nil
}

func (s *Service) dummy() []byte {
	s.dummyOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte("timing-equalizer"), s.hashCost)
		if err == nil {
			s.dummyHash = hash
		}
	})
	return s.dummyHash
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
