package users

import (
	"context"
	"time"

	"github.com/intheknowyyc/server/internal/auth"
)

// User is a registered account. PasswordHash never leaves the server.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"fullName"`
	Role         auth.Role `json:"role"`
	Locked       bool      `json:"locked"`
	Expired      bool      `json:"expired"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Enabled reports whether the account may authenticate.
func (u *User) Enabled() bool {
	return u != nil && !u.Locked && !u.Expired
}

// Identity is the password-free projection carried through requests.
func (u *User) Identity() auth.Identity {
	return auth.Identity{
		ID:       u.ID,
		Email:    u.Email,
		FullName: u.FullName,
		Role:     u.Role,
	}
}

// Repository persists users. Lookups return ErrNotFound when no row matches and
// Create/Update return ErrEmailTaken on a unique-email violation.
type Repository interface {
	Create(ctx context.Context, user User) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]User, error)
	Update(ctx context.Context, user User) (*User, error)
}

type RegisterParams struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	FullName string `json:"fullName" validate:"required,max=255"`
}

type UpdateParams struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	FullName string `json:"fullName" validate:"required,max=255"`
}
