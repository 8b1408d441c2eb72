package sessions

import (
	"context"
	"errors"
	"time"
)

// ErrRecordNotFound is returned by Ledger lookups that match no row.
var ErrRecordNotFound = errors.New("refresh token not found")

// RefreshToken is one persisted, revocable refresh token.
type RefreshToken struct {
	Token     string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the record is past its expiry at now.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Ledger stores refresh tokens keyed by token value.
//
// The ledger does not itself enforce one token per user; callers delete the
// user's prior token before saving a new one, inside WithTx so both writes
// commit together.
type Ledger interface {
	Save(ctx context.Context, userID, token string, issuedAt time.Time, ttl time.Duration) error
	FindByToken(ctx context.Context, token string) (*RefreshToken, error)
	FindByUser(ctx context.Context, userID string) (*RefreshToken, error)
	DeleteByUser(ctx context.Context, userID string) error
	DeleteByToken(ctx context.Context, token string) error

	// WithTx runs fn against a ledger bound to a single transaction. fn's
	// error rolls the transaction back.
	WithTx(ctx context.Context, fn func(ctx context.Context, ledger Ledger) error) error
}
