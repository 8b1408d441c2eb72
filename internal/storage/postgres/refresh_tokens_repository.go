package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/intheknowyyc/server/internal/domain/sessions"
	"github.com/intheknowyyc/server/internal/metrics"
	"github.com/jackc/pgx/v5"
)

// RefreshTokenRepository implements sessions.Ledger on the refresh_tokens
// table.
type RefreshTokenRepository struct {
	db DB
	tx pgx.Tx
}

func NewRefreshTokenRepository(db DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

var _ sessions.Ledger = (*RefreshTokenRepository)(nil)

// Save stores token as the user's only refresh token. A concurrent rotation
// that committed first is overwritten instead of tripping UNIQUE (user_id).
func (r *RefreshTokenRepository) Save(ctx context.Context, userID, token string, issuedAt time.Time, ttl time.Duration) (err error) {
	defer func(start time.Time) { metrics.RecordQuery("save_refresh_token", start, err) }(time.Now())

	_, err = pick(r.db, r.tx).Exec(ctx,
		`INSERT INTO refresh_tokens (token, user_id, created_at, expires_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET token = EXCLUDED.token, created_at = EXCLUDED.created_at, expires_at = EXCLUDED.expires_at`,
		token, userID, issuedAt.UTC(), issuedAt.Add(ttl).UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepository) FindByToken(ctx context.Context, token string) (*sessions.RefreshToken, error) {
	return r.findOne(ctx, "find_refresh_token", `WHERE token = $1`, token)
}

func (r *RefreshTokenRepository) FindByUser(ctx context.Context, userID string) (*sessions.RefreshToken, error) {
	return r.findOne(ctx, "find_user_refresh_token", `WHERE user_id = $1`, userID)
}

func (r *RefreshTokenRepository) findOne(ctx context.Context, op, where string, arg any) (_ *sessions.RefreshToken, err error) {
	defer func(start time.Time) {
		if errors.Is(err, sessions.ErrRecordNotFound) {
			metrics.RecordQuery(op, start, nil)
			return
		}
		metrics.RecordQuery(op, start, err)
	}(time.Now())

	var record sessions.RefreshToken
	err = pick(r.db, r.tx).QueryRow(ctx,
		`SELECT token, user_id, created_at, expires_at FROM refresh_tokens `+where, arg,
	).Scan(&record.Token, &record.UserID, &record.CreatedAt, &record.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sessions.ErrRecordNotFound
		}
		return nil, fmt.Errorf("query refresh token: %w", err)
	}
	return &record, nil
}

func (r *RefreshTokenRepository) DeleteByUser(ctx context.Context, userID string) (err error) {
	defer func(start time.Time) { metrics.RecordQuery("delete_user_refresh_token", start, err) }(time.Now())

	if _, err = pick(r.db, r.tx).Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete refresh token by user: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepository) DeleteByToken(ctx context.Context, token string) (err error) {
	defer func(start time.Time) { metrics.RecordQuery("delete_refresh_token", start, err) }(time.Now())

	if _, err = pick(r.db, r.tx).Exec(ctx, `DELETE FROM refresh_tokens WHERE token = $1`, token); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}

// DeleteExpired removes every token whose expiry is at or before now and
// returns how many were removed.
func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (_ int64, err error) {
	defer func(start time.Time) { metrics.RecordQuery("delete_expired_refresh_tokens", start, err) }(time.Now())

	tag, err := pick(r.db, r.tx).Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= $1`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *RefreshTokenRepository) WithTx(ctx context.Context, fn func(ctx context.Context, ledger sessions.Ledger) error) error {
	if r.tx != nil {
		return fn(ctx, r)
	}
	return inTx(ctx, r.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(ctx, &RefreshTokenRepository{db: r.db, tx: tx})
	})
}
