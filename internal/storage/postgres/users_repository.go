package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/intheknowyyc/server/internal/auth"
	"github.com/intheknowyyc/server/internal/domain/users"
	"github.com/intheknowyyc/server/internal/metrics"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, email, password_hash, full_name, role, locked, expired, created_at, updated_at`

// UserRepository implements users.Repository.
type UserRepository struct {
	db DB
	tx pgx.Tx
}

func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user users.User) (_ *users.User, err error) {
	defer func(start time.Time) { metrics.RecordQuery("create_user", start, err) }(time.Now())

	row := pick(r.db, r.tx).QueryRow(ctx, `
INSERT INTO users (id, email, password_hash, full_name, role, locked, expired, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING `+userColumns,
		user.ID, user.Email, user.PasswordHash, user.FullName, string(user.Role),
		user.Locked, user.Expired, user.CreatedAt, user.UpdatedAt,
	)
	created, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, users.ErrEmailTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return created, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (_ *users.User, err error) {
	defer func(start time.Time) { metrics.RecordQuery("get_user", start, ignoreNoRows(err)) }(time.Now())

	row := pick(r.db, r.tx).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, users.ErrNotFound
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (_ *users.User, err error) {
	defer func(start time.Time) { metrics.RecordQuery("get_user_by_email", start, ignoreNoRows(err)) }(time.Now())

	row := pick(r.db, r.tx).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, users.ErrNotFound
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

func (r *UserRepository) List(ctx context.Context) (_ []users.User, err error) {
	defer func(start time.Time) { metrics.RecordQuery("list_users", start, err) }(time.Now())

	rows, err := pick(r.db, r.tx).Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	out := []users.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return out, nil
}

func (r *UserRepository) Update(ctx context.Context, user users.User) (_ *users.User, err error) {
	defer func(start time.Time) { metrics.RecordQuery("update_user", start, ignoreNoRows(err)) }(time.Now())

	row := pick(r.db, r.tx).QueryRow(ctx, `
UPDATE users
   SET email = $2, password_hash = $3, full_name = $4, role = $5, locked = $6, expired = $7, updated_at = $8
 WHERE id = $1
RETURNING `+userColumns,
		user.ID, user.Email, user.PasswordHash, user.FullName, string(user.Role),
		user.Locked, user.Expired, user.UpdatedAt,
	)
	updated, err := scanUser(row)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return nil, users.ErrNotFound
		case isUniqueViolation(err):
			return nil, users.ErrEmailTaken
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return updated, nil
}

func scanUser(row pgx.Row) (*users.User, error) {
	var (
		user users.User
		role string
	)
	if err := row.Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.FullName, &role,
		&user.Locked, &user.Expired, &user.CreatedAt, &user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	user.Role = auth.NormalizeRole(role)
	return &user, nil
}

func ignoreNoRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, users.ErrNotFound) {
		return nil
	}
	return err
}
