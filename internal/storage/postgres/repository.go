package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the part of *pgxpool.Pool the repositories use. pgxmock pools
// satisfy it too.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const uniqueViolation = "23505"

// Repository hands out table repositories that share a pool or, inside
// WithTx, a single transaction.
type Repository struct {
	db DB
	tx pgx.Tx
}

func NewRepository(db DB) (*Repository, error) {
	if db == nil {
		return nil, fmt.Errorf("postgres repository: db is nil")
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Users() *UserRepository {
	return &UserRepository{db: r.db, tx: r.tx}
}

func (r *Repository) RefreshTokens() *RefreshTokenRepository {
	return &RefreshTokenRepository{db: r.db, tx: r.tx}
}

func (r *Repository) Events() *EventRepository {
	return &EventRepository{db: r.db, tx: r.tx}
}

// Ping checks database connectivity for readiness probes.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

// SchemaVersion reads the applied migration version straight from the
// schema_migrations table.
func (r *Repository) SchemaVersion(ctx context.Context) (version int64, dirty bool, err error) {
	err = r.db.QueryRow(ctx, `SELECT version, dirty FROM schema_migrations LIMIT 1`).Scan(&version, &dirty)
	if err != nil {
		return 0, false, fmt.Errorf("read schema version: %w", err)
	}
	return version, dirty, nil
}

// WithTx runs fn with repositories bound to one transaction. Nested calls
// reuse the outer transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context, repo *Repository) error) error {
	if r.tx != nil {
		return fn(ctx, r)
	}
	return inTx(ctx, r.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(ctx, &Repository{db: r.db, tx: tx})
	})
}

// inTx begins a transaction with opts, runs fn and commits. fn's error rolls
// back and is returned unchanged.
func inTx(ctx context.Context, db DB, opts pgx.TxOptions, fn func(tx pgx.Tx) error) error {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func pick(db DB, tx pgx.Tx) querier {
	if tx != nil {
		return tx
	}
	return db
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
