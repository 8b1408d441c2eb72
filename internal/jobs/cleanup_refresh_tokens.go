package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/intheknowyyc/server/internal/metrics"
	"github.com/riverqueue/river"
)

// ExpiredTokenStore deletes refresh tokens past their expiry.
// *postgres.RefreshTokenRepository satisfies it.
type ExpiredTokenStore interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type RefreshTokenCleanupArgs struct{}

func (RefreshTokenCleanupArgs) Kind() string { return JobKindRefreshTokenCleanup }

// RefreshTokenCleanupWorker removes refresh tokens whose expiry has passed.
// Expired tokens are already rejected at refresh time; the sweep only keeps
// the table small.
type RefreshTokenCleanupWorker struct {
	river.WorkerDefaults[RefreshTokenCleanupArgs]
	Tokens ExpiredTokenStore
	Logger *slog.Logger
	Now    func() time.Time
}

func (RefreshTokenCleanupWorker) Kind() string { return JobKindRefreshTokenCleanup }

func (w RefreshTokenCleanupWorker) Timeout(*river.Job[RefreshTokenCleanupArgs]) time.Duration {
	return time.Minute
}

func (w RefreshTokenCleanupWorker) Work(ctx context.Context, job *river.Job[RefreshTokenCleanupArgs]) error {
	if w.Tokens == nil {
		return fmt.Errorf("refresh token store not configured")
	}

	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}

	start := time.Now()
	deleted, err := w.Tokens.DeleteExpired(ctx, now())
	if err != nil {
		metrics.RefreshTokenCleanupErrors.Inc()
		logger.Error("refresh token cleanup failed", "attempt", job.Attempt, "error", err)
		return fmt.Errorf("delete expired refresh tokens: %w", err)
	}

	metrics.RefreshTokensDeleted.Add(float64(deleted))
	logger.Info("refresh token cleanup completed",
		"deleted_count", deleted,
		"duration_seconds", time.Since(start).Seconds(),
	)
	return nil
}

// NewWorkers registers every worker the server runs.
func NewWorkers(tokens ExpiredTokenStore, logger *slog.Logger) *river.Workers {
	workers := river.NewWorkers()
	river.AddWorker[RefreshTokenCleanupArgs](workers, RefreshTokenCleanupWorker{Tokens: tokens, Logger: logger})
	return workers
}
