package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/intheknowyyc/server/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTokenStore struct {
	deleted int64
	err     error
	gotNow  time.Time
}

func (s *stubTokenStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.gotNow = now
	return s.deleted, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func cleanupJob() *river.Job[RefreshTokenCleanupArgs] {
	return &river.Job[RefreshTokenCleanupArgs]{JobRow: &rivertype.JobRow{ID: 1, Kind: JobKindRefreshTokenCleanup, Attempt: 1}}
}

func TestRefreshTokenCleanupWorker(t *testing.T) {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	store := &stubTokenStore{deleted: 4}
	worker := RefreshTokenCleanupWorker{Tokens: store, Logger: discardLogger(), Now: func() time.Time { return now }}

	before := testutil.ToFloat64(metrics.RefreshTokensDeleted)
	require.NoError(t, worker.Work(context.Background(), cleanupJob()))

	assert.Equal(t, now, store.gotNow)
	assert.Equal(t, before+4, testutil.ToFloat64(metrics.RefreshTokensDeleted))
}

func TestRefreshTokenCleanupWorkerFailure(t *testing.T) {
	store := &stubTokenStore{err: errors.New("connection refused")}
	worker := RefreshTokenCleanupWorker{Tokens: store, Logger: discardLogger()}

	before := testutil.ToFloat64(metrics.RefreshTokenCleanupErrors)
	err := worker.Work(context.Background(), cleanupJob())

	require.Error(t, err)
	assert.ErrorIs(t, err, store.err)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.RefreshTokenCleanupErrors))
	assert.False(t, store.gotNow.IsZero(), "defaults to the wall clock")
}

func TestRefreshTokenCleanupWorkerUnconfigured(t *testing.T) {
	err := RefreshTokenCleanupWorker{}.Work(context.Background(), cleanupJob())
	assert.ErrorContains(t, err, "not configured")
}

func TestRefreshTokenCleanupArgsKind(t *testing.T) {
	assert.Equal(t, JobKindRefreshTokenCleanup, RefreshTokenCleanupArgs{}.Kind())
	assert.Equal(t, JobKindRefreshTokenCleanup, RefreshTokenCleanupWorker{}.Kind())
	assert.NotNil(t, NewWorkers(&stubTokenStore{}, discardLogger()))
}
