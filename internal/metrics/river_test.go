package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRiverMetricsHook(t *testing.T) {
	const kind = "river_hook_test"
	ctx := context.Background()

	clock := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	hook := NewRiverMetricsHook()
	hook.now = func() time.Time { return clock }

	require.NoError(t, hook.InsertBegin(ctx, &rivertype.JobInsertParams{Kind: kind}))
	assert.Equal(t, 1.0, testutil.ToFloat64(RiverJobsQueued.WithLabelValues(kind)))

	ok := &rivertype.JobRow{ID: 1, Kind: kind}
	failed := &rivertype.JobRow{ID: 2, Kind: kind}
	require.NoError(t, hook.WorkBegin(ctx, ok))
	require.NoError(t, hook.WorkBegin(ctx, failed))
	assert.Equal(t, 2.0, testutil.ToFloat64(RiverJobsInFlight.WithLabelValues(kind)))

	clock = clock.Add(2 * time.Second)
	require.NoError(t, hook.WorkEnd(ctx, ok, nil))
	require.NoError(t, hook.WorkEnd(ctx, failed, errors.New("boom")))

	assert.Equal(t, 0.0, testutil.ToFloat64(RiverJobsInFlight.WithLabelValues(kind)))
	assert.Equal(t, 1.0, testutil.ToFloat64(RiverJobsCompleted.WithLabelValues(kind, "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(RiverJobsCompleted.WithLabelValues(kind, "error")))
	assert.Empty(t, hook.started)
}
