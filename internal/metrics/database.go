package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DBQueryDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"operation"},
	)

	// error_type: canceled, timeout, constraint, connection, query_error
	DBErrors = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "db_errors_total",
			Help:      "Total number of database errors",
		},
		[]string{"operation", "error_type"},
	)
)

// RecordQuery observes one repository call. Use it deferred:
//
//	defer func(start time.Time) { metrics.RecordQuery("list_events", start, err) }(time.Now())
func RecordQuery(operation string, start time.Time, err error) {
	DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err == nil || errors.Is(err, pgx.ErrNoRows) {
		return
	}
	DBErrors.WithLabelValues(operation, classifyDBError(err)).Inc()
}

func classifyDBError(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) >= 2 {
		switch pgErr.Code[:2] {
		case "23":
			return "constraint"
		case "08":
			return "connection"
		}
		return "query_error"
	}
	if pgconn.SafeToRetry(err) {
		return "connection"
	}
	return "query_error"
}

// PoolStats is the part of *pgxpool.Stat the pool collector reads.
type PoolStats interface {
	TotalConns() int32
	AcquiredConns() int32
	IdleConns() int32
	MaxConns() int32
	AcquireCount() int64
	EmptyAcquireCount() int64
	AcquireDuration() time.Duration
}

// poolCollector reads connection pool statistics at scrape time.
type poolCollector struct {
	stats func() PoolStats

	open, inUse, idle, maxConns     *prometheus.Desc
	acquires, emptyAcquires, waited *prometheus.Desc
}

func newPoolCollector(stats func() PoolStats) *poolCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "db", name), help, nil, nil)
	}
	return &poolCollector{
		stats:         stats,
		open:          desc("connections_open", "Total number of open database connections"),
		inUse:         desc("connections_in_use", "Number of database connections currently acquired"),
		idle:          desc("connections_idle", "Number of idle database connections"),
		maxConns:      desc("connections_max", "Maximum size of the connection pool"),
		acquires:      desc("acquires_total", "Total number of successful connection acquires"),
		emptyAcquires: desc("empty_acquires_total", "Acquires that had to wait because the pool was empty"),
		waited:        desc("acquire_wait_seconds_total", "Total time spent acquiring connections"),
	}
}

func (c *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{c.open, c.inUse, c.idle, c.maxConns, c.acquires, c.emptyAcquires, c.waited} {
		ch <- d
	}
}

func (c *poolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats()
	if s == nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(c.open, prometheus.GaugeValue, float64(s.TotalConns()))
	ch <- prometheus.MustNewConstMetric(c.inUse, prometheus.GaugeValue, float64(s.AcquiredConns()))
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(s.IdleConns()))
	ch <- prometheus.MustNewConstMetric(c.maxConns, prometheus.GaugeValue, float64(s.MaxConns()))
	ch <- prometheus.MustNewConstMetric(c.acquires, prometheus.CounterValue, float64(s.AcquireCount()))
	ch <- prometheus.MustNewConstMetric(c.emptyAcquires, prometheus.CounterValue, float64(s.EmptyAcquireCount()))
	ch <- prometheus.MustNewConstMetric(c.waited, prometheus.CounterValue, s.AcquireDuration().Seconds())
}

// RegisterPool exposes the pool's statistics on Registry. *pgxpool.Pool's
// Stat method fits stats:
//
//	metrics.RegisterPool(func() metrics.PoolStats { return pool.Stat() })
func RegisterPool(stats func() PoolStats) error {
	return Registry.Register(newPoolCollector(stats))
}
