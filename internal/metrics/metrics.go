package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all server metrics
const namespace = "intheknow"

// Registry is the global Prometheus registry for all metrics
var Registry = prometheus.NewRegistry()

// AppInfo is a gauge that exposes application version information as labels
var AppInfo = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "app_info",
		Help:      "Application version information (always set to 1, version info in labels)",
	},
	[]string{"version", "commit", "build_date"},
)

// SessionOperationsTotal counts login, refresh and logout outcomes.
// result is one of: success, authentication_failed, invalid_token, token_expired, error
var SessionOperationsTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_operations_total",
		Help:      "Session operations by operation and result",
	},
	[]string{"operation", "result"},
)

// AuthenticatedRequestsTotal counts bearer-token outcomes in the request authenticator.
var AuthenticatedRequestsTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "authenticated_requests_total",
		Help:      "Requests carrying a bearer token, by outcome (identified, anonymous)",
	},
	[]string{"outcome"},
)

// EventQueriesTotal counts filtered event listings by caller role.
var EventQueriesTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "event_queries_total",
		Help:      "Filtered event listing queries by caller role",
	},
	[]string{"role"},
)

// RefreshTokensDeleted counts expired refresh tokens removed by the cleanup job.
var RefreshTokensDeleted = promauto.With(Registry).NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "refresh_tokens_deleted_total",
		Help:      "Total number of expired refresh tokens deleted by the cleanup job",
	},
)

// RefreshTokenCleanupErrors counts failed cleanup job runs.
var RefreshTokenCleanupErrors = promauto.With(Registry).NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "refresh_token_cleanup_errors_total",
		Help:      "Total number of failed refresh token cleanup runs",
	},
)

var initOnce sync.Once

// Init registers runtime collectors and sets version information.
// Safe to call more than once.
func Init(version, commit, buildDate string) {
	initOnce.Do(func() {
		// Register default Go metrics (memory, goroutines, GC, etc.)
		Registry.MustRegister(collectors.NewGoCollector())

		// Register process metrics (CPU, memory, file descriptors)
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})

	AppInfo.WithLabelValues(version, commit, buildDate).Set(1)
}
