package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics. route is a path template such as /events/{id}/approve and
// status is a class such as 2xx, so both labels stay bounded.
var (
	HTTPRequestsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	HTTPRequestsInFlight = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Current number of HTTP requests being processed",
		},
	)

	HTTPResponseSize = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response body size in bytes",
			Buckets:   prometheus.ExponentialBuckets(128, 4, 6),
		},
		[]string{"method", "route"},
	)
)

type sizeRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (w *sizeRecorder) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *sizeRecorder) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.size += n
	return n, err
}

func (w *sizeRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

type routeKey struct{}

type routeHolder struct {
	route string
}

// HTTPMiddleware records request count, latency, in-flight and response size.
// Requests that never reach a Routes-wrapped mux are labelled "other".
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		start := time.Now()
		holder := &routeHolder{route: otherRoute}
		rec := &sizeRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), routeKey{}, holder)))

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}

		HTTPRequestsTotal.WithLabelValues(r.Method, holder.route, statusClass(status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, holder.route).Observe(time.Since(start).Seconds())
		HTTPResponseSize.WithLabelValues(r.Method, holder.route).Observe(float64(rec.size))
	})
}

// Routes hands the pattern mux matched for each request to the enclosing
// HTTPMiddleware, which uses it as the route label.
func Routes(mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if holder, ok := r.Context().Value(routeKey{}).(*routeHolder); ok {
			_, pattern := mux.Handler(r)
			holder.route = routeTemplate(pattern)
		}
		mux.ServeHTTP(w, r)
	})
}

const otherRoute = "other"

// routeTemplate drops the method from a mux pattern: "GET /events/{id}"
// becomes "/events/{id}". No match means "other".
func routeTemplate(pattern string) string {
	if pattern == "" {
		return otherRoute
	}
	if i := strings.IndexByte(pattern, ' '); i >= 0 {
		pattern = strings.TrimSpace(pattern[i+1:])
	}
	return pattern
}

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return strconv.Itoa(status)
	}
	return strconv.Itoa(status/100) + "xx"
}
