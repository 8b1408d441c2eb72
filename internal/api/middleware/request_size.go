package middleware

import (
	"net/http"

	"github.com/intheknowyyc/server/internal/api/problem"
)

// DefaultMaxBodySize applies when the server config leaves the limit unset.
const DefaultMaxBodySize int64 = 1 << 20

// RequestSize caps request bodies at maxBytes. Requests that declare a larger
// Content-Length are rejected with 413 up front; bodies that only turn out to
// be too large fail while the handler reads them.
func RequestSize(maxBytes int64, env string) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodySize
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				problem.Write(w, r, http.StatusRequestEntityTooLarge, problem.TypeTooLarge, "Payload too large", nil, env,
					problem.WithDetail("Request body is too large."))
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
