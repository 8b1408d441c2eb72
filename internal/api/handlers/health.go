package handlers

import (
	"context"
	"net/http"
	"time"
)

// Database is what the readiness probe needs from storage.
// *postgres.Repository satisfies it.
type Database interface {
	Ping(ctx context.Context) error
	SchemaVersion(ctx context.Context) (version int64, dirty bool, err error)
}

// HealthCheck is the readiness report.
type HealthCheck struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	GitCommit string                 `json:"git_commit"`
	Checks    map[string]CheckResult `json:"checks"`
	Timestamp string                 `json:"timestamp"`
}

type CheckResult struct {
	Status    string         `json:"status"`
	Message   string         `json:"message,omitempty"`
	LatencyMs int64          `json:"latency_ms,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// HealthChecker serves the liveness and readiness probes.
type HealthChecker struct {
	db        Database
	version   string
	gitCommit string
	now       func() time.Time
}

func NewHealthChecker(db Database, version, gitCommit string) *HealthChecker {
	return &HealthChecker{db: db, version: version, gitCommit: gitCommit, now: time.Now}
}

// Live reports that the process is serving requests.
func (h *HealthChecker) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready reports whether the database is reachable and migrated. Any failing
// check turns the response into a 503.
func (h *HealthChecker) Ready(w http.ResponseWriter, r *http.Request) {
	if r.Context().Err() != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "shutting_down"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]CheckResult{
		"database":   h.checkDatabase(ctx),
		"migrations": h.checkMigrations(ctx),
	}

	status, code := "healthy", http.StatusOK
	for _, check := range checks {
		if check.Status == "fail" {
			status, code = "unhealthy", http.StatusServiceUnavailable
			break
		}
	}

	writeJSON(w, code, HealthCheck{
		Status:    status,
		Version:   h.version,
		GitCommit: h.gitCommit,
		Checks:    checks,
		Timestamp: h.now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthChecker) checkDatabase(ctx context.Context) CheckResult {
	if h.db == nil {
		return CheckResult{Status: "fail", Message: "Database not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	err := h.db.Ping(ctx)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return CheckResult{
			Status:    "fail",
			Message:   "Database ping failed",
			LatencyMs: latency,
			Details:   map[string]any{"error": err.Error()},
		}
	}
	return CheckResult{Status: "pass", Message: "PostgreSQL connection successful", LatencyMs: latency}
}

func (h *HealthChecker) checkMigrations(ctx context.Context) CheckResult {
	if h.db == nil {
		return CheckResult{Status: "fail", Message: "Database not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	version, dirty, err := h.db.SchemaVersion(ctx)
	if err != nil {
		return CheckResult{
			Status:  "fail",
			Message: "Failed to read migration version",
			Details: map[string]any{"error": err.Error(), "remediation": "run: server migrate up"},
		}
	}
	if dirty {
		return CheckResult{
			Status:  "fail",
			Message: "Database in dirty migration state",
			Details: map[string]any{"version": version, "dirty": true},
		}
	}
	return CheckResult{Status: "pass", Message: "Migrations applied", Details: map[string]any{"version": version}}
}
