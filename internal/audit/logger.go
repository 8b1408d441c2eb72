package audit

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/intheknowyyc/server/internal/auth"
	"github.com/rs/zerolog"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Entry is one privileged operation.
type Entry struct {
	Timestamp    time.Time
	Action       string
	ActorID      string
	ActorRole    auth.Role
	ResourceType string
	ResourceID   string
	IPAddress    string
	Status       string
	Details      map[string]string
}

// Logger writes audit entries as structured log lines tagged audit=true so
// they can be routed apart from request logs.
type Logger struct {
	out zerolog.Logger
	now func() time.Time
}

func NewLogger(logger zerolog.Logger) *Logger {
	return &Logger{
		out: logger.With().Str("component", "audit").Bool("audit", true).Logger(),
		now: time.Now,
	}
}

// Log writes entry. A nil Logger discards it.
func (l *Logger) Log(ctx context.Context, entry Entry) {
	if l == nil {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = l.now().UTC()
	}

	event := l.out.Info()
	if entry.Status == StatusFailure {
		event = l.out.Warn()
	}
	event = event.
		Time("at", entry.Timestamp).
		Str("action", entry.Action).
		Str("actor_id", entry.ActorID).
		Str("actor_role", string(entry.ActorRole)).
		Str("status", entry.Status)
	if entry.ResourceType != "" {
		event = event.Str("resource_type", entry.ResourceType)
	}
	if entry.ResourceID != "" {
		event = event.Str("resource_id", entry.ResourceID)
	}
	if entry.IPAddress != "" {
		event = event.Str("ip_address", entry.IPAddress)
	}
	if len(entry.Details) > 0 {
		dict := zerolog.Dict()
		for k, v := range entry.Details {
			dict = dict.Str(k, v)
		}
		event = event.Dict("details", dict)
	}
	event.Ctx(ctx).Msg("audit")
}

// Record logs the outcome of action on a resource, taking the actor from
// the request's identity. A non-nil err marks the entry as a failure.
func (l *Logger) Record(r *http.Request, action, resourceType, resourceID string, err error) {
	if l == nil {
		return
	}
	identity, _ := auth.IdentityFromContext(r.Context())

	entry := Entry{
		Action:       action,
		ActorID:      identity.ID,
		ActorRole:    identity.Role,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    clientIP(r),
		Status:       StatusSuccess,
	}
	if err != nil {
		entry.Status = StatusFailure
		entry.Details = map[string]string{"error": err.Error()}
	}
	l.Log(r.Context(), entry)
}

// clientIP is the connection's remote host. Forwarding headers are not
// trusted here.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
