package handlers

import (
	"context"
	"net/http"

	"github.com/intheknowyyc/server/internal/api/pagination"
	"github.com/intheknowyyc/server/internal/audit"
	"github.com/intheknowyyc/server/internal/auth"
	"github.com/intheknowyyc/server/internal/domain/events"
	"github.com/intheknowyyc/server/internal/metrics"
)

// EventService is the part of *events.Service the handlers call.
type EventService interface {
	List(ctx context.Context, caller auth.Identity, spec events.FilterSpec) ([]events.Event, int64, events.Query, error)
	Get(ctx context.Context, caller auth.Identity, id string) (*events.Event, error)
	Create(ctx context.Context, caller auth.Identity, input events.Input) (*events.Event, error)
	Update(ctx context.Context, caller auth.Identity, id string, input events.Input) (*events.Event, error)
	Delete(ctx context.Context, caller auth.Identity, id string) error
	Approve(ctx context.Context, caller auth.Identity, id string) (*events.Event, error)
	Reject(ctx context.Context, caller auth.Identity, id string) (*events.Event, error)
}

type EventsHandler struct {
	Service EventService
	Env     string
	// Audit records moderator actions. Nil disables it.
	Audit *audit.Logger
}

func NewEventsHandler(service EventService, env string) *EventsHandler {
	return &EventsHandler{Service: service, Env: env}
}

func caller(r *http.Request) auth.Identity {
	identity, _ := auth.IdentityFromContext(r.Context())
	return identity
}

// List returns one page of events matching the query-string filters.
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	spec, err := events.ParseFilters(r.URL.Query())
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	identity := caller(r)
	items, total, query, err := h.Service.List(r.Context(), identity, spec)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	role := "anonymous"
	if identity.Role != "" {
		role = string(identity.Role)
	}
	metrics.EventQueriesTotal.WithLabelValues(role).Inc()

	writeJSON(w, http.StatusOK, pagination.NewPage(items, total, query.PageNumber, query.PageSize))
}

func (h *EventsHandler) Get(w http.ResponseWriter, r *http.Request) {
	event, err := h.Service.Get(r.Context(), caller(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (h *EventsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input events.Input
	if err := decodeJSON(r, &input); err != nil {
		writeDecodeError(w, r, err, h.Env)
		return
	}

	event, err := h.Service.Create(r.Context(), caller(r), input)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	w.Header().Set("Location", "/events/"+event.ID)
	writeJSON(w, http.StatusCreated, event)
}

func (h *EventsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var input events.Input
	if err := decodeJSON(r, &input); err != nil {
		writeDecodeError(w, r, err, h.Env)
		return
	}

	event, err := h.Service.Update(r.Context(), caller(r), r.PathValue("id"), input)
	h.Audit.Record(r, "event.update", "event", r.PathValue("id"), err)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (h *EventsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.Service.Delete(r.Context(), caller(r), r.PathValue("id"))
	h.Audit.Record(r, "event.delete", "event", r.PathValue("id"), err)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *EventsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	event, err := h.Service.Approve(r.Context(), caller(r), r.PathValue("id"))
	h.Audit.Record(r, "event.approve", "event", r.PathValue("id"), err)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (h *EventsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	event, err := h.Service.Reject(r.Context(), caller(r), r.PathValue("id"))
	h.Audit.Record(r, "event.reject", "event", r.PathValue("id"), err)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, event)
}
