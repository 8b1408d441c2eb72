package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/intheknowyyc/server/internal/auth"
	"github.com/intheknowyyc/server/internal/domain/ids"
	"github.com/intheknowyyc/server/internal/sanitize"
	"github.com/intheknowyyc/server/internal/validation"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// maxCost is the exclusive upper bound of numeric(12,2).
var maxCost = decimal.New(1, 10)

type Service struct {
	repo         Repository
	logger       zerolog.Logger
	validator    *validator.Validate
	now          func() time.Time
	requireHTTPS bool
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithHTTPSLinks rejects plain-http event and image links.
func WithHTTPSLinks(required bool) Option {
	return func(s *Service) {
		s.requireHTTPS = required
	}
}

func NewService(repo Repository, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		logger:    logger.With().Str("component", "events").Logger(),
		validator: validator.New(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List resolves the filters for the caller's role and returns one page plus the
// total number of matching events.
func (s *Service) List(ctx context.Context, caller auth.Identity, spec FilterSpec) ([]Event, int64, Query, error) {
	query, err := Resolve(spec, caller.Role)
	if err != nil {
		return nil, 0, Query{}, err
	}
	items, total, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, 0, Query{}, err
	}
	return items, total, query, nil
}

// Get returns an event the caller may see. Hidden events report ErrNotFound.
func (s *Service) Get(ctx context.Context, caller auth.Identity, id string) (*Event, error) {
	id, err := ids.Normalize(id)
	if err != nil {
		return nil, ErrNotFound
	}
	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !event.VisibleTo(caller.ID, caller.IsAdmin()) {
		return nil, ErrNotFound
	}
	return event, nil
}

// Create stores a new event owned by the caller. Admin submissions are
// APPROVED immediately; everyone else's start PENDING.
func (s *Service) Create(ctx context.Context, caller auth.Identity, input Input) (*Event, error) {
	if caller.ID == "" {
		return nil, ErrForbidden
	}

	event, err := s.prepare(input)
	if err != nil {
		return nil, err
	}

	id, err := ids.NewULID()
	if err != nil {
		return nil, fmt.Errorf("generate event id: %w", err)
	}
	now := s.now().UTC()
	event.ID = id
	event.UserID = caller.ID
	event.CreatedAt = now
	event.UpdatedAt = now
	event.Status = StatusPending
	if caller.IsAdmin() {
		event.Status = StatusApproved
	}

	created, err := s.repo.Create(ctx, event)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("event_id", created.ID).
		Str("user_id", caller.ID).
		Str("status", string(created.Status)).
		Msg("event created")
	return created, nil
}

// Update replaces the writable fields of an event. Admin only.
func (s *Service) Update(ctx context.Context, caller auth.Identity, id string, input Input) (*Event, error) {
	if !caller.IsAdmin() {
		return nil, ErrForbidden
	}
	id, err := ids.Normalize(id)
	if err != nil {
		return nil, ErrNotFound
	}

	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	event, err := s.prepare(input)
	if err != nil {
		return nil, err
	}
	event.ID = existing.ID
	event.UserID = existing.UserID
	event.Status = existing.Status
	event.CreatedAt = existing.CreatedAt
	event.UpdatedAt = s.now().UTC()

	updated, err := s.repo.Update(ctx, event)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("event_id", id).Str("updated_by", caller.ID).Msg("event updated")
	return updated, nil
}

// Delete removes an event. Admin only.
func (s *Service) Delete(ctx context.Context, caller auth.Identity, id string) error {
	if !caller.IsAdmin() {
		return ErrForbidden
	}
	id, err := ids.Normalize(id)
	if err != nil {
		return ErrNotFound
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("event_id", id).Str("deleted_by", caller.ID).Msg("event deleted")
	return nil
}

// Approve publishes a PENDING or REJECTED event. Admin only.
func (s *Service) Approve(ctx context.Context, caller auth.Identity, id string) (*Event, error) {
	return s.transition(ctx, caller, id, StatusApproved, func(current Status) error {
		if current == StatusApproved {
			return ruleError("Event is already approved.")
		}
		return nil
	})
}

// Reject declines a PENDING event. Admin only; approved events cannot be
// rejected.
func (s *Service) Reject(ctx context.Context, caller auth.Identity, id string) (*Event, error) {
	return s.transition(ctx, caller, id, StatusRejected, func(current Status) error {
		switch current {
		case StatusApproved:
			return ruleError("Cannot reject an already approved event.")
		case StatusRejected:
			return ruleError("Event is already rejected.")
		}
		return nil
	})
}

func (s *Service) transition(ctx context.Context, caller auth.Identity, id string, to Status, allowed func(Status) error) (*Event, error) {
	if !caller.IsAdmin() {
		return nil, ErrForbidden
	}
	id, err := ids.Normalize(id)
	if err != nil {
		return nil, ErrNotFound
	}

	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := allowed(event.Status); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateStatus(ctx, id, to, s.now().UTC())
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("event_id", id).
		Str("from", string(event.Status)).
		Str("to", string(to)).
		Str("reviewed_by", caller.ID).
		Msg("event status changed")
	return updated, nil
}

// prepare validates and sanitizes input into an Event without identity,
// ownership or timestamps.
func (s *Service) prepare(input Input) (Event, error) {
	sanitize.InPlace(&input.OrganizationName, &input.EventName, &input.EventType,
		&input.Location, &input.Industry)
	input.EventLink = strings.TrimSpace(input.EventLink)
	input.EventImage = strings.TrimSpace(input.EventImage)
	input.EventDescription = sanitize.HTML(input.EventDescription)
	for i := range input.Speakers {
		sanitize.InPlace(&input.Speakers[i].Name, &input.Speakers[i].Company)
	}

	if err := s.validator.Struct(input); err != nil {
		return Event{}, newValidationError(err)
	}

	eventDate, err := parseDate("eventDate", input.EventDate)
	if err != nil {
		return Event{}, fieldError("eventDate", "must be an ISO 8601 date-time")
	}

	links := []struct{ field, value string }{
		{"eventLink", input.EventLink},
		{"eventImage", input.EventImage},
	}
	for _, link := range links {
		if err := validation.HTTPURL(link.value, link.field, s.requireHTTPS); err != nil {
			var urlErr validation.URLError
			if errors.As(err, &urlErr) {
				return Event{}, fieldError(link.field, urlErr.Message)
			}
			return Event{}, fieldError(link.field, "is invalid")
		}
	}

	cost := decimal.Zero
	if input.EventCost != nil {
		cost = *input.EventCost
	}
	if err := checkCost(*input.FreeEvent, cost); err != nil {
		return Event{}, err
	}

	speakers := input.Speakers
	if speakers == nil {
		speakers = []Speaker{}
	}

	return Event{
		OrganizationName: input.OrganizationName,
		EventName:        input.EventName,
		EventDescription: input.EventDescription,
		EventDate:        *eventDate,
		FreeEvent:        *input.FreeEvent,
		EventCost:        cost.Round(2),
		EventLink:        input.EventLink,
		EventType:        input.EventType,
		Location:         input.Location,
		Industry:         input.Industry,
		Speakers:         speakers,
		EventImage:       input.EventImage,
	}, nil
}

func checkCost(free bool, cost decimal.Decimal) error {
	if !cost.Equal(cost.Round(2)) {
		return fieldError("eventCost", "must have at most 2 decimal places")
	}
	if cost.Abs().GreaterThanOrEqual(maxCost) {
		return fieldError("eventCost", "must be less than 10000000000")
	}
	if free && !cost.IsZero() {
		return ruleError("Event cost must be zero for free events.")
	}
	if !free && !cost.IsPositive() {
		return ruleError("Event cost must be greater than zero for paid events.")
	}
	return nil
}
