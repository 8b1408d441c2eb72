package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// ParseStatus accepts any casing of a known status.
func ParseStatus(value string) (Status, error) {
	switch Status(strings.ToUpper(strings.TrimSpace(value))) {
	case StatusPending:
		return StatusPending, nil
	case StatusApproved:
		return StatusApproved, nil
	case StatusRejected:
		return StatusRejected, nil
	default:
		return "", fmt.Errorf("unknown event status %q", value)
	}
}

type Speaker struct {
	Name    string `json:"name" validate:"required,max=255"`
	Company string `json:"company" validate:"required,max=255"`
}

type Event struct {
	ID               string          `json:"id"`
	OrganizationName string          `json:"organizationName"`
	EventName        string          `json:"eventName"`
	EventDescription string          `json:"eventDescription"`
	EventDate        time.Time       `json:"eventDate"`
	FreeEvent        bool            `json:"freeEvent"`
	EventCost        decimal.Decimal `json:"eventCost"`
	EventLink        string          `json:"eventLink"`
	EventType        string          `json:"eventType"`
	Location         string          `json:"location"`
	Industry         string          `json:"industry,omitempty"`
	Speakers         []Speaker       `json:"speakers"`
	EventImage       string          `json:"eventImage,omitempty"`
	Status           Status          `json:"status"`
	UserID           string          `json:"userId,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// VisibleTo reports whether a caller may read the event. Approved events are
// public; other statuses are visible to admins and to the submitter.
func (e *Event) VisibleTo(userID string, admin bool) bool {
	if admin || e.Status == StatusApproved {
		return true
	}
	return userID != "" && e.UserID == userID
}

// Input is the writable part of an event as submitted by clients.
type Input struct {
	OrganizationName string           `json:"organizationName" validate:"required,max=100"`
	EventName        string           `json:"eventName" validate:"required,max=100"`
	EventDescription string           `json:"eventDescription" validate:"required,max=65535"`
	EventDate        string           `json:"eventDate" validate:"required"`
	FreeEvent        *bool            `json:"freeEvent" validate:"required"`
	EventCost        *decimal.Decimal `json:"eventCost"`
	EventLink        string           `json:"eventLink" validate:"required,max=2048"`
	EventType        string           `json:"eventType" validate:"required,max=100"`
	Location         string           `json:"location" validate:"required,max=255"`
	Industry         string           `json:"industry" validate:"max=100"`
	Speakers         []Speaker        `json:"speakers" validate:"dive"`
	EventImage       string           `json:"eventImage" validate:"max=2048"`
}

// Repository persists events. Lookups return ErrNotFound when no row matches.
type Repository interface {
	List(ctx context.Context, query Query) ([]Event, int64, error)
	GetByID(ctx context.Context, id string) (*Event, error)
	Create(ctx context.Context, event Event) (*Event, error)
	Update(ctx context.Context, event Event) (*Event, error)
	UpdateStatus(ctx context.Context, id string, status Status, updatedAt time.Time) (*Event, error)
	Delete(ctx context.Context, id string) error
}
