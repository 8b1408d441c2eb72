package events

import (
	"strconv"
	"strings"
	"time"

	"github.com/intheknowyyc/server/internal/auth"
)

// DefaultSortColumn orders lists when the request names no sort field.
const DefaultSortColumn = "event_date"

// sortColumns is the allow-list of sortable fields and their columns.
var sortColumns = map[string]string{
	"eventDate":        "event_date",
	"eventName":        "event_name",
	"organizationName": "organization_name",
	"eventType":        "event_type",
	"location":         "location",
	"industry":         "industry",
	"freeEvent":        "is_event_free",
	"eventCost":        "event_cost",
	"status":           "status",
	"createdAt":        "created_at",
	"updatedAt":        "updated_at",
}

// SortFields lists the accepted sortField values.
func SortFields() []string {
	fields := make([]string, 0, len(sortColumns))
	for field := range sortColumns {
		fields = append(fields, field)
	}
	return fields
}

// Query is a FilterSpec resolved against a caller's role: every value in it
// is safe to bind and every column is from the allow-list.
type Query struct {
	StartDate        *time.Time
	EndDate          *time.Time
	EventType        string
	Industry         string
	FreeEvent        *bool
	OrganizationName string
	Location         string

	// SearchPattern is a lower-cased LIKE pattern with metacharacters
	// escaped by backslash, or empty for no search.
	SearchPattern string

	// Status is nil when the listing spans every status.
	Status *Status

	SortColumn     string
	SortDescending bool

	PageNumber int
	PageSize   int
}

func (q Query) Limit() int {
	return q.PageSize
}

func (q Query) Offset() int {
	return q.PageNumber * q.PageSize
}

func checkPageNumber(page int) error {
	switch {
	case page < 0:
		return FilterError{Field: "page", Message: "must be zero or greater"}
	case page > MaxPageNumber:
		return FilterError{Field: "page", Message: "must be at most " + strconv.Itoa(MaxPageNumber)}
	}
	return nil
}

// Resolve applies the visibility rule and the sort allow-list to spec.
//
// Callers without the admin role only ever see APPROVED events, whatever
// status they asked for. Admins get the status they asked for, or all
// statuses when they named none.
func Resolve(spec FilterSpec, role auth.Role) (Query, error) {
	if err := checkPageNumber(spec.PageNumber); err != nil {
		return Query{}, err
	}
	if spec.PageSize < 1 {
		return Query{}, FilterError{Field: "size", Message: "must be at least 1"}
	}

	q := Query{
		StartDate:        spec.StartDate,
		EndDate:          spec.EndDate,
		EventType:        spec.EventType,
		Industry:         spec.Industry,
		FreeEvent:        spec.FreeEvent,
		OrganizationName: spec.OrganizationName,
		Location:         spec.Location,
		SearchPattern:    likePattern(spec.SearchText),
		PageNumber:       spec.PageNumber,
		PageSize:         min(spec.PageSize, MaxPageSize),
		SortColumn:       DefaultSortColumn,
	}

	if auth.IsAdmin(role) {
		if spec.Status != nil {
			status := *spec.Status
			q.Status = &status
		}
	} else {
		approved := StatusApproved
		q.Status = &approved
	}

	if spec.SortField != "" {
		column, ok := sortColumns[spec.SortField]
		if !ok {
			return Query{}, FilterError{Field: "sortField", Message: "unsupported sort field"}
		}
		q.SortColumn = column
	}
	switch spec.SortDirection {
	case "", SortAsc:
	case SortDesc:
		q.SortDescending = true
	default:
		return Query{}, FilterError{Field: "sortDirection", Message: "Sorting direction must be 'asc' or 'desc'"}
	}

	return q, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	return "%" + likeEscaper.Replace(strings.ToLower(text)) + "%"
}
