package events

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100

	// MaxPageNumber keeps PageNumber*MaxPageSize well inside int range.
	MaxPageNumber = 1_000_000
)

// SortDirection is "asc" or "desc"; empty means ascending.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// FilterSpec is a parsed, not yet authorized, list request.
type FilterSpec struct {
	StartDate        *time.Time
	EndDate          *time.Time
	EventType        string
	Industry         string
	FreeEvent        *bool
	OrganizationName string
	Location         string
	SearchText       string
	Status           *Status
	PageNumber       int
	PageSize         int
	SortField        string
	SortDirection    SortDirection
}

// DefaultFilterSpec is the spec for a request with no query parameters.
func DefaultFilterSpec() FilterSpec {
	return FilterSpec{PageSize: DefaultPageSize}
}

// dateLayouts are tried in order. Values without an offset are read as UTC.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseFilters reads list parameters from a query string.
func ParseFilters(values url.Values) (FilterSpec, error) {
	spec := DefaultFilterSpec()

	startDate, err := parseDate("startDate", values.Get("startDate"))
	if err != nil {
		return spec, err
	}
	endDate, err := parseDate("endDate", values.Get("endDate"))
	if err != nil {
		return spec, err
	}
	if startDate != nil && endDate != nil && endDate.Before(*startDate) {
		return spec, FilterError{Field: "endDate", Message: "must be on or after startDate"}
	}
	spec.StartDate = startDate
	spec.EndDate = endDate

	spec.EventType = strings.TrimSpace(values.Get("eventType"))
	spec.Industry = strings.TrimSpace(values.Get("industry"))
	spec.OrganizationName = strings.TrimSpace(values.Get("organizationName"))
	spec.Location = strings.TrimSpace(values.Get("location"))
	spec.SearchText = strings.TrimSpace(values.Get("searchText"))

	if raw := strings.TrimSpace(values.Get("freeEvent")); raw != "" {
		free, err := strconv.ParseBool(raw)
		if err != nil {
			return spec, FilterError{Field: "freeEvent", Message: "must be true or false"}
		}
		spec.FreeEvent = &free
	}

	if raw := strings.TrimSpace(values.Get("status")); raw != "" {
		status, err := ParseStatus(raw)
		if err != nil {
			return spec, FilterError{Field: "status", Message: "must be one of PENDING, APPROVED, REJECTED"}
		}
		spec.Status = &status
	}

	if spec.PageNumber, err = parseInt(values, "page", 0); err != nil {
		return spec, err
	}
	if err = checkPageNumber(spec.PageNumber); err != nil {
		return spec, err
	}

	if spec.PageSize, err = parseInt(values, "size", DefaultPageSize); err != nil {
		return spec, err
	}
	if spec.PageSize < 1 {
		return spec, FilterError{Field: "size", Message: "must be at least 1"}
	}

	spec.SortField = strings.TrimSpace(values.Get("sortField"))
	if spec.SortField != "" {
		if _, ok := sortColumns[spec.SortField]; !ok {
			return spec, FilterError{Field: "sortField", Message: "unsupported sort field"}
		}
	}

	switch dir := SortDirection(strings.ToLower(strings.TrimSpace(values.Get("sortDirection")))); dir {
	case "", SortAsc, SortDesc:
		spec.SortDirection = dir
	default:
		return spec, FilterError{Field: "sortDirection", Message: "Sorting direction must be 'asc' or 'desc'"}
	}

	return spec, nil
}

func parseDate(field, value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			utc := parsed.UTC()
			return &utc, nil
		}
	}
	return nil, FilterError{Field: field, Message: "must be an ISO 8601 date-time (e.g. 2024-10-01T10:00:00)"}
}

func parseInt(values url.Values, field string, fallback int) (int, error) {
	raw := strings.TrimSpace(values.Get(field))
	if raw == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0, FilterError{Field: field, Message: "must be a number"}
	}
	return parsed, nil
}
