package events

import (
	"math"
	"testing"

	"github.com/intheknowyyc/server/internal/auth"
	"github.com/stretchr/testify/require"
)

func statusPtr(s Status) *Status { return &s }

func TestResolveVisibility(t *testing.T) {
	tests := []struct {
		name      string
		role      auth.Role
		requested *Status
		want      *Status
	}{
		{"anonymous default", "", nil, statusPtr(StatusApproved)},
		{"anonymous asks rejected", "", statusPtr(StatusRejected), statusPtr(StatusApproved)},
		{"user asks pending", auth.RoleUser, statusPtr(StatusPending), statusPtr(StatusApproved)},
		{"user asks approved", auth.RoleUser, statusPtr(StatusApproved), statusPtr(StatusApproved)},
		{"admin default spans all", auth.RoleAdmin, nil, nil},
		{"admin asks pending", auth.RoleAdmin, statusPtr(StatusPending), statusPtr(StatusPending)},
		{"admin asks rejected", auth.RoleAdmin, statusPtr(StatusRejected), statusPtr(StatusRejected)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := DefaultFilterSpec()
			spec.Status = tt.requested

			q, err := Resolve(spec, tt.role)

			require.NoError(t, err)
			if tt.want == nil {
				require.Nil(t, q.Status)
				return
			}
			require.NotNil(t, q.Status)
			require.Equal(t, *tt.want, *q.Status)
		})
	}
}

func TestResolveDoesNotAliasSpecStatus(t *testing.T) {
	spec := DefaultFilterSpec()
	spec.Status = statusPtr(StatusPending)

	q, err := Resolve(spec, auth.RoleAdmin)
	require.NoError(t, err)

	*spec.Status = StatusRejected
	require.Equal(t, StatusPending, *q.Status)
}

func TestResolveSearchPattern(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"", ""},
		{"   ", ""},
		{"Tech", "%tech%"},
		{"100%", `%100\%%`},
		{"snake_case", `%snake\_case%`},
		{`back\slash`, `%back\\slash%`},
	}
	for _, tt := range tests {
		spec := DefaultFilterSpec()
		spec.SearchText = tt.text
		q, err := Resolve(spec, "")
		require.NoError(t, err)
		require.Equal(t, tt.want, q.SearchPattern, "search %q", tt.text)
	}
}

func TestResolveSort(t *testing.T) {
	spec := DefaultFilterSpec()
	q, err := Resolve(spec, "")
	require.NoError(t, err)
	require.Equal(t, DefaultSortColumn, q.SortColumn)
	require.False(t, q.SortDescending)

	spec.SortField = "organizationName"
	spec.SortDirection = SortDesc
	q, err = Resolve(spec, "")
	require.NoError(t, err)
	require.Equal(t, "organization_name", q.SortColumn)
	require.True(t, q.SortDescending)

	spec.SortField = "freeEvent"
	spec.SortDirection = ""
	q, err = Resolve(spec, "")
	require.NoError(t, err)
	require.Equal(t, "is_event_free", q.SortColumn)
	require.False(t, q.SortDescending)

	spec.SortField = "user_id"
	_, err = Resolve(spec, auth.RoleAdmin)
	assertFilterError(t, err, "sortField")

	spec.SortField = ""
	spec.SortDirection = "up"
	_, err = Resolve(spec, "")
	assertFilterError(t, err, "sortDirection")
}

func TestResolvePaging(t *testing.T) {
	spec := DefaultFilterSpec()
	spec.PageNumber = 3
	spec.PageSize = 20

	q, err := Resolve(spec, "")
	require.NoError(t, err)
	require.Equal(t, 20, q.Limit())
	require.Equal(t, 60, q.Offset())

	spec.PageSize = 1000
	q, err = Resolve(spec, "")
	require.NoError(t, err)
	require.Equal(t, MaxPageSize, q.PageSize)

	spec.PageNumber = -1
	_, err = Resolve(spec, "")
	assertFilterError(t, err, "page")

	spec.PageNumber = MaxPageNumber
	q, err = Resolve(spec, "")
	require.NoError(t, err)
	require.Equal(t, MaxPageNumber*MaxPageSize, q.Offset())

	spec.PageNumber = math.MaxInt/MaxPageSize + 1
	_, err = Resolve(spec, "")
	assertFilterError(t, err, "page")

	spec.PageNumber = 0
	spec.PageSize = 0
	_, err = Resolve(spec, "")
	assertFilterError(t, err, "size")
}

func TestSortFieldsMatchAllowList(t *testing.T) {
	require.Len(t, SortFields(), len(sortColumns))
	require.Contains(t, SortFields(), "eventDate")
}
