package pagination

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTotalPages(t *testing.T) {
	tests := []struct {
		total int64
		size  int
		want  int
	}{
		{total: 0, size: 10, want: 0},
		{total: 1, size: 10, want: 1},
		{total: 10, size: 10, want: 1},
		{total: 11, size: 10, want: 2},
		{total: 250, size: 100, want: 3},
		{total: 5, size: 0, want: 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TotalPages(tt.total, tt.size), "total=%d size=%d", tt.total, tt.size)
	}
}

func TestNewPageEncodesEnvelope(t *testing.T) {
	page := NewPage([]string{"a", "b"}, 12, 1, 2)

	raw, err := json.Marshal(page)
	require.NoError(t, err)
	assert.JSONEq(t, `{"content":["a","b"],"totalElements":12,"totalPages":6,"pageNumber":1,"pageSize":2}`, string(raw))
}

func TestNewPageEmptyContentIsArray(t *testing.T) {
	raw, err := json.Marshal(NewPage[string](nil, 0, 3, 10))
	require.NoError(t, err)
	assert.JSONEq(t, `{"content":[],"totalElements":0,"totalPages":0,"pageNumber":3,"pageSize":10}`, string(raw))
}
