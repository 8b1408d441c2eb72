package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionHandler(t *testing.T) {
	tests := []struct {
		name                               string
		version, gitCommit, built          string
		wantVersion, wantCommit, wantBuilt string
	}{
		{
			name: "all values", version: "0.3.0", gitCommit: "abc123", built: "2026-10-01T12:00:00Z",
			wantVersion: "0.3.0", wantCommit: "abc123", wantBuilt: "2026-10-01T12:00:00Z",
		},
		{name: "defaults", wantVersion: "dev", wantCommit: "unknown", wantBuilt: "unknown"},
		{
			name: "partial", version: "1.0.0",
			wantVersion: "1.0.0", wantCommit: "unknown", wantBuilt: "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := httptest.NewRecorder()
			VersionHandler(tt.version, tt.gitCommit, tt.built).
				ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/version", nil))

			require.Equal(t, http.StatusOK, res.Code)
			var body versionResponse
			require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
			assert.Equal(t, tt.wantVersion, body.Version)
			assert.Equal(t, tt.wantCommit, body.GitCommit)
			assert.Equal(t, tt.wantBuilt, body.BuildDate)
			assert.Equal(t, runtime.Version(), body.GoVersion)
		})
	}
}
