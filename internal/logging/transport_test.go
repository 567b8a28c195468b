package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// apiCallEntry mirrors the JSON fields written by the logging transport.
type apiCallEntry struct {
	Time       string  `json:"time"`
	Level      string  `json:"level"`
	Msg        string  `json:"msg"`
	Category   string  `json:"category"`
	Method     string  `json:"method"`
	URL        string  `json:"url"`
	Path       string  `json:"path"`
	Status     int     `json:"status"`
	DurationMs float64 `json:"duration_ms"`
	Caller     string  `json:"caller"`
	Error      string  `json:"error"`
}

func TestLoggingRoundTripper(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		path           string
		responseStatus int
		responseBody   string
	}{
		{
			name:           "list package versions",
			method:         "GET",
			path:           "/orgs/acme/packages/container/widget/versions",
			responseStatus: 200,
			responseBody:   `[]`,
		},
		{
			name:           "delete package version",
			method:         "DELETE",
			path:           "/orgs/acme/packages/container/widget/versions/42",
			responseStatus: 204,
		},
		{
			name:           "registry manifest",
			method:         "HEAD",
			path:           "/v2/acme/widget/manifests/v1.2.3",
			responseStatus: 200,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.responseStatus)
				w.Write([]byte(tt.responseBody))
			}))
			defer server.Close()

			var logBuf bytes.Buffer
			client := &http.Client{Transport: NewLoggingRoundTripper(http.DefaultTransport, &logBuf)}

			req, err := http.NewRequest(tt.method, server.URL+tt.path, nil)
			require.NoError(t, err)

			resp, err := client.Do(req)
			require.NoError(t, err)
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()

			var entry apiCallEntry
			require.NoError(t, json.Unmarshal(logBuf.Bytes(), &entry), "output: %s", logBuf.String())

			assert.Equal(t, "info", entry.Level)
			assert.Equal(t, "api call", entry.Msg)
			assert.Equal(t, tt.method, entry.Method)
			assert.Equal(t, tt.responseStatus, entry.Status)
			assert.Equal(t, tt.path, entry.Path)
			assert.Greater(t, entry.DurationMs, float64(0))
			assert.NotEmpty(t, entry.Time)
			assert.True(t, strings.Contains(entry.URL, tt.path))
		})
	}
}

func TestLoggingRoundTripperError(t *testing.T) {
	var logBuf bytes.Buffer
	client := &http.Client{Transport: NewLoggingRoundTripper(&errorTransport{err: io.EOF}, &logBuf)}

	req, _ := http.NewRequest("GET", "http://example.com/test", nil)
	_, err := client.Do(req)
	require.Error(t, err)

	var entry apiCallEntry
	require.NoError(t, json.Unmarshal(logBuf.Bytes(), &entry))

	assert.Equal(t, "error", entry.Level)
	assert.Contains(t, entry.Error, "EOF")
	assert.Zero(t, entry.Status)
}

func TestCategorizeAPICall(t *testing.T) {
	tests := []struct {
		url      string
		want     string
		wantPath string
	}{
		{
			url:      "https://api.github.com/orgs/acme/packages/container/widget/versions?page=1",
			want:     "github",
			wantPath: "/orgs/acme/packages/container/widget/versions?page=1",
		},
		{
			url:      "https://ghe.example.com/api/v3/users/jdoe/packages",
			want:     "github",
			wantPath: "/api/v3/users/jdoe/packages",
		},
		{
			url:      "https://ghcr.io/v2/acme/widget/manifests/latest",
			want:     "registry",
			wantPath: "/v2/acme/widget/manifests/latest",
		},
		{
			url:      "https://ghcr.io/token?scope=repository",
			want:     "registry",
			wantPath: "/token?scope=repository",
		},
		{
			url:      "https://other.example.com/api",
			want:     "other",
			wantPath: "/api",
		},
		{
			url:      "https://other.example.com",
			want:     "other",
			wantPath: "/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			category, path := categorizeAPICall(tt.url)
			assert.Equal(t, tt.want, category)
			assert.Equal(t, tt.wantPath, path)
		})
	}
}

func TestCallerInfo(t *testing.T) {
	caller := getCallerInfo()

	assert.NotEqual(t, "unknown", caller)
	assert.GreaterOrEqual(t, len(strings.Split(caller, ":")), 3, "expected file:line:function, got %q", caller)
}

// errorTransport is a test helper that always returns an error
type errorTransport struct {
	err error
}

func (t *errorTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return nil, t.err
}

func TestLoggingDisabledByDefault(t *testing.T) {
	assert.False(t, IsLoggingEnabled(context.Background()))
}

func TestEnableLogging(t *testing.T) {
	ctx := EnableLogging(context.Background())
	assert.True(t, IsLoggingEnabled(ctx))
}
