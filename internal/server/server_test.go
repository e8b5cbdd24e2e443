package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	clog "github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcampanini/grove-status/internal/aggregator"
	"github.com/jmcampanini/grove-status/internal/config"
	"github.com/jmcampanini/grove-status/internal/status"
)

type staticReader struct {
	snap aggregator.Snapshot
	at   time.Time
}

func (r staticReader) Latest() (aggregator.Snapshot, time.Time) { return r.snap, r.at }

var updatedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testSnapshot() aggregator.Snapshot {
	return aggregator.Snapshot{
		Statuses: map[string]status.PullRequestStatus{
			aggregator.Key("widgets", "feature"): status.Open(7, "https://github.com/acme/widgets/pull/7", status.PipelineRunning),
			aggregator.Key("widgets", "main"):    status.None(),
		},
		Providers: map[string]aggregator.ProviderState{"widgets": aggregator.ProviderOK},
	}
}

func newTestServer(t *testing.T, reader aggregator.Reader) *httptest.Server {
	t.Helper()
	s := New(reader, config.ServerConfig{AllowedOrigins: []string{"http://localhost:3000"}}, clog.New(io.Discard))
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return ts
}

func get(t *testing.T, url string, header ...string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, staticReader{})

	resp, body := get(t, ts.URL+"/healthz")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestSnapshot(t *testing.T) {
	ts := newTestServer(t, staticReader{snap: testSnapshot(), at: updatedAt})

	resp, body := get(t, ts.URL+"/api/snapshot")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "Sun, 01 Mar 2026 12:00:00 GMT", resp.Header.Get("Last-Modified"))
	assert.JSONEq(t, `{
		"statuses": {
			"widgets:feature": {"state":"open","number":7,"url":"https://github.com/acme/widgets/pull/7","pipeline":"running"},
			"widgets:main": {"state":"none"}
		},
		"providers": {"widgets":"ok"}
	}`, string(body))
}

func TestSnapshot_BeforeFirstCycle(t *testing.T) {
	ts := newTestServer(t, staticReader{})

	resp, body := get(t, ts.URL+"/api/snapshot")

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))
	assert.JSONEq(t, `{"error":"no snapshot yet"}`, string(body))
}

func TestStatus(t *testing.T) {
	ts := newTestServer(t, staticReader{snap: testSnapshot(), at: updatedAt})

	tests := []struct {
		name       string
		query      string
		wantCode   int
		wantStatus status.PullRequestStatus
	}{
		{"tracked open branch", "?repo=widgets&branch=feature", http.StatusOK, status.Open(7, "https://github.com/acme/widgets/pull/7", status.PipelineRunning)},
		{"tracked branch without request", "?repo=widgets&branch=main", http.StatusOK, status.None()},
		{"untracked branch", "?repo=widgets&branch=nope", http.StatusNotFound, status.None()},
		{"missing branch", "?repo=widgets", http.StatusBadRequest, status.None()},
		{"missing repo", "?branch=main", http.StatusBadRequest, status.None()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := get(t, ts.URL+"/api/status"+tt.query)
			require.Equal(t, tt.wantCode, resp.StatusCode, string(body))
			if tt.wantCode != http.StatusOK {
				var e ErrorResponse
				require.NoError(t, json.Unmarshal(body, &e))
				assert.NotEmpty(t, e.Error)
				return
			}
			var got StatusResponse
			require.NoError(t, json.Unmarshal(body, &got))
			assert.Equal(t, "widgets", got.Repository)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, aggregator.ProviderOK, got.Provider)
		})
	}
}

func TestStatus_BranchWithSlash(t *testing.T) {
	snap := aggregator.Snapshot{
		Statuses: map[string]status.PullRequestStatus{aggregator.Key("widgets", "feature/login"): status.Merged(3)},
	}
	ts := newTestServer(t, staticReader{snap: snap, at: updatedAt})

	resp, body := get(t, ts.URL+"/api/status?repo=widgets&branch=feature%2Flogin")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"repo":"widgets","branch":"feature/login","status":{"state":"merged","number":3}}`, string(body))
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t, staticReader{snap: testSnapshot(), at: updatedAt})

	resp, _ := get(t, ts.URL+"/api/snapshot", "Origin", "http://localhost:3000")
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, _ = get(t, ts.URL+"/api/snapshot", "Origin", "http://evil.example")
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t, staticReader{})

	resp, _ := get(t, ts.URL+"/api/nope")

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListenAndServe_StopsOnCancel(t *testing.T) {
	s := New(staticReader{}, config.ServerConfig{}, clog.New(io.Discard))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
