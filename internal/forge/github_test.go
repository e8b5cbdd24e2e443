package forge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcampanini/grove-status/internal/config"
	"github.com/jmcampanini/grove-status/internal/status"
)

const pullsPath = "GET /api/v3/repos/octo/widgets/pulls"

func newGitHubServer(t *testing.T, mux *http.ServeMux) (*httptest.Server, config.RepositoryConfig) {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, config.RepositoryConfig{
		Name:     "widgets",
		Provider: "github",
		BaseURL:  srv.URL,
		Repo:     "octo/widgets",
		Token:    "gh-secret",
	}
}

func TestGitHub_OpenPullRequestWithChecks(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(pullsPath, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "octo:feature", r.URL.Query().Get("head"))
		assert.Equal(t, "all", r.URL.Query().Get("state"))
		assert.Equal(t, "Bearer gh-secret", r.Header.Get("Authorization"))
		writeJSON(w, []map[string]any{{
			"number":    7,
			"state":     "open",
			"html_url":  "https://github.com/octo/widgets/pull/7",
			"draft":     false,
			"merged_at": nil,
			"head":      map[string]string{"ref": "feature", "sha": "abc123"},
		}})
	})
	mux.HandleFunc("GET /api/v3/repos/octo/widgets/commits/abc123/check-runs", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"check_runs": []map[string]any{
			{"status": "completed", "conclusion": "success"},
			{"status": "in_progress", "conclusion": nil},
		}})
	})
	_, repo := newGitHubServer(t, mux)

	got, err := newTestClient(repo).FetchPullRequestStatus(context.Background(), "feature")
	require.NoError(t, err)
	assert.Equal(t, status.Open(7, "https://github.com/octo/widgets/pull/7", status.PipelineRunning), got)
}

func TestGitHub_MergedTakesPrecedence(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(pullsPath, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []map[string]any{{
			"number":    5,
			"state":     "closed",
			"merged_at": "2026-01-02T03:04:05Z",
			"head":      map[string]string{"ref": "feature", "sha": "abc123"},
		}})
	})
	mux.HandleFunc("GET /api/v3/repos/octo/widgets/commits/{sha}/check-runs", func(w http.ResponseWriter, r *http.Request) {
		t.Error("checks must not be fetched for merged pull requests")
	})
	_, repo := newGitHubServer(t, mux)

	got, err := newTestClient(repo).FetchPullRequestStatus(context.Background(), "feature")
	require.NoError(t, err)
	assert.Equal(t, status.Merged(5), got)
}

func TestGitHub_PullRequestSelection(t *testing.T) {
	tests := []struct {
		name  string
		pulls []map[string]any
		want  status.PullRequestStatus
	}{
		{
			name:  "no pull requests",
			pulls: []map[string]any{},
			want:  status.None(),
		},
		{
			name: "open preferred over newer closed",
			pulls: []map[string]any{
				{"number": 3, "state": "closed", "head": map[string]string{"ref": "feature"}},
				{"number": 4, "state": "open", "html_url": "u4", "head": map[string]string{"ref": "feature", "sha": "abc123"}},
			},
			want: status.Open(4, "u4", status.PipelineNone),
		},
		{
			name: "draft",
			pulls: []map[string]any{
				{"number": 8, "state": "open", "draft": true, "html_url": "u8", "head": map[string]string{"ref": "feature", "sha": "abc123"}},
			},
			want: status.Draft(8, "u8", status.PipelineNone),
		},
		{
			name: "closed only",
			pulls: []map[string]any{
				{"number": 2, "state": "closed", "head": map[string]string{"ref": "feature"}},
			},
			want: status.Closed(2),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc(pullsPath, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.pulls)
			})
			mux.HandleFunc("GET /api/v3/repos/octo/widgets/commits/{sha}/check-runs", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, map[string]any{"check_runs": []any{}})
			})
			_, repo := newGitHubServer(t, mux)

			got, err := newTestClient(repo).FetchPullRequestStatus(context.Background(), "feature")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGitHub_ChecksUnavailableDegradesToNone(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(pullsPath, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []map[string]any{{"number": 7, "state": "open", "html_url": "u7", "head": map[string]string{"ref": "feature", "sha": "abc123"}}})
	})
	mux.HandleFunc("GET /api/v3/repos/octo/widgets/commits/abc123/check-runs", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})
	_, repo := newGitHubServer(t, mux)

	got, err := newTestClient(repo).FetchPullRequestStatus(context.Background(), "feature")
	require.NoError(t, err)
	assert.Equal(t, status.Open(7, "u7", status.PipelineNone), got)
}

func TestGitHub_ChecksRateLimitedFailsFetchAndCoolsDown(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(pullsPath, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []map[string]any{{"number": 7, "state": "open", "html_url": "u7", "head": map[string]string{"ref": "feature", "sha": "abc123"}}})
	})
	mux.HandleFunc("GET /api/v3/repos/octo/widgets/commits/abc123/check-runs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "0")
		http.Error(w, "API rate limit exceeded", http.StatusForbidden)
	})
	_, repo := newGitHubServer(t, mux)

	client := newTestClient(repo)
	_, err := client.FetchPullRequestStatus(context.Background(), "feature")
	require.ErrorIs(t, err, ErrRateLimited, "the caller keeps its last known pipeline")

	_, cooling := client.CooldownRemaining()
	assert.True(t, cooling)
}

func TestGitHub_ChecksTransientFailsFetch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(pullsPath, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []map[string]any{{"number": 7, "state": "open", "html_url": "u7", "head": map[string]string{"ref": "feature", "sha": "abc123"}}})
	})
	mux.HandleFunc("GET /api/v3/repos/octo/widgets/commits/abc123/check-runs", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	})
	_, repo := newGitHubServer(t, mux)

	_, err := newTestClient(repo).FetchPullRequestStatus(context.Background(), "feature")
	assert.ErrorIs(t, err, ErrTransient)
}

func TestGitHub_CooldownSkipsNetwork(t *testing.T) {
	var requests atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc(pullsPath, func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			w.Header().Set("Retry-After", "30")
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		writeJSON(w, []map[string]any{})
	})
	_, repo := newGitHubServer(t, mux)

	clock := newFakeClock()
	client := newTestClient(repo, WithClock(clock.Now))
	ctx := context.Background()

	_, err := client.FetchPullRequestStatus(ctx, "feature")
	require.ErrorIs(t, err, ErrRateLimited)

	left, cooling := client.CooldownRemaining()
	assert.True(t, cooling)
	assert.Equal(t, time.Minute, left, "configured initial window beats a shorter Retry-After")

	_, err = client.FetchPullRequestStatus(ctx, "feature")
	require.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, int32(1), requests.Load(), "no request while cooling down")

	clock.Advance(61 * time.Second)
	got, err := client.FetchPullRequestStatus(ctx, "feature")
	require.NoError(t, err)
	assert.Equal(t, status.None(), got)
	assert.Equal(t, int32(2), requests.Load())

	_, cooling = client.CooldownRemaining()
	assert.False(t, cooling)
}

func TestGitHub_LateSuccessKeepsCooldown(t *testing.T) {
	var requests atomic.Int32
	slowArrived := make(chan struct{})
	release := make(chan struct{})

	mux := http.NewServeMux()
	mux.HandleFunc(pullsPath, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.URL.Query().Get("head") == "octo:slow" {
			close(slowArrived)
			<-release
			writeJSON(w, []map[string]any{})
			return
		}
		w.Header().Set("Retry-After", "30")
		http.Error(w, "slow down", http.StatusTooManyRequests)
	})
	_, repo := newGitHubServer(t, mux)

	clock := newFakeClock()
	client := newTestClient(repo, WithClock(clock.Now))
	ctx := context.Background()

	slowDone := make(chan error, 1)
	go func() {
		_, err := client.FetchPullRequestStatus(ctx, "slow")
		slowDone <- err
	}()
	<-slowArrived

	_, err := client.FetchPullRequestStatus(ctx, "limited")
	require.ErrorIs(t, err, ErrRateLimited)

	close(release)
	require.NoError(t, <-slowDone)

	_, cooling := client.CooldownRemaining()
	assert.True(t, cooling, "a response to a request sent before the 429 must not end the window")

	_, err = client.FetchPullRequestStatus(ctx, "other")
	require.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, int32(2), requests.Load(), "no request while cooling down")
}

func TestGitHub_AuthFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(pullsPath, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Bad credentials", http.StatusUnauthorized)
	})
	mux.HandleFunc("GET /api/v3/repos/octo/widgets", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Bad credentials", http.StatusUnauthorized)
	})
	_, repo := newGitHubServer(t, mux)
	client := newTestClient(repo)

	_, err := client.FetchPullRequestStatus(context.Background(), "feature")
	assert.ErrorIs(t, err, ErrAuth)

	err = TestForgeConnection(context.Background(), client)
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "GitHub", connErr.Forge)
	assert.ErrorIs(t, err, ErrAuth)
}

func TestGitHub_TestConnection(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v3/repos/octo/widgets", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"full_name": "octo/widgets"})
	})
	_, repo := newGitHubServer(t, mux)

	assert.NoError(t, TestForgeConnection(context.Background(), newTestClient(repo)))
}
