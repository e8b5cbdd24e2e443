package aggregator

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	clog "github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcampanini/grove-status/internal/config"
	"github.com/jmcampanini/grove-status/internal/forge"
	"github.com/jmcampanini/grove-status/internal/status"
)

func TestFetchStatusesForBranches_RateLimitedChecksKeepPreviousPipeline(t *testing.T) {
	var checkCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v3/repos/octo/widgets/pulls", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]map[string]any{{
			"number": 7, "state": "open", "html_url": "u7",
			"head": map[string]string{"ref": "feature", "sha": "abc123"},
		}})
	})
	mux.HandleFunc("GET /api/v3/repos/octo/widgets/commits/abc123/check-runs", func(w http.ResponseWriter, r *http.Request) {
		if checkCalls.Add(1) > 1 {
			w.Header().Set("Retry-After", "30")
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"check_runs": []map[string]any{
			{"status": "completed", "conclusion": "success"},
		}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := forge.NewClient(config.RepositoryConfig{
		Name:     "widgets",
		Provider: "github",
		BaseURL:  srv.URL,
		Repo:     "octo/widgets",
		Token:    "gh-secret",
	}, config.ForgeConfig{
		CooldownInitial: time.Minute,
		CooldownMax:     10 * time.Minute,
		RequestTimeout:  5 * time.Second,
	}, forge.WithLogger(clog.New(io.Discard)))

	a := newTestAggregator()
	queries := []BranchQuery{{Repository: "widgets", Branch: "feature", Client: client}}
	ctx := context.Background()

	first := a.FetchStatusesForBranches(ctx, queries)
	want := status.Open(7, "u7", status.PipelineSuccess)
	require.Equal(t, want, first.Statuses["widgets:feature"])

	second := a.FetchStatusesForBranches(ctx, queries)
	assert.Equal(t, want, second.Statuses["widgets:feature"], "last known pipeline survives a rate-limited lookup")
	assert.Equal(t, ProviderCoolingDown, second.Providers["widgets"])
}
