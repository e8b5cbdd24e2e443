package forge

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	clog "github.com/charmbracelet/log"

	"github.com/jmcampanini/grove-status/internal/config"
)

func testSettings() config.ForgeConfig {
	return config.ForgeConfig{
		CooldownInitial: time.Minute,
		CooldownMax:     10 * time.Minute,
		RequestTimeout:  5 * time.Second,
		UserAgent:       "grove-status-test",
	}
}

func noEnv(string) string { return "" }

func newTestClient(repo config.RepositoryConfig, extra ...Option) *OptionalClient {
	opts := append([]Option{WithLogger(clog.New(io.Discard)), WithGetenv(noEnv)}, extra...)
	return NewClient(repo, testSettings(), opts...)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// failingTransport fails the test on any network access.
type failingTransport struct {
	t *testing.T
}

func (f failingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.t.Errorf("unexpected request to %s", req.URL)
	return nil, errors.New("network disabled in test")
}

// recordingTransport answers every request with body and records the URLs.
type recordingTransport struct {
	mu   sync.Mutex
	urls []string
	body string
}

func (r *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r.mu.Lock()
	r.urls = append(r.urls, req.URL.String())
	r.mu.Unlock()
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": {"application/json"}},
		Body:       io.NopCloser(strings.NewReader(r.body)),
		Request:    req,
	}, nil
}

func (r *recordingTransport) URLs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.urls...)
}
