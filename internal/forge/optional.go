package forge

import (
	"context"
	"sync"
	"time"

	clog "github.com/charmbracelet/log"

	"github.com/jmcampanini/grove-status/internal/status"
)

// OptionalClient wraps a Client that may be absent. An absent client answers
// every fetch with status.None() and never touches the network, so
// repositories without forge configuration need no special casing upstream.
type OptionalClient struct {
	name   string
	kind   Kind
	inner  Client
	reason string
	logger *clog.Logger
	once   sync.Once
}

var (
	_ Client           = &OptionalClient{}
	_ CooldownReporter = &OptionalClient{}
)

// NewOptionalClient wraps inner. A nil inner yields a no-op client; reason
// says why and is logged once at debug level on first use.
func NewOptionalClient(name string, kind Kind, inner Client, reason string, logger *clog.Logger) *OptionalClient {
	if logger == nil {
		logger = clog.Default().WithPrefix("forge")
	}
	if inner != nil {
		kind = inner.Kind()
	}
	return &OptionalClient{name: name, kind: kind, inner: inner, reason: reason, logger: logger}
}

// Name is the repository display name the client was built for.
func (o *OptionalClient) Name() string { return o.name }

// IsConfigured reports whether a real client is present.
func (o *OptionalClient) IsConfigured() bool { return o.inner != nil }

// Reason explains why the client is absent; empty when configured.
func (o *OptionalClient) Reason() string { return o.reason }

func (o *OptionalClient) Kind() Kind { return o.kind }

func (o *OptionalClient) TestConnection(ctx context.Context) error {
	if o.inner == nil {
		return nil
	}
	return o.inner.TestConnection(ctx)
}

func (o *OptionalClient) FetchPullRequestStatus(ctx context.Context, branch string) (status.PullRequestStatus, error) {
	if o.inner == nil {
		o.once.Do(func() {
			o.logger.Debug("forge not configured, reporting no pull requests", "repo", o.name, "reason", o.reason)
		})
		return status.None(), nil
	}
	return o.inner.FetchPullRequestStatus(ctx, branch)
}

func (o *OptionalClient) CooldownRemaining() (time.Duration, bool) {
	if r, ok := o.inner.(CooldownReporter); ok {
		return r.CooldownRemaining()
	}
	return 0, false
}
