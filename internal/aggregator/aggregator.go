package aggregator

import (
	"context"
	"sync"
	"time"

	clog "github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/jmcampanini/grove-status/internal/forge"
	"github.com/jmcampanini/grove-status/internal/status"
)

const defaultConcurrency = 8

// Aggregator fetches statuses for many branches concurrently and keeps the
// latest snapshot. A failed fetch never fails the cycle: the branch keeps its
// previous value, or status.None() if it never had one.
type Aggregator struct {
	concurrency  int
	cycleTimeout time.Duration
	log          *clog.Logger
	now          func() time.Time

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	latest     Snapshot
	updatedAt  time.Time
	disabled   map[string]bool
}

var _ Reader = &Aggregator{}

// Option customizes New.
type Option func(*Aggregator)

// WithConcurrency bounds the number of in-flight branch fetches per cycle.
func WithConcurrency(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// WithCycleTimeout sets a deadline for each cycle. Zero means none.
func WithCycleTimeout(d time.Duration) Option {
	return func(a *Aggregator) { a.cycleTimeout = d }
}

func WithLogger(logger *clog.Logger) Option {
	return func(a *Aggregator) { a.log = logger }
}

func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		concurrency: defaultConcurrency,
		log:         clog.Default().WithPrefix("aggregator"),
		now:         time.Now,
		latest:      emptySnapshot(),
		disabled:    map[string]bool{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Aggregator) Latest() (Snapshot, time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.latest, a.updatedAt
}

// FetchStatusesForBranches runs one fetch cycle and returns its snapshot.
// Starting a cycle cancels any cycle still in flight; the cancelled cycle's
// results are discarded and it returns the latest published snapshot instead.
func (a *Aggregator) FetchStatusesForBranches(ctx context.Context, queries []BranchQuery) Snapshot {
	snap, _ := a.refresh(ctx, queries)
	return snap
}

type result struct {
	status  status.PullRequestStatus
	err     error
	skipped bool
}

type repoGroup struct {
	name    string
	client  forge.Client
	indexes []int
}

// refresh returns the cycle's generation, or 0 when a newer cycle superseded it.
func (a *Aggregator) refresh(ctx context.Context, queries []BranchQuery) (Snapshot, uint64) {
	a.mu.Lock()
	if a.cancel != nil {
		a.cancel()
	}
	a.generation++
	gen := a.generation
	cycleCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	previous := a.latest
	a.mu.Unlock()
	defer cancel()

	if a.cycleTimeout > 0 {
		var cancelTimeout context.CancelFunc
		cycleCtx, cancelTimeout = context.WithTimeout(cycleCtx, a.cycleTimeout)
		defer cancelTimeout()
	}

	start := a.now()
	groups := partition(queries)
	results := make([]result, len(queries))

	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for _, group := range groups {
		if left, cooling := cooldownOf(group.client); cooling {
			a.log.Debug("skipping provider in cool-down", "repo", group.name, "remaining", left)
			for _, i := range group.indexes {
				results[i] = result{skipped: true}
			}
			continue
		}
		for _, i := range group.indexes {
			q := queries[i]
			g.Go(func() error {
				st, err := q.Client.FetchPullRequestStatus(cycleCtx, q.Branch)
				results[i] = result{status: st, err: err}
				return nil
			})
		}
	}
	_ = g.Wait()

	a.mu.Lock()
	defer a.mu.Unlock()

	if gen != a.generation {
		a.log.Debug("discarding superseded cycle", "generation", gen, "current", a.generation)
		return a.latest, 0
	}
	a.cancel = nil

	snap := emptySnapshot()
	failures := 0
	for i, q := range queries {
		key := q.Key()
		r := results[i]
		if r.err == nil && !r.skipped {
			snap.Statuses[key] = r.status
			continue
		}
		failures++
		if r.err != nil {
			a.log.Warn("fetch failed, keeping previous status", "repo", q.Repository, "branch", q.Branch, "kind", forge.KindOf(r.err), "err", r.err)
		}
		if prev, ok := previous.Statuses[key]; ok {
			snap.Statuses[key] = prev
		} else {
			snap.Statuses[key] = status.None()
		}
	}

	for _, group := range groups {
		state := providerState(group, results)
		snap.Providers[group.name] = state
		a.noteProviderState(group.name, state)
	}

	a.latest = snap
	a.updatedAt = a.now()
	a.log.Debug("cycle complete", "branches", len(queries), "failures", failures, "took", a.updatedAt.Sub(start))
	return snap, gen
}

// partition groups queries by repository, preserving first-seen order.
func partition(queries []BranchQuery) []repoGroup {
	var groups []repoGroup
	index := map[string]int{}
	for i, q := range queries {
		gi, ok := index[q.Repository]
		if !ok {
			gi = len(groups)
			index[q.Repository] = gi
			groups = append(groups, repoGroup{name: q.Repository, client: q.Client})
		}
		groups[gi].indexes = append(groups[gi].indexes, i)
	}
	return groups
}

func cooldownOf(c forge.Client) (time.Duration, bool) {
	if r, ok := c.(forge.CooldownReporter); ok {
		return r.CooldownRemaining()
	}
	return 0, false
}

type configurable interface {
	IsConfigured() bool
}

func providerState(group repoGroup, results []result) ProviderState {
	if c, ok := group.client.(configurable); ok && !c.IsConfigured() {
		return ProviderUnconfigured
	}

	var auth, limited, other bool
	for _, i := range group.indexes {
		r := results[i]
		if r.skipped {
			limited = true
			continue
		}
		if r.err == nil {
			continue
		}
		switch forge.KindOf(r.err) {
		case forge.ErrorAuth:
			auth = true
		case forge.ErrorRateLimited:
			limited = true
		default:
			other = true
		}
	}

	switch {
	case auth:
		return ProviderDisabled
	case limited:
		return ProviderCoolingDown
	case other:
		return ProviderDegraded
	}
	return ProviderOK
}

// noteProviderState logs a repository becoming disabled once, not on every poll.
// Callers hold a.mu.
func (a *Aggregator) noteProviderState(repo string, state ProviderState) {
	if state != ProviderDisabled {
		delete(a.disabled, repo)
		return
	}
	if a.disabled[repo] {
		return
	}
	a.disabled[repo] = true
	a.log.Error("forge rejected credentials, check the token", "repo", repo)
}
