package aggregator

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// QuerySource produces the branch queries for one cycle. It is called once per
// tick so newly created worktrees are picked up.
type QuerySource func(ctx context.Context) ([]BranchQuery, error)

// Sink receives each published snapshot. Calls are serialized.
type Sink func(Snapshot)

// Run polls every interval until ctx is done, starting immediately. A cycle
// still running when the next tick fires is cancelled and its results dropped.
func (a *Aggregator) Run(ctx context.Context, interval time.Duration, source QuerySource, sink Sink) error {
	if interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()
	pub := &publisher{sink: sink}

	cycle := func() {
		defer wg.Done()
		queries, err := source(ctx)
		if err != nil {
			a.log.Warn("failed to collect branches", "err", err)
			return
		}
		snap, gen := a.refresh(ctx, queries)
		if gen == 0 || ctx.Err() != nil {
			return
		}
		pub.publish(gen, snap)
	}

	for {
		wg.Add(1)
		go cycle()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// publisher serializes sink calls and drops a snapshot when a newer cycle has
// already been published.
type publisher struct {
	mu   sync.Mutex
	last uint64
	sink Sink
}

func (p *publisher) publish(gen uint64, snap Snapshot) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if gen <= p.last {
		return false
	}
	p.last = gen
	p.sink(snap)
	return true
}
