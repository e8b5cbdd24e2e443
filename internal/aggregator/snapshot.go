package aggregator

import (
	"cmp"
	"slices"
	"time"

	"github.com/jmcampanini/grove-status/internal/forge"
	"github.com/jmcampanini/grove-status/internal/status"
)

// BranchQuery asks for the status of one branch of one repository.
type BranchQuery struct {
	Repository string
	Branch     string
	Client     forge.Client
}

// Key identifies the query's slot in a Snapshot. It is stable across polls.
func (q BranchQuery) Key() string {
	return Key(q.Repository, q.Branch)
}

// Key builds a snapshot key from a repository name and branch.
func Key(repository, branch string) string {
	return repository + ":" + branch
}

// ProviderState is the health of one repository's forge as of the last cycle.
type ProviderState string

const (
	ProviderOK           ProviderState = "ok"
	ProviderUnconfigured ProviderState = "unconfigured"
	ProviderCoolingDown  ProviderState = "cooling_down"
	ProviderDisabled     ProviderState = "disabled" // credentials rejected
	ProviderDegraded     ProviderState = "degraded"
)

// Snapshot is the result of one fetch cycle. It carries no timestamps, so
// identical inputs marshal to identical JSON.
type Snapshot struct {
	Statuses  map[string]status.PullRequestStatus `json:"statuses"`
	Providers map[string]ProviderState            `json:"providers"`
}

func emptySnapshot() Snapshot {
	return Snapshot{
		Statuses:  map[string]status.PullRequestStatus{},
		Providers: map[string]ProviderState{},
	}
}

// Get returns the status for a branch and whether the snapshot has it.
func (s Snapshot) Get(repository, branch string) (status.PullRequestStatus, bool) {
	st, ok := s.Statuses[Key(repository, branch)]
	return st, ok
}

// Keys returns the snapshot keys in sorted order.
func (s Snapshot) Keys() []string {
	keys := make([]string, 0, len(s.Statuses))
	for k := range s.Statuses {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Reader is the read side of the aggregator, for renderers.
type Reader interface {
	// Latest returns the most recent completed snapshot and when it completed.
	// The time is zero before the first cycle.
	Latest() (Snapshot, time.Time)
}

// Transition is a change of one branch's status between two snapshots.
type Transition struct {
	Key  string
	From status.PullRequestStatus
	To   status.PullRequestStatus
}

// Diff lists the branches whose status differs between prev and next, sorted
// by key. A key missing from either side counts as status.None().
func Diff(prev, next Snapshot) []Transition {
	keys := make(map[string]struct{}, len(prev.Statuses)+len(next.Statuses))
	for k := range prev.Statuses {
		keys[k] = struct{}{}
	}
	for k := range next.Statuses {
		keys[k] = struct{}{}
	}

	var out []Transition
	for k := range keys {
		from, to := prev.Statuses[k], next.Statuses[k]
		if from != to {
			out = append(out, Transition{Key: k, From: from, To: to})
		}
	}
	slices.SortFunc(out, func(a, b Transition) int {
		return cmp.Compare(a.Key, b.Key)
	})
	return out
}
