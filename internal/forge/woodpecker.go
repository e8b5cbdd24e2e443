package forge

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/jmcampanini/grove-status/internal/status"
)

// Woodpecker resolves pipelines from a Woodpecker CI server. It has its own
// credentials and cool-down window, separate from the forge it builds for.
type Woodpecker struct {
	api *api
	id  ServiceID

	mu     sync.Mutex
	repoID int64
}

var (
	_ PipelineResolver = &Woodpecker{}
	_ CooldownReporter = &Woodpecker{}
)

func (w *Woodpecker) CooldownRemaining() (time.Duration, bool) {
	return w.api.CooldownRemaining()
}

type woodpeckerPipeline struct {
	Number int64  `json:"number"`
	Commit string `json:"commit"`
	Status string `json:"status"`
	Event  string `json:"event"`
}

// TestConnection checks the Woodpecker credentials and that the repository is
// known to the server.
func (w *Woodpecker) TestConnection(ctx context.Context) error {
	if _, err := w.lookupRepoID(ctx); err != nil {
		return &ConnectionError{Forge: w.api.forge, Err: err}
	}
	return nil
}

// PipelineStatusForCommit returns the newest non-cron pipeline for sha.
func (w *Woodpecker) PipelineStatusForCommit(ctx context.Context, sha string) (status.PipelineStatus, error) {
	id, err := w.lookupRepoID(ctx)
	if err != nil {
		return status.PipelineNone, err
	}

	var pipelines []woodpeckerPipeline
	path := fmt.Sprintf("/repos/%d/pipelines", id)
	if err := w.api.get(ctx, path, url.Values{"perPage": {"50"}}, &pipelines); err != nil {
		return status.PipelineNone, err
	}

	for _, p := range pipelines {
		if p.Commit == sha && p.Event != "cron" {
			return woodpeckerPipelineStatus(p.Status), nil
		}
	}
	return status.PipelineNone, nil
}

// lookupRepoID resolves owner/name to Woodpecker's numeric repository id once.
func (w *Woodpecker) lookupRepoID(ctx context.Context) (int64, error) {
	w.mu.Lock()
	id := w.repoID
	w.mu.Unlock()
	if id != 0 {
		return id, nil
	}

	var repo struct {
		ID int64 `json:"id"`
	}
	path := "/repos/lookup/" + url.PathEscape(w.id.Owner) + "/" + url.PathEscape(w.id.Name)
	if err := w.api.get(ctx, path, nil, &repo); err != nil {
		return 0, err
	}
	if repo.ID == 0 {
		return 0, &FetchError{Kind: ErrorParse, Forge: w.api.forge, Message: "repository lookup returned no id"}
	}

	w.mu.Lock()
	w.repoID = repo.ID
	w.mu.Unlock()
	return repo.ID, nil
}
