package forge

import (
	"context"
	"net/url"

	"github.com/jmcampanini/grove-status/internal/status"
)

// ForgejoActions resolves pipelines from the Actions runs of the same Forgejo
// instance, sharing the Codeberg client's credentials and cool-down window.
type ForgejoActions struct {
	api *api
	id  ServiceID
}

var _ PipelineResolver = &ForgejoActions{}

type forgejoRuns struct {
	WorkflowRuns []struct {
		HeadSHA    string `json:"head_sha"`
		Status     string `json:"status"`
		Conclusion string `json:"conclusion"`
		Event      string `json:"event"`
	} `json:"workflow_runs"`
}

// PipelineStatusForCommit aggregates every non-scheduled run for sha.
func (f *ForgejoActions) PipelineStatusForCommit(ctx context.Context, sha string) (status.PipelineStatus, error) {
	path := "/repos/" + url.PathEscape(f.id.Owner) + "/" + url.PathEscape(f.id.Name) + "/actions/runs"
	var runs forgejoRuns
	if err := f.api.get(ctx, path, url.Values{"head_sha": {sha}, "limit": {"50"}}, &runs); err != nil {
		return status.PipelineNone, err
	}

	var statuses []status.PipelineStatus
	for _, run := range runs.WorkflowRuns {
		if run.Event == "schedule" {
			continue
		}
		if run.HeadSHA != "" && run.HeadSHA != sha {
			continue
		}
		statuses = append(statuses, forgejoRunStatus(run.Status, run.Conclusion))
	}
	return aggregatePipelines(statuses), nil
}
