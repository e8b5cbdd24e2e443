package forge

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jmcampanini/grove-status/internal/status"
)

// GitLab talks to the GitLab REST API (gitlab.com or self-managed).
type GitLab struct {
	api *api
	id  ServiceID
}

var _ Client = &GitLab{}

func (g *GitLab) Kind() Kind { return KindGitLab }

func (g *GitLab) CooldownRemaining() (time.Duration, bool) {
	return g.api.CooldownRemaining()
}

func (g *GitLab) TestConnection(ctx context.Context) error {
	return g.api.testConnection(ctx, g.projectPath())
}

type gitlabMergeRequest struct {
	IID            int    `json:"iid"`
	State          string `json:"state"`
	WebURL         string `json:"web_url"`
	Draft          bool   `json:"draft"`
	WorkInProgress bool   `json:"work_in_progress"`
	SHA            string `json:"sha"`
	SourceBranch   string `json:"source_branch"`
	HeadPipeline   *struct {
		Status string `json:"status"`
	} `json:"head_pipeline"`
}

// FetchPullRequestStatus lists merge requests for the branch, then reads the
// chosen one in detail because only the detail endpoint carries head_pipeline.
// A detail call that is rate limited or transient fails the fetch; other
// detail failures fall back to the list data without a pipeline.
func (g *GitLab) FetchPullRequestStatus(ctx context.Context, branch string) (status.PullRequestStatus, error) {
	query := url.Values{
		"source_branch": {branch},
		"order_by":      {"updated_at"},
		"sort":          {"desc"},
		"per_page":      {"10"},
	}
	var mrs []gitlabMergeRequest
	if err := g.api.get(ctx, g.projectPath()+"/merge_requests", query, &mrs); err != nil {
		return status.None(), err
	}

	mr, ok := pickGitLabMergeRequest(mrs, branch)
	if !ok {
		return status.None(), nil
	}
	if mr.State != "opened" {
		return gitlabRequestStatus(mr), nil
	}

	var detail gitlabMergeRequest
	path := fmt.Sprintf("%s/merge_requests/%d", g.projectPath(), mr.IID)
	if err := g.api.get(ctx, path, nil, &detail); err != nil {
		if isRetryable(err) {
			return status.None(), err
		}
		g.api.logger.Warn("merge request detail unavailable, using list data", "iid", mr.IID, "kind", KindOf(err), "err", err)
		mr.HeadPipeline = nil
		return gitlabRequestStatus(mr), nil
	}
	return gitlabRequestStatus(detail), nil
}

func (g *GitLab) projectPath() string {
	return "/projects/" + g.id.projectRef()
}

func pickGitLabMergeRequest(mrs []gitlabMergeRequest, branch string) (gitlabMergeRequest, bool) {
	var fallback *gitlabMergeRequest
	for i := range mrs {
		mr := &mrs[i]
		if mr.SourceBranch != "" && mr.SourceBranch != branch {
			continue
		}
		if mr.State == "opened" {
			return *mr, true
		}
		if fallback == nil {
			fallback = mr
		}
	}
	if fallback == nil {
		return gitlabMergeRequest{}, false
	}
	return *fallback, true
}

func gitlabRequestStatus(mr gitlabMergeRequest) status.PullRequestStatus {
	pipeline := status.PipelineNone
	if mr.HeadPipeline != nil {
		pipeline = gitlabPipelineStatus(mr.HeadPipeline.Status)
	}

	switch mr.State {
	case "merged":
		return status.Merged(mr.IID)
	case "closed", "locked":
		return status.Closed(mr.IID)
	case "opened":
		if mr.Draft || mr.WorkInProgress {
			return status.Draft(mr.IID, mr.WebURL, pipeline)
		}
		return status.Open(mr.IID, mr.WebURL, pipeline)
	}
	return status.None()
}
