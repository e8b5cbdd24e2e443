package forge

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jmcampanini/grove-status/internal/status"
)

// GitHub talks to the GitHub REST API (github.com or Enterprise).
type GitHub struct {
	api *api
	id  ServiceID
}

var _ Client = &GitHub{}

func (g *GitHub) Kind() Kind { return KindGitHub }

func (g *GitHub) CooldownRemaining() (time.Duration, bool) {
	return g.api.CooldownRemaining()
}

func (g *GitHub) TestConnection(ctx context.Context) error {
	return g.api.testConnection(ctx, g.repoPath())
}

type githubPull struct {
	Number   int     `json:"number"`
	State    string  `json:"state"`
	HTMLURL  string  `json:"html_url"`
	Draft    bool    `json:"draft"`
	Merged   bool    `json:"merged"`
	MergedAt *string `json:"merged_at"`
	Head     struct {
		Ref string `json:"ref"`
		SHA string `json:"sha"`
	} `json:"head"`
}

type githubCheckRuns struct {
	CheckRuns []struct {
		Status     string `json:"status"`
		Conclusion string `json:"conclusion"`
	} `json:"check_runs"`
}

func (g *GitHub) FetchPullRequestStatus(ctx context.Context, branch string) (status.PullRequestStatus, error) {
	query := url.Values{
		"head":      {g.id.Owner + ":" + branch},
		"state":     {"all"},
		"sort":      {"updated"},
		"direction": {"desc"},
		"per_page":  {"10"},
	}
	var pulls []githubPull
	if err := g.api.get(ctx, g.repoPath()+"/pulls", query, &pulls); err != nil {
		return status.None(), err
	}

	pull, ok := pickGitHubPull(pulls, branch)
	if !ok {
		return status.None(), nil
	}
	return pipelineFor(ctx, g.api.logger, githubRequestStatus(pull), func(ctx context.Context) (status.PipelineStatus, error) {
		return g.checksStatus(ctx, pull.Head.SHA)
	})
}

func (g *GitHub) checksStatus(ctx context.Context, sha string) (status.PipelineStatus, error) {
	if sha == "" {
		return status.PipelineNone, nil
	}
	var runs githubCheckRuns
	path := fmt.Sprintf("%s/commits/%s/check-runs", g.repoPath(), url.PathEscape(sha))
	if err := g.api.get(ctx, path, url.Values{"per_page": {"100"}}, &runs); err != nil {
		return status.PipelineNone, err
	}

	statuses := make([]status.PipelineStatus, 0, len(runs.CheckRuns))
	for _, run := range runs.CheckRuns {
		statuses = append(statuses, githubCheckStatus(run.Status, run.Conclusion))
	}
	return aggregatePipelines(statuses), nil
}

func (g *GitHub) repoPath() string {
	return "/repos/" + url.PathEscape(g.id.Owner) + "/" + url.PathEscape(g.id.Name)
}

// pickGitHubPull prefers an open pull request over closed or merged ones.
// The list is sorted by most recent update.
func pickGitHubPull(pulls []githubPull, branch string) (githubPull, bool) {
	var fallback *githubPull
	for i := range pulls {
		p := &pulls[i]
		if p.Head.Ref != "" && p.Head.Ref != branch {
			continue
		}
		if p.State == "open" {
			return *p, true
		}
		if fallback == nil {
			fallback = p
		}
	}
	if fallback == nil {
		return githubPull{}, false
	}
	return *fallback, true
}

// githubRequestStatus maps a pull request without its pipeline. A merge
// timestamp wins over the open/closed state field.
func githubRequestStatus(p githubPull) status.PullRequestStatus {
	switch {
	case p.Merged || p.MergedAt != nil:
		return status.Merged(p.Number)
	case p.State == "closed":
		return status.Closed(p.Number)
	case p.State == "open" && p.Draft:
		return status.Draft(p.Number, p.HTMLURL, status.PipelineNone)
	case p.State == "open":
		return status.Open(p.Number, p.HTMLURL, status.PipelineNone)
	}
	return status.None()
}
