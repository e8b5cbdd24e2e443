package forge

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/jmcampanini/grove-status/internal/status"
)

// Codeberg talks to the Forgejo API of codeberg.org or a self-hosted
// Forgejo/Gitea instance. Pipeline state comes from the configured CI backend.
type Codeberg struct {
	api *api
	id  ServiceID
	ci  PipelineResolver // nil when the CI backend is "none"
}

var _ Client = &Codeberg{}

func (c *Codeberg) Kind() Kind { return KindCodeberg }

// CooldownRemaining reports the longer of the forge and CI backend windows.
func (c *Codeberg) CooldownRemaining() (time.Duration, bool) {
	left, cooling := c.api.CooldownRemaining()
	if r, ok := c.ci.(CooldownReporter); ok {
		if ciLeft, ciCooling := r.CooldownRemaining(); ciCooling && ciLeft > left {
			return ciLeft, true
		}
	}
	return left, cooling
}

func (c *Codeberg) TestConnection(ctx context.Context) error {
	if err := c.api.testConnection(ctx, c.repoPath()); err != nil {
		return err
	}
	if tester, ok := c.ci.(connectionTester); ok {
		return tester.TestConnection(ctx)
	}
	return nil
}

type codebergPull struct {
	Number   int     `json:"number"`
	State    string  `json:"state"`
	Title    string  `json:"title"`
	HTMLURL  string  `json:"html_url"`
	Draft    bool    `json:"draft"`
	Merged   bool    `json:"merged"`
	MergedAt *string `json:"merged_at"`
	Head     struct {
		Ref string `json:"ref"`
		SHA string `json:"sha"`
	} `json:"head"`
}

// FetchPullRequestStatus scans recent pull requests for one whose head is
// branch; the Forgejo list endpoint cannot filter by head branch.
func (c *Codeberg) FetchPullRequestStatus(ctx context.Context, branch string) (status.PullRequestStatus, error) {
	query := url.Values{
		"state": {"all"},
		"sort":  {"recentupdate"},
		"limit": {"50"},
	}
	var pulls []codebergPull
	if err := c.api.get(ctx, c.repoPath()+"/pulls", query, &pulls); err != nil {
		return status.None(), err
	}

	pull, ok := pickCodebergPull(pulls, branch)
	if !ok {
		return status.None(), nil
	}
	return pipelineFor(ctx, c.api.logger, codebergRequestStatus(pull), func(ctx context.Context) (status.PipelineStatus, error) {
		if c.ci == nil || pull.Head.SHA == "" {
			return status.PipelineNone, nil
		}
		return c.ci.PipelineStatusForCommit(ctx, pull.Head.SHA)
	})
}

func (c *Codeberg) repoPath() string {
	return "/repos/" + url.PathEscape(c.id.Owner) + "/" + url.PathEscape(c.id.Name)
}

func pickCodebergPull(pulls []codebergPull, branch string) (codebergPull, bool) {
	var fallback *codebergPull
	for i := range pulls {
		p := &pulls[i]
		if p.Head.Ref != branch {
			continue
		}
		if p.State == "open" && !p.Merged {
			return *p, true
		}
		if fallback == nil {
			fallback = p
		}
	}
	if fallback == nil {
		return codebergPull{}, false
	}
	return *fallback, true
}

func codebergRequestStatus(p codebergPull) status.PullRequestStatus {
	switch {
	case p.Merged || p.MergedAt != nil:
		return status.Merged(p.Number)
	case p.State == "closed":
		return status.Closed(p.Number)
	case p.State == "open" && (p.Draft || isWIPTitle(p.Title)):
		return status.Draft(p.Number, p.HTMLURL, status.PipelineNone)
	case p.State == "open":
		return status.Open(p.Number, p.HTMLURL, status.PipelineNone)
	}
	return status.None()
}

// isWIPTitle matches Forgejo's default work-in-progress prefixes.
func isWIPTitle(title string) bool {
	t := strings.ToUpper(strings.TrimSpace(title))
	return strings.HasPrefix(t, "WIP:") || strings.HasPrefix(t, "[WIP]")
}
