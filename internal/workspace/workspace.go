// Package workspace turns configured repositories and their git worktrees
// into the branch queries the aggregator polls.
package workspace

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"sync"

	clog "github.com/charmbracelet/log"

	"github.com/jmcampanini/grove-status/internal/aggregator"
	"github.com/jmcampanini/grove-status/internal/config"
	"github.com/jmcampanini/grove-status/internal/forge"
	"github.com/jmcampanini/grove-status/internal/git"
)

const defaultRemote = "origin"

// GitFactory opens git for a directory.
type GitFactory func(dir string) git.Git

// Repository is one configured repository with its forge client.
type Repository struct {
	// Config has provider, repo and base_url filled from the git remote when
	// they were not configured.
	Config config.RepositoryConfig
	Client *forge.OptionalClient
	// Remote is the origin URL it was detected from, if any.
	Remote string
	git    git.Git
}

// Name is the repository identity used in snapshot keys.
func (r Repository) Name() string { return r.Config.DisplayName() }

// Branch is one branch to poll, with the worktree it is checked out in.
type Branch struct {
	Repository   string
	Branch       string
	WorktreePath string // empty for configured branches without a worktree
	HeadSHA      string
	Client       forge.Client
}

// Query converts the branch to an aggregator query.
func (b Branch) Query() aggregator.BranchQuery {
	return aggregator.BranchQuery{Repository: b.Repository, Branch: b.Branch, Client: b.Client}
}

// Workspace lists the branches of a fixed set of repositories.
type Workspace struct {
	log   *clog.Logger
	repos []Repository

	mu   sync.Mutex
	last map[string][]Branch
}

// Option customizes Open.
type Option func(*openOptions)

type openOptions struct {
	logger      *clog.Logger
	homeDir     string
	forgeOpts   []forge.Option
	skipRemotes bool
	getenv      func(string) string
	ghToken     TokenSource
}

// TokenSource returns a stored credential for a forge host, or "" when it has none.
type TokenSource func(ctx context.Context, host string) (string, error)

func WithLogger(logger *clog.Logger) Option {
	return func(o *openOptions) { o.logger = logger }
}

// WithHomeDir sets the directory "~" in repository paths expands to.
func WithHomeDir(dir string) Option {
	return func(o *openOptions) { o.homeDir = dir }
}

// WithForgeOptions passes options through to forge.NewClient.
func WithForgeOptions(opts ...forge.Option) Option {
	return func(o *openOptions) { o.forgeOpts = append(o.forgeOpts, opts...) }
}

// WithGetenv sets the environment lookup used to resolve tokens.
func WithGetenv(getenv func(string) string) Option {
	return func(o *openOptions) {
		o.getenv = getenv
		o.forgeOpts = append(o.forgeOpts, forge.WithGetenv(getenv))
	}
}

// WithGitHubTokenSource supplies a token for GitHub repositories that have
// none configured, such as the one the gh CLI is logged in with.
func WithGitHubTokenSource(src TokenSource) Option {
	return func(o *openOptions) { o.ghToken = src }
}

// WithoutRemoteDetection keeps provider, repo and base_url exactly as configured.
func WithoutRemoteDetection() Option {
	return func(o *openOptions) { o.skipRemotes = true }
}

// Open resolves every repository and builds its forge client. A repository
// whose remote cannot be read is kept with whatever was configured, so it
// degrades to the no-op client instead of failing the workspace.
func Open(ctx context.Context, repos []config.RepositoryConfig, settings config.ForgeConfig, newGit GitFactory, opts ...Option) (*Workspace, error) {
	o := openOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = clog.Default().WithPrefix("workspace")
	}

	w := &Workspace{log: o.logger, last: map[string][]Branch{}}
	for _, rc := range repos {
		repo := Repository{Config: rc}
		if rc.Path != "" && newGit != nil {
			repo.Config.Path = config.ExpandHome(rc.Path, o.homeDir)
			repo.git = newGit(repo.Config.Path)
		}
		if repo.git != nil && !o.skipRemotes && needsRemote(rc) {
			if err := w.fillFromRemote(ctx, &repo); err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				w.log.Warn("could not detect forge from remote", "repo", repo.Name(), "err", err)
			}
		}
		if o.ghToken != nil {
			if err := w.fillGitHubToken(ctx, &repo, o); err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				w.log.Warn("could not read stored GitHub token", "repo", repo.Name(), "err", err)
			}
		}
		repo.Client = forge.NewClient(repo.Config, settings, o.forgeOpts...)
		w.repos = append(w.repos, repo)
	}
	return w, nil
}

func needsRemote(rc config.RepositoryConfig) bool {
	return rc.Provider == "" || rc.Repo == ""
}

// fillFromRemote completes provider, repo and base_url from the default remote.
// Configured values always win.
func (w *Workspace) fillFromRemote(ctx context.Context, repo *Repository) error {
	remoteName, err := repo.git.GetDefaultRemote(ctx, defaultRemote)
	if err != nil {
		return err
	}
	remoteURL, err := repo.git.GetRemoteURL(ctx, remoteName)
	if err != nil {
		return err
	}
	if remoteURL == "" {
		return fmt.Errorf("remote %q is not configured", remoteName)
	}
	repo.Remote = remoteURL

	info, err := forge.DetectRemote(remoteURL)
	if err != nil {
		return err
	}

	cfg := &repo.Config
	if cfg.Provider != "" {
		if kind, err := forge.ParseKind(cfg.Provider); err != nil || kind != info.Kind {
			// The remote belongs to a different forge than configured; its
			// path and host say nothing about the configured one.
			return nil
		}
	}
	if info.Guessed && cfg.Provider == "" {
		w.log.Info("unrecognized forge host, assuming GitLab", "repo", repo.Name(), "remote", remoteURL)
	}
	if cfg.Provider == "" {
		cfg.Provider = info.Kind.String()
	}
	if cfg.Repo == "" {
		cfg.Repo = info.Repo
		if cfg.BaseURL == "" {
			cfg.BaseURL = info.BaseURL
		}
	}
	w.log.Debug("detected forge from remote", "repo", repo.Name(), "provider", cfg.Provider, "project", cfg.Repo, "base", cfg.BaseURL)
	return nil
}

func (w *Workspace) fillGitHubToken(ctx context.Context, repo *Repository, o openOptions) error {
	kind, err := forge.ParseKind(repo.Config.Provider)
	if err != nil || kind != forge.KindGitHub || repo.Config.ResolveToken(o.getenv) != "" {
		return nil
	}
	token, err := o.ghToken(ctx, githubHost(repo.Config.BaseURL))
	if err != nil || token == "" {
		return err
	}
	w.log.Debug("using stored GitHub token", "repo", repo.Name())
	repo.Config.Token = token
	return nil
}

// githubHost is the web host for a GitHub API base URL.
func githubHost(baseURL string) string {
	u, err := url.Parse(baseURL)
	if baseURL == "" || err != nil || u.Host == "" || u.Host == "api.github.com" {
		return "github.com"
	}
	return u.Host
}

// Repositories returns the resolved repositories in configuration order.
func (w *Workspace) Repositories() []Repository {
	return slices.Clone(w.repos)
}

// Branches lists every branch to poll: the branches checked out in each
// repository's worktrees followed by its configured branches, without
// duplicates. When listing a repository's worktrees fails, its branches from
// the previous call are reused.
func (w *Workspace) Branches(ctx context.Context) ([]Branch, error) {
	var out []Branch
	for _, repo := range w.repos {
		branches, err := w.repoBranches(ctx, repo)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			w.mu.Lock()
			prev, ok := w.last[repo.Name()]
			w.mu.Unlock()
			w.log.Warn("failed to list worktrees", "repo", repo.Name(), "err", err, "reusingPrevious", ok)
			out = append(out, prev...)
			continue
		}
		w.mu.Lock()
		w.last[repo.Name()] = branches
		w.mu.Unlock()
		out = append(out, branches...)
	}
	return out, nil
}

// Queries is Branches converted to aggregator queries. It satisfies
// aggregator.QuerySource.
func (w *Workspace) Queries(ctx context.Context) ([]aggregator.BranchQuery, error) {
	branches, err := w.Branches(ctx)
	if err != nil {
		return nil, err
	}
	queries := make([]aggregator.BranchQuery, len(branches))
	for i, b := range branches {
		queries[i] = b.Query()
	}
	return queries, nil
}

func (w *Workspace) repoBranches(ctx context.Context, repo Repository) ([]Branch, error) {
	var worktrees []git.Worktree
	if repo.git != nil {
		var err error
		if worktrees, err = repo.git.ListWorktrees(ctx); err != nil {
			return nil, err
		}
	}
	return matchBranches(repo.Name(), repo.Client, worktrees, repo.Config.Branches), nil
}

// matchBranches pairs each checked-out branch with its worktree, then appends
// configured branches that no worktree has checked out.
func matchBranches(repo string, client forge.Client, worktrees []git.Worktree, configured []string) []Branch {
	seen := map[string]bool{}
	var out []Branch
	for _, wt := range worktrees {
		if !wt.HasBranch() || seen[wt.Branch] {
			continue
		}
		seen[wt.Branch] = true
		out = append(out, Branch{
			Repository:   repo,
			Branch:       wt.Branch,
			WorktreePath: wt.AbsolutePath,
			HeadSHA:      wt.HeadSHA,
			Client:       client,
		})
	}
	for _, name := range configured {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, Branch{Repository: repo, Branch: name, Client: client})
	}
	return out
}
