package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/jmcampanini/grove-status/internal/aggregator"
	"github.com/jmcampanini/grove-status/internal/config"
	"github.com/jmcampanini/grove-status/internal/forge"
	"github.com/jmcampanini/grove-status/internal/git"
	"github.com/jmcampanini/grove-status/internal/github"
	"github.com/jmcampanini/grove-status/internal/workspace"
)

// environment is what every command resolves before doing its work.
type environment struct {
	cfg              config.Config
	cwd              string
	homeDir          string
	mainWorktreePath string // empty outside a git repository
	worktreeRoot     string // empty outside a git repository
}

func loadEnvironment(ctx context.Context) (*environment, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}

	gitClient := git.New(cwd, config.DefaultConfig().Git.Timeout)

	worktreeRoot, err := gitClient.GetWorktreeRoot(ctx)
	if err != nil {
		return nil, fmt.Errorf("git error: %w", err)
	}

	var mainWorktreePath string
	if worktreeRoot != "" {
		mainWorktreePath, err = gitClient.GetMainWorktreePath(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get main worktree path: %w", err)
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}

	configPaths := config.ConfigPaths(cwd, worktreeRoot, mainWorktreePath, homeDir)
	loader := config.NewDefaultLoader()
	loadResult, err := loader.Load(configPaths)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	log.Debug("config loaded", "sources", loadResult.SourcePaths, "env", loadResult.EnvPaths)

	return &environment{
		cfg:              loadResult.Config,
		cwd:              cwd,
		homeDir:          homeDir,
		mainWorktreePath: mainWorktreePath,
		worktreeRoot:     worktreeRoot,
	}, nil
}

// repositories returns the configured repositories, or the current repository
// when none are configured.
func (e *environment) repositories() ([]config.RepositoryConfig, error) {
	if len(e.cfg.Repositories) > 0 {
		return e.cfg.Repositories, nil
	}
	if e.mainWorktreePath == "" {
		return nil, errors.New("no [[repositories]] configured and not inside a git repository")
	}
	return []config.RepositoryConfig{{Path: e.mainWorktreePath}}, nil
}

func (e *environment) newGit(dir string) git.Git {
	return git.New(dir, e.cfg.Git.Timeout)
}

// openWorkspace resolves the repositories. Commands that never call a forge
// pass withForge=false to skip reading stored credentials.
func (e *environment) openWorkspace(ctx context.Context, withForge bool) (*workspace.Workspace, error) {
	repos, err := e.repositories()
	if err != nil {
		return nil, err
	}
	opts := []workspace.Option{
		workspace.WithHomeDir(e.homeDir),
		workspace.WithForgeOptions(forge.WithLogger(log.Default().WithPrefix("forge"))),
	}
	if withForge && e.cfg.Forge.GhAuth {
		gh := github.New(e.cfg.Git.Timeout)
		opts = append(opts, workspace.WithGitHubTokenSource(gh.AuthToken))
	}
	return workspace.Open(ctx, repos, e.cfg.Forge, e.newGit, opts...)
}

func (e *environment) newAggregator() *aggregator.Aggregator {
	return aggregator.New(
		aggregator.WithConcurrency(e.cfg.Forge.Concurrency),
		aggregator.WithCycleTimeout(e.cfg.Forge.CycleTimeout),
	)
}

// currentRepository finds the workspace repository the working directory belongs to.
func (e *environment) currentRepository(ws *workspace.Workspace) (workspace.Repository, bool) {
	if e.mainWorktreePath == "" {
		return workspace.Repository{}, false
	}
	want := cleanPath(e.mainWorktreePath)
	for _, repo := range ws.Repositories() {
		if repo.Config.Path != "" && cleanPath(repo.Config.Path) == want {
			return repo, true
		}
	}
	return workspace.Repository{}, false
}

func cleanPath(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	return filepath.Clean(path)
}
