package git

import "context"

// Worktree is one entry of `git worktree list`.
type Worktree struct {
	AbsolutePath string
	Branch       string // short name, empty when detached or bare
	HeadSHA      string
	Detached     bool
	Bare         bool
}

// HasBranch reports whether the worktree has a branch checked out.
func (w Worktree) HasBranch() bool {
	return w.Branch != "" && !w.Detached && !w.Bare
}

type Git interface {

	// GetCurrentBranch returns the current branch name.
	// Returns "HEAD" if in detached HEAD state.
	GetCurrentBranch(ctx context.Context) (string, error)

	// GetMainWorktreePath returns the absolute path to the main (primary) worktree.
	// This is the worktree associated with the .git directory, not a linked worktree.
	GetMainWorktreePath(ctx context.Context) (string, error)

	// GetWorktreeRoot returns the absolute path to the root of the git tree.
	// If not in a git repository, returns ("", nil).
	// Returns an error only if the git command itself fails (e.g., git not installed).
	GetWorktreeRoot(ctx context.Context) (string, error)

	// GetDefaultRemote returns the default remote name.
	// Returns the value of git config remote.pushDefault if set, otherwise returns the fallback parameter.
	GetDefaultRemote(ctx context.Context, fallback string) (string, error)

	// GetRemoteURL returns the fetch URL of the named remote.
	// Returns ("", nil) if the remote does not exist.
	GetRemoteURL(ctx context.Context, remoteName string) (string, error)

	// ListWorktrees returns every worktree of the repository, main worktree first.
	ListWorktrees(ctx context.Context) ([]Worktree, error)
}
