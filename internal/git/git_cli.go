package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	clog "github.com/charmbracelet/log"
)

// GitCli provides read-only git operations by executing real git commands via the git CLI.
type GitCli struct {
	log        *clog.Logger
	timeout    time.Duration
	workingDir string
}

var _ Git = &GitCli{}

// New creates a new GitCli instance that executes git commands in the specified working directory.
func New(workingDir string, timeout time.Duration) Git {
	return &GitCli{
		log:        clog.Default().WithPrefix("git"),
		timeout:    timeout,
		workingDir: workingDir,
	}
}

func (g *GitCli) executeGitCommand(ctx context.Context, args ...string) (string, error) {
	g.log.Debug("Executing git command", "cmd", "git", "args", args, "workingDir", g.workingDir)

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.workingDir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			g.log.Warn("git command timed out", "args", args, "timeout", g.timeout, "error", err)
			return "", fmt.Errorf("git %s timed out after %s", strings.Join(args, " "), g.timeout)
		}
		g.log.Debug("Git command failed", "args", args, "stderr", stderr.String(), "error", err)
		return "", fmt.Errorf("git %s failed: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}

	output := strings.TrimSpace(stdout.String())
	g.log.Debug("Git command succeeded", "args", args, "output", output)
	return output, nil
}

func (g *GitCli) GetCurrentBranch(ctx context.Context) (string, error) {
	output, err := g.executeGitCommand(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to get current branch: %w", err)
	}
	return output, nil
}

func (g *GitCli) GetMainWorktreePath(ctx context.Context) (string, error) {
	commonDir, err := g.executeGitCommand(ctx, "rev-parse", "--git-common-dir")
	if err != nil {
		return "", fmt.Errorf("failed to get git common dir: %w", err)
	}

	absCommonDir := commonDir
	if !filepath.IsAbs(commonDir) {
		absCommonDir = filepath.Join(g.workingDir, commonDir)
	}

	absCommonDir, err = filepath.Abs(absCommonDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	mainWorktree := filepath.Dir(filepath.Clean(absCommonDir))

	g.log.Debug("Resolved main worktree path", "commonDir", commonDir, "mainWorktree", mainWorktree)
	return mainWorktree, nil
}

func (g *GitCli) GetWorktreeRoot(ctx context.Context) (string, error) {
	output, err := g.executeGitCommand(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		if strings.Contains(err.Error(), "not a git repo") {
			// Not in a git repo - this is a valid state, not an error
			return "", nil
		}
		return "", fmt.Errorf("git command failed: %w", err)
	}
	return output, nil
}

func (g *GitCli) GetDefaultRemote(ctx context.Context, fallback string) (string, error) {
	output, err := g.executeGitCommand(ctx, "config", "--get", "remote.pushDefault")
	if err == nil && output != "" {
		g.log.Debug("Found remote.pushDefault", "remote", output)
		return output, nil
	}

	g.log.Debug("No remote.pushDefault configured, using fallback", "fallback", fallback)
	return fallback, nil
}

func (g *GitCli) GetRemoteURL(ctx context.Context, remoteName string) (string, error) {
	output, err := g.executeGitCommand(ctx, "remote", "get-url", remoteName)
	if err != nil {
		if strings.Contains(err.Error(), "No such remote") {
			return "", nil
		}
		return "", fmt.Errorf("failed to get url of remote %q: %w", remoteName, err)
	}
	return output, nil
}

func (g *GitCli) ListWorktrees(ctx context.Context) ([]Worktree, error) {
	output, err := g.executeGitCommand(ctx, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, fmt.Errorf("failed to list worktrees: %w", err)
	}
	return parseWorktreesFromPorcelain(output), nil
}

// splitIntoBlocks splits porcelain output into blocks separated by blank lines.
// Each block is a slice of non-empty lines.
func splitIntoBlocks(output string) [][]string {
	var blocks [][]string
	var currentBlock []string

	for _, line := range strings.Split(output, "\n") {
		if line != "" {
			currentBlock = append(currentBlock, line)
			continue
		}

		// found blank line, new block
		if len(currentBlock) > 0 {
			blocks = append(blocks, currentBlock)
			currentBlock = nil
		}
	}

	if len(currentBlock) > 0 {
		blocks = append(blocks, currentBlock)
	}

	return blocks
}

// parseWorktreesFromPorcelain parses the output of `git worktree list --porcelain`
func parseWorktreesFromPorcelain(output string) []Worktree {
	blocks := splitIntoBlocks(output)
	worktrees := make([]Worktree, 0, len(blocks))

	for _, block := range blocks {
		if wt := parseWorktreeBlock(block); wt.AbsolutePath != "" {
			worktrees = append(worktrees, wt)
		}
	}

	return worktrees
}

func parseWorktreeBlock(lines []string) Worktree {
	var wt Worktree
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "worktree "):
			wt.AbsolutePath = strings.TrimPrefix(line, "worktree ")
		case strings.HasPrefix(line, "HEAD "):
			wt.HeadSHA = strings.TrimPrefix(line, "HEAD ")
		case strings.HasPrefix(line, "branch "):
			wt.Branch = strings.TrimPrefix(strings.TrimPrefix(line, "branch "), "refs/heads/")
		case line == "detached":
			wt.Detached = true
		case line == "bare":
			wt.Bare = true
		}
	}
	return wt
}
