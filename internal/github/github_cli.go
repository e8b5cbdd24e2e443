package github

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	clog "github.com/charmbracelet/log"
)

// GitHubCli reads credentials by executing the gh CLI.
type GitHubCli struct {
	log     *clog.Logger
	timeout time.Duration
	binary  string
}

var _ GitHub = &GitHubCli{}

// New creates a new GitHubCli instance that executes gh commands.
func New(timeout time.Duration) GitHub {
	return &GitHubCli{
		log:     clog.Default().WithPrefix("github"),
		timeout: timeout,
		binary:  "gh",
	}
}

// errNotLoggedIn marks gh exiting non-zero because it has no credentials.
var errNotLoggedIn = errors.New("gh is not logged in")

func (g *GitHubCli) executeGhCommand(ctx context.Context, args ...string) (string, error) {
	g.log.Debug("Executing gh command", "cmd", g.binary, "args", args)

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, g.binary, args...)
	cmd.Env = append(os.Environ(), "GH_PROMPT_DISABLED=1")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			g.log.Warn("gh command timed out", "args", args, "timeout", g.timeout, "error", err)
			return "", fmt.Errorf("gh %s timed out after %s", strings.Join(args, " "), g.timeout)
		}
		msg := strings.TrimSpace(stderr.String())
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && strings.Contains(strings.ToLower(msg), "not logged") {
			return "", errNotLoggedIn
		}
		g.log.Debug("gh command failed", "args", args, "stderr", msg, "error", err)
		return "", fmt.Errorf("gh %s failed: %w: %s", strings.Join(args, " "), err, msg)
	}

	// never log the output: it is a credential
	return strings.TrimSpace(stdout.String()), nil
}

func (g *GitHubCli) AuthToken(ctx context.Context, hostname string) (string, error) {
	if _, err := exec.LookPath(g.binary); err != nil {
		g.log.Debug("gh not installed", "error", err)
		return "", nil
	}
	if hostname == "" {
		hostname = DefaultHost
	}

	token, err := g.executeGhCommand(ctx, "auth", "token", "--hostname", hostname)
	if errors.Is(err, errNotLoggedIn) {
		g.log.Debug("gh has no credentials for host", "host", hostname)
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read gh token for %s: %w", hostname, err)
	}
	return token, nil
}
