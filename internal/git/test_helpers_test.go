package git

import (
	"bytes"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	clog "github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"
)

const testTimeout = 10 * time.Second

// testRepo provides a temporary git repository for integration tests.
type testRepo struct {
	Git     *GitCli
	rootDir string
	t       *testing.T
}

// newTestRepo creates an initialized git repository in a temp directory.
func newTestRepo(t *testing.T) *testRepo {
	t.Helper()

	requireGit(t)

	dir := t.TempDir()

	runGit(t, dir, "init", "-b", "main")
	runGit(t, dir, "config", "user.email", "test@example.com")
	runGit(t, dir, "config", "user.name", "Test User")

	return &testRepo{
		Git:     newQuietGitCli(dir),
		rootDir: dir,
		t:       t,
	}
}

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
}

func newQuietGitCli(dir string) *GitCli {
	return &GitCli{
		log:        clog.New(io.Discard),
		timeout:    testTimeout,
		workingDir: dir,
	}
}

// commit creates a new commit and returns the full SHA.
func (r *testRepo) commit(message string) string {
	r.t.Helper()
	filename := filepath.Join(r.rootDir, "file.txt")
	appendToFile(r.t, filename, message+"\n")
	runGit(r.t, r.rootDir, "add", "-A")
	runGit(r.t, r.rootDir, "commit", "-m", message)
	return strings.TrimSpace(runGit(r.t, r.rootDir, "rev-parse", "HEAD"))
}

// createBranch creates a new branch at current HEAD.
func (r *testRepo) createBranch(name string) {
	r.t.Helper()
	runGit(r.t, r.rootDir, "branch", name)
}

// createWorktree creates a worktree for an existing branch.
func (r *testRepo) createWorktree(path, branch string) {
	r.t.Helper()
	runGit(r.t, r.rootDir, "worktree", "add", path, branch)
}

// setConfig sets a git config value.
func (r *testRepo) setConfig(key, value string) {
	r.t.Helper()
	runGit(r.t, r.rootDir, "config", key, value)
}

// path returns the root directory of the test repo (with symlinks resolved).
func (r *testRepo) path() string {
	return resolvePath(r.t, r.rootDir)
}

// runGit executes a git command and returns stdout.
func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	require.NoError(t, err, "git %v failed: %s", args, stderr.String())
	return stdout.String()
}

// appendToFile appends content to a file, creating it if necessary.
func appendToFile(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, f.Close())
	}()
	_, err = f.WriteString(content)
	require.NoError(t, err)
}

// worktreePaths extracts absolute paths from a slice of Worktree.
func worktreePaths(t *testing.T, worktrees []Worktree) []string {
	paths := make([]string, len(worktrees))
	for i, w := range worktrees {
		paths[i] = resolvePath(t, w.AbsolutePath)
	}
	return paths
}

// resolvePath resolves symlinks in a path (useful for macOS /var -> /private/var).
func resolvePath(t *testing.T, path string) string {
	t.Helper()
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return path
	}
	return resolved
}
