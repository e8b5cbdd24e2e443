package github

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	clog "github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTimeout = 5 * time.Second

func TestNew(t *testing.T) {
	gh := New(60 * time.Second)

	require.NotNil(t, gh)

	_, ok := gh.(*GitHubCli)
	assert.True(t, ok, "expected *GitHubCli")
}

// fakeGh writes an executable script standing in for gh and returns a client using it.
func fakeGh(t *testing.T, script string) *GitHubCli {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in needs a unix shell")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "gh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return &GitHubCli{log: clog.New(io.Discard), timeout: testTimeout, binary: path}
}

func TestAuthToken(t *testing.T) {
	gh := fakeGh(t, `[ "$1 $2 $3 $4" = "auth token --hostname github.example.com" ] || exit 2
echo "gho_abc123"
`)

	token, err := gh.AuthToken(context.Background(), "github.example.com")

	require.NoError(t, err)
	assert.Equal(t, "gho_abc123", token)
}

func TestAuthToken_DefaultHost(t *testing.T) {
	gh := fakeGh(t, `[ "$4" = "github.com" ] || exit 2
echo "gho_default"
`)

	token, err := gh.AuthToken(context.Background(), "")

	require.NoError(t, err)
	assert.Equal(t, "gho_default", token)
}

func TestAuthToken_NotLoggedIn(t *testing.T) {
	gh := fakeGh(t, `echo "no oauth token found for github.com; you are not logged into any GitHub hosts" >&2
exit 1
`)

	token, err := gh.AuthToken(context.Background(), "github.com")

	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestAuthToken_Failure(t *testing.T) {
	gh := fakeGh(t, `echo "unexpected failure" >&2
exit 3
`)

	_, err := gh.AuthToken(context.Background(), "github.com")

	assert.ErrorContains(t, err, "unexpected failure")
}

func TestAuthToken_NotInstalled(t *testing.T) {
	gh := &GitHubCli{log: clog.New(io.Discard), timeout: testTimeout, binary: filepath.Join(t.TempDir(), "missing-gh")}

	token, err := gh.AuthToken(context.Background(), "github.com")

	require.NoError(t, err)
	assert.Empty(t, token)
}
