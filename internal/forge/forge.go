package forge

import (
	"context"
	"errors"
	"strings"
	"time"

	clog "github.com/charmbracelet/log"

	"github.com/jmcampanini/grove-status/internal/status"
)

// Kind identifies a forge provider.
type Kind string

const (
	KindCodeberg Kind = "codeberg"
	KindGitHub   Kind = "github"
	KindGitLab   Kind = "gitlab"
)

func (k Kind) String() string {
	return string(k)
}

func (k Kind) IsValid() bool {
	switch k {
	case KindCodeberg, KindGitHub, KindGitLab:
		return true
	}
	return false
}

// DisplayName is the provider's product name, used in errors and logs.
func (k Kind) DisplayName() string {
	switch k {
	case KindCodeberg:
		return "Codeberg"
	case KindGitHub:
		return "GitHub"
	case KindGitLab:
		return "GitLab"
	}
	return "forge"
}

// ParseKind parses a provider name from configuration. Forgejo and Gitea
// instances speak the Codeberg API.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "github":
		return KindGitHub, nil
	case "gitlab":
		return KindGitLab, nil
	case "codeberg", "forgejo", "gitea":
		return KindCodeberg, nil
	}
	return "", &ConfigParseError{Input: s, Segment: s, Reason: "unknown provider (expected github, gitlab or codeberg)"}
}

// CIBackend selects how a Codeberg client resolves pipeline state.
type CIBackend string

const (
	CIBackendNone           CIBackend = "none"
	CIBackendForgejoActions CIBackend = "forgejo-actions"
	CIBackendWoodpecker     CIBackend = "woodpecker"
)

func (b CIBackend) DisplayName() string {
	switch b {
	case CIBackendForgejoActions:
		return "Forgejo Actions"
	case CIBackendWoodpecker:
		return "Woodpecker CI"
	case CIBackendNone:
		return "none"
	}
	return string(b)
}

// ParseCIBackend parses the ci_backend configuration value.
func ParseCIBackend(s string) (CIBackend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "forgejo-actions", "forgejo_actions", "forgejo", "actions":
		return CIBackendForgejoActions, nil
	case "woodpecker":
		return CIBackendWoodpecker, nil
	case "none":
		return CIBackendNone, nil
	}
	return "", &ConfigParseError{Input: s, Segment: s, Reason: "unknown CI backend (expected forgejo-actions, woodpecker or none)"}
}

// AuthType is how a client authenticates against its forge.
type AuthType int

const (
	// AuthDisabled means no credentials are configured. It is the only input
	// that yields a no-op OptionalClient.
	AuthDisabled AuthType = iota
	AuthBearer            // Authorization: Bearer <token>
	AuthToken             // Authorization: token <token> (Forgejo, Gitea)
	AuthPrivateToken      // PRIVATE-TOKEN: <token> (GitLab)
)

// AuthTypeFor returns the authentication scheme a provider expects.
func AuthTypeFor(kind Kind) AuthType {
	switch kind {
	case KindGitHub:
		return AuthBearer
	case KindGitLab:
		return AuthPrivateToken
	case KindCodeberg:
		return AuthToken
	}
	return AuthDisabled
}

// Client is the capability every forge provider implements.
type Client interface {
	// Kind returns the provider this client talks to.
	Kind() Kind

	// TestConnection verifies that the base URL and credentials are usable.
	// It is meant for configuration-time validation, not for the poll loop.
	TestConnection(ctx context.Context) error

	// FetchPullRequestStatus returns the unified status of the request whose
	// head is branch. A branch without a request yields status.None() and no error.
	FetchPullRequestStatus(ctx context.Context, branch string) (status.PullRequestStatus, error)
}

// PipelineResolver resolves CI state for a commit. Codeberg clients hold one,
// chosen once at construction from the configured CI backend.
type PipelineResolver interface {
	PipelineStatusForCommit(ctx context.Context, sha string) (status.PipelineStatus, error)
}

// CooldownReporter is implemented by clients that track a rate-limit cool-down window.
type CooldownReporter interface {
	// CooldownRemaining returns the time left in the current cool-down window.
	CooldownRemaining() (time.Duration, bool)
}

// connectionTester is implemented by sub-components that can verify their own credentials.
type connectionTester interface {
	TestConnection(ctx context.Context) error
}

// TestForgeConnection validates a client independently of the poll loop.
// Any failure is returned as a *ConnectionError.
func TestForgeConnection(ctx context.Context, c Client) error {
	err := c.TestConnection(ctx)
	if err == nil {
		return nil
	}
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return err
	}
	return &ConnectionError{Forge: c.Kind().DisplayName(), Err: err}
}

// pipelineFor attaches CI state to an active request. A rate-limited or
// transient lookup fails the fetch so the caller keeps its last known status;
// any other failure is logged and reported as PipelineNone.
func pipelineFor(
	ctx context.Context,
	logger *clog.Logger,
	pr status.PullRequestStatus,
	resolve func(context.Context) (status.PipelineStatus, error),
) (status.PullRequestStatus, error) {
	if !pr.IsActive() {
		return pr, nil
	}
	pipeline, err := resolve(ctx)
	if err != nil {
		if isRetryable(err) {
			return status.None(), err
		}
		logger.Warn("pipeline lookup failed", "number", pr.Number(), "kind", KindOf(err), "err", err)
		pipeline = status.PipelineNone
	}
	return pr.WithPipeline(pipeline), nil
}

// isRetryable reports whether err is expected to clear on a later poll.
func isRetryable(err error) bool {
	switch KindOf(err) {
	case ErrorRateLimited, ErrorTransient:
		return true
	}
	return false
}
