package forge

import (
	"context"
	"net/http"
	"strings"
	"time"

	clog "github.com/charmbracelet/log"

	"github.com/jmcampanini/grove-status/internal/config"
	"github.com/jmcampanini/grove-status/internal/status"
)

// Option customizes NewClient.
type Option func(*options)

type options struct {
	logger    *clog.Logger
	transport http.RoundTripper
	now       func() time.Time
	getenv    func(string) string
}

// WithLogger sets the logger clients write to.
func WithLogger(logger *clog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithTransport sets the base RoundTripper under the auth and header layers.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

// WithClock sets the clock used for cool-down windows.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithGetenv sets the environment lookup used to resolve tokens.
func WithGetenv(getenv func(string) string) Option {
	return func(o *options) { o.getenv = getenv }
}

// NewClient builds the client for one configured repository. It never fails:
//   - missing provider, repo or token yields a no-op client
//   - a malformed identifier or URL yields a client whose TestConnection
//     returns a *ConnectionError and whose fetches return a parse *FetchError
func NewClient(repo config.RepositoryConfig, settings config.ForgeConfig, opts ...Option) *OptionalClient {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = clog.Default().WithPrefix("forge")
	}
	name := repo.DisplayName()
	logger := o.logger.With("repo", name)

	absent := func(kind Kind, reason string) *OptionalClient {
		return NewOptionalClient(name, kind, nil, reason, logger)
	}
	broken := func(kind Kind, err error) *OptionalClient {
		logger.Warn("invalid forge configuration", "err", err)
		return NewOptionalClient(name, kind, &misconfigured{kind: kind, err: err}, "", logger)
	}

	if strings.TrimSpace(repo.Provider) == "" {
		return absent("", "no provider configured")
	}
	kind, err := ParseKind(repo.Provider)
	if err != nil {
		return broken("", err)
	}
	if strings.TrimSpace(repo.Repo) == "" {
		return absent(kind, "no repo configured")
	}
	token := repo.ResolveToken(o.getenv)
	if token == "" {
		return absent(kind, "no token configured")
	}

	backend := CIBackendNone
	if kind == KindCodeberg {
		if strings.TrimSpace(repo.CIBackend) == "" {
			return absent(kind, "no ci_backend configured")
		}
		if backend, err = ParseCIBackend(repo.CIBackend); err != nil {
			return broken(kind, err)
		}
	}

	id, err := ParseServiceID(kind, repo.Repo)
	if err != nil {
		return broken(kind, err)
	}
	baseURL := repo.BaseURL
	if baseURL == "" && strings.Contains(repo.Repo, "://") {
		if baseURL, err = StripPathFromURL(repo.Repo); err != nil {
			return broken(kind, err)
		}
	}
	apiURL, err := APIBaseURL(kind, baseURL)
	if err != nil {
		return broken(kind, err)
	}

	newAPI := func(forge, base string, auth AuthType, token string) *api {
		return &api{
			forge:    forge,
			baseURL:  base,
			client:   newHTTPClient(auth, token, settings.UserAgent, settings.RequestTimeout, o.transport),
			cooldown: newCooldown(settings.CooldownInitial, settings.CooldownMax, o.now),
			logger:   logger.With("forge", forge),
		}
	}
	forgeAPI := newAPI(kind.DisplayName(), apiURL, AuthTypeFor(kind), token)

	var client Client
	switch kind {
	case KindGitHub:
		client = &GitHub{api: forgeAPI, id: id}
	case KindGitLab:
		client = &GitLab{api: forgeAPI, id: id}
	case KindCodeberg:
		cb := &Codeberg{api: forgeAPI, id: id}
		switch backend {
		case CIBackendForgejoActions:
			cb.ci = &ForgejoActions{api: forgeAPI, id: id}
		case CIBackendWoodpecker:
			wpURL, err := woodpeckerAPIBaseURL(repo.WoodpeckerURL)
			if err != nil {
				return broken(kind, err)
			}
			wpToken := repo.ResolveWoodpeckerToken(o.getenv)
			auth := AuthBearer
			if wpToken == "" {
				auth = AuthDisabled
			}
			cb.ci = &Woodpecker{
				api:    newAPI(CIBackendWoodpecker.DisplayName(), wpURL, auth, wpToken),
				id:     id,
				repoID: repo.WoodpeckerRepoID,
			}
		}
		client = cb
	}

	logger.Debug("forge client ready", "provider", kind, "api", apiURL, "ci", backend)
	return NewOptionalClient(name, kind, client, "", logger)
}

// misconfigured stands in for a client whose configuration could not be parsed.
type misconfigured struct {
	kind Kind
	err  error
}

func (m *misconfigured) Kind() Kind { return m.kind }

func (m *misconfigured) TestConnection(context.Context) error {
	return &ConnectionError{Forge: m.kind.DisplayName(), Err: m.err}
}

func (m *misconfigured) FetchPullRequestStatus(context.Context, string) (status.PullRequestStatus, error) {
	return status.None(), &FetchError{Kind: ErrorParse, Forge: m.kind.DisplayName(), Message: "invalid configuration", Err: m.err}
}
