package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config represents the complete grove-status configuration.
type Config struct {
	Forge        ForgeConfig        `toml:"forge"`
	Git          GitConfig          `toml:"git"`
	Poll         PollConfig         `toml:"poll"`
	Repositories []RepositoryConfig `toml:"repositories"`
	Server       ServerConfig       `toml:"server"`
}

// Validate checks that all config values are valid.
// Returns an error describing the first invalid value found.
// Provider-specific repository fields are left to the forge client factory.
func (c Config) Validate() error {
	if c.Git.Timeout < 0 {
		return errors.New("git.timeout cannot be negative")
	}
	if c.Forge.Concurrency < 0 {
		return errors.New("forge.concurrency cannot be negative")
	}
	if c.Forge.CycleTimeout < 0 {
		return errors.New("forge.cycle_timeout cannot be negative")
	}
	if c.Forge.RequestTimeout < 0 {
		return errors.New("forge.request_timeout cannot be negative")
	}
	if c.Forge.CooldownInitial < 0 {
		return errors.New("forge.cooldown_initial cannot be negative")
	}
	if c.Forge.CooldownMax < c.Forge.CooldownInitial {
		return errors.New("forge.cooldown_max must be at least forge.cooldown_initial")
	}
	if c.Poll.Interval < 0 {
		return errors.New("poll.interval cannot be negative")
	}

	seen := make(map[string]bool, len(c.Repositories))
	for i, repo := range c.Repositories {
		name := repo.DisplayName()
		if name == "" {
			return fmt.Errorf("repositories[%d] needs a name, repo or path", i)
		}
		if seen[name] {
			return fmt.Errorf("duplicate repository name %q", name)
		}
		seen[name] = true
	}
	return nil
}

// ForgeConfig configures the provider HTTP clients and the batch fetcher.
type ForgeConfig struct {
	Concurrency     int           `toml:"concurrency"`      // max in-flight branch fetches per cycle
	CooldownInitial time.Duration `toml:"cooldown_initial"` // first cool-down after a 429/503
	CooldownMax     time.Duration `toml:"cooldown_max"`     // cap for repeated cool-downs
	CycleTimeout    time.Duration `toml:"cycle_timeout"`    // deadline for one poll cycle, 0 = none
	RequestTimeout  time.Duration `toml:"request_timeout"`  // per HTTP request
	UserAgent       string        `toml:"user_agent"`

	// GhAuth falls back to the gh CLI's stored token for GitHub repositories
	// without a configured token.
	GhAuth bool `toml:"gh_auth"`
}

// GitConfig configures git command execution.
type GitConfig struct {
	Timeout time.Duration `toml:"timeout"` // Timeout for git commands (e.g., "5s")
}

// PollConfig configures the refresh loop used by watch and serve.
type PollConfig struct {
	Interval time.Duration `toml:"interval"`
}

// ServerConfig configures the snapshot HTTP endpoint.
type ServerConfig struct {
	Addr           string   `toml:"addr"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// RepositoryConfig describes one repository whose worktrees are tracked.
// Empty provider, repo or token selects the no-op client for that repository.
type RepositoryConfig struct {
	Name string `toml:"name"`
	Path string `toml:"path"` // local checkout; worktrees are discovered from here

	// Branches are queried in addition to the branches checked out in worktrees.
	Branches []string `toml:"branches"`

	Provider string `toml:"provider"` // github | gitlab | codeberg (forgejo, gitea)
	BaseURL  string `toml:"base_url"` // defaults per provider
	// Repo identifies the repository on the forge: "owner/repo", a GitLab
	// project id or path, or a full repository URL.
	Repo     string `toml:"repo"`
	Token    string `toml:"token"`
	TokenEnv string `toml:"token_env"`

	CIBackend          string `toml:"ci_backend"` // codeberg only: forgejo-actions | woodpecker | none
	WoodpeckerURL      string `toml:"woodpecker_url"`
	WoodpeckerToken    string `toml:"woodpecker_token"`
	WoodpeckerTokenEnv string `toml:"woodpecker_token_env"`
	WoodpeckerRepoID   int64  `toml:"woodpecker_repo_id"`
}

// defaultTokenEnv maps a provider name to the environment variable consulted
// when neither token nor token_env is set.
var defaultTokenEnv = map[string]string{
	"codeberg": "CODEBERG_TOKEN",
	"forgejo":  "CODEBERG_TOKEN",
	"gitea":    "CODEBERG_TOKEN",
	"github":   "GITHUB_TOKEN",
	"gitlab":   "GITLAB_TOKEN",
}

const defaultWoodpeckerTokenEnv = "WOODPECKER_TOKEN"

// DisplayName returns the identity used for this repository in snapshots and logs.
func (r RepositoryConfig) DisplayName() string {
	switch {
	case r.Name != "":
		return r.Name
	case r.Repo != "":
		return r.Repo
	case r.Path != "":
		return filepath.Base(r.Path)
	}
	return ""
}

// ResolveToken returns the forge token: the inline token, then token_env, then
// the provider's default environment variable.
func (r RepositoryConfig) ResolveToken(getenv func(string) string) string {
	return resolveSecret(r.Token, r.TokenEnv, defaultTokenEnv[strings.ToLower(r.Provider)], getenv)
}

// ResolveWoodpeckerToken is ResolveToken for the Woodpecker CI backend.
func (r RepositoryConfig) ResolveWoodpeckerToken(getenv func(string) string) string {
	return resolveSecret(r.WoodpeckerToken, r.WoodpeckerTokenEnv, defaultWoodpeckerTokenEnv, getenv)
}

func resolveSecret(inline, env, fallbackEnv string, getenv func(string) string) string {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := strings.TrimSpace(inline); v != "" {
		return v
	}
	if env != "" {
		if v := strings.TrimSpace(getenv(env)); v != "" {
			return v
		}
	}
	if fallbackEnv != "" {
		return strings.TrimSpace(getenv(fallbackEnv))
	}
	return ""
}

// ExpandHome replaces a leading "~" in path with homeDir.
func ExpandHome(path, homeDir string) string {
	if path == "~" {
		return homeDir
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir, path[2:])
	}
	return path
}
