package forge

import (
	"net/url"
	"strings"
)

// RemoteInfo is what can be inferred about a repository from its git remote URL.
type RemoteInfo struct {
	Kind Kind
	// BaseURL is empty for the public instances (github.com, gitlab.com, codeberg.org).
	BaseURL string
	// Repo is "owner/repo", or the full namespace path on GitLab.
	Repo string
	// Guessed is set when the host did not identify the provider and GitLab was assumed.
	Guessed bool
}

// DetectRemote infers provider, base URL and repository path from a remote
// URL such as git@github.com:owner/repo.git or https://gitlab.example.com/group/sub/project.
func DetectRemote(remote string) (RemoteInfo, error) {
	raw := strings.TrimSpace(remote)
	var host, path, scheme string

	switch {
	case strings.HasPrefix(raw, "git@"):
		hostPart, rest, ok := strings.Cut(strings.TrimPrefix(raw, "git@"), ":")
		if !ok || hostPart == "" {
			return RemoteInfo{}, &ConfigParseError{Input: remote, Segment: raw, Reason: "expected git@host:owner/repo"}
		}
		host, path, scheme = hostPart, rest, "https"
	case strings.Contains(raw, "://"):
		u, err := url.Parse(raw)
		if err != nil || u.Hostname() == "" {
			return RemoteInfo{}, &ConfigParseError{Input: remote, Segment: raw, Reason: "invalid remote URL"}
		}
		switch u.Scheme {
		case "http", "https":
			host, scheme = u.Host, u.Scheme
		case "ssh", "git":
			host, scheme = u.Hostname(), "https"
		default:
			return RemoteInfo{}, &ConfigParseError{Input: remote, Segment: u.Scheme, Reason: "unsupported remote scheme"}
		}
		path = u.Path
	default:
		return RemoteInfo{}, &ConfigParseError{Input: remote, Segment: raw, Reason: "not a network remote"}
	}

	path = strings.TrimSuffix(strings.Trim(path, "/"), ".git")
	segments := strings.Split(path, "/")
	if len(segments) < 2 {
		return RemoteInfo{}, &ConfigParseError{Input: remote, Segment: path, Reason: "expected owner/repo in remote path"}
	}

	info := detectHost(host, scheme)
	if info.Kind == KindGitLab {
		info.Repo = path
	} else {
		info.Repo = segments[0] + "/" + segments[len(segments)-1]
	}
	if _, err := ParseServiceID(info.Kind, info.Repo); err != nil {
		return RemoteInfo{}, err
	}
	return info, nil
}

func detectHost(host, scheme string) RemoteInfo {
	h := strings.ToLower(host)
	base := scheme + "://" + host

	switch {
	case h == "github.com":
		return RemoteInfo{Kind: KindGitHub}
	case h == "gitlab.com":
		return RemoteInfo{Kind: KindGitLab}
	case h == "codeberg.org":
		return RemoteInfo{Kind: KindCodeberg}
	case strings.Contains(h, "gitlab"):
		return RemoteInfo{Kind: KindGitLab, BaseURL: base}
	case strings.Contains(h, "codeberg"), strings.Contains(h, "forgejo"), strings.Contains(h, "gitea"):
		return RemoteInfo{Kind: KindCodeberg, BaseURL: base}
	case strings.Contains(h, "github"), strings.Contains(h, "ghe"):
		return RemoteInfo{Kind: KindGitHub, BaseURL: base}
	}
	return RemoteInfo{Kind: KindGitLab, BaseURL: base, Guessed: true}
}
