package forge

import (
	"net/url"
	"regexp"
	"strings"
)

// Default public endpoints.
const (
	DefaultGitHubAPIURL     = "https://api.github.com"
	DefaultGitLabURL        = "https://gitlab.com"
	DefaultCodebergURL      = "https://codeberg.org"
	DefaultWoodpeckerAPIURL = "https://ci.codeberg.org/api"
)

var segmentPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// ServiceID identifies a repository on its forge. GitHub and Codeberg use
// Owner and Name; GitLab uses Project, either a numeric id or a full
// namespace path.
type ServiceID struct {
	Owner   string
	Name    string
	Project string
}

func (id ServiceID) String() string {
	if id.Project != "" {
		return id.Project
	}
	return id.Owner + "/" + id.Name
}

// projectRef is the GitLab :id path parameter.
func (id ServiceID) projectRef() string {
	return url.PathEscape(id.Project)
}

// ParseServiceID parses a configured repository identifier. It accepts
// "owner/repo", "git@host:owner/repo.git" and web URLs. GitLab also accepts
// nested groups and numeric project ids.
func ParseServiceID(kind Kind, raw string) (ServiceID, error) {
	segments, err := repoSegments(raw)
	if err != nil {
		return ServiceID{}, err
	}

	if kind == KindGitLab {
		if len(segments) == 1 && isNumeric(segments[0]) {
			return ServiceID{Project: segments[0]}, nil
		}
		if len(segments) < 2 {
			return ServiceID{}, &ConfigParseError{Input: raw, Segment: strings.Join(segments, "/"), Reason: "expected group/project or a numeric project id"}
		}
		return ServiceID{Project: strings.Join(segments, "/")}, nil
	}

	if len(segments) != 2 {
		return ServiceID{}, &ConfigParseError{Input: raw, Segment: strings.Join(segments, "/"), Reason: "expected owner/repo"}
	}
	return ServiceID{Owner: segments[0], Name: segments[1]}, nil
}

func repoSegments(raw string) ([]string, error) {
	path := strings.TrimSpace(raw)
	if path == "" {
		return nil, &ConfigParseError{Input: raw, Reason: "repository is empty"}
	}

	isURL := false
	switch {
	case strings.Contains(path, "://"):
		u, err := url.Parse(path)
		if err != nil || u.Host == "" {
			return nil, &ConfigParseError{Input: raw, Segment: path, Reason: "invalid repository URL"}
		}
		path = u.Path
		isURL = true
	case strings.HasPrefix(path, "git@"):
		_, after, ok := strings.Cut(path, ":")
		if !ok {
			return nil, &ConfigParseError{Input: raw, Segment: path, Reason: "expected git@host:owner/repo"}
		}
		path = after
	}

	path = strings.Trim(path, "/")
	path = strings.TrimSuffix(path, ".git")
	if isURL {
		// Web URLs may point below the repository, e.g. /owner/repo/-/merge_requests
		// on GitLab or /owner/repo/pulls elsewhere.
		if before, _, found := strings.Cut(path, "/-/"); found {
			path = before
		} else if parts := strings.Split(path, "/"); len(parts) > 2 && isWebSuffix(parts[2]) {
			path = strings.Join(parts[:2], "/")
		}
	}

	segments := strings.Split(path, "/")
	for _, seg := range segments {
		if seg == "" {
			return nil, &ConfigParseError{Input: raw, Segment: path, Reason: "empty path segment"}
		}
		if !segmentPattern.MatchString(seg) {
			return nil, &ConfigParseError{Input: raw, Segment: seg, Reason: "invalid characters in path segment"}
		}
	}
	return segments, nil
}

func isWebSuffix(s string) bool {
	switch s {
	case "pull", "pulls", "tree", "blob", "commits", "actions", "issues", "src":
		return true
	}
	return false
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// StripPathFromURL reduces a URL to scheme://host[:port].
func StripPathFromURL(raw string) (string, error) {
	u, err := parseHTTPURL(raw)
	if err != nil {
		return "", err
	}
	return u.Scheme + "://" + u.Host, nil
}

func parseHTTPURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, &ConfigParseError{Input: raw, Segment: trimmed, Reason: "invalid URL"}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &ConfigParseError{Input: raw, Segment: u.Scheme, Reason: "URL scheme must be http or https"}
	}
	if u.Host == "" {
		return nil, &ConfigParseError{Input: raw, Reason: "URL has no host"}
	}
	return u, nil
}

// APIBaseURL derives the REST API root for a provider from a configured web
// or API base URL. An empty baseURL selects the public instance.
func APIBaseURL(kind Kind, baseURL string) (string, error) {
	if strings.TrimSpace(baseURL) == "" {
		switch kind {
		case KindGitHub:
			return DefaultGitHubAPIURL, nil
		case KindGitLab:
			baseURL = DefaultGitLabURL
		case KindCodeberg:
			baseURL = DefaultCodebergURL
		}
	}

	u, err := parseHTTPURL(baseURL)
	if err != nil {
		return "", err
	}
	root := u.Scheme + "://" + u.Host
	path := strings.TrimRight(u.Path, "/")

	switch kind {
	case KindGitHub:
		if u.Host == "github.com" || u.Host == "api.github.com" {
			return DefaultGitHubAPIURL, nil
		}
		if path == "" {
			return root + "/api/v3", nil
		}
	case KindGitLab:
		if !strings.HasSuffix(path, "/api/v4") {
			path += "/api/v4"
		}
	case KindCodeberg:
		if !strings.HasSuffix(path, "/api/v1") {
			path += "/api/v1"
		}
	}
	return root + path, nil
}

// woodpeckerAPIBaseURL normalizes a Woodpecker server URL to its /api root.
func woodpeckerAPIBaseURL(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return DefaultWoodpeckerAPIURL, nil
	}
	u, err := parseHTTPURL(raw)
	if err != nil {
		return "", err
	}
	path := strings.TrimRight(u.Path, "/")
	if !strings.HasSuffix(path, "/api") {
		path += "/api"
	}
	return u.Scheme + "://" + u.Host + path, nil
}
