package forge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	clog "github.com/charmbracelet/log"
	"golang.org/x/oauth2"
)

// ResponseClass is the coarse outcome of a forge HTTP response.
type ResponseClass int

const (
	ClassSuccess ResponseClass = iota
	ClassAuth
	ClassNotFound
	ClassRateLimited
	ClassTransient
	ClassUnknown
)

func (c ResponseClass) String() string {
	switch c {
	case ClassSuccess:
		return "success"
	case ClassAuth:
		return "auth"
	case ClassNotFound:
		return "not_found"
	case ClassRateLimited:
		return "rate_limited"
	case ClassTransient:
		return "transient"
	}
	return "unknown"
}

// ClassifyResponse maps a response to a ResponseClass. GitHub signals an
// exhausted quota with 403 and X-RateLimit-Remaining: 0, which is treated as
// rate limiting rather than an auth failure.
func ClassifyResponse(resp *http.Response) ResponseClass {
	code := resp.StatusCode
	switch {
	case code >= 200 && code < 300:
		return ClassSuccess
	case code == http.StatusTooManyRequests:
		return ClassRateLimited
	case code == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0":
		return ClassRateLimited
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ClassAuth
	case code == http.StatusNotFound:
		return ClassNotFound
	case code == http.StatusRequestTimeout || code >= 500:
		return ClassTransient
	}
	return ClassUnknown
}

func errorKindFor(class ResponseClass) ErrorKind {
	switch class {
	case ClassAuth:
		return ErrorAuth
	case ClassNotFound:
		return ErrorNotFound
	case ClassRateLimited:
		return ErrorRateLimited
	case ClassTransient:
		return ErrorTransient
	}
	return ErrorUnknown
}

// CheckForgeResponse returns nil for 2xx responses and a *FetchError otherwise.
// A short prefix of the body is kept as the error message.
func CheckForgeResponse(resp *http.Response, forge string) error {
	class := ClassifyResponse(resp)
	if class == ClassSuccess {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &FetchError{
		Kind:       errorKindFor(class),
		Forge:      forge,
		StatusCode: resp.StatusCode,
		RetryAfter: retryAfter(resp.Header, time.Now()),
		Message:    strings.TrimSpace(string(body)),
	}
}

// retryAfter reads Retry-After (seconds or HTTP date), falling back to
// GitHub's X-RateLimit-Reset epoch when the quota is exhausted.
func retryAfter(h http.Header, now time.Time) time.Duration {
	if v := strings.TrimSpace(h.Get("Retry-After")); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
		if at, err := http.ParseTime(v); err == nil && at.After(now) {
			return at.Sub(now)
		}
	}
	if h.Get("X-RateLimit-Remaining") == "0" {
		if epoch, err := strconv.ParseInt(h.Get("X-RateLimit-Reset"), 10, 64); err == nil {
			if at := time.Unix(epoch, 0); at.After(now) {
				return at.Sub(now)
			}
		}
	}
	return 0
}

// headerTransport sets fixed headers on every request.
type headerTransport struct {
	headers map[string]string
	base    http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	for k, v := range t.headers {
		clone.Header.Set(k, v)
	}
	return t.base.RoundTrip(clone)
}

func newHTTPClient(auth AuthType, token, userAgent string, timeout time.Duration, base http.RoundTripper) *http.Client {
	if base == nil {
		base = http.DefaultTransport
	}
	headers := map[string]string{"Accept": "application/json"}
	if userAgent != "" {
		headers["User-Agent"] = userAgent
	}
	if auth == AuthPrivateToken && token != "" {
		headers["PRIVATE-TOKEN"] = token
	}
	var transport http.RoundTripper = &headerTransport{headers: headers, base: base}

	if token != "" && (auth == AuthBearer || auth == AuthToken) {
		tokenType := "Bearer"
		if auth == AuthToken {
			tokenType = "token"
		}
		transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: tokenType}),
			Base:   transport,
		}
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

// api is the shared HTTP plumbing behind every provider client: one base URL,
// one authenticated http.Client and one cool-down window.
type api struct {
	forge    string
	baseURL  string
	client   *http.Client
	cooldown *cooldown
	logger   *clog.Logger
}

// get issues a GET for path relative to the base URL and decodes the JSON body
// into out. No request is sent while the cool-down window is open.
func (a *api) get(ctx context.Context, path string, query url.Values, out any) error {
	if left, cooling := a.cooldown.Remaining(); cooling {
		return &FetchError{Kind: ErrorRateLimited, Forge: a.forge, RetryAfter: left, Message: "cooling down"}
	}
	return a.fetch(ctx, path, query, out)
}

func (a *api) fetch(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := a.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &FetchError{Kind: ErrorUnknown, Forge: a.forge, Err: err}
	}

	a.logger.Debug("request", "url", endpoint)
	epoch := a.cooldown.Epoch()
	resp, err := a.client.Do(req)
	if err != nil {
		return &FetchError{Kind: ErrorTransient, Forge: a.forge, Err: err}
	}
	defer resp.Body.Close()

	if err := CheckForgeResponse(resp, a.forge); err != nil {
		var fe *FetchError
		if errors.As(err, &fe) && (fe.Kind == ErrorRateLimited || fe.StatusCode == http.StatusServiceUnavailable) {
			window := a.cooldown.Trip(fe.RetryAfter)
			a.logger.Warn("rate limited, cooling down", "status", fe.StatusCode, "window", window)
		}
		return err
	}
	if !a.cooldown.Succeeded(epoch) {
		a.logger.Debug("keeping cool-down tripped during request", "url", endpoint)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &FetchError{Kind: ErrorParse, Forge: a.forge, StatusCode: resp.StatusCode, Message: fmt.Sprintf("decoding %s", path), Err: err}
	}
	return nil
}

func (a *api) CooldownRemaining() (time.Duration, bool) {
	return a.cooldown.Remaining()
}

// testConnection fetches path and wraps any failure as a *ConnectionError.
// It ignores the cool-down window so configuration checks always hit the network.
func (a *api) testConnection(ctx context.Context, path string) error {
	if err := a.fetch(ctx, path, nil, nil); err != nil {
		return &ConnectionError{Forge: a.forge, Err: err}
	}
	return nil
}
