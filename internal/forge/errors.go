package forge

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies a failed fetch.
type ErrorKind int

const (
	ErrorUnknown ErrorKind = iota
	ErrorAuth
	ErrorNotFound
	ErrorRateLimited
	ErrorTransient
	ErrorParse
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorAuth:
		return "auth"
	case ErrorNotFound:
		return "not_found"
	case ErrorRateLimited:
		return "rate_limited"
	case ErrorTransient:
		return "transient"
	case ErrorParse:
		return "parse"
	}
	return "unknown"
}

// FetchError is a per-branch fetch failure. It is always recoverable by the
// aggregator, which falls back to the previous known status.
type FetchError struct {
	Kind       ErrorKind
	Forge      string
	StatusCode int           // 0 when no response was received
	RetryAfter time.Duration // provider hint or remaining cool-down
	Message    string
	Err        error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("%s %s error", e.Forge, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is matches sentinels by kind, so errors.Is(err, ErrRateLimited) works for any forge.
func (e *FetchError) Is(target error) bool {
	t, ok := target.(*FetchError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Forge == "" || t.Forge == e.Forge)
}

var (
	ErrAuth        = &FetchError{Kind: ErrorAuth}
	ErrNotFound    = &FetchError{Kind: ErrorNotFound}
	ErrRateLimited = &FetchError{Kind: ErrorRateLimited}
	ErrTransient   = &FetchError{Kind: ErrorTransient}
	ErrParse       = &FetchError{Kind: ErrorParse}
)

// KindOf returns the ErrorKind of err, or ErrorUnknown when err is not a *FetchError.
func KindOf(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorTransient
	}
	return ErrorUnknown
}

// ConnectionError is returned by connection tests: bad credentials, bad URL
// or an unreachable host. Fatal to that repository's setup, not to the process.
type ConnectionError struct {
	Forge string
	Err   error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s connection failed: %v", e.Forge, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ConfigParseError reports a malformed repository URL or identifier from user configuration.
type ConfigParseError struct {
	Input   string // the full configured value
	Segment string // the offending part of Input
	Reason  string
}

func (e *ConfigParseError) Error() string {
	if e.Segment != "" && e.Segment != e.Input {
		return fmt.Sprintf("cannot parse %q: %s (at %q)", e.Input, e.Reason, e.Segment)
	}
	return fmt.Sprintf("cannot parse %q: %s", e.Input, e.Reason)
}
