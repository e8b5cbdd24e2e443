package github

import "context"

// DefaultHost is the host gh uses when none is given.
const DefaultHost = "github.com"

type GitHub interface {

	// AuthToken returns the token gh is logged in with for hostname.
	// Returns ("", nil) when gh has no credentials for the host.
	AuthToken(ctx context.Context, hostname string) (string, error)
}
