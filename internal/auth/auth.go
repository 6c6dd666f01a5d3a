// Package auth resolves the authenticated principal that owns the cloud
// records. The app shell performs the interactive login and drops the session
// token where the sync daemon can read it; this package only needs the
// principal identity and a bearer token for outgoing calls.
package auth

import (
	"context"
	"errors"
)

// ErrNotAuthenticated is returned when no principal is available for a remote
// operation. It is a first-class error, never an empty result: callers must
// abort the operation, not proceed as if the cloud were empty.
var ErrNotAuthenticated = errors.New("auth: not authenticated")

// Principal is the authenticated identity that owns a set of remote records.
type Principal struct {
	ID    string
	Email string
}

// Provider yields the current principal and its bearer token.
type Provider interface {
	// CurrentPrincipal returns the signed-in principal, or ErrNotAuthenticated.
	CurrentPrincipal(ctx context.Context) (Principal, error)

	// Token returns the bearer token for remote calls, or ErrNotAuthenticated.
	Token(ctx context.Context) (string, error)
}

// Static is a fixed-principal Provider for tests and local development.
type Static struct {
	Principal   Principal
	BearerToken string
}

func (s *Static) CurrentPrincipal(context.Context) (Principal, error) {
	if s.Principal.ID == "" {
		return Principal{}, ErrNotAuthenticated
	}
	return s.Principal, nil
}

func (s *Static) Token(context.Context) (string, error) {
	if s.BearerToken == "" {
		return "", ErrNotAuthenticated
	}
	return s.BearerToken, nil
}
