package storer

import (
	"context"
	"errors"
)

// ErrUnauthorized is returned by authentication services when a session is
// rejected. It short-circuits the session before any protocol state is
// touched.
var ErrUnauthorized = errors.New("unauthorized")

// AuthenticationService is the authentication surface the host implements.
// The core invokes exactly one of these once per session, before
// dispatching any protocol service.
type AuthenticationService interface {
	// AuthenticateHTTP validates a session from its request headers.
	AuthenticateHTTP(ctx context.Context, headers map[string]string) error

	// AuthenticateSSH validates a session from the username and the raw
	// public key presented on the SSH channel.
	AuthenticateSSH(ctx context.Context, username string, publicKey []byte) error
}

// NoAuth accepts every session. It is the default authentication service.
type NoAuth struct{}

// AuthenticateHTTP implements AuthenticationService.
func (NoAuth) AuthenticateHTTP(context.Context, map[string]string) error { return nil }

// AuthenticateSSH implements AuthenticationService.
func (NoAuth) AuthenticateSSH(context.Context, string, []byte) error { return nil }
