// Package auth provides ready-made authentication services for the two
// transport flavors the protocol core supports: HTTP basic credentials and
// SSH public keys.
package auth

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/go-git/go-gitwire/plumbing/storer"
)

// Basic validates HTTP sessions against a fixed username and password. SSH
// sessions are rejected.
type Basic struct {
	Username string
	Password string
}

// AuthenticateHTTP implements storer.AuthenticationService.
func (b *Basic) AuthenticateHTTP(_ context.Context, headers map[string]string) error {
	value, ok := headers["Authorization"]
	if !ok {
		value = headers["authorization"]
	}

	const prefix = "Basic "
	if !strings.HasPrefix(value, prefix) {
		return storer.ErrUnauthorized
	}

	raw, err := base64.StdEncoding.DecodeString(value[len(prefix):])
	if err != nil {
		return storer.ErrUnauthorized
	}

	username, password, found := strings.Cut(string(raw), ":")
	if !found {
		return storer.ErrUnauthorized
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(b.Username))
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(b.Password))
	if userOK&passOK != 1 {
		return storer.ErrUnauthorized
	}

	return nil
}

// AuthenticateSSH implements storer.AuthenticationService.
func (b *Basic) AuthenticateSSH(context.Context, string, []byte) error {
	return storer.ErrUnauthorized
}

// PublicKeys validates SSH sessions against a set of authorized keys per
// user. HTTP sessions are rejected.
type PublicKeys struct {
	// keys maps a username to the fingerprints of its authorized keys.
	keys map[string]map[string]bool
}

// NewPublicKeys returns an empty authorized-keys service.
func NewPublicKeys() *PublicKeys {
	return &PublicKeys{keys: make(map[string]map[string]bool)}
}

// Add authorizes a key, given in OpenSSH authorized_keys format, for a
// user.
func (p *PublicKeys) Add(username, authorizedKey string) error {
	pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(authorizedKey))
	if err != nil {
		return fmt.Errorf("cannot parse authorized key: %w", err)
	}

	if p.keys[username] == nil {
		p.keys[username] = make(map[string]bool)
	}
	p.keys[username][ssh.FingerprintSHA256(pub)] = true

	return nil
}

// AddRaw authorizes a key given in SSH wire format.
func (p *PublicKeys) AddRaw(username string, publicKey []byte) error {
	pub, err := ssh.ParsePublicKey(publicKey)
	if err != nil {
		return fmt.Errorf("cannot parse public key: %w", err)
	}

	if p.keys[username] == nil {
		p.keys[username] = make(map[string]bool)
	}
	p.keys[username][ssh.FingerprintSHA256(pub)] = true

	return nil
}

// AuthenticateSSH implements storer.AuthenticationService. The public key
// arrives in SSH wire format, as presented on the transport channel.
func (p *PublicKeys) AuthenticateSSH(_ context.Context, username string, publicKey []byte) error {
	pub, err := ssh.ParsePublicKey(publicKey)
	if err != nil {
		return storer.ErrUnauthorized
	}

	if p.keys[username][ssh.FingerprintSHA256(pub)] {
		return nil
	}

	return storer.ErrUnauthorized
}

// AuthenticateHTTP implements storer.AuthenticationService.
func (p *PublicKeys) AuthenticateHTTP(context.Context, map[string]string) error {
	return storer.ErrUnauthorized
}
