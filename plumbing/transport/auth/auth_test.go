package auth

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/go-git/go-gitwire/plumbing/storer"
)

func basicHeader(user, pass string) map[string]string {
	cred := base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
	return map[string]string{"Authorization": "Basic " + cred}
}

func TestBasicAccepts(t *testing.T) {
	b := &Basic{Username: "john", Password: "secret"}
	err := b.AuthenticateHTTP(context.Background(), basicHeader("john", "secret"))
	assert.NoError(t, err)
}

func TestBasicRejects(t *testing.T) {
	b := &Basic{Username: "john", Password: "secret"}

	cases := []map[string]string{
		nil,
		{"Authorization": "Bearer whatever"},
		{"Authorization": "Basic !!!"},
		basicHeader("john", "wrong"),
		basicHeader("jane", "secret"),
	}
	for _, headers := range cases {
		err := b.AuthenticateHTTP(context.Background(), headers)
		assert.ErrorIs(t, err, storer.ErrUnauthorized)
	}

	// SSH is not a valid transport for basic credentials.
	err := b.AuthenticateSSH(context.Background(), "john", nil)
	assert.ErrorIs(t, err, storer.ErrUnauthorized)
}

func TestPublicKeys(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	sshPub, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)

	p := NewPublicKeys()
	require.NoError(t, p.AddRaw("john", sshPub.Marshal()))

	err = p.AuthenticateSSH(context.Background(), "john", sshPub.Marshal())
	assert.NoError(t, err)

	// Unknown user and unknown key are both rejected.
	err = p.AuthenticateSSH(context.Background(), "jane", sshPub.Marshal())
	assert.ErrorIs(t, err, storer.ErrUnauthorized)

	otherPub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	otherSSH, err := ssh.NewPublicKey(otherPub)
	require.NoError(t, err)
	err = p.AuthenticateSSH(context.Background(), "john", otherSSH.Marshal())
	assert.ErrorIs(t, err, storer.ErrUnauthorized)

	// HTTP is not a valid transport for public keys.
	err = p.AuthenticateHTTP(context.Background(), nil)
	assert.ErrorIs(t, err, storer.ErrUnauthorized)
}

func TestPublicKeysAuthorizedKeyFormat(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	sshPub, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)

	line := string(ssh.MarshalAuthorizedKey(sshPub))

	p := NewPublicKeys()
	require.NoError(t, p.Add("john", line))

	err = p.AuthenticateSSH(context.Background(), "john", sshPub.Marshal())
	assert.NoError(t, err)
}
