package object

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-git/go-gitwire/plumbing"
	"github.com/go-git/go-gitwire/plumbing/filemode"
	"github.com/go-git/go-gitwire/plumbing/hash"
)

const commitPayload = "tree f000000000000000000000000000000000000001\n" +
	"parent f000000000000000000000000000000000000002\n" +
	"parent f000000000000000000000000000000000000003\n" +
	"author John Doe <john@example.com> 1257894000 +0100\n" +
	"committer Jane Roe <jane@example.com> 1257894000 -0500\n" +
	"\n" +
	"Add a thing\n\nWith a body.\n"

func TestCommitDecode(t *testing.T) {
	c := &Commit{}
	require.NoError(t, c.Decode([]byte(commitPayload)))

	assert.Equal(t, "f000000000000000000000000000000000000001", c.TreeHash.String())
	require.Len(t, c.ParentHashes, 2)
	assert.Equal(t, "f000000000000000000000000000000000000003", c.ParentHashes[1].String())
	assert.Equal(t, "John Doe", c.Author.Name)
	assert.Equal(t, "john@example.com", c.Author.Email)
	assert.Equal(t, int64(1257894000), c.Author.When.Unix())
	_, offset := c.Author.When.Zone()
	assert.Equal(t, 3600, offset)
	assert.Equal(t, "Jane Roe", c.Committer.Name)
	assert.Equal(t, "Add a thing\n\nWith a body.\n", c.Message)
}

func TestCommitRoundtrip(t *testing.T) {
	c := &Commit{}
	require.NoError(t, c.Decode([]byte(commitPayload)))

	out, err := c.Encode()
	require.NoError(t, err)
	assert.Equal(t, commitPayload, string(out))
}

func TestCommitGpgsigPreserved(t *testing.T) {
	payload := "tree f000000000000000000000000000000000000001\n" +
		"author John Doe <john@example.com> 1257894000 +0100\n" +
		"committer John Doe <john@example.com> 1257894000 +0100\n" +
		"gpgsig -----BEGIN PGP SIGNATURE-----\n" +
		" Version: GnuPG v1\n" +
		" \n" +
		" aaaa\n" +
		" -----END PGP SIGNATURE-----\n" +
		"\n" +
		"signed\n"

	c := &Commit{}
	require.NoError(t, c.Decode([]byte(payload)))
	assert.Contains(t, c.PGPSignature, "BEGIN PGP SIGNATURE")

	out, err := c.Encode()
	require.NoError(t, err)
	assert.Equal(t, payload, string(out))
}

func TestCommitWithoutTreeIsRejected(t *testing.T) {
	c := &Commit{}
	err := c.Decode([]byte("author John <j@e.c> 1 +0000\n\nmsg\n"))
	assert.ErrorIs(t, err, ErrMalformedObject)
}

func TestTreeRoundtrip(t *testing.T) {
	tree := &Tree{Entries: []TreeEntry{
		{Name: "a.txt", Mode: filemode.Regular, Hash: plumbing.MustFromHex("f000000000000000000000000000000000000001")},
		{Name: "bin", Mode: filemode.Executable, Hash: plumbing.MustFromHex("f000000000000000000000000000000000000002")},
		{Name: "sub", Mode: filemode.Dir, Hash: plumbing.MustFromHex("f000000000000000000000000000000000000003")},
	}}

	payload, err := tree.Encode()
	require.NoError(t, err)

	decoded := &Tree{}
	require.NoError(t, decoded.Decode(payload))
	assert.Equal(t, tree.Entries, decoded.Entries)

	again, err := decoded.Encode()
	require.NoError(t, err)
	assert.Equal(t, payload, again)
}

func TestTreeRejectsUnknownMode(t *testing.T) {
	tree := &Tree{}
	// 100600 is not in the Git standard mode set.
	raw := append([]byte("100600 f\x00"), make([]byte, 20)...)
	assert.ErrorIs(t, tree.Decode(raw), ErrMalformedObject)
}

func TestTreeRejectsTruncatedEntry(t *testing.T) {
	tree := &Tree{}
	raw := append([]byte("100644 f\x00"), make([]byte, 7)...)
	assert.ErrorIs(t, tree.Decode(raw), ErrMalformedObject)
}

func TestTreeSHA256Entries(t *testing.T) {
	h := plumbing.MustFromHex("473a0f4c3be8a93681a267e3b1e9a7dcda1185436fe141f7749120a303721813")
	tree := &Tree{Entries: []TreeEntry{{Name: "x", Mode: filemode.Regular, Hash: h}}}

	payload, err := tree.Encode()
	require.NoError(t, err)

	decoded := &Tree{}
	require.NoError(t, decoded.Decode(payload))
	require.Len(t, decoded.Entries, 1)
	assert.Equal(t, h, decoded.Entries[0].Hash)
}

func TestTagRoundtrip(t *testing.T) {
	tag := &Tag{
		Name:       "v1.0.0",
		Target:     plumbing.MustFromHex("f000000000000000000000000000000000000001"),
		TargetType: plumbing.CommitObject,
		Tagger: Signature{
			Name:  "John Doe",
			Email: "john@example.com",
			When:  time.Unix(1257894000, 0).In(time.FixedZone("", 3600)),
		},
		Message: "release\n",
	}

	payload, err := tag.Encode()
	require.NoError(t, err)

	decoded := &Tag{}
	require.NoError(t, decoded.Decode(payload))
	assert.Equal(t, tag.Name, decoded.Name)
	assert.Equal(t, tag.Target, decoded.Target)
	assert.Equal(t, tag.TargetType, decoded.TargetType)
	assert.Equal(t, tag.Message, decoded.Message)

	again, err := decoded.Encode()
	require.NoError(t, err)
	assert.Equal(t, payload, again)
}

func TestParseChecked(t *testing.T) {
	payload := []byte("hello")
	h, err := plumbing.NewHasher(hash.SHA1).Compute(plumbing.BlobObject, payload)
	require.NoError(t, err)

	o, err := ParseChecked(hash.SHA1, plumbing.BlobObject, payload, h)
	require.NoError(t, err)
	assert.Equal(t, payload, o.(*Blob).Data)

	_, err = ParseChecked(hash.SHA1, plumbing.BlobObject, []byte("tampered"), h)
	assert.ErrorIs(t, err, ErrHashMismatch)
}

func TestSignatureDecodeNoTimezone(t *testing.T) {
	var s Signature
	s.Decode([]byte("John <j@e.c> 1257894000"))
	assert.Equal(t, "John", s.Name)
	assert.Equal(t, int64(1257894000), s.When.Unix())
}
