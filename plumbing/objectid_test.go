package plumbing

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-git/go-gitwire/plumbing/hash"
)

func TestFromHexInfersFormat(t *testing.T) {
	h, err := FromHex("8ab686eafeb1f44702738c8b0f24f2567c36da6d")
	require.NoError(t, err)
	assert.Equal(t, hash.SHA1, h.Format())
	assert.Equal(t, 20, h.Size())

	h, err = FromHex("473a0f4c3be8a93681a267e3b1e9a7dcda1185436fe141f7749120a303721813")
	require.NoError(t, err)
	assert.Equal(t, hash.SHA256, h.Format())
	assert.Equal(t, 32, h.Size())
}

func TestFromHexErrors(t *testing.T) {
	for _, in := range []string{
		"",
		"8ab686eafeb1f44702738c8b0f24f2567c36da6", // odd length
		"zzb686eafeb1f44702738c8b0f24f2567c36da6d",
		"8ab686eafeb1f44702738c8b0f24f2567c36da6d00", // 21 bytes
	} {
		_, err := FromHex(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestZeroHash(t *testing.T) {
	assert.True(t, ZeroHash.IsZero())
	assert.Equal(t, "0000000000000000000000000000000000000000", ZeroHash.String())

	z256 := ZeroHashOf(hash.SHA256)
	assert.True(t, z256.IsZero())
	assert.Len(t, z256.String(), 64)

	parsed, err := FromHex(z256.String())
	require.NoError(t, err)
	assert.True(t, parsed.IsZero())
	assert.Equal(t, hash.SHA256, parsed.Format())
}

func TestHashRoundtripBytes(t *testing.T) {
	h := MustFromHex("8ab686eafeb1f44702738c8b0f24f2567c36da6d")
	got, err := FromBytes(h.Bytes())
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestReadHash(t *testing.T) {
	h := MustFromHex("8ab686eafeb1f44702738c8b0f24f2567c36da6d")
	got, err := ReadHash(bytes.NewReader(h.Bytes()), hash.SHA1)
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestHashesSort(t *testing.T) {
	a := MustFromHex("aa00000000000000000000000000000000000000")
	b := MustFromHex("0b00000000000000000000000000000000000000")
	c := MustFromHex("5500000000000000000000000000000000000000")

	s := []Hash{a, b, c}
	HashesSort(s)
	assert.Equal(t, []Hash{b, c, a}, s)
}
