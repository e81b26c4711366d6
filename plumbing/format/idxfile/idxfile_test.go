package idxfile

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-git/go-gitwire/plumbing"
	"github.com/go-git/go-gitwire/plumbing/hash"
)

func sha1Hash(t *testing.T, firstByte byte) plumbing.Hash {
	t.Helper()
	raw := make([]byte, hash.SHA1Size)
	raw[0] = firstByte
	raw[19] = firstByte ^ 0x5a
	h, err := plumbing.FromBytes(raw)
	require.NoError(t, err)
	return h
}

func TestWriterRoundtrip(t *testing.T) {
	w := NewWriter(hash.SHA1)
	w.Add(sha1Hash(t, 0xbb), 120, 111)
	w.Add(sha1Hash(t, 0x04), 12, 222)
	w.Add(sha1Hash(t, 0xbc), 800, 333)
	require.NoError(t, w.OnTrailer(sha1Hash(t, 0x77)))

	var buf bytes.Buffer
	_, err := w.Encode(&buf)
	require.NoError(t, err)

	idx, err := NewDecoder(&buf).Decode()
	require.NoError(t, err)

	assert.Equal(t, VersionSHA1, idx.Version)
	require.Equal(t, 3, idx.Count())
	assert.Equal(t, sha1Hash(t, 0x77), idx.PackHash)

	// Records come back sorted by hash and preserve offset and crc.
	assert.Equal(t, sha1Hash(t, 0x04), idx.Records[0].Hash)
	assert.Equal(t, uint64(12), idx.Records[0].Offset)
	assert.Equal(t, uint32(222), idx.Records[0].CRC32)

	rec, ok := idx.Lookup(sha1Hash(t, 0xbc))
	require.True(t, ok)
	assert.Equal(t, uint64(800), rec.Offset)
	assert.Equal(t, uint32(333), rec.CRC32)
}

func TestWriterFanoutInvariant(t *testing.T) {
	w := NewWriter(hash.SHA1)
	for _, b := range []byte{0x00, 0x04, 0x04 ^ 0xff, 0x80, 0x81} {
		w.Add(sha1Hash(t, b), uint64(b), 0)
	}

	idx, err := w.Index()
	require.NoError(t, err)

	fan := idx.fanout()
	assert.Equal(t, uint32(len(idx.Records)), fan[255])

	// fanout[i] equals the count of hashes whose first byte <= i, and the
	// prefix sums never decrease.
	for i := 1; i < fanoutSize; i++ {
		assert.GreaterOrEqual(t, fan[i], fan[i-1])
	}
	assert.Equal(t, uint32(1), fan[0x00])
	assert.Equal(t, uint32(2), fan[0x04])
	assert.Equal(t, uint32(3), fan[0x80])
	assert.Equal(t, uint32(4), fan[0x81])
}

func TestWriterRejectsDuplicates(t *testing.T) {
	w := NewWriter(hash.SHA1)
	w.Add(sha1Hash(t, 0x10), 12, 0)
	w.Add(sha1Hash(t, 0x10), 99, 0)

	_, err := w.Index()
	assert.ErrorIs(t, err, ErrDuplicateHash)
}

func TestWriterLargeOffsets(t *testing.T) {
	w := NewWriter(hash.SHA1)
	w.Add(sha1Hash(t, 0x01), 12, 1)
	w.Add(sha1Hash(t, 0x02), 0x80000001, 2)
	w.Add(sha1Hash(t, 0x03), 0x100000000, 3)

	var buf bytes.Buffer
	_, err := w.Encode(&buf)
	require.NoError(t, err)

	idx, err := NewDecoder(&buf).Decode()
	require.NoError(t, err)

	rec, ok := idx.Lookup(sha1Hash(t, 0x02))
	require.True(t, ok)
	assert.Equal(t, uint64(0x80000001), rec.Offset)

	rec, ok = idx.Lookup(sha1Hash(t, 0x03))
	require.True(t, ok)
	assert.Equal(t, uint64(0x100000000), rec.Offset)
}

func TestWriterSHA256UsesVersion3(t *testing.T) {
	raw := make([]byte, hash.SHA256Size)
	raw[0] = 0x42
	h, err := plumbing.FromBytes(raw)
	require.NoError(t, err)

	w := NewWriter(hash.SHA256)
	w.Add(h, 12, 7)
	require.NoError(t, w.OnTrailer(plumbing.ZeroHashOf(hash.SHA256)))

	var buf bytes.Buffer
	_, err = w.Encode(&buf)
	require.NoError(t, err)

	idx, err := NewDecoder(&buf).Decode()
	require.NoError(t, err)
	assert.Equal(t, VersionSHA256, idx.Version)
	require.Equal(t, 1, idx.Count())
	assert.Equal(t, h, idx.Records[0].Hash)
}

func TestDecoderRejectsBadMagic(t *testing.T) {
	_, err := NewDecoder(bytes.NewReader([]byte("nope....."))).Decode()
	assert.ErrorIs(t, err, ErrMalformedIdxFile)
}
