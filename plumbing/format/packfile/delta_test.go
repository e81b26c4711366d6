package packfile

import (
	"bytes"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffDeltaRoundtrip(t *testing.T) {
	cases := []struct {
		name string
		base []byte
		tgt  []byte
	}{
		{"equal", []byte("the quick brown fox jumps over the lazy dog"), []byte("the quick brown fox jumps over the lazy dog")},
		{"disjoint", []byte("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"), []byte("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")},
		{"insertion", bytes.Repeat([]byte("0123456789abcdef"), 64), append(bytes.Repeat([]byte("0123456789abcdef"), 32), append([]byte("XXX"), bytes.Repeat([]byte("0123456789abcdef"), 32)...)...)},
		{"empty target", []byte("something"), nil},
		{"empty base", nil, []byte("something")},
		{"large literal", nil, bytes.Repeat([]byte{42}, 1000)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			delta := DiffDelta(tc.base, tc.tgt)
			got, err := PatchDelta(tc.base, delta)
			require.NoError(t, err)
			assert.Equal(t, tc.tgt, append([]byte{}, got...))
		})
	}
}

// A 16 KiB buffer with 32 interior bytes replaced must deltify well: the
// delta is smaller than the target and applies back exactly.
func TestDiffDeltaSimilarBuffers(t *testing.T) {
	old := bytes.Repeat([]byte("ab"), 8*1024)

	new := append([]byte{}, old...)
	for i := 0; i < 32; i++ {
		new[4096+i] = 'Z'
	}

	diff := NewDeltaDiff(old, new)
	delta := diff.Encode()
	assert.Less(t, len(delta), len(new))
	assert.Greater(t, diff.SimilarityRatio(), 0.9)

	applied, err := PatchDelta(old, delta)
	require.NoError(t, err)
	require.Equal(t, new, applied)
	assert.Equal(t, sha256.Sum256(new), sha256.Sum256(applied))
}

func TestPatchDeltaBaseLenMismatch(t *testing.T) {
	delta := DiffDelta([]byte("base"), []byte("target"))
	_, err := PatchDelta([]byte("other base"), delta)
	assert.ErrorIs(t, err, ErrBaseLenMismatch)
}

func TestPatchDeltaZeroInsertRejected(t *testing.T) {
	var delta []byte
	delta = EncodeLEB128(delta, 4)
	delta = EncodeLEB128(delta, 1)
	delta = append(delta, 0x00) // zero-length insert: protocol violation

	_, err := PatchDelta([]byte("base"), delta)
	assert.ErrorIs(t, err, ErrInvalidInsertLength)
}

func TestPatchDeltaCopySizeZeroMeans64K(t *testing.T) {
	base := bytes.Repeat([]byte{7}, maxCopySize)

	var delta []byte
	delta = EncodeLEB128(delta, uint(len(base)))
	delta = EncodeLEB128(delta, maxCopySize)
	// Copy instruction with no offset bytes and no size bytes: offset 0,
	// size 0, which expands to 65536.
	delta = append(delta, 0x80)

	got, err := PatchDelta(base, delta)
	require.NoError(t, err)
	assert.Len(t, got, maxCopySize)
}

func TestPatchDeltaCopyOutOfRange(t *testing.T) {
	var delta []byte
	delta = EncodeLEB128(delta, 4)
	delta = EncodeLEB128(delta, 8)
	// copy offset 2, size 8: past the end of a 4-byte base
	delta = append(delta, 0x80|0x01|0x10, 0x02, 0x08)

	_, err := PatchDelta([]byte("base"), delta)
	assert.Error(t, err)
}

func TestPatchDeltaResultLenMismatch(t *testing.T) {
	var delta []byte
	delta = EncodeLEB128(delta, 4)
	delta = EncodeLEB128(delta, 10) // declares 10, provides 2
	delta = append(delta, 0x02, 'h', 'i')

	_, err := PatchDelta([]byte("base"), delta)
	assert.ErrorIs(t, err, ErrResultLenMismatch)
}

func TestPatchDeltaTruncated(t *testing.T) {
	var delta []byte
	delta = EncodeLEB128(delta, 4)
	delta = EncodeLEB128(delta, 4)
	delta = append(delta, 0x04, 'h', 'i') // insert of 4 with 2 bytes left

	_, err := PatchDelta([]byte("base"), delta)
	assert.ErrorIs(t, err, ErrDeltaTruncated)
}

func TestLEB128Roundtrip(t *testing.T) {
	for _, v := range []uint{0, 1, 127, 128, 16383, 16384, 1 << 31, 1 << 63, ^uint(0)} {
		buf := EncodeLEB128(nil, v)
		got, rest := DecodeLEB128(buf)
		assert.Equal(t, v, got)
		assert.Empty(t, rest)
	}

	// The maximum value spans 10 bytes and still decodes.
	buf := EncodeLEB128(nil, ^uint(0))
	assert.Len(t, buf, 10)
}

func TestDeltaSizes(t *testing.T) {
	delta := DiffDelta([]byte("12345"), []byte("1234567"))
	base, result, err := DeltaSizes(delta)
	require.NoError(t, err)
	assert.Equal(t, uint(5), base)
	assert.Equal(t, uint(7), result)
}
