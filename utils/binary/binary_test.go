package binary

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadUint32(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0, 0, 1, 0})
	v, err := ReadUint32(buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(256), v)
}

func TestReadUntil(t *testing.T) {
	buf := bytes.NewBuffer([]byte("abc def"))
	b, err := ReadUntil(buf, ' ')
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), b)
}

func TestVariableWidthIntRoundtrip(t *testing.T) {
	for _, v := range []int64{0, 1, 127, 128, 255, 4096, 1 << 20, 1<<40 + 17} {
		var buf bytes.Buffer
		require.NoError(t, WriteVariableWidthInt(&buf, v))

		got, err := ReadVariableWidthInt(&buf)
		require.NoError(t, err)
		assert.Equal(t, v, got, "value %d", v)
	}
}

func TestWriteUint32(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteUint32(&buf, 256))
	assert.Equal(t, []byte{0, 0, 1, 0}, buf.Bytes())
}
