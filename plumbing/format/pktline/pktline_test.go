package pktline

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	n, err := Write(&buf, []byte("hello\n"))
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, "000ahello\n", buf.String())
}

func TestWriteEmptyIsFlush(t *testing.T) {
	var buf bytes.Buffer
	_, err := Write(&buf, nil)
	require.NoError(t, err)
	assert.Equal(t, "0000", buf.String())
}

func TestWriteFlush(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFlush(&buf))
	assert.Equal(t, "0000", buf.String())
}

func TestWritefAndWriteln(t *testing.T) {
	var buf bytes.Buffer
	_, err := Writef(&buf, "%s %d", "x", 7)
	require.NoError(t, err)
	_, err = Writeln(&buf, "y")
	require.NoError(t, err)
	assert.Equal(t, "0007x 70006y\n", buf.String())
}

func TestWriteTooLong(t *testing.T) {
	var buf bytes.Buffer
	_, err := Write(&buf, bytes.Repeat([]byte("a"), MaxPayloadSize+1))
	assert.ErrorIs(t, err, ErrPayloadTooLong)
}

func TestReadLine(t *testing.T) {
	r := strings.NewReader("000ahello\n0000")

	l, p, err := ReadLine(r)
	require.NoError(t, err)
	assert.Equal(t, 10, l)
	assert.Equal(t, "hello\n", string(p))

	l, p, err = ReadLine(r)
	require.NoError(t, err)
	assert.Equal(t, Flush, l)
	assert.Nil(t, p)
}

func TestReadLineSpecials(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want int
	}{
		{"0000", Flush},
		{"0001", Delim},
		{"0002", ResponseEnd},
		{"0004", 4},
	} {
		l, _, err := ReadLine(strings.NewReader(tc.in))
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, l, tc.in)
		assert.True(t, pktIsGroupEnd(tc.in, l))
	}
}

func pktIsGroupEnd(in string, l int) bool {
	if in == "0000" || in == "0004" {
		return IsFlush(l)
	}
	return !IsFlush(l)
}

func TestReadLineMalformed(t *testing.T) {
	for _, in := range []string{"0003", "zzzz", "003"} {
		_, _, err := ReadLine(strings.NewReader(in))
		assert.Error(t, err, in)
	}
}

func TestReadLineTruncatedPayload(t *testing.T) {
	_, _, err := ReadLine(strings.NewReader("000ahel"))
	assert.Error(t, err)
}

func TestReadLineErrorLine(t *testing.T) {
	var buf bytes.Buffer
	_, err := WriteError(&buf, errors.New("something bad"))
	require.NoError(t, err)

	_, p, err := ReadLine(&buf)
	var el *ErrorLine
	require.ErrorAs(t, err, &el)
	assert.Equal(t, "something bad", el.Text)
	assert.Equal(t, "ERR something bad\n", string(p))
}

func TestPeekLine(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("0005a0005b"))

	l, p, err := PeekLine(r)
	require.NoError(t, err)
	assert.Equal(t, 5, l)
	assert.Equal(t, "a", string(p))

	// Peek does not consume.
	l, p, err = ReadLine(r)
	require.NoError(t, err)
	assert.Equal(t, 5, l)
	assert.Equal(t, "a", string(p))

	_, p, err = ReadLine(r)
	require.NoError(t, err)
	assert.Equal(t, "b", string(p))
}

func TestRoundtripPayloadVerbatim(t *testing.T) {
	payload := []byte{0, 1, 2, 0xff, 'x', '\n'}
	var buf bytes.Buffer
	_, err := Write(&buf, payload)
	require.NoError(t, err)

	_, p, err := ReadLine(&buf)
	require.NoError(t, err)
	assert.Equal(t, payload, p)
}
