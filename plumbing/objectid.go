// Package plumbing implements the core value types shared by every layer of
// go-gitwire: object identifiers, object types, references and hashers.
package plumbing

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"sort"

	"github.com/go-git/go-gitwire/plumbing/hash"
)

// Hash is a calculated object identifier. It is a tagged value: the format
// records whether the sum is a 20-byte SHA-1 or a 32-byte SHA-256.
//
// The zero value is the SHA-1 zero hash, which in the wire protocol stands
// for "no such object".
type Hash struct {
	format hash.Format
	sum    [hash.SHA256Size]byte
}

// ZeroHash is the SHA-1 zero identifier.
var ZeroHash Hash

// ZeroHashOf returns the zero identifier for the given object format.
func ZeroHashOf(f hash.Format) Hash {
	return Hash{format: f}
}

// Format returns the object format of the hash.
func (h Hash) Format() hash.Format {
	return h.format
}

// Size returns the length in bytes of the hash sum.
func (h Hash) Size() int {
	return h.format.Size()
}

// IsZero returns true if the hash only contains zeros.
func (h Hash) IsZero() bool {
	return h.sum == [hash.SHA256Size]byte{}
}

// String returns the hexadecimal representation of the hash sum.
func (h Hash) String() string {
	return hex.EncodeToString(h.sum[:h.Size()])
}

// Bytes returns a slice with the raw bytes of the hash sum.
func (h Hash) Bytes() []byte {
	return h.sum[:h.Size()]
}

// Compare compares the hash sum with a slice of bytes.
func (h Hash) Compare(b []byte) int {
	return bytes.Compare(h.sum[:h.Size()], b)
}

// HasPrefix verifies whether the hash starts with a given prefix.
func (h Hash) HasPrefix(prefix []byte) bool {
	return bytes.HasPrefix(h.sum[:h.Size()], prefix)
}

// WriteTo writes the raw bytes of the hash into w.
func (h Hash) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(h.sum[:h.Size()])
	return int64(n), err
}

// NewHash builds a Hash of the given format from a hexadecimal
// representation. Invalid input yields the zero hash of that format.
func NewHash(f hash.Format, s string) Hash {
	h, _ := FromHex(s)
	if h.format != f {
		return ZeroHashOf(f)
	}
	return h
}

// FromHex parses a hexadecimal string into a Hash. The object format is
// inferred from the length of the input.
func FromHex(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return ZeroHash, fmt.Errorf("%w: %q", ErrInvalidHash, s)
	}

	return FromBytes(b)
}

// FromBytes wraps a raw hash sum into a Hash. The object format is inferred
// from the length of the input.
func FromBytes(b []byte) (Hash, error) {
	f, err := hash.FromSize(len(b))
	if err != nil {
		return ZeroHash, fmt.Errorf("%w: %d bytes", ErrInvalidHash, len(b))
	}

	h := Hash{format: f}
	copy(h.sum[:], b)
	return h, nil
}

// MustFromHex parses a hexadecimal string into a Hash, panicking on invalid
// input. For use in tests and static initialisers only.
func MustFromHex(s string) Hash {
	h, err := FromHex(s)
	if err != nil {
		panic(err)
	}
	return h
}

// ReadHash reads a raw hash of the given format from r.
func ReadHash(r io.Reader, f hash.Format) (Hash, error) {
	h := Hash{format: f}
	if _, err := io.ReadFull(r, h.sum[:f.Size()]); err != nil {
		return ZeroHashOf(f), err
	}

	return h, nil
}

// ValidHex returns true if the given string is a valid hex representation of
// a hash of any known format.
func ValidHex(s string) bool {
	if len(s) != hash.SHA1HexSize && len(s) != hash.SHA256HexSize {
		return false
	}

	_, err := hex.DecodeString(s)
	return err == nil
}

// HashesSort sorts a slice of Hashes in increasing order.
func HashesSort(a []Hash) {
	sort.Slice(a, func(i, j int) bool {
		return a[i].Compare(a[j].Bytes()) < 0
	})
}
