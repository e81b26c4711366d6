// Package hash provides a way for managing the
// underlying hash implementations used across go-gitwire.
package hash

import (
	"errors"
	"fmt"
	"hash"
	"strings"

	"github.com/pjbgf/sha1cd"

	"crypto/sha256"
)

var (
	// ErrUnsupportedHashFunction is returned when a hash function is not
	// registered for the requested object format.
	ErrUnsupportedHashFunction = errors.New("unsupported hash function")

	// ErrInvalidObjectFormat is returned when an object format name cannot be
	// parsed.
	ErrInvalidObjectFormat = errors.New("invalid object format")
)

// Format represents the object format used to identify objects: it selects
// the hash function and therefore the identifier length.
type Format int8

const (
	// SHA1 is the default object format, using 20-byte identifiers.
	SHA1 Format = iota
	// SHA256 is the object format using 32-byte identifiers.
	SHA256
)

const (
	SHA1Size      = 20
	SHA1HexSize   = SHA1Size * 2
	SHA256Size    = 32
	SHA256HexSize = SHA256Size * 2
)

// Size returns the amount of bytes a hash of this format yields.
func (f Format) Size() int {
	if f == SHA256 {
		return SHA256Size
	}
	return SHA1Size
}

// HexSize returns the string size of a hash of this format when represented
// in hexadecimal.
func (f Format) HexSize() int {
	return f.Size() * 2
}

func (f Format) String() string {
	if f == SHA256 {
		return "sha256"
	}
	return "sha1"
}

// Valid returns true if f is a known object format.
func (f Format) Valid() bool {
	return f == SHA1 || f == SHA256
}

// ParseFormat parses an object format name, as it appears in the
// object-format capability.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "sha1":
		return SHA1, nil
	case "sha256":
		return SHA256, nil
	}
	return SHA1, fmt.Errorf("%w: %q", ErrInvalidObjectFormat, name)
}

// FromSize returns the Format whose identifiers are size bytes long.
func FromSize(size int) (Format, error) {
	switch size {
	case SHA1Size:
		return SHA1, nil
	case SHA256Size:
		return SHA256, nil
	}
	return SHA1, fmt.Errorf("%w: no format with size %d", ErrInvalidObjectFormat, size)
}

// algos is a map of hash algorithms.
var algos = map[Format]func() hash.Hash{}

func init() {
	reset()
}

// reset resets the default algos value. Can be used after running tests
// that register new algorithms to avoid side effects.
func reset() {
	algos[SHA1] = sha1cd.New
	algos[SHA256] = sha256.New
}

// RegisterHash allows for the hash algorithm used for a format to be
// overridden. This ensures the hash selection for go-gitwire must be
// explicit, when overriding the default value.
func RegisterHash(f Format, fn func() hash.Hash) error {
	if fn == nil {
		return fmt.Errorf("cannot register hash: fn is nil")
	}

	if !f.Valid() {
		return fmt.Errorf("%w: %v", ErrUnsupportedHashFunction, f)
	}

	algos[f] = fn
	return nil
}

// Hash is the same as hash.Hash. This allows consumers
// to not having to import this package alongside "hash".
type Hash interface {
	hash.Hash
}

// New returns a new Hash for the given object format.
// It panics if the format has no registered hash function.
func New(f Format) Hash {
	hh, ok := algos[f]
	if !ok {
		panic(fmt.Sprintf("hash algorithm not registered: %v", f))
	}
	return hh()
}
