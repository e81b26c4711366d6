// Package object implements the typed views over Git objects: Blob, Tree,
// Commit and Tag, with their canonical byte encoding and strict decoding.
//
// Canonical form is deterministic: for any well-formed input, decoding and
// re-encoding yields byte-identical output.
package object

import (
	"errors"
	"fmt"

	"github.com/go-git/go-gitwire/plumbing"
	"github.com/go-git/go-gitwire/plumbing/hash"
)

var (
	// ErrMalformedObject is returned when an object payload cannot be parsed.
	ErrMalformedObject = errors.New("malformed object")

	// ErrHashMismatch is returned when the computed hash of a decoded object
	// does not match the expected one.
	ErrHashMismatch = errors.New("computed hash differs from expected hash")

	// ErrUnsupportedObject is returned when an unsupported object type is
	// requested.
	ErrUnsupportedObject = errors.New("unsupported object type")
)

// Object is the common view over the four storable Git object kinds.
type Object interface {
	// Type returns the ObjectType of the object.
	Type() plumbing.ObjectType
	// Decode parses the canonical payload into the receiver. Parsing is
	// strict: malformed input returns an error and leaves the receiver in
	// an undefined state.
	Decode(payload []byte) error
	// Encode returns the canonical payload of the object.
	Encode() ([]byte, error)
}

// Parse decodes the canonical payload of the given type into a typed object.
func Parse(t plumbing.ObjectType, payload []byte) (Object, error) {
	var o Object
	switch t {
	case plumbing.BlobObject:
		o = &Blob{}
	case plumbing.TreeObject:
		o = &Tree{}
	case plumbing.CommitObject:
		o = &Commit{}
	case plumbing.TagObject:
		o = &Tag{}
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedObject, t)
	}

	if err := o.Decode(payload); err != nil {
		return nil, err
	}

	return o, nil
}

// ParseChecked decodes the canonical payload and verifies that its hash
// under the given object format matches expected.
func ParseChecked(f hash.Format, t plumbing.ObjectType, payload []byte, expected plumbing.Hash) (Object, error) {
	o, err := Parse(t, payload)
	if err != nil {
		return nil, err
	}

	got, err := plumbing.NewHasher(f).Compute(t, payload)
	if err != nil {
		return nil, err
	}

	if got != expected {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrHashMismatch, expected, got)
	}

	return o, nil
}

// HashOf computes the identifier of a typed object under the given object
// format.
func HashOf(f hash.Format, o Object) (plumbing.Hash, error) {
	payload, err := o.Encode()
	if err != nil {
		return plumbing.ZeroHashOf(f), err
	}

	return plumbing.NewHasher(f).Compute(o.Type(), payload)
}
