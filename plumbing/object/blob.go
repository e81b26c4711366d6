package object

import "github.com/go-git/go-gitwire/plumbing"

// Blob is used to store arbitrary data - it is generally a file.
type Blob struct {
	// Data is the raw content of the blob.
	Data []byte
}

// Type returns the type of the object.
func (b *Blob) Type() plumbing.ObjectType {
	return plumbing.BlobObject
}

// Decode parses the canonical payload into the blob. Any byte sequence is a
// well-formed blob.
func (b *Blob) Decode(payload []byte) error {
	b.Data = payload
	return nil
}

// Encode returns the canonical payload of the blob.
func (b *Blob) Encode() ([]byte, error) {
	return b.Data, nil
}
