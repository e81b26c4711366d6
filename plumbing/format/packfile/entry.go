package packfile

import (
	"github.com/go-git/go-gitwire/plumbing"
)

// Entry is a fully reconstructed object coming out of a pack stream, or an
// object about to be written into one.
type Entry struct {
	// Type is the object type, never a delta type.
	Type plumbing.ObjectType
	// Data is the reconstructed canonical payload.
	Data []byte
	// Hash is the object identifier.
	Hash plumbing.Hash
	// ChainLen records the delta depth of origin, for diagnostics. Base
	// objects have a chain length of zero.
	ChainLen int
}

// EntryMeta is the optional envelope describing where an entry physically
// lives inside a pack. It is produced by the decoder and the encoder, and
// consumed by the index builder.
type EntryMeta struct {
	// PackID identifies the pack the entry belongs to, when known.
	PackID plumbing.Hash
	// Offset is the position of the entry header inside the pack.
	Offset int64
	// CRC32 is the checksum of the entry's raw bytes: header plus
	// compressed body.
	CRC32 uint32
	// IsDelta reports whether the entry was stored in delta form.
	IsDelta bool
}
