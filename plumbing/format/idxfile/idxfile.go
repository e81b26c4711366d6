// Package idxfile implements encoding and decoding of packfile idx files,
// version 2 for SHA-1 packs and version 3 for SHA-256 packs.
package idxfile

import (
	"errors"

	"github.com/go-git/go-gitwire/plumbing"
	"github.com/go-git/go-gitwire/plumbing/hash"
)

var (
	// ErrMalformedIdxFile is returned by the decoder on unparseable input.
	ErrMalformedIdxFile = errors.New("malformed IDX file")

	// ErrUnsupportedVersion is returned for versions other than 2 and 3.
	ErrUnsupportedVersion = errors.New("unsupported version")

	// ErrDuplicateHash is returned by the writer when the same hash is added
	// twice: an index with duplicates is malformed.
	ErrDuplicateHash = errors.New("duplicate hash in index")
)

// idxHeader is the magic preamble of every idx file: \377tOc.
var idxHeader = []byte{255, 't', 'O', 'c'}

const (
	// VersionSHA1 is the idx version emitted for SHA-1 packs.
	VersionSHA1 uint32 = 2
	// VersionSHA256 is the idx version emitted for SHA-256 packs.
	VersionSHA256 uint32 = 3

	fanoutSize = 256

	// offsetLimit is the largest offset stored directly in a 32-bit offset
	// slot; larger offsets go to the 64-bit offset table.
	offsetLimit = 0x7fffffff

	// isLargeOffset flags a 32-bit offset slot holding an index into the
	// 64-bit offset table instead of an offset.
	isLargeOffset = uint32(0x80000000)
)

// VersionFor returns the idx version matching an object format.
func VersionFor(f hash.Format) uint32 {
	if f == hash.SHA256 {
		return VersionSHA256
	}
	return VersionSHA1
}

// ObjectRecord ties an object hash to its physical position inside a pack.
type ObjectRecord struct {
	Hash   plumbing.Hash
	CRC32  uint32
	Offset uint64
}

// Index is the in-memory form of an idx file.
type Index struct {
	Version uint32
	// Records are ordered by hash, strictly ascending.
	Records []ObjectRecord
	// PackHash is the trailer hash of the pack the index describes.
	PackHash plumbing.Hash
	// IdxHash is the hash of the index content itself.
	IdxHash plumbing.Hash
}

// Count returns the number of objects in the index.
func (idx *Index) Count() int {
	return len(idx.Records)
}

// Lookup returns the record for the given hash.
func (idx *Index) Lookup(h plumbing.Hash) (ObjectRecord, bool) {
	lo, hi := 0, len(idx.Records)
	for lo < hi {
		mid := (lo + hi) / 2
		switch c := idx.Records[mid].Hash.Compare(h.Bytes()); {
		case c == 0:
			return idx.Records[mid], true
		case c < 0:
			lo = mid + 1
		default:
			hi = mid
		}
	}

	return ObjectRecord{}, false
}
