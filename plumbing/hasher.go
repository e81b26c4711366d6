package plumbing

import (
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/go-git/go-gitwire/plumbing/hash"
)

// Hasher computes object identifiers over the Git canonical object form:
// the header "<type> <size>\x00" followed by the payload.
//
// It is format aware, producing SHA-1 or SHA-256 identifiers depending on
// the object format it was built for, and safe for concurrent use.
type Hasher struct {
	hasher hash.Hash
	m      sync.Mutex
	format hash.Format
}

// NewHasher returns a Hasher for the given object format.
func NewHasher(f hash.Format) *Hasher {
	return &Hasher{
		hasher: hash.New(f),
		format: f,
	}
}

// Size returns the length in bytes of the identifiers this hasher produces.
func (h *Hasher) Size() int {
	return h.hasher.Size()
}

// Format returns the object format of the hasher.
func (h *Hasher) Format() hash.Format {
	return h.format
}

// Compute calculates the identifier of an object given its type and payload.
func (h *Hasher) Compute(ot ObjectType, d []byte) (Hash, error) {
	if !ot.Valid() || ot.IsDelta() {
		return ZeroHashOf(h.format), fmt.Errorf("%w: %v", ErrInvalidType, ot)
	}

	h.m.Lock()
	defer h.m.Unlock()

	h.hasher.Reset()
	writeHeader(h.hasher, ot, int64(len(d)))
	if _, err := h.hasher.Write(d); err != nil {
		return ZeroHashOf(h.format), fmt.Errorf("failed to compute hash: %w", err)
	}

	out := Hash{format: h.format}
	h.hasher.Sum(out.sum[:0])
	return out, nil
}

// ComputeFromReader calculates the identifier of an object given its type,
// size and a reader yielding its payload.
func (h *Hasher) ComputeFromReader(ot ObjectType, size int64, r io.Reader) (Hash, error) {
	if !ot.Valid() || ot.IsDelta() {
		return ZeroHashOf(h.format), fmt.Errorf("%w: %v", ErrInvalidType, ot)
	}

	h.m.Lock()
	defer h.m.Unlock()

	h.hasher.Reset()
	writeHeader(h.hasher, ot, size)
	if _, err := io.Copy(h.hasher, r); err != nil {
		return ZeroHashOf(h.format), fmt.Errorf("failed to compute hash: %w", err)
	}

	out := Hash{format: h.format}
	h.hasher.Sum(out.sum[:0])
	return out, nil
}

func writeHeader(w io.Writer, ot ObjectType, size int64) {
	w.Write(ot.Bytes())                              //nolint:errcheck
	w.Write([]byte(" "))                             //nolint:errcheck
	w.Write([]byte(strconv.FormatInt(size, 10)))     //nolint:errcheck
	w.Write([]byte{0})                               //nolint:errcheck
}
