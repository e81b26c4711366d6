package object

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/go-git/go-gitwire/plumbing"
	"github.com/go-git/go-gitwire/plumbing/filemode"
)

// Tree is basically like a directory - it references a bunch of other trees
// and/or blobs (i.e. files and sub-directories).
type Tree struct {
	Entries []TreeEntry
}

// TreeEntry represents a file in a tree.
type TreeEntry struct {
	Name string
	Mode filemode.FileMode
	Hash plumbing.Hash
}

// Type returns the type of the object.
func (t *Tree) Type() plumbing.ObjectType {
	return plumbing.TreeObject
}

// Decode parses the canonical payload into the tree. Each entry is
// "<mode> <name>\x00<raw hash>"; entries with malformed boundaries or modes
// outside the Git standard set are rejected.
func (t *Tree) Decode(payload []byte) error {
	t.Entries = nil

	for len(payload) > 0 {
		sp := bytes.IndexByte(payload, ' ')
		if sp <= 0 {
			return fmt.Errorf("%w: tree entry without mode", ErrMalformedObject)
		}

		mode, err := filemode.New(string(payload[:sp]))
		if err != nil {
			return fmt.Errorf("%w: %s", ErrMalformedObject, err)
		}

		payload = payload[sp+1:]
		nul := bytes.IndexByte(payload, 0)
		if nul <= 0 {
			return fmt.Errorf("%w: tree entry without name", ErrMalformedObject)
		}

		name := string(payload[:nul])
		payload = payload[nul+1:]

		// The raw hash length is whatever the wire provides; trees of both
		// object formats are accepted.
		size := sizeOfTreeHash(payload)
		if size == 0 {
			return fmt.Errorf("%w: truncated tree entry hash", ErrMalformedObject)
		}

		h, err := plumbing.FromBytes(payload[:size])
		if err != nil {
			return fmt.Errorf("%w: %s", ErrMalformedObject, err)
		}

		payload = payload[size:]
		t.Entries = append(t.Entries, TreeEntry{Name: name, Mode: mode, Hash: h})
	}

	return nil
}

// A tree mixes entries of a single hash size. The size is inferred from the
// remaining payload: if what is left after a 20-byte hash cannot start a new
// entry, the hash must be 32 bytes.
func sizeOfTreeHash(payload []byte) int {
	if len(payload) == 20 || (len(payload) > 20 && isEntryStart(payload[20:])) {
		return 20
	}
	if len(payload) >= 32 {
		return 32
	}
	return 0
}

func isEntryStart(b []byte) bool {
	return len(b) > 0 && b[0] >= '1' && b[0] <= '7'
}

// Encode returns the canonical payload of the tree, with entries sorted by
// name.
func (t *Tree) Encode() ([]byte, error) {
	var buf bytes.Buffer
	entries := make([]TreeEntry, len(t.Entries))
	copy(entries, t.Entries)
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})

	for _, e := range entries {
		if !e.Mode.Valid() {
			return nil, fmt.Errorf("%w: mode %s", ErrMalformedObject, e.Mode)
		}

		fmt.Fprintf(&buf, "%s %s", e.Mode, e.Name)
		buf.WriteByte(0)
		buf.Write(e.Hash.Bytes())
	}

	return buf.Bytes(), nil
}

// FindEntry returns the tree entry with the given name.
func (t *Tree) FindEntry(name string) (TreeEntry, bool) {
	for _, e := range t.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return TreeEntry{}, false
}
