package packp

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/go-git/go-gitwire/plumbing"
	"github.com/go-git/go-gitwire/plumbing/format/pktline"
	"github.com/go-git/go-gitwire/plumbing/hash"
	"github.com/go-git/go-gitwire/plumbing/protocol/packp/capability"
)

// AdvRefs values represent the information transmitted on an
// advertised-refs message. Values from this type are not zero-value
// safe, use the New function instead.
type AdvRefs struct {
	// Service is the service the advertisement belongs to, e.g.
	// git-upload-pack. When set, and the advertisement is for an HTTP
	// transport, a smart-reply prelude is written before the refs.
	Service string
	// HTTP enables the smart-reply prelude for HTTP transports.
	HTTP bool
	// Head stores the resolved HEAD reference if present.
	Head *plumbing.Hash
	// Capabilities are the capabilities advertised behind the first ref.
	Capabilities *capability.List
	// References are the advertised references.
	References []plumbing.Reference
	// Format is the object format of the advertised hashes.
	Format hash.Format
}

// NewAdvRefs returns a pointer to a new AdvRefs value, ready to be used.
func NewAdvRefs() *AdvRefs {
	return &AdvRefs{
		Capabilities: capability.NewList(),
	}
}

// IsEmpty returns true if the advertisement carries no references.
func (a *AdvRefs) IsEmpty() bool {
	return a.Head == nil && len(a.References) == 0
}

// Encode writes the advertisement as a pkt-line stream:
//
//	# service=git-upload-pack        (HTTP only, then a flush)
//	<hash> HEAD\x00<capabilities>
//	<hash> refs/heads/main
//	...
//	0000
//
// An empty repository advertises a zero hash under the fake ref name
// capabilities^{}. Every ref hash must match the advertised object format;
// a mismatch is an error.
func (a *AdvRefs) Encode(w io.Writer) error {
	if a.HTTP && a.Service != "" {
		if _, err := pktline.Writef(w, "# service=%s\n", a.Service); err != nil {
			return err
		}
		if err := pktline.WriteFlush(w); err != nil {
			return err
		}
	}

	for _, r := range a.References {
		if !r.Hash.IsZero() && r.Hash.Size() != a.Format.Size() {
			return invalidRequestf("hash size mismatch for ref %s: expected %d, got %d",
				r.Name, a.Format.HexSize(), r.Hash.Size()*2)
		}
	}

	refs := a.sortedRefs()

	first := fmt.Sprintf("%s %s", plumbing.ZeroHashOf(a.Format), noHeadMark)
	rest := refs
	switch {
	case a.Head != nil:
		first = fmt.Sprintf("%s %s", a.Head, plumbing.HEAD)
	case len(refs) > 0:
		first = fmt.Sprintf("%s %s", refs[0].Hash, refs[0].Name)
		rest = refs[1:]
	}

	if _, err := pktline.Writef(w, "%s\x00%s\n", first, a.Capabilities.String()); err != nil {
		return err
	}

	for _, r := range rest {
		if _, err := pktline.Writef(w, "%s %s\n", r.Hash, r.Name); err != nil {
			return err
		}
	}

	return pktline.WriteFlush(w)
}

func (a *AdvRefs) sortedRefs() []plumbing.Reference {
	refs := make([]plumbing.Reference, 0, len(a.References))
	for _, r := range a.References {
		if r.Name == plumbing.HEAD {
			continue // HEAD goes first, through a.Head
		}
		refs = append(refs, r)
	}

	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	return refs
}

// Decode reads an advertised-refs message from r.
func (a *AdvRefs) Decode(r io.Reader) error {
	first := true
	for {
		l, p, err := pktline.ReadLine(r)
		if err != nil {
			return err
		}

		if pktline.IsFlush(l) {
			if first {
				continue // flush after the smart-reply prelude
			}
			return nil
		}

		line := bytes.TrimSuffix(p, eol)

		if first && bytes.HasPrefix(line, []byte("# service=")) {
			a.Service = string(line[len("# service="):])
			continue
		}

		if err := a.decodeRefLine(line, first); err != nil {
			return err
		}
		first = false
	}
}

func (a *AdvRefs) decodeRefLine(line []byte, first bool) error {
	var caps []byte
	if first {
		if i := bytes.Index(line, null); i >= 0 {
			caps = line[i+1:]
			line = line[:i]
		}

		if err := a.Capabilities.Decode(caps); err != nil {
			return err
		}
	}

	chunks := bytes.SplitN(line, sp, 2)
	if len(chunks) != 2 {
		return invalidRequestf("malformed advertised ref %q", line)
	}

	h, err := plumbing.FromHex(string(chunks[0]))
	if err != nil {
		return invalidRequestf("malformed hash in advertised ref %q", line)
	}

	if first {
		a.Format = h.Format()
	}

	name := string(chunks[1])
	if name == noHeadMark {
		return nil // empty repository
	}

	if name == plumbing.HEAD.String() {
		a.Head = &h
		return nil
	}

	a.References = append(a.References, plumbing.Reference{
		Name: plumbing.ReferenceName(name),
		Hash: h,
	})
	return nil
}
