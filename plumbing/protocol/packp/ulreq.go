package packp

import (
	"bytes"
	"io"

	"github.com/go-git/go-gitwire/plumbing"
	"github.com/go-git/go-gitwire/plumbing/format/pktline"
	"github.com/go-git/go-gitwire/plumbing/protocol/packp/capability"
)

// UploadPackRequest values represent the information transmitted on an
// upload-pack request: the wanted tips, the already-possessed commits and
// the negotiated capabilities. Values from this type are not zero-value
// safe, use the New function instead.
type UploadPackRequest struct {
	Capabilities *capability.List
	Wants        []plumbing.Hash
	Haves        []plumbing.Hash
	// Done reports whether the client ended the negotiation with a done
	// line.
	Done bool
}

// NewUploadPackRequest returns a pointer to a new UploadPackRequest value,
// ready to be used.
func NewUploadPackRequest() *UploadPackRequest {
	return &UploadPackRequest{
		Capabilities: capability.NewList(),
	}
}

// Decode reads an upload-pack request from r:
//
//	want <hash> [capabilities]     (capabilities only on the first want)
//	...
//	0000
//	have <hash>
//	...
//	done
//
// A flush ends the want list; a done line, or the end of the stream, ends
// the negotiation. Mixing hash kinds within one request is rejected.
func (req *UploadPackRequest) Decode(r io.Reader) error {
	if err := req.decodeWants(r); err != nil {
		return err
	}

	return req.decodeHaves(r)
}

func (req *UploadPackRequest) decodeWants(r io.Reader) error {
	first := true
	for {
		l, p, err := pktline.ReadLine(r)
		if err == io.EOF && !first {
			return nil
		}
		if err != nil {
			return err
		}

		if pktline.IsFlush(l) {
			return nil
		}

		line := bytes.TrimSuffix(p, eol)
		if !bytes.HasPrefix(line, want) {
			return invalidRequestf("unexpected line in want list: %q", line)
		}

		line = line[len(want):]
		hex := line
		if i := bytes.IndexByte(line, ' '); i >= 0 {
			hex = line[:i]
			if !first {
				return invalidRequestf("capabilities after the first want")
			}

			if err := req.Capabilities.Decode(line[i+1:]); err != nil {
				return err
			}
		}

		h, err := plumbing.FromHex(string(hex))
		if err != nil {
			return invalidRequestf("malformed want hash %q", hex)
		}

		if err := req.checkFormat(h); err != nil {
			return err
		}

		req.Wants = append(req.Wants, h)
		first = false
	}
}

func (req *UploadPackRequest) decodeHaves(r io.Reader) error {
	for {
		l, p, err := pktline.ReadLine(r)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		if pktline.IsFlush(l) {
			continue // end of one have batch
		}

		line := bytes.TrimSuffix(p, eol)

		if bytes.Equal(line, done) {
			req.Done = true
			return nil
		}

		if !bytes.HasPrefix(line, have) {
			return invalidRequestf("unexpected line in have list: %q", line)
		}

		h, err := plumbing.FromHex(string(line[len(have):]))
		if err != nil {
			return invalidRequestf("malformed have hash %q", line)
		}

		if err := req.checkFormat(h); err != nil {
			return err
		}

		req.Haves = append(req.Haves, h)
	}
}

// checkFormat rejects hash kind mixing within one request.
func (req *UploadPackRequest) checkFormat(h plumbing.Hash) error {
	first := h
	if len(req.Wants) > 0 {
		first = req.Wants[0]
	} else if len(req.Haves) > 0 {
		first = req.Haves[0]
	}

	if first.Format() != h.Format() {
		return invalidRequestf("mixed hash kinds in one request")
	}

	return nil
}

// Encode writes the request to w, for use by clients and tests.
func (req *UploadPackRequest) Encode(w io.Writer) error {
	for i, want := range req.Wants {
		if i == 0 && !req.Capabilities.IsEmpty() {
			if _, err := pktline.Writef(w, "want %s %s\n", want, req.Capabilities.String()); err != nil {
				return err
			}
			continue
		}

		if _, err := pktline.Writef(w, "want %s\n", want); err != nil {
			return err
		}
	}

	if err := pktline.WriteFlush(w); err != nil {
		return err
	}

	for _, have := range req.Haves {
		if _, err := pktline.Writef(w, "have %s\n", have); err != nil {
			return err
		}
	}

	if len(req.Haves) > 0 {
		if err := pktline.WriteFlush(w); err != nil {
			return err
		}
	}

	if req.Done {
		if _, err := pktline.WriteString(w, "done\n"); err != nil {
			return err
		}
	}

	return nil
}
