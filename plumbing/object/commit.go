package object

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/go-git/go-gitwire/plumbing"
)

const (
	headerpgp       string = "gpgsig"
	headerpgpsha256 string = "gpgsig-sha256"
)

// Commit points to a single tree, marking it as what the project looked like
// at a certain point in time. It contains meta-information about that point
// in time, such as a timestamp, the author of the changes since the last
// commit, a pointer to the previous commit(s), etc.
type Commit struct {
	// Author is the original author of the commit.
	Author Signature
	// Committer is the one performing the commit, might be different from
	// Author.
	Committer Signature
	// Message is the commit message, contains arbitrary text.
	Message string
	// TreeHash is the hash of the root tree of the commit.
	TreeHash plumbing.Hash
	// ParentHashes are the hashes of the parent commits of the commit.
	ParentHashes []plumbing.Hash
	// PGPSignature is the PGP signature of the commit, carried verbatim as
	// the raw continuation lines of the gpgsig or gpgsig-sha256 header.
	PGPSignature string
	// pgpHeader remembers which signature header the payload used, so that
	// re-encoding is byte-identical.
	pgpHeader string
}

// Type returns the type of the object.
func (c *Commit) Type() plumbing.ObjectType {
	return plumbing.CommitObject
}

// Decode parses the canonical payload into the commit. The parser scans
// linewise; gpgsig and gpgsig-sha256 headers, including arbitrary
// continuation lines, are preserved as-is.
func (c *Commit) Decode(payload []byte) (err error) {
	*c = Commit{}

	r := bufio.NewReader(bytes.NewReader(payload))

	var message bool
	var pgpsig bool
	var msgbuf bytes.Buffer
	for {
		line, err := r.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return err
		}

		if pgpsig {
			if len(line) > 0 && line[0] == ' ' {
				line = bytes.TrimLeft(line, " ")
				c.PGPSignature += string(line)
				continue
			}
			pgpsig = false
		}

		if !message {
			line = bytes.TrimRight(line, "\n")
			if len(line) == 0 {
				message = true
				continue
			}

			split := bytes.SplitN(line, []byte{' '}, 2)
			var data []byte
			if len(split) == 2 {
				data = split[1]
			}

			switch string(split[0]) {
			case "tree":
				c.TreeHash, err = plumbing.FromHex(string(data))
				if err != nil {
					return fmt.Errorf("%w: tree header: %s", ErrMalformedObject, err)
				}
			case "parent":
				var h plumbing.Hash
				h, err = plumbing.FromHex(string(data))
				if err != nil {
					return fmt.Errorf("%w: parent header: %s", ErrMalformedObject, err)
				}
				c.ParentHashes = append(c.ParentHashes, h)
			case "author":
				c.Author.Decode(data)
			case "committer":
				c.Committer.Decode(data)
			case headerpgp, headerpgpsha256:
				c.PGPSignature += string(data) + "\n"
				c.pgpHeader = string(split[0])
				pgpsig = true
			}
		} else {
			msgbuf.Write(line)
		}

		if err == io.EOF {
			break
		}
	}

	c.Message = msgbuf.String()

	if !bytes.HasPrefix(payload, []byte("tree ")) {
		return fmt.Errorf("%w: commit without tree header", ErrMalformedObject)
	}

	return nil
}

// Encode returns the canonical payload of the commit.
func (c *Commit) Encode() ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "tree %s\n", c.TreeHash)
	for _, parent := range c.ParentHashes {
		fmt.Fprintf(&buf, "parent %s\n", parent)
	}

	buf.WriteString("author ")
	c.Author.Encode(&buf)
	buf.WriteString("\ncommitter ")
	c.Committer.Encode(&buf)

	if c.PGPSignature != "" {
		header := c.pgpHeader
		if header == "" {
			header = headerpgp
		}
		fmt.Fprintf(&buf, "\n%s ", header)

		// Split all the signature lines and re-write with a left padding.
		// No newline is added after the last line, as one is added when the
		// message is printed.
		signature := strings.TrimSuffix(c.PGPSignature, "\n")
		lines := strings.Split(signature, "\n")
		buf.WriteString(strings.Join(lines, "\n "))
	}

	fmt.Fprintf(&buf, "\n\n%s", c.Message)

	return buf.Bytes(), nil
}

// NumParents returns the number of parents in a commit.
func (c *Commit) NumParents() int {
	return len(c.ParentHashes)
}
