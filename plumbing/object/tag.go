package object

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/go-git/go-gitwire/plumbing"
)

// Tag represents an annotated tag object. It points to a single git object of
// any type, but tags typically are applied to commits.
type Tag struct {
	// Name of the tag.
	Name string
	// Tagger is the one who created the tag.
	Tagger Signature
	// Message is an arbitrary text message.
	Message string
	// TargetType is the object type of the target.
	TargetType plumbing.ObjectType
	// Target is the hash of the target object.
	Target plumbing.Hash
}

// Type returns the type of the object.
func (t *Tag) Type() plumbing.ObjectType {
	return plumbing.TagObject
}

// Decode parses the canonical payload into the tag.
func (t *Tag) Decode(payload []byte) (err error) {
	*t = Tag{}

	r := bufio.NewReader(bytes.NewReader(payload))
	for {
		var line []byte
		line, err = r.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return err
		}

		line = bytes.TrimRight(line, "\n")
		if len(line) == 0 {
			break // Start of message
		}

		split := bytes.SplitN(line, []byte{' '}, 2)
		var data []byte
		if len(split) == 2 {
			data = split[1]
		}

		switch string(split[0]) {
		case "object":
			t.Target, err = plumbing.FromHex(string(data))
			if err != nil {
				return fmt.Errorf("%w: object header: %s", ErrMalformedObject, err)
			}
		case "type":
			t.TargetType, err = plumbing.ParseObjectType(string(data))
			if err != nil {
				return fmt.Errorf("%w: type header %q", ErrMalformedObject, data)
			}
		case "tag":
			t.Name = string(data)
		case "tagger":
			t.Tagger.Decode(data)
		default:
			return fmt.Errorf("%w: unknown tag header %q", ErrMalformedObject, split[0])
		}

		if err == io.EOF {
			return fmt.Errorf("%w: tag without message separator", ErrMalformedObject)
		}
	}

	var msgbuf bytes.Buffer
	if _, err := msgbuf.ReadFrom(r); err != nil {
		return err
	}
	t.Message = msgbuf.String()

	return nil
}

// Encode returns the canonical payload of the tag.
func (t *Tag) Encode() ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "object %s\ntype %s\ntag %s\ntagger ",
		t.Target, t.TargetType, t.Name)
	t.Tagger.Encode(&buf)
	fmt.Fprintf(&buf, "\n\n%s", t.Message)

	return buf.Bytes(), nil
}
