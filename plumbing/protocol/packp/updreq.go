package packp

import (
	"bytes"
	"errors"
	"io"

	"github.com/go-git/go-gitwire/plumbing"
	"github.com/go-git/go-gitwire/plumbing/format/pktline"
	"github.com/go-git/go-gitwire/plumbing/protocol/packp/capability"
)

var (
	// ErrEmptyCommands is returned by validate on a request with no
	// commands.
	ErrEmptyCommands = errors.New("commands cannot be empty")
	// ErrMalformedCommand is returned for command lines that do not parse.
	ErrMalformedCommand = errors.New("malformed command")
)

// ReferenceUpdateRequest values represent reference update requests, as sent
// by git-push. Values from this type are not zero-value safe, use the New
// function instead.
type ReferenceUpdateRequest struct {
	Capabilities *capability.List
	Commands     []*Command

	// Packfile gives access to the pack data following the command list.
	// It may yield no bytes at all for delete-only pushes.
	Packfile io.Reader
}

// NewReferenceUpdateRequest returns a pointer to a new
// ReferenceUpdateRequest value.
func NewReferenceUpdateRequest() *ReferenceUpdateRequest {
	return &ReferenceUpdateRequest{
		Capabilities: capability.NewList(),
	}
}

// RefType is the kind of reference a command targets.
type RefType int8

const (
	// RefTypeBranch covers refs/heads and any other non-tag namespace.
	RefTypeBranch RefType = iota
	// RefTypeTag covers refs/tags.
	RefTypeTag
)

// Action is the operation a command performs on its reference.
type Action string

const (
	Create  Action = "create"
	Update  Action = "update"
	Delete  Action = "delete"
	Invalid Action = "invalid"
)

// Command is one reference update instruction: old and new hashes plus the
// reference name. A zero old hash means create; a zero new hash means
// delete.
type Command struct {
	Name plumbing.ReferenceName
	Old  plumbing.Hash
	New  plumbing.Hash
}

// Action returns the operation the command performs.
func (c *Command) Action() Action {
	if c.Old.IsZero() && c.New.IsZero() {
		return Invalid
	}

	if c.Old.IsZero() {
		return Create
	}

	if c.New.IsZero() {
		return Delete
	}

	return Update
}

// RefType returns the kind of reference the command targets.
func (c *Command) RefType() RefType {
	if c.Name.IsTag() {
		return RefTypeTag
	}
	return RefTypeBranch
}

func (c *Command) validate() error {
	if c.Action() == Invalid {
		return invalidRequestf("command with zero old and new hash for %s", c.Name)
	}

	return nil
}

// Decode reads a reference update request from r:
//
//	<old-hash> <new-hash> <ref-name>\x00<capabilities>
//	<old-hash> <new-hash> <ref-name>
//	...
//	0000
//	<pack data, possibly empty>
//
// The capabilities tail appears only on the first command line. A missing
// flush before the pack bytes makes the request invalid.
func (req *ReferenceUpdateRequest) Decode(r io.Reader) error {
	first := true
	sawFlush := false
	for {
		l, p, err := pktline.ReadLine(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		if pktline.IsFlush(l) {
			sawFlush = true
			break
		}

		line := bytes.TrimSuffix(p, eol)

		if first {
			if i := bytes.Index(line, null); i >= 0 {
				if err := req.Capabilities.Decode(line[i+1:]); err != nil {
					return err
				}
				line = line[:i]
			}
			first = false
		}

		cmd, err := parseCommand(line)
		if err != nil {
			return err
		}

		req.Commands = append(req.Commands, cmd)
	}

	if !sawFlush {
		return invalidRequestf("missing flush before pack data")
	}

	if err := req.validate(); err != nil {
		return err
	}

	// Whatever remains on the stream is pack data.
	req.Packfile = r

	return nil
}

func parseCommand(line []byte) (*Command, error) {
	fields := bytes.Split(line, sp)
	if len(fields) != 3 {
		return nil, invalidRequestf("malformed command %q", line)
	}

	old, err := plumbing.FromHex(string(fields[0]))
	if err != nil {
		return nil, invalidRequestf("malformed old hash in command %q", line)
	}

	new, err := plumbing.FromHex(string(fields[1]))
	if err != nil {
		return nil, invalidRequestf("malformed new hash in command %q", line)
	}

	if old.Format() != new.Format() {
		return nil, invalidRequestf("mixed hash kinds in command %q", line)
	}

	return &Command{
		Old:  old,
		New:  new,
		Name: plumbing.ReferenceName(fields[2]),
	}, nil
}

func (req *ReferenceUpdateRequest) validate() error {
	if len(req.Commands) == 0 {
		return ErrEmptyCommands
	}

	for _, c := range req.Commands {
		if err := c.validate(); err != nil {
			return err
		}
	}

	return nil
}

// Encode writes the request to w, for use by clients and tests. The packfile
// content, if any, is copied after the flush.
func (req *ReferenceUpdateRequest) Encode(w io.Writer) error {
	for i, cmd := range req.Commands {
		if i == 0 {
			if _, err := pktline.Writef(w, "%s %s %s\x00%s\n",
				cmd.Old, cmd.New, cmd.Name, req.Capabilities.String()); err != nil {
				return err
			}
			continue
		}

		if _, err := pktline.Writef(w, "%s %s %s\n", cmd.Old, cmd.New, cmd.Name); err != nil {
			return err
		}
	}

	if err := pktline.WriteFlush(w); err != nil {
		return err
	}

	if req.Packfile != nil {
		if _, err := io.Copy(w, req.Packfile); err != nil {
			return err
		}
	}

	return nil
}
