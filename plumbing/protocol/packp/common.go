// Package packp implements the pkt-line based messages of the Git smart
// protocol: reference advertisements, upload and update requests, server
// responses and status reports.
package packp

import (
	"bytes"
	"errors"
	"fmt"
)

var (
	// sp and eol are the token separators of the protocol.
	sp  = []byte(" ")
	eol = []byte("\n")

	// null is the NUL separator preceding the capability list on first
	// lines.
	null = []byte("\x00")

	// noHeadMark is the fake ref name advertised by empty repositories.
	noHeadMark = "capabilities^{}"

	// want, have and done are the upload-request commands.
	want = []byte("want ")
	have = []byte("have ")
	done = []byte("done")
)

// ErrInvalidRequest is returned when a request message violates the
// protocol.
var ErrInvalidRequest = errors.New("invalid request")

func invalidRequestf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// Capabilities on the wire are a single token or a name=value pair.
func readCapability(data []byte) (name string, values []string) {
	pair := bytes.SplitN(data, []byte{'='}, 2)
	if len(pair) == 2 {
		values = append(values, string(pair[1]))
	}

	return string(pair[0]), values
}
