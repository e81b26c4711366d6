package sideband

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-git/go-gitwire/plumbing/format/pktline"
)

// ErrMaxPackedExceeded returned by Read, if the maximum packed size is exceeded.
var ErrMaxPackedExceeded = errors.New("max. packed size exceeded")

// Demuxer demultiplexes the progress messages and packfile data from a
// sideband stream, stores the progress and makes the packfile data available
// through the Read method.
type Demuxer struct {
	t   Type
	r   io.Reader
	max int

	// Progress is where the progress messages are stored.
	Progress Progress

	pending []byte
}

// NewDemuxer returns a new Demuxer for the given t and reader.
func NewDemuxer(t Type, r io.Reader) *Demuxer {
	max := MaxPackedSize64k
	if t == Sideband {
		max = MaxPackedSize
	}

	return &Demuxer{
		t:   t,
		r:   r,
		max: max,
	}
}

// Read reads up to len(p) bytes from the PackData channel into p. An error
// can be returned when an ErrorMessage channel message is received, or when
// the packed size exceeds the maximum allowed.
func (d *Demuxer) Read(b []byte) (n int, err error) {
	var read, req int

	req = len(b)
	for read < req {
		n, err := d.doRead(b[read:req])
		read += n

		if err != nil {
			return read, err
		}
	}

	return read, nil
}

func (d *Demuxer) doRead(b []byte) (int, error) {
	content, err := d.nextPackData()
	if err != nil {
		return 0, err
	}

	size := len(content)
	if size > len(b) {
		size = len(b)
	}

	copy(b, content[:size])
	d.pending = content[size:]

	return size, nil
}

func (d *Demuxer) nextPackData() ([]byte, error) {
	content := d.pending
	if len(content) != 0 {
		d.pending = nil
		return content, nil
	}

	l, p, err := pktline.ReadLine(d.r)
	if err != nil {
		return nil, err
	}

	if pktline.IsFlush(l) {
		return nil, io.EOF
	}

	if len(p) == 0 {
		return nil, fmt.Errorf("invalid sideband packet: empty")
	}

	content = p
	size := len(content)
	if size > d.max {
		return nil, ErrMaxPackedExceeded
	}

	switch Channel(content[0]) {
	case PackData:
		return content[1:], nil
	case ProgressMessage:
		if d.Progress != nil {
			_, err := d.Progress.Write(content[1:])
			if err != nil {
				return nil, err
			}
		}
	case ErrorMessage:
		return nil, fmt.Errorf("unexpected error: %s", content[1:])
	default:
		return nil, fmt.Errorf("unknown channel %s", content)
	}

	return nil, nil
}
