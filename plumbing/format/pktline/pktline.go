package pktline

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/go-git/go-gitwire/utils/trace"
)

// Write writes a pkt-line packet with the given payload.
func Write(w io.Writer, p []byte) (n int, err error) {
	defer func() {
		if err == nil {
			trace.Packet.Printf("packet: > %04x %s", n, p)
		}
	}()

	if len(p) == 0 {
		return w.Write(FlushPkt)
	}

	if len(p) > MaxPayloadSize {
		return 0, ErrPayloadTooLong
	}

	pktlen := len(p) + lenSize
	n, err = w.Write(asciiHex16(pktlen))
	if err != nil {
		return
	}

	n2, err := w.Write(p)
	n += n2
	return
}

// Writef writes a pkt-line packet from a format string.
func Writef(w io.Writer, format string, a ...interface{}) (n int, err error) {
	if len(a) == 0 {
		return Write(w, []byte(format))
	}
	return Write(w, []byte(fmt.Sprintf(format, a...)))
}

// Writeln writes a pkt-line packet from a string and appends a newline.
func Writeln(w io.Writer, s string) (n int, err error) {
	return Write(w, []byte(s+"\n"))
}

// WriteString writes a pkt-line packet from a string.
func WriteString(w io.Writer, s string) (n int, err error) {
	return Write(w, []byte(s))
}

// WriteError writes an error packet.
func WriteError(w io.Writer, e error) (n int, err error) {
	return Writef(w, "%s%s\n", errPrefix, e.Error())
}

// WriteFlush writes a flush packet.
func WriteFlush(w io.Writer) (err error) {
	defer func() {
		if err == nil {
			trace.Packet.Printf("packet: > 0000")
		}
	}()

	_, err = w.Write(FlushPkt)
	return err
}

// WriteDelim writes a delimiter packet.
func WriteDelim(w io.Writer) (err error) {
	defer func() {
		if err == nil {
			trace.Packet.Printf("packet: > 0001")
		}
	}()

	_, err = w.Write(DelimPkt)
	return err
}

// ReadLine reads a pkt-line from r.
//
// It returns the pkt-line status, the payload and an error, if any. If the
// pkt-line is a flush-pkt, delim-pkt or response-end-pkt, the payload will
// be nil and the status will be the pkt-line type. For data packets the
// status is the total packet length, header included.
func ReadLine(r io.Reader) (l int, p []byte, err error) {
	defer func() {
		if err == nil {
			trace.Packet.Printf("packet: < %04x %s", l, p)
		}
	}()

	var pktlen [lenSize]byte
	n, err := io.ReadFull(r, pktlen[:])
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Err, nil, fmt.Errorf("%w: %d", ErrInvalidPktLen, n)
		}

		return Err, nil, err
	}

	length, err := ParseLength(pktlen[:])
	if err != nil {
		return Err, nil, err
	}

	switch length {
	case Flush, Delim, ResponseEnd:
		return length, nil, nil
	case lenSize: // empty line
		return length, Empty, nil
	}

	dataLen := length - lenSize
	data := make([]byte, 0, dataLen)
	dn, err := io.ReadFull(r, data[:dataLen])
	if err != nil {
		return Err, nil, err
	}

	buf := data[:dn]
	if bytes.HasPrefix(buf, errPrefix) {
		err = &ErrorLine{
			Text: string(bytes.TrimSpace(buf[4:])),
		}
	}

	return length, buf, err
}

// ReadLineString reads a pkt-line and returns the payload as a string.
func ReadLineString(r io.Reader) (l int, s string, err error) {
	l, p, err := ReadLine(r)
	return l, string(p), err
}

// PeekLine reads the next pkt-line without advancing the reader. The reader
// must support peeking, such as a *bufio.Reader.
func PeekLine(r Peeker) (l int, p []byte, err error) {
	defer func() {
		if err == nil {
			trace.Packet.Printf("packet: < %04x %s", l, p)
		}
	}()

	head, err := r.Peek(lenSize)
	if err != nil {
		return Err, nil, err
	}

	length, err := ParseLength(head)
	if err != nil {
		return Err, nil, err
	}

	switch length {
	case Flush, Delim, ResponseEnd:
		return length, nil, nil
	case lenSize: // empty line
		return length, Empty, nil
	}

	data, err := r.Peek(length)
	if err != nil {
		return Err, nil, err
	}

	buf := data[lenSize:length]
	if bytes.HasPrefix(buf, errPrefix) {
		err = &ErrorLine{
			Text: string(bytes.TrimSpace(buf[4:])),
		}
	}

	return length, buf, err
}

// Peeker is a reader that supports peeking ahead.
type Peeker interface {
	io.Reader
	Peek(n int) ([]byte, error)
}
