// Package sideband implements a sideband mutiplex/demultiplexer.
package sideband

// If 'side-band' or 'side-band-64k' capabilities have been specified by the
// client, the server will send the packfile data multiplexed.
//
// Either mode indicates that the packfile data will be streamed broken up
// into packets of up to either 1000 bytes in the case of 'side_band', or
// 65520 bytes in the case of 'side_band_64k'. Each packet is made up of a
// leading 4-byte pkt-line length of how much data is in the packet, followed
// by a 1-byte stream code, followed by the actual data.
//
// The stream code can be one of:
//
//	1 - pack data
//	2 - progress messages
//	3 - fatal error message just before stream aborts
//
// In any case, a pkt-line length of 0 (a flush-pkt) ends the stream.

type (
	// Type sideband type "side-band" or "side-band-64k".
	Type int8
	// Channel sideband channel.
	Channel byte
)

// WithPayload returns the channel byte, followed by the payload.
func (ch Channel) WithPayload(payload []byte) []byte {
	return append([]byte{byte(ch)}, payload...)
}

const (
	// Sideband legacy sideband type up to 1000-byte messages.
	Sideband Type = iota
	// Sideband64k sideband type up to 65520-byte messages.
	Sideband64k

	// MaxPackedSize for Sideband type.
	MaxPackedSize = 1000
	// MaxPackedSize64k for Sideband64k type.
	MaxPackedSize64k = 65520

	// PackData packfile content.
	PackData Channel = 1
	// ProgressMessage progress messages.
	ProgressMessage Channel = 2
	// ErrorMessage fatal error message just before stream aborts.
	ErrorMessage Channel = 3
)

// Progress where the progress information is stored.
type Progress interface {
	Write(p []byte) (n int, err error)
}
