package packfile

import (
	"io"

	"github.com/go-git/go-gitwire/plumbing"
)

var signature = []byte{'P', 'A', 'C', 'K'}

const (
	// VersionSupported is the default packfile version written by the
	// encoder.
	VersionSupported uint32 = 2

	firstLengthBits = uint8(4)   // the first byte into object header has 4 bits to store the length
	lengthBits      = uint8(7)   // subsequent bytes have 7 bits to store the length
	maskFirstLength = 15         // 0000 1111
	maskContinue    = 0x80       // 1000 0000
	maskLength      = uint8(127) // 0111 1111
	maskType        = uint8(112) // 0111 0000
)

// SupportedVersion returns true for the packfile versions this package can
// read.
func SupportedVersion(v uint32) bool {
	return v == 2 || v == 3
}

// packEntryType returns the plumbing.ObjectType encoded in the type bits of
// the first byte of an entry header.
func packEntryType(b byte) plumbing.ObjectType {
	return plumbing.ObjectType((b & maskType) >> firstLengthBits)
}

// entrySize reads the variable length size started by first, continuing on
// reader until the full size is determined.
//
//	|  001xxxx | xxxxxxxx | xxxxxxxx | ...
//	   ^^^       ^^^^^^^^   ^^^^^^^^
//	  Type      Size Part 1  Size Part 2
func entrySize(first byte, reader io.ByteReader) (uint64, error) {
	size := uint64(first & maskFirstLength)

	if first&maskContinue != 0 {
		shift := uint(firstLengthBits)

		for {
			b, err := reader.ReadByte()
			if err != nil {
				return 0, err
			}

			size |= uint64(b&maskLength) << shift

			if b&maskContinue == 0 {
				break
			}

			shift += uint(lengthBits)
		}
	}
	return size, nil
}

// DecodeLEB128 decodes a number encoded as an unsigned LEB128 at the
// start of some binary data and returns the decoded number and the rest
// of the bytes.
func DecodeLEB128(input []byte) (uint, []byte) {
	if len(input) == 0 {
		return 0, input
	}

	var num, sz uint
	var b byte
	for {
		b = input[sz]
		num |= (uint(b) & uint(maskLength)) << (sz * 7) // concats 7 bits chunks
		sz++

		if uint(b)&uint(maskContinue) == 0 || sz == uint(len(input)) {
			break
		}
	}

	return num, input[sz:]
}

// DecodeLEB128FromReader decodes a number encoded as an unsigned LEB128 from
// a reader and returns the decoded number.
func DecodeLEB128FromReader(input io.ByteReader) (uint, error) {
	var num, sz uint
	for {
		b, err := input.ReadByte()
		if err != nil {
			return 0, err
		}

		num |= (uint(b) & uint(maskLength)) << (sz * 7) // concats 7 bits chunks
		sz++

		if uint(b)&uint(maskContinue) == 0 {
			break
		}
	}

	return num, nil
}

// EncodeLEB128 appends the unsigned LEB128 representation of n to buf,
// emitting the shortest form.
func EncodeLEB128(buf []byte, n uint) []byte {
	c := byte(n & uint(maskLength))
	n >>= 7
	for n != 0 {
		buf = append(buf, c|maskContinue)
		c = byte(n & uint(maskLength))
		n >>= 7
	}

	return append(buf, c)
}
