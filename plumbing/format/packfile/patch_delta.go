package packfile

import (
	"bytes"
	"errors"
)

// See https://github.com/git/git/blob/49fa3dc76179e04b0833542fa52d0f287a4955ac/delta.h
// and https://github.com/git/git/blob/c2c5f6b1e479f2c38e0e01345350620944e3527f/patch-delta.c
// for details about the delta format.

// Delta errors.
var (
	// ErrInvalidDelta is returned when a delta stream is corrupted.
	ErrInvalidDelta = errors.New("invalid delta")
	// ErrDeltaCmd is returned when an instruction byte is neither a copy nor
	// an insert.
	ErrDeltaCmd = errors.New("wrong delta command")
	// ErrBaseLenMismatch is returned when the base length declared in the
	// delta differs from the actual base.
	ErrBaseLenMismatch = errors.New("delta base length mismatch")
	// ErrInvalidInsertLength is returned for a zero-length insert
	// instruction, which the format forbids.
	ErrInvalidInsertLength = errors.New("invalid insert length")
	// ErrCopyOutOfRange is returned when a copy instruction references bytes
	// outside the base.
	ErrCopyOutOfRange = errors.New("delta copy out of range")
	// ErrResultLenMismatch is returned when the reconstructed output differs
	// in length from the declared result length.
	ErrResultLenMismatch = errors.New("delta result length mismatch")
	// ErrDeltaTruncated is returned when the delta stream ends in the middle
	// of an instruction.
	ErrDeltaTruncated = errors.New("truncated delta")
)

const (
	// maxCopySize is the value a copy instruction with a zero size field
	// expands to.
	maxCopySize = 0x10000

	// minDeltaSize defines the smallest size for a delta: the two size
	// varints. A delta with no instructions reconstructs an empty target.
	minDeltaSize = 2
)

type offset struct {
	mask  byte
	shift uint
}

var offsets = []offset{
	{mask: 0x01, shift: 0},
	{mask: 0x02, shift: 8},
	{mask: 0x04, shift: 16},
	{mask: 0x08, shift: 24},
}

var sizes = []offset{
	{mask: 0x10, shift: 0},
	{mask: 0x20, shift: 8},
	{mask: 0x40, shift: 16},
}

// PatchDelta returns the result of applying the modification deltas in delta
// to src.
//
// An error is returned if the delta is corrupted, with the specific failure
// mode exposed as a wrapped sentinel: ErrBaseLenMismatch,
// ErrInvalidInsertLength, ErrCopyOutOfRange, ErrResultLenMismatch,
// ErrDeltaTruncated or ErrDeltaCmd.
func PatchDelta(src, delta []byte) ([]byte, error) {
	if len(delta) < minDeltaSize {
		return nil, ErrDeltaTruncated
	}

	b := &bytes.Buffer{}
	if err := patchDelta(b, src, delta); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func patchDelta(dst *bytes.Buffer, src, delta []byte) error {
	srcSz, delta := DecodeLEB128(delta)
	if srcSz != uint(len(src)) {
		return ErrBaseLenMismatch
	}

	targetSz, delta := DecodeLEB128(delta)
	remainingTargetSz := targetSz

	var cmd byte

	dst.Grow(int(targetSz))
	for {
		if len(delta) == 0 {
			break
		}

		cmd = delta[0]
		delta = delta[1:]

		switch {
		case isCopyFromSrc(cmd):
			var offset, sz uint
			var err error
			offset, delta, err = decodeOffset(cmd, delta)
			if err != nil {
				return err
			}

			sz, delta, err = decodeSize(cmd, delta)
			if err != nil {
				return err
			}

			if sumOverflows(offset, sz) || offset+sz > uint(len(src)) {
				return ErrCopyOutOfRange
			}
			if sz > remainingTargetSz {
				return ErrResultLenMismatch
			}
			dst.Write(src[offset : offset+sz])
			remainingTargetSz -= sz

		case isCopyFromDelta(cmd):
			sz := uint(cmd) // cmd is the size itself
			if uint(len(delta)) < sz {
				return ErrDeltaTruncated
			}
			if sz > remainingTargetSz {
				return ErrResultLenMismatch
			}

			dst.Write(delta[0:sz])
			remainingTargetSz -= sz
			delta = delta[sz:]

		default:
			// cmd == 0: a zero-length insert is a protocol violation.
			return ErrInvalidInsertLength
		}
	}

	if remainingTargetSz != 0 || uint(dst.Len()) != targetSz {
		return ErrResultLenMismatch
	}

	return nil
}

func isCopyFromSrc(cmd byte) bool {
	return (cmd & maskContinue) != 0
}

func isCopyFromDelta(cmd byte) bool {
	return (cmd&maskContinue) == 0 && cmd != 0
}

func decodeOffset(cmd byte, delta []byte) (uint, []byte, error) {
	var offset uint
	for _, o := range offsets {
		if (cmd & o.mask) != 0 {
			if len(delta) == 0 {
				return 0, nil, ErrDeltaTruncated
			}
			offset |= uint(delta[0]) << o.shift
			delta = delta[1:]
		}
	}

	return offset, delta, nil
}

func decodeSize(cmd byte, delta []byte) (uint, []byte, error) {
	var sz uint
	for _, s := range sizes {
		if (cmd & s.mask) != 0 {
			if len(delta) == 0 {
				return 0, nil, ErrDeltaTruncated
			}
			sz |= uint(delta[0]) << s.shift
			delta = delta[1:]
		}
	}
	if sz == 0 {
		sz = maxCopySize
	}

	return sz, delta, nil
}

func sumOverflows(a, b uint) bool {
	return a+b < a
}

// DeltaSizes returns the base and result lengths declared at the head of a
// delta stream.
func DeltaSizes(delta []byte) (baseSz, resultSz uint, err error) {
	if len(delta) < minDeltaSize {
		return 0, 0, ErrDeltaTruncated
	}

	baseSz, delta = DecodeLEB128(delta)
	resultSz, _ = DecodeLEB128(delta)
	return baseSz, resultSz, nil
}
