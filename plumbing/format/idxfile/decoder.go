package idxfile

import (
	"bytes"
	"fmt"
	"io"

	"github.com/go-git/go-gitwire/plumbing"
	"github.com/go-git/go-gitwire/plumbing/hash"
	"github.com/go-git/go-gitwire/utils/binary"
)

// Decoder reads idx files, versions 2 and 3.
type Decoder struct {
	io.Reader
}

// NewDecoder builds a new idx stream decoder that reads from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r}
}

// Decode reads from the stream and returns the parsed index.
func (d *Decoder) Decode() (*Index, error) {
	if err := validateHeader(d); err != nil {
		return nil, err
	}

	version, err := binary.ReadUint32(d)
	if err != nil {
		return nil, err
	}

	idx := &Index{Version: version}

	var f hash.Format
	switch version {
	case VersionSHA1:
		f = hash.SHA1
	case VersionSHA256:
		f = hash.SHA256
		// header size, object count and format count
		for i := 0; i < 3; i++ {
			if _, err := binary.ReadUint32(d); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	var fan [fanoutSize]uint32
	for i := range fan {
		if fan[i], err = binary.ReadUint32(d); err != nil {
			return nil, err
		}
		if i > 0 && fan[i] < fan[i-1] {
			return nil, fmt.Errorf("%w: decreasing fanout", ErrMalformedIdxFile)
		}
	}

	count := int(fan[fanoutSize-1])
	idx.Records = make([]ObjectRecord, count)

	for i := 0; i < count; i++ {
		h, err := plumbing.ReadHash(d, f)
		if err != nil {
			return nil, err
		}
		if i > 0 && idx.Records[i-1].Hash.Compare(h.Bytes()) >= 0 {
			return nil, fmt.Errorf("%w: hashes not strictly increasing", ErrMalformedIdxFile)
		}
		idx.Records[i].Hash = h
	}

	for i := 0; i < count; i++ {
		if idx.Records[i].CRC32, err = binary.ReadUint32(d); err != nil {
			return nil, err
		}
	}

	var largeRefs []int
	for i := 0; i < count; i++ {
		o, err := binary.ReadUint32(d)
		if err != nil {
			return nil, err
		}

		if o&isLargeOffset != 0 {
			idx.Records[i].Offset = uint64(o &^ isLargeOffset)
			largeRefs = append(largeRefs, i)
		} else {
			idx.Records[i].Offset = uint64(o)
		}
	}

	if len(largeRefs) > 0 {
		large := make([]uint64, len(largeRefs))
		for i := range large {
			if large[i], err = binary.ReadUint64(d); err != nil {
				return nil, err
			}
		}

		for _, i := range largeRefs {
			tableIdx := idx.Records[i].Offset
			if tableIdx >= uint64(len(large)) {
				return nil, fmt.Errorf("%w: large offset out of table", ErrMalformedIdxFile)
			}
			idx.Records[i].Offset = large[tableIdx]
		}
	}

	if idx.PackHash, err = plumbing.ReadHash(d, f); err != nil {
		return nil, err
	}

	if idx.IdxHash, err = plumbing.ReadHash(d, f); err != nil {
		return nil, err
	}

	return idx, nil
}

func validateHeader(r io.Reader) error {
	var h [4]byte
	if _, err := io.ReadFull(r, h[:]); err != nil {
		return err
	}

	if !bytes.Equal(h[:], idxHeader) {
		return fmt.Errorf("%w: bad magic", ErrMalformedIdxFile)
	}

	return nil
}
