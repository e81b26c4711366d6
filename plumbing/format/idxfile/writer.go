package idxfile

import (
	"fmt"
	"io"
	"sort"

	"github.com/go-git/go-gitwire/plumbing"
	"github.com/go-git/go-gitwire/plumbing/hash"
	"github.com/go-git/go-gitwire/utils/binary"
)

// Writer collects (hash, offset, crc32) records - typically from the pack
// decoder or encoder callbacks - and encodes them as an idx file.
type Writer struct {
	format   hash.Format
	records  []ObjectRecord
	packHash plumbing.Hash
}

// NewWriter returns an index writer for a pack of the given object format.
func NewWriter(f hash.Format) *Writer {
	return &Writer{format: f}
}

// Add appends a new object record.
func (w *Writer) Add(h plumbing.Hash, offset uint64, crc uint32) {
	w.records = append(w.records, ObjectRecord{Hash: h, Offset: offset, CRC32: crc})
}

// OnTrailer records the pack trailer hash. It matches the decoder's trailer
// callback signature.
func (w *Writer) OnTrailer(h plumbing.Hash) error {
	w.packHash = h
	return nil
}

// Index sorts the collected records and returns the in-memory index. It
// fails on duplicate hashes.
func (w *Writer) Index() (*Index, error) {
	sort.Slice(w.records, func(i, j int) bool {
		return w.records[i].Hash.Compare(w.records[j].Hash.Bytes()) < 0
	})

	for i := 1; i < len(w.records); i++ {
		if w.records[i].Hash == w.records[i-1].Hash {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateHash, w.records[i].Hash)
		}
	}

	return &Index{
		Version:  VersionFor(w.format),
		Records:  w.records,
		PackHash: w.packHash,
	}, nil
}

// Encode builds the index and writes it to out.
func (w *Writer) Encode(out io.Writer) (int, error) {
	idx, err := w.Index()
	if err != nil {
		return 0, err
	}

	return NewEncoder(out, w.format).Encode(idx)
}

// Encoder writes Index values to an output stream.
type Encoder struct {
	io.Writer
	hash   hash.Hash
	format hash.Format
}

// NewEncoder returns a new stream encoder that writes to w.
func NewEncoder(w io.Writer, f hash.Format) *Encoder {
	h := hash.New(f)
	mw := io.MultiWriter(w, h)
	return &Encoder{mw, h, f}
}

// Encode encodes an Index to the encoder writer.
func (e *Encoder) Encode(idx *Index) (int, error) {
	flow := []func(*Index) (int, error){
		e.encodeHeader,
		e.encodeFanout,
		e.encodeHashes,
		e.encodeCRC32,
		e.encodeOffsets,
		e.encodeChecksums,
	}

	sz := 0
	for _, f := range flow {
		i, err := f(idx)
		sz += i

		if err != nil {
			return sz, err
		}
	}

	return sz, nil
}

func (e *Encoder) encodeHeader(idx *Index) (int, error) {
	c, err := e.Write(idxHeader)
	if err != nil {
		return c, err
	}

	if err := binary.WriteUint32(e, idx.Version); err != nil {
		return c, err
	}
	c += 4

	if idx.Version == VersionSHA256 {
		// v3 extends the header with its own size, the object count and the
		// number of object formats covered (always one).
		const v3HeaderSize = 20
		if err := binary.Write(e,
			uint32(v3HeaderSize),
			uint32(len(idx.Records)),
			uint32(1),
		); err != nil {
			return c, err
		}
		c += 12
	}

	return c, nil
}

func (e *Encoder) encodeFanout(idx *Index) (int, error) {
	for _, c := range idx.fanout() {
		if err := binary.WriteUint32(e, c); err != nil {
			return 0, err
		}
	}

	return fanoutSize * 4, nil
}

func (e *Encoder) encodeHashes(idx *Index) (int, error) {
	var size int
	for _, r := range idx.Records {
		n, err := e.Write(r.Hash.Bytes())
		if err != nil {
			return size, err
		}
		size += n
	}
	return size, nil
}

func (e *Encoder) encodeCRC32(idx *Index) (int, error) {
	for _, r := range idx.Records {
		if err := binary.WriteUint32(e, r.CRC32); err != nil {
			return 0, err
		}
	}

	return len(idx.Records) * 4, nil
}

func (e *Encoder) encodeOffsets(idx *Index) (int, error) {
	var large []uint64
	for _, r := range idx.Records {
		o := uint32(r.Offset)
		if r.Offset > offsetLimit {
			o = isLargeOffset | uint32(len(large))
			large = append(large, r.Offset)
		}

		if err := binary.WriteUint32(e, o); err != nil {
			return 0, err
		}
	}

	size := len(idx.Records) * 4
	for _, o := range large {
		if err := binary.WriteUint64(e, o); err != nil {
			return size, err
		}
		size += 8
	}

	return size, nil
}

func (e *Encoder) encodeChecksums(idx *Index) (int, error) {
	n1, err := e.Write(idx.PackHash.Bytes())
	if err != nil {
		return 0, err
	}

	idxHash, _ := plumbing.FromBytes(e.hash.Sum(nil))
	idx.IdxHash = idxHash

	n2, err := e.Write(idxHash.Bytes())
	if err != nil {
		return n1, err
	}

	return n1 + n2, nil
}

// fanout computes the 256 cumulative counts by the first byte of each hash.
func (idx *Index) fanout() [fanoutSize]uint32 {
	var fan [fanoutSize]uint32
	for _, r := range idx.Records {
		fan[r.Hash.Bytes()[0]]++
	}

	var acc uint32
	for i := range fan {
		acc += fan[i]
		fan[i] = acc
	}

	return fan
}
