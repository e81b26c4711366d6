package packfile

import (
	stdhash "hash"
	"hash/crc32"
	"io"

	"github.com/go-git/go-gitwire/plumbing"
	"github.com/go-git/go-gitwire/plumbing/hash"
	"github.com/go-git/go-gitwire/utils/binary"
	gogitsync "github.com/go-git/go-gitwire/utils/sync"
)

const (
	// DefaultWindowSize is the default number of recent entries searched for
	// delta bases.
	DefaultWindowSize = 10

	// similarityThreshold is the minimum shared-bytes ratio for a candidate
	// base to qualify.
	similarityThreshold = 0.6
)

// EncoderOption configures an Encoder.
type EncoderOption func(*Encoder)

// WithEncoderFormat sets the object format used for the pack trailer.
// Defaults to SHA1.
func WithEncoderFormat(f hash.Format) EncoderOption {
	return func(e *Encoder) { e.format = f }
}

// WithWindowSize sets the number of recent entries kept as delta-base
// candidates. Zero disables delta compression.
func WithWindowSize(n int) EncoderOption {
	return func(e *Encoder) {
		e.windowSize = n
		e.windowSet = true
	}
}

// Encoder serializes entries into pack format, optionally discovering
// intra-window deltas: each entry is compared against a rolling window of
// the last entries written, and stored as an offset-delta when a candidate
// is similar enough and the delta is strictly smaller than the payload.
//
// Entries are written in the order received; callers that want topological
// ordering must arrange it upstream.
type Encoder struct {
	w      *teeOffsetWriter
	format hash.Format

	windowSize int
	windowSet  bool
	window     []windowEntry

	offsets map[plumbing.Hash]int64
	metas   []EntryMeta
}

type windowEntry struct {
	hash   plumbing.Hash
	offset int64
	data   []byte
}

// NewEncoder creates a new packfile encoder writing to w.
func NewEncoder(w io.Writer, opts ...EncoderOption) *Encoder {
	e := &Encoder{
		format:  hash.SHA1,
		offsets: make(map[plumbing.Hash]int64),
	}

	for _, opt := range opts {
		opt(e)
	}

	if !e.windowSet {
		e.windowSize = DefaultWindowSize
	}

	e.w = newTeeOffsetWriter(w, hash.New(e.format))
	return e
}

// Encode writes a complete pack with the given entries and returns the
// trailer hash.
func (e *Encoder) Encode(entries []Entry) (plumbing.Hash, error) {
	if err := e.WriteHeader(uint32(len(entries))); err != nil {
		return plumbing.ZeroHashOf(e.format), err
	}

	for _, entry := range entries {
		if _, err := e.WriteEntry(entry); err != nil {
			return plumbing.ZeroHashOf(e.format), err
		}
	}

	return e.Footer()
}

// WriteHeader writes the pack header for the given object count.
func (e *Encoder) WriteHeader(count uint32) error {
	return binary.Write(e.w, signature, VersionSupported, count)
}

// WriteEntry writes one entry, deciding between full and delta storage, and
// returns its physical metadata.
func (e *Encoder) WriteEntry(entry Entry) (EntryMeta, error) {
	offset := e.w.offset
	e.w.startCRC()

	base, delta := e.findBase(entry)

	var err error
	if base != nil {
		err = e.writeDelta(entry, base, delta, offset)
	} else {
		err = e.writeFull(entry, offset)
	}
	if err != nil {
		return EntryMeta{}, err
	}

	meta := EntryMeta{
		Offset:  offset,
		CRC32:   e.w.stopCRC(),
		IsDelta: base != nil,
	}
	e.metas = append(e.metas, meta)

	e.offsets[entry.Hash] = offset
	e.pushWindow(windowEntry{hash: entry.Hash, offset: offset, data: entry.Data})

	return meta, nil
}

// findBase searches the window for the best delta base: similarity above the
// threshold and a delta strictly smaller than the payload. Among qualifying
// candidates the smallest delta wins; ties go to the most recent candidate.
func (e *Encoder) findBase(entry Entry) (*windowEntry, []byte) {
	if e.windowSize == 0 || len(entry.Data) == 0 {
		return nil, nil
	}

	var best *windowEntry
	var bestDelta []byte

	// The window is kept most recent last; walking it backwards makes the
	// first qualifying delta of a given size the most recent one.
	for i := len(e.window) - 1; i >= 0; i-- {
		candidate := &e.window[i]
		diff := NewDeltaDiff(candidate.data, entry.Data)
		if diff.SimilarityRatio() <= similarityThreshold {
			continue
		}

		delta := diff.Encode()
		if len(delta) >= len(entry.Data) {
			continue
		}

		if bestDelta == nil || len(delta) < len(bestDelta) {
			best = candidate
			bestDelta = delta
		}
	}

	return best, bestDelta
}

func (e *Encoder) writeFull(entry Entry, offset int64) error {
	if err := e.entryHead(entry.Type, int64(len(entry.Data))); err != nil {
		return err
	}

	return e.compress(entry.Data)
}

func (e *Encoder) writeDelta(entry Entry, base *windowEntry, delta []byte, offset int64) error {
	if err := e.entryHead(plumbing.OFSDeltaObject, int64(len(delta))); err != nil {
		return err
	}

	// The base is always inside the window, therefore inside this pack, so
	// the entry is an offset-delta.
	if err := binary.WriteVariableWidthInt(e.w, offset-base.offset); err != nil {
		return err
	}

	return e.compress(delta)
}

func (e *Encoder) compress(data []byte) error {
	zw := gogitsync.GetZlibWriter(e.w)
	defer gogitsync.PutZlibWriter(zw)

	if _, err := zw.Write(data); err != nil {
		return err
	}

	return zw.Close()
}

func (e *Encoder) entryHead(typeNum plumbing.ObjectType, size int64) error {
	t := int64(typeNum)
	header := []byte{}
	c := (t << firstLengthBits) | (size & maskFirstLength)
	size >>= firstLengthBits
	for size != 0 {
		header = append(header, byte(c|int64(maskContinue)))
		c = size & int64(maskLength)
		size >>= int64(lengthBits)
	}

	header = append(header, byte(c))
	_, err := e.w.Write(header)

	return err
}

func (e *Encoder) pushWindow(we windowEntry) {
	if e.windowSize == 0 {
		return
	}

	e.window = append(e.window, we)
	if len(e.window) > e.windowSize {
		e.window = e.window[1:]
	}
}

// Footer writes the pack trailer and returns its hash.
func (e *Encoder) Footer() (plumbing.Hash, error) {
	h, _ := plumbing.FromBytes(e.w.hash.Sum(nil))
	if _, err := e.w.Write(h.Bytes()); err != nil {
		return plumbing.ZeroHashOf(e.format), err
	}

	return h, nil
}

// Metas returns the physical metadata of every entry written so far, in
// write order. The index builder consumes this, together with the trailer
// hash, to emit the pack index.
func (e *Encoder) Metas() []EntryMeta {
	return e.metas
}

// Offsets returns the offset each written entry hash landed on.
func (e *Encoder) Offsets() map[plumbing.Hash]int64 {
	return e.offsets
}

// teeOffsetWriter tracks the current write offset, keeps the running pack
// hash, and optionally a CRC-32 of the current entry.
type teeOffsetWriter struct {
	w      io.Writer
	hash   hash.Hash
	crc    stdhash.Hash32
	inCRC  bool
	offset int64
}

func newTeeOffsetWriter(w io.Writer, h hash.Hash) *teeOffsetWriter {
	return &teeOffsetWriter{w: w, hash: h, crc: crc32.NewIEEE()}
}

func (t *teeOffsetWriter) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	if n > 0 {
		t.hash.Write(p[:n]) //nolint:errcheck
		if t.inCRC {
			t.crc.Write(p[:n]) //nolint:errcheck
		}
		t.offset += int64(n)
	}
	return n, err
}

func (t *teeOffsetWriter) startCRC() {
	t.crc.Reset()
	t.inCRC = true
}

func (t *teeOffsetWriter) stopCRC() uint32 {
	t.inCRC = false
	return t.crc.Sum32()
}
