package packfile

import (
	"bufio"
	"fmt"
	stdhash "hash"
	"hash/crc32"
	"io"

	"github.com/go-git/go-gitwire/plumbing"
	"github.com/go-git/go-gitwire/plumbing/hash"
	"github.com/go-git/go-gitwire/utils/binary"
	gogitsync "github.com/go-git/go-gitwire/utils/sync"
)

var (
	// ErrEmptyPackfile is returned by Header when no data is found in the packfile.
	ErrEmptyPackfile = NewError("empty packfile")
	// ErrBadSignature is returned by Header when the signature in the packfile is incorrect.
	ErrBadSignature = NewError("malformed pack file signature")
	// ErrMalformedPackfile is returned when the packfile format is incorrect.
	ErrMalformedPackfile = NewError("malformed pack file")
	// ErrUnsupportedVersion is returned by Header when the packfile version is
	// not supported.
	ErrUnsupportedVersion = NewError("unsupported packfile version")
)

// ObjectHeader contains the information related to one pack entry: the
// variable-width type/size header, the delta base reference when the entry
// is stored in delta form, and the inflated payload.
type ObjectHeader struct {
	// Type is the entry type as stored on disk, possibly a delta type.
	Type plumbing.ObjectType
	// Offset is the position of the entry header inside the pack.
	Offset int64
	// Size is the uncompressed payload size declared by the header.
	Size int64
	// Reference is the base hash, for ref-delta entries.
	Reference plumbing.Hash
	// OffsetReference is the absolute base offset, for offset-delta entries.
	OffsetReference int64
	// Crc32 is the checksum of the entry's raw bytes.
	Crc32 uint32
	// Content is the inflated payload: the delta stream for delta entries,
	// the canonical payload otherwise.
	Content []byte
}

// IsDelta reports whether the entry is stored in delta form.
func (oh *ObjectHeader) IsDelta() bool {
	return oh.Type.IsDelta()
}

// Scanner provides sequential access to the data stored in a Git packfile.
//
// A Git packfile is structured as follows:
//
//	+----------------------------------------------------+
//	|                 PACK File Header                   |
//	+----------------------------------------------------+
//	| "PACK"  | Version Number | Number of Objects       |
//	| (4 bytes) |  (4 bytes)   |    (4 bytes)            |
//	+----------------------------------------------------+
//	|                  Object Entry #1                   |
//	+----------------------------------------------------+
//	|  Object Header  |  Compressed Object Data / Delta  |
//	| (type + size)   |  (var-length, zlib compressed)   |
//	+----------------------------------------------------+
//	|                         ...                        |
//	+----------------------------------------------------+
//	|                 PACK File Trailer                  |
//	+----------------------------------------------------+
//	|        Raw hash of all preceding bytes             |
//	+----------------------------------------------------+
//
// For upstream docs, refer to https://git-scm.com/docs/gitformat-pack.
type Scanner struct {
	r *trackingReader

	version  uint32
	objects  uint32
	objIndex int

	format hash.Format
}

// NewScanner creates a new Scanner reading from r, interpreting identifiers
// under the given object format.
func NewScanner(r io.Reader, f hash.Format) *Scanner {
	return &Scanner{
		r:        newTrackingReader(r, hash.New(f)),
		objIndex: -1,
		format:   f,
	}
}

// Header consumes the 12-byte pack header, validating the magic and the
// version, and returns the version and the object count.
func (s *Scanner) Header() (version, objects uint32, err error) {
	sig := make([]byte, 4)
	if _, err := io.ReadFull(s.r, sig); err != nil {
		if err == io.EOF {
			return 0, 0, ErrEmptyPackfile
		}
		return 0, 0, fmt.Errorf("%w: %w", ErrBadSignature, err)
	}

	if string(sig) != string(signature) {
		return 0, 0, ErrBadSignature
	}

	version, err = binary.ReadUint32(s.r)
	if err != nil {
		return 0, 0, ErrMalformedPackfile.AddDetails("cannot read version")
	}

	if !SupportedVersion(version) {
		return 0, 0, ErrUnsupportedVersion.AddDetails("version %d", version)
	}

	objects, err = binary.ReadUint32(s.r)
	if err != nil {
		return 0, 0, ErrMalformedPackfile.AddDetails("cannot read number of objects")
	}

	s.version = version
	s.objects = objects
	return version, objects, nil
}

// Version returns the version of the scanned packfile.
func (s *Scanner) Version() uint32 { return s.version }

// Objects returns the object count declared by the scanned packfile.
func (s *Scanner) Objects() uint32 { return s.objects }

// NextEntry parses the next object entry: its header, delta base reference
// if any, and the inflated payload. It returns io.EOF once all declared
// entries have been consumed.
func (s *Scanner) NextEntry() (*ObjectHeader, error) {
	if s.objIndex+1 >= int(s.objects) {
		return nil, io.EOF
	}
	s.objIndex++

	offset := s.r.offset
	s.r.startCRC()

	b, err := s.r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPackfile, err)
	}

	typ := packEntryType(b)
	if !typ.Valid() {
		return nil, ErrMalformedPackfile.AddDetails("invalid object type: %v", (b&maskType)>>firstLengthBits)
	}

	size, err := entrySize(b, s.r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPackfile, err)
	}

	oh := &ObjectHeader{
		Offset: offset,
		Type:   typ,
		Size:   int64(size),
	}

	switch oh.Type {
	case plumbing.OFSDeltaObject:
		no, err := binary.ReadVariableWidthInt(s.r)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedPackfile, err)
		}

		oh.OffsetReference = oh.Offset - no
		if oh.OffsetReference >= oh.Offset || oh.OffsetReference < headerSize {
			return nil, ErrMalformedPackfile.AddDetails(
				"bad negative offset at %d: base would be %d", oh.Offset, oh.OffsetReference)
		}
	case plumbing.REFDeltaObject:
		oh.Reference, err = plumbing.ReadHash(s.r, s.format)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedPackfile, err)
		}
	}

	oh.Content, err = s.inflate(oh.Size)
	if err != nil {
		return nil, err
	}

	oh.Crc32 = s.r.stopCRC()
	return oh, nil
}

// headerSize is the size of the pack header, and therefore the offset of the
// first entry.
const headerSize = 12

func (s *Scanner) inflate(size int64) ([]byte, error) {
	zr, err := gogitsync.GetZlibReader(s.r)
	if err != nil {
		return nil, fmt.Errorf("zlib reset error: %s", err)
	}
	defer gogitsync.PutZlibReader(zr)

	buf := make([]byte, 0, size)
	w := newCappedBuffer(buf, size)
	if _, err := io.Copy(w, zr); err != nil {
		return nil, ErrMalformedPackfile.AddDetails("truncated or oversized zlib stream: %s", err)
	}

	if int64(len(w.buf)) != size {
		return nil, ErrMalformedPackfile.AddDetails(
			"inflated size %d does not match header size %d", len(w.buf), size)
	}

	return w.buf, nil
}

// Trailer consumes the pack trailer and verifies it against the hash
// computed over all preceding bytes.
func (s *Scanner) Trailer() (plumbing.Hash, error) {
	actual, _ := plumbing.FromBytes(s.r.hash.Sum(nil))

	checksum, err := plumbing.ReadHash(s.r, s.format)
	if err != nil {
		return plumbing.ZeroHashOf(s.format), ErrMalformedPackfile.AddDetails("cannot read PACK checksum")
	}

	if checksum != actual {
		return plumbing.ZeroHashOf(s.format), ErrMalformedPackfile.AddDetails(
			"checksum mismatch expected %q but found %q", actual, checksum)
	}

	return checksum, nil
}

// trackingReader keeps a running hash of every byte read, for trailer
// verification, and an optional CRC-32 of the current entry's raw bytes.
type trackingReader struct {
	r      *bufio.Reader
	offset int64
	hash   hash.Hash
	crc    stdhash.Hash32
	inCRC  bool
}

func newTrackingReader(r io.Reader, h hash.Hash) *trackingReader {
	return &trackingReader{
		r:    bufio.NewReader(r),
		hash: h,
		crc:  crc32.NewIEEE(),
	}
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if n > 0 {
		t.hash.Write(p[:n]) //nolint:errcheck
		if t.inCRC {
			t.crc.Write(p[:n]) //nolint:errcheck
		}
		t.offset += int64(n)
	}
	return n, err
}

func (t *trackingReader) ReadByte() (byte, error) {
	b, err := t.r.ReadByte()
	if err != nil {
		return 0, err
	}

	t.hash.Write([]byte{b}) //nolint:errcheck
	if t.inCRC {
		t.crc.Write([]byte{b}) //nolint:errcheck
	}
	t.offset++
	return b, nil
}

func (t *trackingReader) startCRC() {
	t.crc.Reset()
	t.inCRC = true
}

func (t *trackingReader) stopCRC() uint32 {
	t.inCRC = false
	return t.crc.Sum32()
}

// cappedBuffer is a writer into a pre-sized byte slice that fails once more
// than max bytes are written, bounding memory on malformed input.
type cappedBuffer struct {
	buf []byte
	max int64
}

func newCappedBuffer(buf []byte, max int64) *cappedBuffer {
	return &cappedBuffer{buf: buf, max: max}
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	if int64(len(c.buf))+int64(len(p)) > c.max {
		return 0, fmt.Errorf("inflated payload exceeds declared size %d", c.max)
	}

	c.buf = append(c.buf, p...)
	return len(p), nil
}
