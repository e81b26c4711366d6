package packfile

// See https://github.com/jelmer/dulwich/blob/master/dulwich/pack.py and
// https://github.com/tarruda/node-git-core/blob/master/src/js/delta.js
// for more info about the delta planning strategy.

const (
	// maxCopyLen is the biggest copy the encoder emits in a single copy
	// instruction; longer runs are split.
	maxCopyLen = 0xffff

	// maxInsertLen is the biggest literal a single insert instruction can
	// express.
	maxInsertLen = 0x7f

	// blockSize is the granularity of the base index used to find shared
	// runs between base and target.
	blockSize = 16
)

type opKind int8

const (
	opInsert opKind = iota
	opCopy
)

// deltaOp is a single step of the delta plan: either copy Len bytes from
// Begin in the base, or insert Len bytes from Begin in the target.
type deltaOp struct {
	kind  opKind
	begin int
	len   int
}

// DeltaDiff holds the delta plan between two byte buffers, along with the
// similarity stats collected while planning.
type DeltaDiff struct {
	ops    []deltaOp
	base   []byte
	target []byte
	shared int
}

// NewDeltaDiff builds a delta plan that transforms base into target. The
// planner is deterministic: the same pair of buffers always produces the
// same plan.
func NewDeltaDiff(base, target []byte) *DeltaDiff {
	d := &DeltaDiff{
		base:   base,
		target: target,
	}
	d.plan()

	return d
}

// DiffDelta returns a Git delta instruction stream that transforms base
// into target.
func DiffDelta(base, target []byte) []byte {
	return NewDeltaDiff(base, target).Encode()
}

// SimilarityRatio returns shared-bytes / len(target), usable as a heuristic
// for choosing whether to store a delta or a full object.
func (d *DeltaDiff) SimilarityRatio() float64 {
	if len(d.target) == 0 {
		return 0
	}
	return float64(d.shared) / float64(len(d.target))
}

// plan walks the target looking for runs shared with the base, merging
// contiguous copies and coalescing literals.
func (d *DeltaDiff) plan() {
	index := indexBase(d.base)

	var literalStart = 0
	i := 0
	for i < len(d.target) {
		if i+blockSize <= len(d.target) {
			if off, n := d.findMatch(index, i); n >= blockSize {
				d.pushInsert(literalStart, i)
				d.pushCopy(off, n)
				d.shared += n
				i += n
				literalStart = i
				continue
			}
		}
		i++
	}

	d.pushInsert(literalStart, len(d.target))
}

// indexBase maps the hash of every non-overlapping base block to the offset
// of its first occurrence.
func indexBase(base []byte) map[uint64]int {
	index := make(map[uint64]int, len(base)/blockSize+1)
	for off := 0; off+blockSize <= len(base); off += blockSize {
		h := hashBlock(base[off : off+blockSize])
		if _, seen := index[h]; !seen {
			index[h] = off
		}
	}

	return index
}

func hashBlock(b []byte) uint64 {
	var h uint64 = 14695981039346656037
	for _, c := range b {
		h = (h ^ uint64(c)) * 1099511628211
	}

	return h
}

// findMatch looks for a base run equal to the target bytes starting at i,
// returning the base offset and the length of the run.
func (d *DeltaDiff) findMatch(index map[uint64]int, i int) (off, n int) {
	h := hashBlock(d.target[i : i+blockSize])
	off, ok := index[h]
	if !ok {
		return 0, 0
	}

	for n < len(d.target)-i && off+n < len(d.base) &&
		d.base[off+n] == d.target[i+n] {
		n++
	}

	if n < blockSize {
		// hash collision, no real run here
		return 0, 0
	}

	return off, n
}

func (d *DeltaDiff) pushInsert(from, to int) {
	if to <= from {
		return
	}

	// Merge with a preceding insert whose end meets this run.
	if last := len(d.ops) - 1; last >= 0 && d.ops[last].kind == opInsert &&
		d.ops[last].begin+d.ops[last].len == from {
		d.ops[last].len += to - from
		return
	}

	d.ops = append(d.ops, deltaOp{kind: opInsert, begin: from, len: to - from})
}

func (d *DeltaDiff) pushCopy(off, n int) {
	// Merge into the preceding op if it was a copy whose end meets this run.
	if last := len(d.ops) - 1; last >= 0 && d.ops[last].kind == opCopy &&
		d.ops[last].begin+d.ops[last].len == off {
		d.ops[last].len += n
		return
	}

	d.ops = append(d.ops, deltaOp{kind: opCopy, begin: off, len: n})
}

// Encode serializes the plan as a Git delta stream: the base and target
// sizes as LEB128 varints, then one instruction per op, with copies split
// into chunks of at most 65535 bytes and literals split at 127 bytes.
func (d *DeltaDiff) Encode() []byte {
	buf := make([]byte, 0, len(d.ops)*8+16)

	buf = EncodeLEB128(buf, uint(len(d.base)))
	buf = EncodeLEB128(buf, uint(len(d.target)))

	for _, op := range d.ops {
		switch op.kind {
		case opCopy:
			start, length := op.begin, op.len
			for length > 0 {
				chunk := length
				if chunk > maxCopyLen {
					chunk = maxCopyLen
				}

				buf = append(buf, encodeCopyOperation(start, chunk)...)
				start += chunk
				length -= chunk
			}
		case opInsert:
			start, length := op.begin, op.len
			for length > 0 {
				chunk := length
				if chunk > maxInsertLen {
					chunk = maxInsertLen
				}

				buf = append(buf, byte(chunk))
				buf = append(buf, d.target[start:start+chunk]...)
				start += chunk
				length -= chunk
			}
		}
	}

	return buf
}

func encodeCopyOperation(offset, length int) []byte {
	code := 0x80
	var opcodes []byte

	if offset&0xff != 0 {
		opcodes = append(opcodes, byte(offset&0xff))
		code |= 0x01
	}

	if offset&0xff00 != 0 {
		opcodes = append(opcodes, byte((offset&0xff00)>>8))
		code |= 0x02
	}

	if offset&0xff0000 != 0 {
		opcodes = append(opcodes, byte((offset&0xff0000)>>16))
		code |= 0x04
	}

	if offset&0xff000000 != 0 {
		opcodes = append(opcodes, byte((offset&0xff000000)>>24))
		code |= 0x08
	}

	if length&0xff != 0 {
		opcodes = append(opcodes, byte(length&0xff))
		code |= 0x10
	}

	if length&0xff00 != 0 {
		opcodes = append(opcodes, byte((length&0xff00)>>8))
		code |= 0x20
	}

	if length&0xff0000 != 0 {
		opcodes = append(opcodes, byte((length&0xff0000)>>16))
		code |= 0x40
	}

	return append([]byte{byte(code)}, opcodes...)
}
