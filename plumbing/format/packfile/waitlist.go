package packfile

import (
	"github.com/go-git/go-gitwire/plumbing"
)

// waitlist parks delta entries whose base has not been reconstructed yet,
// keyed by the base's pack offset or by its hash. Entries are removed as
// soon as the base becomes available.
type waitlist struct {
	byOffset map[int64][]*ObjectHeader
	byHash   map[plumbing.Hash][]*ObjectHeader
}

func newWaitlist() *waitlist {
	return &waitlist{
		byOffset: make(map[int64][]*ObjectHeader),
		byHash:   make(map[plumbing.Hash][]*ObjectHeader),
	}
}

func (w *waitlist) insertOffset(offset int64, oh *ObjectHeader) {
	w.byOffset[offset] = append(w.byOffset[offset], oh)
}

func (w *waitlist) insertRef(h plumbing.Hash, oh *ObjectHeader) {
	w.byHash[h] = append(w.byHash[h], oh)
}

// take returns and removes every delta parked on the given offset or hash.
func (w *waitlist) take(offset int64, h plumbing.Hash) []*ObjectHeader {
	res := w.byOffset[offset]
	delete(w.byOffset, offset)

	if parked, ok := w.byHash[h]; ok {
		res = append(res, parked...)
		delete(w.byHash, h)
	}

	return res
}

func (w *waitlist) empty() bool {
	return len(w.byOffset) == 0 && len(w.byHash) == 0
}

func (w *waitlist) size() int {
	n := 0
	for _, v := range w.byOffset {
		n += len(v)
	}
	for _, v := range w.byHash {
		n += len(v)
	}
	return n
}
