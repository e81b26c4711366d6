package packfile

import (
	"context"
	"io"
	"runtime"
	"sync"

	"github.com/go-git/go-billy/v5"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/go-git/go-gitwire/plumbing"
	"github.com/go-git/go-gitwire/plumbing/hash"
)

var (
	// ErrReferenceDeltaNotFound is returned when a delta's base never shows
	// up in the pack.
	ErrReferenceDeltaNotFound = NewError("reference delta not found")
)

// OnEntryFunc is the callback invoked for every fully reconstructed entry,
// in resolution order. It is never invoked concurrently.
type OnEntryFunc func(Entry, EntryMeta) error

// OnTrailerFunc is the callback invoked once with the verified trailer hash.
type OnTrailerFunc func(plumbing.Hash) error

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithObjectFormat sets the object format used to compute identifiers and
// to size ref-delta base references. Defaults to SHA1.
func WithObjectFormat(f hash.Format) DecoderOption {
	return func(d *Decoder) { d.format = f }
}

// WithEntryObserver sets the callback invoked per reconstructed entry.
func WithEntryObserver(fn OnEntryFunc) DecoderOption {
	return func(d *Decoder) { d.onEntry = fn }
}

// WithTrailerObserver sets the callback invoked with the trailer hash.
func WithTrailerObserver(fn OnTrailerFunc) DecoderOption {
	return func(d *Decoder) { d.onTrailer = fn }
}

// WithWorkers bounds the parallelism used for delta application. Zero means
// the number of available CPUs; one yields fully single-threaded operation.
func WithWorkers(n int) DecoderOption {
	return func(d *Decoder) { d.workers = n }
}

// WithMemLimit caps the heap held by resolved bases; exceeding it spills the
// least-recently-used bases to the spill filesystem.
func WithMemLimit(bytes int64) DecoderOption {
	return func(d *Decoder) { d.memLimit = bytes }
}

// WithSpillCache sets the filesystem used to spill resolved bases once the
// memory limit is exceeded. When clean is true the cache content is removed
// at the end of the decode.
func WithSpillCache(fs billy.Filesystem, clean bool) DecoderOption {
	return func(d *Decoder) {
		d.cacheFS = fs
		d.cleanCache = clean
	}
}

// Decoder reads a packfile from a byte stream, reconstructs every entry -
// resolving ref and offset deltas against partially decoded bases - and
// emits each entry through a callback, in resolution order.
//
// Delta application runs on a bounded worker pool; an in-order base emits
// immediately, a delta emits when its chain bottoms out and application
// completes. Memory held by resolved bases is bounded by the memory limit.
type Decoder struct {
	scanner *Scanner

	format     hash.Format
	onEntry    OnEntryFunc
	onTrailer  OnTrailerFunc
	workers    int
	memLimit   int64
	cacheFS    billy.Filesystem
	cleanCache bool

	hasher   *plumbing.Hasher
	resolved *resolvedCache
	waiting  *waitlist

	// depMu guards the resolved/waitlist pair so that base registration and
	// delta parking are atomic with respect to each other.
	depMu sync.Mutex

	// emitMu is the sequencer lock: exactly one entry callback at a time.
	emitMu sync.Mutex

	g   *errgroup.Group
	sem *semaphore.Weighted
	ctx context.Context
}

// NewDecoder returns a Decoder reading a packfile from r.
func NewDecoder(r io.Reader, opts ...DecoderOption) *Decoder {
	d := &Decoder{
		format:  hash.SHA1,
		onEntry: func(Entry, EntryMeta) error { return nil },
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.workers <= 0 {
		d.workers = runtime.NumCPU()
	}

	d.scanner = NewScanner(r, d.format)
	d.hasher = plumbing.NewHasher(d.format)
	d.resolved = newResolvedCache(d.memLimit, d.cacheFS)
	d.waiting = newWaitlist()

	return d
}

// Decode consumes the whole packfile, returning the verified trailer hash.
//
// Any malformed input, failed delta application, integrity violation or
// memory budget overrun without spill is fatal for the pack. Callbacks
// delivered before a trailer mismatch are still delivered.
func (d *Decoder) Decode(ctx context.Context) (h plumbing.Hash, err error) {
	if d.cleanCache && d.cacheFS != nil {
		defer func() {
			if cerr := d.resolved.Clean(); cerr != nil && err == nil {
				err = cerr
			}
		}()
	}

	if _, _, err := d.scanner.Header(); err != nil {
		return plumbing.ZeroHashOf(d.format), err
	}

	g, gctx := errgroup.WithContext(ctx)
	d.g = g
	d.ctx = gctx
	d.sem = semaphore.NewWeighted(int64(d.workers))

	for {
		oh, err := d.scanner.NextEntry()
		if err == io.EOF {
			break
		}
		if err != nil {
			d.g.Wait() //nolint:errcheck
			return plumbing.ZeroHashOf(d.format), err
		}

		if oh.IsDelta() {
			d.dispatchDelta(oh)
		} else if err := d.processBase(oh); err != nil {
			d.g.Wait() //nolint:errcheck
			return plumbing.ZeroHashOf(d.format), err
		}

		if err := gctx.Err(); err != nil {
			d.g.Wait() //nolint:errcheck
			return plumbing.ZeroHashOf(d.format), err
		}
	}

	if err := d.g.Wait(); err != nil {
		return plumbing.ZeroHashOf(d.format), err
	}

	d.depMu.Lock()
	pending := d.waiting.size()
	d.depMu.Unlock()
	if pending > 0 {
		return plumbing.ZeroHashOf(d.format),
			ErrReferenceDeltaNotFound.AddDetails("%d deltas left unresolved", pending)
	}

	checksum, err := d.scanner.Trailer()
	if err != nil {
		return plumbing.ZeroHashOf(d.format), err
	}

	if d.onTrailer != nil {
		if err := d.onTrailer(checksum); err != nil {
			return checksum, err
		}
	}

	return checksum, nil
}

// processBase hashes a non-delta entry, emits it, registers it as a
// resolvable base and schedules any deltas parked on it.
func (d *Decoder) processBase(oh *ObjectHeader) error {
	h, err := d.hasher.Compute(oh.Type, oh.Content)
	if err != nil {
		return err
	}

	obj := &cacheObject{
		Type: oh.Type,
		Hash: h,
		data: oh.Content,
	}

	if err := d.emit(oh, obj); err != nil {
		return err
	}

	return d.registerBase(oh.Offset, obj)
}

// registerBase makes a reconstructed object available as a delta base and
// moves its waiters to the worker pool.
func (d *Decoder) registerBase(offset int64, obj *cacheObject) error {
	d.depMu.Lock()
	if err := d.resolved.Add(offset, obj); err != nil {
		d.depMu.Unlock()
		return err
	}
	waiters := d.waiting.take(offset, obj.Hash)
	d.depMu.Unlock()

	for _, w := range waiters {
		d.scheduleApply(w)
	}

	return nil
}

// dispatchDelta schedules a delta for application if its base is already
// resolved, or parks it on the appropriate waitlist otherwise.
func (d *Decoder) dispatchDelta(oh *ObjectHeader) {
	d.depMu.Lock()
	var ready bool
	if oh.Type == plumbing.OFSDeltaObject {
		if _, ok := d.resolved.byOffset[oh.OffsetReference]; ok {
			ready = true
		} else {
			d.waiting.insertOffset(oh.OffsetReference, oh)
		}
	} else {
		if _, ok := d.resolved.byHash[oh.Reference]; ok {
			ready = true
		} else {
			d.waiting.insertRef(oh.Reference, oh)
		}
	}
	d.depMu.Unlock()

	if ready {
		d.scheduleApply(oh)
	}
}

func (d *Decoder) scheduleApply(oh *ObjectHeader) {
	d.g.Go(func() error {
		if err := d.sem.Acquire(d.ctx, 1); err != nil {
			return err
		}
		defer d.sem.Release(1)

		return d.applyDelta(oh)
	})
}

// applyDelta reconstructs a delta entry from its base, emits it and releases
// any deltas waiting on the result.
func (d *Decoder) applyDelta(oh *ObjectHeader) error {
	var base *cacheObject
	var baseData []byte
	var err error

	if oh.Type == plumbing.OFSDeltaObject {
		base, baseData, err = d.resolved.GetByOffset(oh.OffsetReference)
	} else {
		base, baseData, err = d.resolved.GetByHash(oh.Reference)
	}
	if err != nil {
		return err
	}
	if base == nil {
		return ErrReferenceDeltaNotFound.AddDetails("base for delta at %d", oh.Offset)
	}

	data, err := PatchDelta(baseData, oh.Content)
	if err != nil {
		return err
	}

	h, err := d.hasher.Compute(base.Type, data)
	if err != nil {
		return err
	}

	obj := &cacheObject{
		Type:     base.Type,
		Hash:     h,
		ChainLen: base.ChainLen + 1,
		data:     data,
	}

	if err := d.emit(oh, obj); err != nil {
		return err
	}

	return d.registerBase(oh.Offset, obj)
}

// emit invokes the entry callback under the sequencer lock.
func (d *Decoder) emit(oh *ObjectHeader, obj *cacheObject) error {
	d.emitMu.Lock()
	defer d.emitMu.Unlock()

	return d.onEntry(
		Entry{
			Type:     obj.Type,
			Data:     obj.data,
			Hash:     obj.Hash,
			ChainLen: obj.ChainLen,
		},
		EntryMeta{
			Offset:  oh.Offset,
			CRC32:   oh.Crc32,
			IsDelta: oh.IsDelta(),
		},
	)
}
