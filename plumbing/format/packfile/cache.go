package packfile

import (
	"fmt"
	"io"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/golang/groupcache/lru"

	"github.com/go-git/go-gitwire/plumbing"
)

// ErrMemoryBudgetExceeded is returned when the resolved-base retention grows
// past the memory limit and no spill filesystem is available.
var ErrMemoryBudgetExceeded = NewError("memory budget exceeded and no spill cache available")

// cacheObject is a reconstructed base object retained for delta resolution.
// Its payload may be spilled to disk; the metadata always stays in memory.
type cacheObject struct {
	Type     plumbing.ObjectType
	Hash     plumbing.Hash
	ChainLen int

	data []byte // nil while spilled
}

// resolvedCache retains reconstructed base objects up to a memory budget,
// spilling the least-recently-used payloads to a filesystem and rehydrating
// them on demand.
//
// Spilled entries use a compact tagged encoding: one type byte, the raw
// hash, then the payload.
type resolvedCache struct {
	mu sync.Mutex

	byOffset map[int64]*cacheObject
	byHash   map[plumbing.Hash]int64

	hot      *lru.Cache // offset -> *cacheObject currently holding its payload
	used     int64
	memLimit int64

	fs       billy.Filesystem
	spillErr error
}

func newResolvedCache(memLimit int64, fs billy.Filesystem) *resolvedCache {
	c := &resolvedCache{
		byOffset: make(map[int64]*cacheObject),
		byHash:   make(map[plumbing.Hash]int64),
		memLimit: memLimit,
		fs:       fs,
	}

	c.hot = &lru.Cache{
		OnEvicted: func(key lru.Key, value interface{}) {
			c.spill(value.(*cacheObject))
		},
	}

	return c
}

// Add registers a reconstructed base under its pack offset, evicting older
// payloads if the memory budget is exceeded.
func (c *resolvedCache) Add(offset int64, obj *cacheObject) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.byOffset[offset] = obj
	c.byHash[obj.Hash] = offset
	c.hot.Add(offset, obj)
	c.used += int64(len(obj.data))

	return c.enforceBudget()
}

func (c *resolvedCache) enforceBudget() error {
	if c.memLimit <= 0 {
		return nil
	}

	for c.used > c.memLimit && c.hot.Len() > 1 {
		c.hot.RemoveOldest()
		if c.spillErr != nil {
			return c.spillErr
		}
	}

	return nil
}

// spill writes the payload of obj to the spill filesystem and drops it from
// memory. Called by the LRU under c.mu.
func (c *resolvedCache) spill(obj *cacheObject) {
	if obj.data == nil {
		return
	}

	if c.fs == nil {
		c.spillErr = ErrMemoryBudgetExceeded
		return
	}

	f, err := c.fs.Create(obj.Hash.String())
	if err != nil {
		c.spillErr = fmt.Errorf("cannot create spill file: %w", err)
		return
	}

	_, err = f.Write(append([]byte{byte(obj.Type)}, obj.Hash.Bytes()...))
	if err == nil {
		_, err = f.Write(obj.data)
	}

	if cerr := f.Close(); err == nil {
		err = cerr
	}

	if err != nil {
		c.spillErr = fmt.Errorf("cannot write spill file: %w", err)
		return
	}

	c.used -= int64(len(obj.data))
	obj.data = nil
}

// GetByOffset returns the base stored at the given pack offset, rehydrating
// its payload from the spill cache if needed.
func (c *resolvedCache) GetByOffset(offset int64) (*cacheObject, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	obj, ok := c.byOffset[offset]
	if !ok {
		return nil, nil, nil
	}

	data, err := c.payload(offset, obj)
	return obj, data, err
}

// GetByHash returns the base with the given hash, rehydrating its payload
// from the spill cache if needed.
func (c *resolvedCache) GetByHash(h plumbing.Hash) (*cacheObject, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	offset, ok := c.byHash[h]
	if !ok {
		return nil, nil, nil
	}

	obj := c.byOffset[offset]
	data, err := c.payload(offset, obj)
	return obj, data, err
}

func (c *resolvedCache) payload(offset int64, obj *cacheObject) ([]byte, error) {
	if obj.data != nil {
		c.hot.Get(offset) // refresh recency
		return obj.data, nil
	}

	data, err := c.rehydrate(obj)
	if err != nil {
		return nil, err
	}

	obj.data = data
	c.hot.Add(offset, obj)
	c.used += int64(len(data))
	if err := c.enforceBudget(); err != nil {
		return nil, err
	}

	// The budget may have spilled this same object again; the returned
	// slice stays valid either way.
	return data, nil
}

func (c *resolvedCache) rehydrate(obj *cacheObject) ([]byte, error) {
	f, err := c.fs.Open(obj.Hash.String())
	if err != nil {
		return nil, fmt.Errorf("cannot open spill file: %w", err)
	}
	defer f.Close()

	header := make([]byte, 1+obj.Hash.Size())
	if _, err := io.ReadFull(f, header); err != nil {
		return nil, fmt.Errorf("corrupt spill file: %w", err)
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("cannot read spill file: %w", err)
	}

	return data, nil
}

// Clean removes every spilled entry from the filesystem.
func (c *resolvedCache) Clean() error {
	if c.fs == nil {
		return nil
	}

	return util.RemoveAll(c.fs, "/")
}
