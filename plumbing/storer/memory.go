package storer

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/go-git/go-gitwire/plumbing"
	"github.com/go-git/go-gitwire/plumbing/format/packfile"
	"github.com/go-git/go-gitwire/plumbing/hash"
)

// Memory is an in-memory RepositoryAccess implementation. It is the test
// double of the protocol packages, and a starting point for hosts.
type Memory struct {
	mu sync.RWMutex

	format  hash.Format
	hasher  *plumbing.Hasher
	objects map[plumbing.Hash]memoryObject
	refs    map[plumbing.ReferenceName]plumbing.Hash
	head    plumbing.ReferenceName

	defaultBranch    plumbing.ReferenceName
	postReceiveCalls int
}

type memoryObject struct {
	typ  plumbing.ObjectType
	data []byte
}

// NewMemory returns an empty in-memory repository using the given object
// format.
func NewMemory(f hash.Format) *Memory {
	return &Memory{
		format:  f,
		hasher:  plumbing.NewHasher(f),
		objects: make(map[plumbing.Hash]memoryObject),
		refs:    make(map[plumbing.ReferenceName]plumbing.Hash),
	}
}

// Format returns the object format of the repository.
func (m *Memory) Format() hash.Format {
	return m.format
}

// AddObject hashes and stores a canonical payload, returning its identifier.
func (m *Memory) AddObject(t plumbing.ObjectType, data []byte) (plumbing.Hash, error) {
	h, err := m.hasher.Compute(t, data)
	if err != nil {
		return plumbing.ZeroHashOf(m.format), err
	}

	m.mu.Lock()
	m.objects[h] = memoryObject{typ: t, data: data}
	m.mu.Unlock()
	return h, nil
}

// SetReference sets a reference to a hash, without old-value checking.
func (m *Memory) SetReference(name plumbing.ReferenceName, h plumbing.Hash) {
	m.mu.Lock()
	m.refs[name] = h
	m.mu.Unlock()
}

// SetHead makes HEAD point at the given reference.
func (m *Memory) SetHead(name plumbing.ReferenceName) {
	m.mu.Lock()
	m.head = name
	m.mu.Unlock()
}

// Reference returns the current value of a reference.
func (m *Memory) Reference(name plumbing.ReferenceName) (plumbing.Hash, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.refs[name]
	return h, ok
}

// PostReceiveCalls returns how many times the post-receive hook ran.
func (m *Memory) PostReceiveCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.postReceiveCalls
}

// DefaultBranch returns the reference marked as default branch, if any.
func (m *Memory) DefaultBranch() plumbing.ReferenceName {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultBranch
}

// ListRefs implements RepositoryAccess.
func (m *Memory) ListRefs(ctx context.Context) ([]plumbing.Reference, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var refs []plumbing.Reference
	if m.head != "" {
		if h, ok := m.refs[m.head]; ok {
			refs = append(refs, plumbing.Reference{Name: plumbing.HEAD, Hash: h})
		}
	}

	names := make([]plumbing.ReferenceName, 0, len(m.refs))
	for name := range m.refs {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

	for _, name := range names {
		refs = append(refs, plumbing.Reference{Name: name, Hash: m.refs[name]})
	}

	return refs, nil
}

// HasObject implements RepositoryAccess.
func (m *Memory) HasObject(ctx context.Context, h plumbing.Hash) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[h]
	return ok, nil
}

// ReadObjectRaw implements RepositoryAccess.
func (m *Memory) ReadObjectRaw(ctx context.Context, h plumbing.Hash) (plumbing.ObjectType, []byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.objects[h]
	if !ok {
		return plumbing.InvalidObject, nil, fmt.Errorf("%w: %s", plumbing.ErrObjectNotFound, h)
	}

	return o.typ, o.data, nil
}

// CommitExists implements RepositoryAccess.
func (m *Memory) CommitExists(ctx context.Context, h plumbing.Hash) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.objects[h]
	return ok && o.typ == plumbing.CommitObject, nil
}

// WriteObjects implements RepositoryAccess.
func (m *Memory) WriteObjects(ctx context.Context, commits, trees, blobs []packfile.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, group := range [][]packfile.Entry{commits, trees, blobs} {
		for _, e := range group {
			m.objects[e.Hash] = memoryObject{typ: e.Type, data: e.Data}
		}
	}

	return nil
}

// UpdateReference implements RepositoryAccess. Updates and deletions check
// the old value when one is provided.
func (m *Memory) UpdateReference(ctx context.Context, name plumbing.ReferenceName, old *plumbing.Hash, new plumbing.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, exists := m.refs[name]
	if old != nil {
		if !exists {
			return fmt.Errorf("%w: %s does not exist", ErrRefUpdateRejected, name)
		}
		if current != *old {
			return fmt.Errorf("%w: %s moved since last fetch", ErrRefUpdateRejected, name)
		}
	}

	if new.IsZero() {
		delete(m.refs, name)
		return nil
	}

	if old == nil && exists {
		return fmt.Errorf("%w: %s already exists", ErrRefUpdateRejected, name)
	}

	m.refs[name] = new
	if name.IsBranch() && m.defaultBranch == "" {
		m.defaultBranch = name
		m.head = name
	}

	return nil
}

// HasDefaultBranch implements RepositoryAccess.
func (m *Memory) HasDefaultBranch(ctx context.Context) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultBranch != "", nil
}

// PostReceiveHook implements RepositoryAccess.
func (m *Memory) PostReceiveHook(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.postReceiveCalls++
	return nil
}
