// Package storer defines the interfaces the host program implements for the
// protocol core: object-graph access, reference updates and authentication.
// The core never reads or writes repository files directly; every object
// retrieval, existence check, ref read, ref write and object persistence
// goes through these collaborators.
package storer

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-git/go-gitwire/plumbing"
	"github.com/go-git/go-gitwire/plumbing/format/packfile"
	"github.com/go-git/go-gitwire/plumbing/object"
)

var (
	// ErrRefUpdateRejected is returned by UpdateReference implementations
	// when the update cannot be applied, e.g. on an old-hash mismatch.
	ErrRefUpdateRejected = errors.New("reference update rejected")
)

// RepositoryAccess is the object-graph access surface the core consumes
// from the host repository.
type RepositoryAccess interface {
	// ListRefs returns the advertised references, including HEAD if
	// present.
	ListRefs(ctx context.Context) ([]plumbing.Reference, error)

	// HasObject reports whether an object exists.
	HasObject(ctx context.Context, h plumbing.Hash) (bool, error)

	// ReadObjectRaw returns the type and canonical payload of an object,
	// for pack generation. A missing object yields
	// plumbing.ErrObjectNotFound.
	ReadObjectRaw(ctx context.Context, h plumbing.Hash) (plumbing.ObjectType, []byte, error)

	// CommitExists reports whether a commit exists; used during
	// negotiation.
	CommitExists(ctx context.Context, h plumbing.Hash) (bool, error)

	// WriteObjects persists the objects of a decoded pack, grouped by
	// type. Called after a successful pack decode, before any reference is
	// touched.
	WriteObjects(ctx context.Context, commits, trees, blobs []packfile.Entry) error

	// UpdateReference applies one reference update. A nil old means
	// creation; a zero new means deletion.
	UpdateReference(ctx context.Context, name plumbing.ReferenceName, old *plumbing.Hash, new plumbing.Hash) error

	// HasDefaultBranch reports whether the repository already has a
	// default branch. Consulted once per push.
	HasDefaultBranch(ctx context.Context) (bool, error)

	// PostReceiveHook runs after all reference updates of a push have been
	// processed, before the status report is returned.
	PostReceiveHook(ctx context.Context) error
}

// TypedReader is an optional interface hosts may implement to serve typed
// objects directly. When absent, the typed Read helpers fall back to
// ReadObjectRaw.
type TypedReader interface {
	ReadBlob(ctx context.Context, h plumbing.Hash) (*object.Blob, error)
	ReadTree(ctx context.Context, h plumbing.Hash) (*object.Tree, error)
	ReadCommit(ctx context.Context, h plumbing.Hash) (*object.Commit, error)
}

// ReadCommit returns the commit with the given hash, using TypedReader when
// the host provides it.
func ReadCommit(ctx context.Context, s RepositoryAccess, h plumbing.Hash) (*object.Commit, error) {
	if tr, ok := s.(TypedReader); ok {
		return tr.ReadCommit(ctx, h)
	}

	o, err := readTyped(ctx, s, h, plumbing.CommitObject)
	if err != nil {
		return nil, err
	}
	return o.(*object.Commit), nil
}

// ReadTree returns the tree with the given hash, using TypedReader when the
// host provides it.
func ReadTree(ctx context.Context, s RepositoryAccess, h plumbing.Hash) (*object.Tree, error) {
	if tr, ok := s.(TypedReader); ok {
		return tr.ReadTree(ctx, h)
	}

	o, err := readTyped(ctx, s, h, plumbing.TreeObject)
	if err != nil {
		return nil, err
	}
	return o.(*object.Tree), nil
}

// ReadBlob returns the blob with the given hash, using TypedReader when the
// host provides it.
func ReadBlob(ctx context.Context, s RepositoryAccess, h plumbing.Hash) (*object.Blob, error) {
	if tr, ok := s.(TypedReader); ok {
		return tr.ReadBlob(ctx, h)
	}

	o, err := readTyped(ctx, s, h, plumbing.BlobObject)
	if err != nil {
		return nil, err
	}
	return o.(*object.Blob), nil
}

func readTyped(ctx context.Context, s RepositoryAccess, h plumbing.Hash, want plumbing.ObjectType) (object.Object, error) {
	t, payload, err := s.ReadObjectRaw(ctx, h)
	if err != nil {
		return nil, err
	}

	if t != want {
		return nil, fmt.Errorf("%w: %s is a %s", plumbing.ErrInvalidType, h, t)
	}

	return object.Parse(t, payload)
}
