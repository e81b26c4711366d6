package revlist

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-git/go-gitwire/plumbing"
	"github.com/go-git/go-gitwire/plumbing/filemode"
	"github.com/go-git/go-gitwire/plumbing/hash"
	"github.com/go-git/go-gitwire/plumbing/object"
	"github.com/go-git/go-gitwire/plumbing/storer"
)

type repoFixture struct {
	repo *storer.Memory

	blobA, blobB, blobC plumbing.Hash
	tree1, tree2        plumbing.Hash
	commit1, commit2    plumbing.Hash
}

func sig(when int64) object.Signature {
	return object.Signature{
		Name:  "John Doe",
		Email: "john@example.com",
		When:  time.Unix(when, 0).In(time.FixedZone("", 0)),
	}
}

func addObject(t *testing.T, repo *storer.Memory, o object.Object) plumbing.Hash {
	t.Helper()
	payload, err := o.Encode()
	require.NoError(t, err)
	h, err := repo.AddObject(o.Type(), payload)
	require.NoError(t, err)
	return h
}

// newRepoFixture builds a two-commit history: commit1 with {a.txt, b.txt},
// commit2 on top changing a.txt.
func newRepoFixture(t *testing.T, f hash.Format) *repoFixture {
	t.Helper()
	fx := &repoFixture{repo: storer.NewMemory(f)}

	fx.blobA = addObject(t, fx.repo, &object.Blob{Data: []byte("hello")})
	fx.blobB = addObject(t, fx.repo, &object.Blob{Data: []byte("world")})
	fx.tree1 = addObject(t, fx.repo, &object.Tree{Entries: []object.TreeEntry{
		{Name: "a.txt", Mode: filemode.Regular, Hash: fx.blobA},
		{Name: "b.txt", Mode: filemode.Regular, Hash: fx.blobB},
	}})
	fx.commit1 = addObject(t, fx.repo, &object.Commit{
		TreeHash:  fx.tree1,
		Author:    sig(1000),
		Committer: sig(1000),
		Message:   "initial\n",
	})

	fx.blobC = addObject(t, fx.repo, &object.Blob{Data: []byte("hello v2")})
	fx.tree2 = addObject(t, fx.repo, &object.Tree{Entries: []object.TreeEntry{
		{Name: "a.txt", Mode: filemode.Regular, Hash: fx.blobC},
		{Name: "b.txt", Mode: filemode.Regular, Hash: fx.blobB},
	}})
	fx.commit2 = addObject(t, fx.repo, &object.Commit{
		TreeHash:     fx.tree2,
		ParentHashes: []plumbing.Hash{fx.commit1},
		Author:       sig(2000),
		Committer:    sig(2000),
		Message:      "update a\n",
	})

	return fx
}

func TestObjectsFullClosure(t *testing.T) {
	fx := newRepoFixture(t, hash.SHA1)

	got, err := Objects(context.Background(), fx.repo, []plumbing.Hash{fx.commit1}, nil)
	require.NoError(t, err)

	assert.ElementsMatch(t,
		[]plumbing.Hash{fx.commit1, fx.tree1, fx.blobA, fx.blobB}, got)

	// Commits come before trees, trees before their blobs.
	assert.Equal(t, fx.commit1, got[0])
	assert.Equal(t, fx.tree1, got[1])
}

func TestObjectsWalksParents(t *testing.T) {
	fx := newRepoFixture(t, hash.SHA1)

	got, err := Objects(context.Background(), fx.repo, []plumbing.Hash{fx.commit2}, nil)
	require.NoError(t, err)

	assert.ElementsMatch(t, []plumbing.Hash{
		fx.commit1, fx.commit2, fx.tree1, fx.tree2, fx.blobA, fx.blobB, fx.blobC,
	}, got)

	// Newest commit first.
	assert.Equal(t, fx.commit2, got[0])
	assert.Equal(t, fx.commit1, got[1])
}

func TestObjectsIncremental(t *testing.T) {
	fx := newRepoFixture(t, hash.SHA1)

	got, err := Objects(context.Background(), fx.repo,
		[]plumbing.Hash{fx.commit2}, []plumbing.Hash{fx.commit1})
	require.NoError(t, err)

	// Only what is new in commit2: the commit, its tree and the new blob.
	assert.ElementsMatch(t,
		[]plumbing.Hash{fx.commit2, fx.tree2, fx.blobC}, got)
}

func TestObjectsUnknownHavesIgnored(t *testing.T) {
	fx := newRepoFixture(t, hash.SHA1)
	bogus := plumbing.MustFromHex("4444444444444444444444444444444444444444")

	got, err := Objects(context.Background(), fx.repo,
		[]plumbing.Hash{fx.commit1}, []plumbing.Hash{bogus})
	require.NoError(t, err)
	assert.Len(t, got, 4)
}

func TestObjectsMissingWantFails(t *testing.T) {
	fx := newRepoFixture(t, hash.SHA1)
	bogus := plumbing.MustFromHex("4444444444444444444444444444444444444444")

	_, err := Objects(context.Background(), fx.repo, []plumbing.Hash{bogus}, nil)
	assert.ErrorIs(t, err, plumbing.ErrObjectNotFound)
}
