// Package revlist implements the reachability walk used to generate packs:
// all the objects reachable from a set of wanted commits, minus everything
// reachable from the commits the peer already has. Roughly equivalent to the
// git-rev-list command.
package revlist

import (
	"context"

	"github.com/emirpasic/gods/trees/binaryheap"

	"github.com/go-git/go-gitwire/plumbing"
	"github.com/go-git/go-gitwire/plumbing/filemode"
	"github.com/go-git/go-gitwire/plumbing/storer"
)

// Objects returns the hashes of all the objects reachable from the wants
// and not reachable from the haves, in a stable order: commits first, then,
// commit by commit, the trees and blobs of each commit's closure.
//
// Every want must exist in the host; a missing object fails the walk with
// plumbing.ErrObjectNotFound. Haves that do not exist locally are ignored.
//
// The walk is iterative throughout, so arbitrarily deep histories do not
// grow the stack.
func Objects(
	ctx context.Context,
	s storer.RepositoryAccess,
	wants, haves []plumbing.Hash,
) ([]plumbing.Hash, error) {
	seen, err := reachableFromHaves(ctx, s, haves)
	if err != nil {
		return nil, err
	}

	commits, err := walkCommits(ctx, s, wants, seen)
	if err != nil {
		return nil, err
	}

	result := make([]plumbing.Hash, 0, len(commits))
	for _, c := range commits {
		result = append(result, c.hash)
	}

	for _, c := range commits {
		trees, blobs, err := walkTree(ctx, s, c.treeHash, seen)
		if err != nil {
			return nil, err
		}

		result = append(result, trees...)
		result = append(result, blobs...)
	}

	return result, nil
}

type commitNode struct {
	hash     plumbing.Hash
	treeHash plumbing.Hash
	when     int64
}

// commitTimeComparator orders commits newest first, the way git walks
// history.
func commitTimeComparator(a, b interface{}) int {
	ca, cb := a.(*commitNode), b.(*commitNode)
	switch {
	case ca.when > cb.when:
		return -1
	case ca.when < cb.when:
		return 1
	default:
		return 0
	}
}

// walkCommits walks commit parents from each want with an explicit queue,
// skipping anything already in seen, and returns the visited commits
// ordered by committer time, newest first. Visited commits are added to
// seen.
func walkCommits(
	ctx context.Context,
	s storer.RepositoryAccess,
	wants []plumbing.Hash,
	seen map[plumbing.Hash]bool,
) ([]*commitNode, error) {
	heap := binaryheap.NewWith(commitTimeComparator)
	queued := make(map[plumbing.Hash]bool)

	pending := append([]plumbing.Hash{}, wants...)
	for len(pending) > 0 {
		h := pending[0]
		pending = pending[1:]

		if queued[h] || seen[h] {
			continue
		}
		queued[h] = true

		c, err := storer.ReadCommit(ctx, s, h)
		if err != nil {
			return nil, err
		}

		heap.Push(&commitNode{
			hash:     h,
			treeHash: c.TreeHash,
			when:     c.Committer.When.Unix(),
		})

		pending = append(pending, c.ParentHashes...)
	}

	var commits []*commitNode
	for {
		v, ok := heap.Pop()
		if !ok {
			break
		}

		node := v.(*commitNode)
		seen[node.hash] = true
		commits = append(commits, node)
	}

	return commits, nil
}

// walkTree enumerates the subtrees and blobs of a root tree with an explicit
// stack, skipping and recording entries through seen. Subtrees come before
// the blobs they contain.
func walkTree(
	ctx context.Context,
	s storer.RepositoryAccess,
	root plumbing.Hash,
	seen map[plumbing.Hash]bool,
) (trees, blobs []plumbing.Hash, err error) {
	if seen[root] {
		return nil, nil, nil
	}

	stack := []plumbing.Hash{root}
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if seen[h] {
			continue
		}
		seen[h] = true
		trees = append(trees, h)

		tree, err := storer.ReadTree(ctx, s, h)
		if err != nil {
			return nil, nil, err
		}

		for _, e := range tree.Entries {
			switch e.Mode {
			case filemode.Dir:
				stack = append(stack, e.Hash)
			case filemode.Submodule:
				// Submodule commits live in another repository; they are
				// never part of this pack.
			default:
				if !seen[e.Hash] {
					seen[e.Hash] = true
					blobs = append(blobs, e.Hash)
				}
			}
		}
	}

	return trees, blobs, nil
}

// reachableFromHaves computes the full object closure of the haves. Haves
// unknown to the host are skipped.
func reachableFromHaves(
	ctx context.Context,
	s storer.RepositoryAccess,
	haves []plumbing.Hash,
) (map[plumbing.Hash]bool, error) {
	seen := make(map[plumbing.Hash]bool)

	pending := make([]plumbing.Hash, 0, len(haves))
	for _, h := range haves {
		ok, err := s.CommitExists(ctx, h)
		if err != nil {
			return nil, err
		}
		if ok {
			pending = append(pending, h)
		}
	}

	for len(pending) > 0 {
		h := pending[0]
		pending = pending[1:]

		if seen[h] {
			continue
		}
		seen[h] = true

		c, err := storer.ReadCommit(ctx, s, h)
		if err != nil {
			return nil, err
		}

		pending = append(pending, c.ParentHashes...)

		if _, _, err := walkTree(ctx, s, c.TreeHash, seen); err != nil {
			return nil, err
		}
	}

	return seen, nil
}
