package store

import (
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
)

// PathEdit sets or replaces the blob at a slash-separated path within a
// tree, used by internal/txn's callers (internal/app's commit path) to
// build a layer's new tree from its staged changes without having to
// walk and rebuild the hierarchy by hand for every commit.
type PathEdit struct {
	Path string
	Hash plumbing.Hash
	Mode filemode.FileMode
}

// ApplyEdits rebuilds base (the zero hash for "no prior tree") with every
// edit applied, creating intermediate subtrees as needed and reusing
// every untouched subtree from base unchanged.
func (s *Store) ApplyEdits(base plumbing.Hash, edits []PathEdit) (plumbing.Hash, error) {
	root, err := s.loadMutableTree(base)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	for _, e := range edits {
		segs := splitPath(e.Path)
		if len(segs) == 0 {
			continue
		}
		root.set(segs, e.Hash, e.Mode)
	}
	return root.write(s)
}

// mutableTree is an in-memory, lazily-loaded mirror of a tree object,
// edited in place and re-encoded bottom-up by write.
type mutableTree struct {
	children map[string]*mutableTree // non-nil for directory children
	blobs    map[string]Entry        // non-nil for file children
}

func newMutableTree() *mutableTree {
	return &mutableTree{children: make(map[string]*mutableTree), blobs: make(map[string]Entry)}
}

func (s *Store) loadMutableTree(hash plumbing.Hash) (*mutableTree, error) {
	t := newMutableTree()
	if hash == plumbing.ZeroHash {
		return t, nil
	}
	entries, err := s.ReadTree(hash)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Kind == TreeEntry {
			child, err := s.loadMutableTree(e.Hash)
			if err != nil {
				return nil, err
			}
			t.children[e.Name] = child
		} else {
			t.blobs[e.Name] = e
		}
	}
	return t, nil
}

func (t *mutableTree) set(segs []string, hash plumbing.Hash, mode filemode.FileMode) {
	name := segs[0]
	if len(segs) == 1 {
		delete(t.children, name)
		t.blobs[name] = Entry{Name: name, Mode: mode, Kind: BlobEntry, Hash: hash}
		return
	}
	child, ok := t.children[name]
	if !ok {
		child = newMutableTree()
		t.children[name] = child
		delete(t.blobs, name)
	}
	child.set(segs[1:], hash, mode)
}

func (t *mutableTree) write(s *Store) (plumbing.Hash, error) {
	var entries []Entry
	for name, child := range t.children {
		hash, err := child.write(s)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		entries = append(entries, Entry{Name: name, Kind: TreeEntry, Hash: hash})
	}
	for name, e := range t.blobs {
		entries = append(entries, Entry{Name: name, Mode: e.Mode, Kind: BlobEntry, Hash: e.Hash})
	}
	return s.WriteTree(entries)
}
