package store

import (
	"bytes"
	"io"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/dabstractor/jin/internal/jinerr"
)

// EntryKind distinguishes a tree entry's object type, per spec §4.A
// ("Tree entries are { name, mode_bits, kind ∈ {blob, tree}, hash }").
type EntryKind int

const (
	BlobEntry EntryKind = iota
	TreeEntry
)

// Entry is one child of a tree object. Executable and regular-file
// distinction is carried in Mode; symbolic links are rejected upstream
// (spec §1 non-goals, §4.D stage-time constraints) so filemode.Symlink
// is never written by this package.
type Entry struct {
	Name string
	Mode filemode.FileMode
	Kind EntryKind
	Hash plumbing.Hash
}

// Signature identifies the author/committer of a commit.
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

func (s Signature) toObject() object.Signature {
	return object.Signature{Name: s.Name, Email: s.Email, When: s.When}
}

// WriteBlob stores raw content and returns its content hash.
func (s *Store) WriteBlob(data []byte) (plumbing.Hash, error) {
	obj := s.storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	w, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, jinerr.Wrap(err)
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return plumbing.ZeroHash, jinerr.Wrap(err)
	}
	if err := w.Close(); err != nil {
		return plumbing.ZeroHash, jinerr.Wrap(err)
	}
	hash, err := s.storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, jinerr.Wrap(err)
	}
	return hash, nil
}

// ReadBlob reads the raw content addressed by hash.
func (s *Store) ReadBlob(hash plumbing.Hash) ([]byte, error) {
	obj, err := s.storer.EncodedObject(plumbing.BlobObject, hash)
	if err != nil {
		if err == plumbing.ErrObjectNotFound {
			return nil, jinerr.NotFoundf("blob", hash.String())
		}
		return nil, jinerr.Wrap(err)
	}
	r, err := obj.Reader()
	if err != nil {
		return nil, jinerr.Wrap(err)
	}
	defer r.Close()
	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, r); err != nil {
		return nil, jinerr.Wrap(err)
	}
	return buf.Bytes(), nil
}

// EmptyBlobHash is the well-known hash of a zero-byte blob, used as the
// tombstone convention's payload (SPEC_FULL.md, "Tombstone convention").
func (s *Store) EmptyBlobHash() (plumbing.Hash, error) {
	return s.WriteBlob(nil)
}

// WriteTree stores a tree object from its entries and returns its hash.
// Entries need not be pre-sorted; WriteTree sorts them the way git
// requires for a canonical tree encoding.
func (s *Store) WriteTree(entries []Entry) (plumbing.Hash, error) {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sortTreeEntries(sorted)

	tree := &object.Tree{}
	for _, e := range sorted {
		mode := e.Mode
		if mode == 0 {
			if e.Kind == TreeEntry {
				mode = filemode.Dir
			} else {
				mode = filemode.Regular
			}
		}
		tree.Entries = append(tree.Entries, object.TreeEntry{
			Name: e.Name,
			Mode: mode,
			Hash: e.Hash,
		})
	}

	obj := s.storer.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		return plumbing.ZeroHash, jinerr.Wrap(err)
	}
	hash, err := s.storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, jinerr.Wrap(err)
	}
	return hash, nil
}

// ReadTree reads the entries of a tree object.
func (s *Store) ReadTree(hash plumbing.Hash) ([]Entry, error) {
	obj, err := s.storer.EncodedObject(plumbing.TreeObject, hash)
	if err != nil {
		if err == plumbing.ErrObjectNotFound {
			return nil, jinerr.NotFoundf("tree", hash.String())
		}
		return nil, jinerr.Wrap(err)
	}
	tree := &object.Tree{}
	if err := tree.Decode(obj); err != nil {
		return nil, jinerr.Wrap(err)
	}

	entries := make([]Entry, 0, len(tree.Entries))
	for _, te := range tree.Entries {
		kind := BlobEntry
		if te.Mode == filemode.Dir {
			kind = TreeEntry
		}
		entries = append(entries, Entry{Name: te.Name, Mode: te.Mode, Kind: kind, Hash: te.Hash})
	}
	return entries, nil
}

// GetEntry resolves a slash-separated path within a tree, descending
// through subtrees as needed.
func (s *Store) GetEntry(treeHash plumbing.Hash, path string) (Entry, error) {
	segs := splitPath(path)
	if len(segs) == 0 {
		return Entry{}, jinerr.Validationf("empty path")
	}

	cur := treeHash
	for i, seg := range segs {
		entries, err := s.ReadTree(cur)
		if err != nil {
			return Entry{}, err
		}
		var found *Entry
		for j := range entries {
			if entries[j].Name == seg {
				found = &entries[j]
				break
			}
		}
		if found == nil {
			return Entry{}, jinerr.NotFoundf("path", path)
		}
		if i == len(segs)-1 {
			return *found, nil
		}
		if found.Kind != TreeEntry {
			return Entry{}, jinerr.NotFoundf("path", path)
		}
		cur = found.Hash
	}
	return Entry{}, jinerr.NotFoundf("path", path)
}

// Commit creates a commit object over tree with the given parents,
// signature, message, and manifest, and returns its hash. It does not
// advance any reference; callers (internal/txn) do that via SetRef under
// CAS (spec §4.C).
func (s *Store) Commit(tree plumbing.Hash, parents []plumbing.Hash, sig Signature, message string, manifest Manifest) (plumbing.Hash, error) {
	full := message + manifest.encodeTrailer()

	c := &object.Commit{
		Author:       sig.toObject(),
		Committer:    sig.toObject(),
		Message:      full,
		TreeHash:     tree,
		ParentHashes: parents,
	}

	obj := s.storer.NewEncodedObject()
	if err := c.Encode(obj); err != nil {
		return plumbing.ZeroHash, jinerr.Wrap(err)
	}
	hash, err := s.storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, jinerr.Wrap(err)
	}
	return hash, nil
}

// ReadCommit reads a commit object's fields, including its decoded
// manifest trailer.
func (s *Store) ReadCommit(hash plumbing.Hash) (CommitInfo, error) {
	obj, err := s.storer.EncodedObject(plumbing.CommitObject, hash)
	if err != nil {
		if err == plumbing.ErrObjectNotFound {
			return CommitInfo{}, jinerr.NotFoundf("commit", hash.String())
		}
		return CommitInfo{}, jinerr.Wrap(err)
	}
	c := &object.Commit{}
	if err := c.Decode(obj); err != nil {
		return CommitInfo{}, jinerr.Wrap(err)
	}

	msg, manifest := decodeTrailer(c.Message)
	return CommitInfo{
		Hash:      hash,
		Tree:      c.TreeHash,
		Parents:   c.ParentHashes,
		Author:    Signature{Name: c.Author.Name, Email: c.Author.Email, When: c.Author.When},
		Committer: Signature{Name: c.Committer.Name, Email: c.Committer.Email, When: c.Committer.When},
		Message:   msg,
		Manifest:  manifest,
	}, nil
}

// CommitInfo is the decoded, read-back form of a commit object.
type CommitInfo struct {
	Hash      plumbing.Hash
	Tree      plumbing.Hash
	Parents   []plumbing.Hash
	Author    Signature
	Committer Signature
	Message   string
	Manifest  Manifest
}

// MergeBase returns the nearest common ancestor commit of a and b by
// walking each side's ancestry, used by internal/merge to decide
// whether a text merge has a 3-way common base available (spec §4.E
// step 3). Reports found=false if the two commits share no ancestor
// (e.g. two independently created layers), in which case the caller
// falls back to a 2-way merge.
func (s *Store) MergeBase(a, b plumbing.Hash) (base plumbing.Hash, found bool, err error) {
	aAncestors, err := s.ancestorSet(a)
	if err != nil {
		return plumbing.ZeroHash, false, err
	}
	if aAncestors[b] {
		return b, true, nil
	}

	visited := make(map[plumbing.Hash]bool)
	queue := []plumbing.Hash{b}
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		if visited[h] {
			continue
		}
		visited[h] = true
		if aAncestors[h] {
			return h, true, nil
		}
		info, err := s.ReadCommit(h)
		if err != nil {
			continue
		}
		queue = append(queue, info.Parents...)
	}
	return plumbing.ZeroHash, false, nil
}

// IsAncestor reports whether ancestor is reachable by walking tip's parent
// chain (including tip itself), used by internal/workspace's
// detached-state check (spec §4.F: "verify that the workspace's
// last-known merged root commit ... is reachable from current layer
// tips").
func (s *Store) IsAncestor(ancestor, tip plumbing.Hash) (bool, error) {
	set, err := s.ancestorSet(tip)
	if err != nil {
		return false, err
	}
	return set[ancestor], nil
}

func (s *Store) ancestorSet(start plumbing.Hash) (map[plumbing.Hash]bool, error) {
	set := make(map[plumbing.Hash]bool)
	queue := []plumbing.Hash{start}
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		if set[h] {
			continue
		}
		set[h] = true
		info, err := s.ReadCommit(h)
		if err != nil {
			continue
		}
		queue = append(queue, info.Parents...)
	}
	return set, nil
}

// WalkFiles recursively lists every blob entry reachable from tree,
// keyed by its full slash-separated path, for callers (internal/merge)
// that need to diff or merge whole layer trees rather than resolve one
// path at a time.
func (s *Store) WalkFiles(treeHash plumbing.Hash) (map[string]Entry, error) {
	out := make(map[string]Entry)
	if err := s.walkFiles(treeHash, "", out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) walkFiles(treeHash plumbing.Hash, prefix string, out map[string]Entry) error {
	entries, err := s.ReadTree(treeHash)
	if err != nil {
		return err
	}
	for _, e := range entries {
		full := e.Name
		if prefix != "" {
			full = prefix + "/" + e.Name
		}
		if e.Kind == TreeEntry {
			if err := s.walkFiles(e.Hash, full, out); err != nil {
				return err
			}
			continue
		}
		out[full] = e
	}
	return nil
}

func splitPath(path string) []string {
	var segs []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '/' {
			if i > start {
				segs = append(segs, path[start:i])
			}
			start = i + 1
		}
	}
	if start < len(path) {
		segs = append(segs, path[start:])
	}
	return segs
}

func sortTreeEntries(entries []Entry) {
	// Insertion sort: tree sizes are small (one file-tree layer's worth of
	// configuration files), and this avoids pulling in sort for a
	// handful of elements while keeping git's required name ordering.
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && treeEntryName(entries[j-1]) > treeEntryName(entries[j]); j-- {
			entries[j-1], entries[j] = entries[j], entries[j-1]
		}
	}
}

func treeEntryName(e Entry) string {
	if e.Kind == TreeEntry {
		return e.Name + "/"
	}
	return e.Name
}
