package store

import (
	"path"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/dabstractor/jin/internal/jinerr"
)

// RefEntry is one (ref path, hash) pair as returned by ListRefs.
type RefEntry struct {
	RefPath string
	Hash    plumbing.Hash
}

// Resolve returns the hash a reference currently points to, or a
// NotFound error if it does not exist.
func (s *Store) Resolve(refPath string) (plumbing.Hash, error) {
	ref, err := s.storer.Reference(plumbing.ReferenceName(refPath))
	if err != nil {
		if err == plumbing.ErrReferenceNotFound {
			return plumbing.ZeroHash, jinerr.NotFoundf("ref", refPath)
		}
		return plumbing.ZeroHash, jinerr.Wrap(err)
	}
	return ref.Hash(), nil
}

// ListRefs returns every reference matching glob, a prefix pattern that
// may end in "**" (matches any suffix) or "*" (matches one path segment),
// e.g. "refs/jin/layers/**" or "refs/jin/staging/*".
func (s *Store) ListRefs(glob string) ([]RefEntry, error) {
	refs, err := s.storer.IterReferences()
	if err != nil {
		return nil, jinerr.Wrap(err)
	}
	defer refs.Close()

	var out []RefEntry
	for {
		ref, err := refs.Next()
		if err != nil {
			break
		}
		name := ref.Name().String()
		if refGlobMatch(glob, name) {
			out = append(out, RefEntry{RefPath: name, Hash: ref.Hash()})
		}
	}
	return out, nil
}

func refGlobMatch(glob, name string) bool {
	if strings.HasSuffix(glob, "/**") {
		prefix := strings.TrimSuffix(glob, "/**")
		return name == prefix || strings.HasPrefix(name, prefix+"/")
	}
	if strings.HasSuffix(glob, "/*") {
		prefix := strings.TrimSuffix(glob, "/*")
		rest := strings.TrimPrefix(name, prefix+"/")
		if rest == name {
			return false
		}
		return !strings.Contains(rest, "/")
	}
	ok, err := path.Match(glob, name)
	return err == nil && ok
}

// SetRef performs a compare-and-swap reference update: the write succeeds
// only if the reference currently matches expectedPrev (nil meaning "must
// not exist yet"). On mismatch it returns a Conflict error (spec §3, §4.A:
// "Reference writes are compare-and-swap").
//
// SetRef must be called from within a Store.WithWriteLock callback.
//
// expectedPrev == nil means "this reference must not already exist" —
// go-git's CheckAndSetReference treats a nil old reference as "set
// unconditionally", so that case is checked explicitly here first; the
// advisory writer lock held by the caller closes the gap between the
// check and the set.
func (s *Store) SetRef(refPath string, hash plumbing.Hash, expectedPrev *plumbing.Hash) error {
	newRef := plumbing.NewHashReference(plumbing.ReferenceName(refPath), hash)

	if expectedPrev == nil {
		if _, err := s.storer.Reference(plumbing.ReferenceName(refPath)); err == nil {
			return jinerr.Conflictf(refPath, "%s already exists", refPath)
		} else if err != plumbing.ErrReferenceNotFound {
			return jinerr.Wrap(err)
		}
		if err := s.storer.CheckAndSetReference(newRef, nil); err != nil {
			return jinerr.Conflictf(refPath, "concurrent update to %s", refPath)
		}
		return nil
	}

	oldRef := plumbing.NewHashReference(plumbing.ReferenceName(refPath), *expectedPrev)
	if err := s.storer.CheckAndSetReference(newRef, oldRef); err != nil {
		return jinerr.Conflictf(refPath, "concurrent update to %s", refPath)
	}
	return nil
}

// DeleteRef removes a reference outright, used for staging-ref cleanup
// (spec §4.C recovery) and explicit layer deletion.
func (s *Store) DeleteRef(refPath string) error {
	if err := s.storer.RemoveReference(plumbing.ReferenceName(refPath)); err != nil {
		return jinerr.Wrap(err)
	}
	return nil
}
