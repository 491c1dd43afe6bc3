package store

import (
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"gopkg.in/yaml.v3"
)

// manifestTrailerMarker delimits the machine-readable manifest block
// appended to a commit's human message, keeping the commit message itself
// readable in plain `git log`-style tooling while still carrying the
// structured manifest spec §3 requires ("a per-commit manifest of files
// changed (used by log and audit)").
const manifestTrailerMarker = "\n\n---jin-manifest---\n"

// Manifest is the per-commit record of which files changed, and which of
// those changes are tombstones (spec §3 Commit; SPEC_FULL.md Tombstone
// convention).
type Manifest struct {
	Files      []string `yaml:"files,omitempty"`
	Tombstones []string `yaml:"tombstones,omitempty"`
}

func (m Manifest) encodeTrailer() string {
	if len(m.Files) == 0 && len(m.Tombstones) == 0 {
		return ""
	}
	out, err := yaml.Marshal(m)
	if err != nil {
		return ""
	}
	return manifestTrailerMarker + string(out)
}

// decodeTrailer splits a stored commit message into the human message and
// its decoded manifest. If no trailer marker is present (e.g. a commit
// written by something other than Jin), the manifest is empty.
func decodeTrailer(stored string) (string, Manifest) {
	idx := strings.Index(stored, manifestTrailerMarker)
	if idx < 0 {
		return stored, Manifest{}
	}
	msg := stored[:idx]
	trailer := stored[idx+len(manifestTrailerMarker):]

	var m Manifest
	if err := yaml.Unmarshal([]byte(trailer), &m); err != nil {
		return msg, Manifest{}
	}
	return msg, m
}

// IsTombstoned reports whether path is recorded as a tombstone in this
// manifest (SPEC_FULL.md Tombstone convention: the manifest flag is
// authoritative, not blob emptiness).
func (m Manifest) IsTombstoned(path string) bool {
	for _, p := range m.Tombstones {
		if p == path {
			return true
		}
	}
	return false
}

func (m Manifest) mentions(path string) bool {
	for _, p := range m.Files {
		if p == path {
			return true
		}
	}
	return false
}

// IsTombstonedAt reports whether path's most recent mention in the commit
// history reachable from commit (walking single-parent ancestry) was a
// tombstone rather than a regular add/modify. A tip commit's own manifest
// only records what *that* commit touched, so a path tombstoned several
// commits back and never touched since still reads as present in the
// tree (the empty blob is never pruned, per the tombstone convention) —
// callers must walk back to the path's last mention to learn its true
// state. A path never mentioned in the walked history is not tombstoned.
func (s *Store) IsTombstonedAt(commit plumbing.Hash, path string) (bool, error) {
	h := commit
	for !h.IsZero() {
		info, err := s.ReadCommit(h)
		if err != nil {
			return false, err
		}
		if info.Manifest.mentions(path) {
			return info.Manifest.IsTombstoned(path), nil
		}
		if len(info.Parents) == 0 {
			break
		}
		h = info.Parents[0]
	}
	return false, nil
}
