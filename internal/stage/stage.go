// Package stage implements the per-workspace staging index (spec §4.D):
// the ordered mapping path -> (layer, content hash, mode) of pending
// additions/removals/renames before commit.
package stage

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/gofrs/flock"

	"github.com/dabstractor/jin/internal/jinerr"
	"github.com/dabstractor/jin/internal/layer"
)

// Source distinguishes why a path is in the index.
type Source int

const (
	SourceStaged Source = iota
	SourceRemoved
	SourceRenamed
)

// Entry is one pending change in the staging index (spec §3, "Staging
// index").
type Entry struct {
	Path         string
	TargetLayer  layer.Instance
	ContentHash  plumbing.Hash
	ModeBits     filemode.FileMode
	Source       Source
	RenamedFrom  string // populated when Source == SourceRenamed
}

// HostTracker answers whether a path is already tracked by the host VCS,
// used to enforce spec §3's invariant that a path is never tracked by
// both Jin and the host VCS simultaneously. Implemented by
// internal/hostvcs; declared here to avoid an import cycle.
type HostTracker interface {
	IsTracked(path string) (bool, error)
}

// Index is the staging index for one workspace.
type Index struct {
	workspaceRoot string
	indexPath     string
	lockPath      string
	maxFileSize   int64 // 0 means unlimited
	host          HostTracker

	order   []string // insertion order of paths, for deterministic iteration
	entries map[string]Entry
}

// Open loads (or initializes empty) the staging index for a workspace.
// A missing index file is not an error (spec §4.D: "Loading tolerates a
// missing file by yielding an empty index").
func Open(workspaceRoot string, host HostTracker, maxFileSize int64) (*Index, error) {
	privateDir := filepath.Join(workspaceRoot, ".jin")
	if err := os.MkdirAll(privateDir, 0o755); err != nil {
		return nil, jinerr.Wrap(err)
	}

	idx := &Index{
		workspaceRoot: workspaceRoot,
		indexPath:     filepath.Join(privateDir, "index.yaml"),
		lockPath:      filepath.Join(privateDir, "index.lock"),
		maxFileSize:   maxFileSize,
		host:          host,
		entries:       make(map[string]Entry),
	}
	if err := idx.load(); err != nil {
		return nil, err
	}
	return idx, nil
}

// withLock serializes read-modify-write sequences across processes
// operating on the same workspace (spec §5: "Concurrent jin add/jin
// commit in the same workspace serialize").
func (idx *Index) withLock(fn func() error) error {
	fl := flock.New(idx.lockPath)
	locked, err := fl.TryLock()
	if err != nil {
		return jinerr.Lockedf("staging-index", err)
	}
	if !locked {
		return jinerr.Lockedf("staging-index", nil)
	}
	defer fl.Unlock()
	return fn()
}

// normalizePath validates and cleans a path relative to the workspace
// root, rejecting escapes (spec §3: "paths never escape the workspace
// root (no .. or absolute paths after normalization)").
func normalizePath(p string) (string, error) {
	clean := filepath.ToSlash(filepath.Clean(p))
	if filepath.IsAbs(clean) {
		return "", jinerr.Validationf("path %q must be relative to the workspace root", p)
	}
	if clean == "." || clean == "" {
		return "", jinerr.Validationf("empty path")
	}
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", jinerr.Validationf("path %q escapes the workspace root", p)
	}
	return clean, nil
}

// StageAdd records a pending addition at path, targeting the given layer.
// content is hashed by the caller (the object store) and passed as
// contentHash; StageAdd itself only validates and records.
func (idx *Index) StageAdd(path string, target layer.Instance, contentHash plumbing.Hash, mode filemode.FileMode) error {
	clean, err := normalizePath(path)
	if err != nil {
		return err
	}

	full := filepath.Join(idx.workspaceRoot, clean)
	fi, err := os.Lstat(full)
	if err == nil {
		if fi.Mode()&os.ModeSymlink != 0 {
			return jinerr.Validationf("symbolic links are not supported: %s", clean)
		}
		if fi.IsDir() {
			return jinerr.Validationf("%s is a directory, not a file", clean)
		}
		if idx.maxFileSize > 0 && fi.Size() > idx.maxFileSize {
			return jinerr.Validationf("%s exceeds the configured size limit (%d bytes)", clean, idx.maxFileSize)
		}
	}

	if idx.host != nil {
		tracked, err := idx.host.IsTracked(clean)
		if err != nil {
			return jinerr.Wrap(err)
		}
		if tracked {
			return jinerr.AlreadyTrackedf(clean, "host")
		}
	}

	return idx.withLock(func() error {
		if err := idx.load(); err != nil {
			return err
		}
		if existing, ok := idx.entries[clean]; ok && existing.TargetLayer.Key() != target.Key() {
			return jinerr.AlreadyTrackedf(clean, "jin")
		}
		idx.set(clean, Entry{
			Path:        clean,
			TargetLayer: target,
			ContentHash: contentHash,
			ModeBits:    mode,
			Source:      SourceStaged,
		})
		return idx.save()
	})
}

// StageRemove records a pending removal of path, which must already be
// present in the index (e.g. from a prior StageAdd).
func (idx *Index) StageRemove(path string) error {
	clean, err := normalizePath(path)
	if err != nil {
		return err
	}
	return idx.withLock(func() error {
		if err := idx.load(); err != nil {
			return err
		}
		existing, ok := idx.entries[clean]
		if !ok {
			return jinerr.NotFoundf("staged path", clean)
		}
		idx.set(clean, Entry{
			Path:        clean,
			TargetLayer: existing.TargetLayer,
			Source:      SourceRemoved,
		})
		return idx.save()
	})
}

// StageRemoveRouted records a pending removal of path against target,
// the layer `jin rm` would route to were it adding rather than removing
// this path. Unlike StageRemove it does not require a prior index entry
// for path: removing a file the workspace materialized from a layer
// commit (rather than one freshly staged) still needs a removal entry
// naming which layer to retract it from at commit time. If path is
// already in the index, its existing target layer is kept instead of
// target, matching StageRemove's behavior.
func (idx *Index) StageRemoveRouted(path string, target layer.Instance) error {
	clean, err := normalizePath(path)
	if err != nil {
		return err
	}
	return idx.withLock(func() error {
		if err := idx.load(); err != nil {
			return err
		}
		tl := target
		if existing, ok := idx.entries[clean]; ok {
			tl = existing.TargetLayer
		}
		idx.set(clean, Entry{
			Path:        clean,
			TargetLayer: tl,
			Source:      SourceRemoved,
		})
		return idx.save()
	})
}

// Unstage removes path from the index entirely, restoring it to its
// pre-stage state (spec §8 round-trip: "stage_add(p, L, c) ; remove(p)
// restores the index to pre-stage state").
func (idx *Index) Unstage(path string) error {
	clean, err := normalizePath(path)
	if err != nil {
		return err
	}
	return idx.withLock(func() error {
		if err := idx.load(); err != nil {
			return err
		}
		if _, ok := idx.entries[clean]; !ok {
			return jinerr.NotFoundf("staged path", clean)
		}
		idx.delete(clean)
		return idx.save()
	})
}

// StageRename records a rename from old to new, preserving old's target
// layer and content hash.
func (idx *Index) StageRename(oldPath, newPath string) error {
	oldClean, err := normalizePath(oldPath)
	if err != nil {
		return err
	}
	newClean, err := normalizePath(newPath)
	if err != nil {
		return err
	}
	return idx.withLock(func() error {
		if err := idx.load(); err != nil {
			return err
		}
		existing, ok := idx.entries[oldClean]
		if !ok {
			return jinerr.NotFoundf("staged path", oldClean)
		}
		idx.delete(oldClean)
		idx.set(newClean, Entry{
			Path:        newClean,
			TargetLayer: existing.TargetLayer,
			ContentHash: existing.ContentHash,
			ModeBits:    existing.ModeBits,
			Source:      SourceRenamed,
			RenamedFrom: oldClean,
		})
		return idx.save()
	})
}

// Entries returns every staged entry in insertion order.
func (idx *Index) Entries() []Entry {
	out := make([]Entry, 0, len(idx.order))
	for _, p := range idx.order {
		out = append(out, idx.entries[p])
	}
	return out
}

// ByLayer groups staged entries by their target layer's Key(), rebuilt on
// demand rather than persisted (spec §4.D).
func (idx *Index) ByLayer() map[string][]Entry {
	out := make(map[string][]Entry)
	for _, p := range idx.order {
		e := idx.entries[p]
		key := e.TargetLayer.Key()
		out[key] = append(out[key], e)
	}
	return out
}

// Empty reports whether the index has no staged entries.
func (idx *Index) Empty() bool { return len(idx.order) == 0 }

// Clear empties the index, used after a successful commit.
func (idx *Index) Clear() error {
	return idx.withLock(func() error {
		idx.order = nil
		idx.entries = make(map[string]Entry)
		return idx.save()
	})
}

func (idx *Index) set(path string, e Entry) {
	if _, exists := idx.entries[path]; !exists {
		idx.order = append(idx.order, path)
	}
	idx.entries[path] = e
}

func (idx *Index) delete(path string) {
	if _, exists := idx.entries[path]; !exists {
		return
	}
	delete(idx.entries, path)
	for i, p := range idx.order {
		if p == path {
			idx.order = append(idx.order[:i], idx.order[i+1:]...)
			break
		}
	}
}
