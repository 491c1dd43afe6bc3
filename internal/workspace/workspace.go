// Package workspace materializes merged layer output into the user's
// working tree (spec §4.F): atomic writes, executable-bit preservation,
// refusal to overwrite host-VCS-tracked files, and detached-state
// detection against the last-known merged root commit.
package workspace

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"

	"github.com/dabstractor/jin/internal/jinerr"
)

// HostTracker answers whether a path is tracked by the host VCS, the
// check apply uses to refuse overwriting a host-owned file. Implemented
// by internal/hostvcs; declared here (as internal/stage does) to avoid
// an import cycle.
type HostTracker interface {
	IsTracked(path string) (bool, error)
}

// AncestorChecker answers whether a commit is reachable from another's
// ancestry, backing the detached-state check. Implemented by
// internal/store.Store.IsAncestor.
type AncestorChecker interface {
	IsAncestor(ancestor, tip plumbing.Hash) (bool, error)
}

// File is one materialized output: content plus whether the executable
// bit should be preserved on disk.
type File struct {
	Path       string
	Content    []byte
	Executable bool
}

// Workspace is the user's working tree at root, with its private state
// directory for last-known-merged-root tracking.
type Workspace struct {
	root       string
	privateDir string
}

// Open returns a Workspace rooted at root, ensuring its private state
// directory exists.
func Open(root string) (*Workspace, error) {
	privateDir := filepath.Join(root, ".jin")
	if err := os.MkdirAll(privateDir, 0o755); err != nil {
		return nil, jinerr.Wrap(err)
	}
	return &Workspace{root: root, privateDir: privateDir}, nil
}

// Root returns the workspace's working-tree root.
func (w *Workspace) Root() string { return w.root }

func (w *Workspace) mergedRootPath() string {
	return filepath.Join(w.privateDir, "merged-root")
}

func (w *Workspace) materializedListPath() string {
	return filepath.Join(w.privateDir, "materialized-files")
}

// lastMaterialized reads the path set written by the previous successful
// Apply, used to detect paths that no longer appear in a new merge
// output (e.g. a path tombstoned in every contributing layer) so Apply
// can remove them rather than leaving them behind as stale files.
func (w *Workspace) lastMaterialized() ([]string, error) {
	data, err := os.ReadFile(w.materializedListPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, jinerr.Wrap(err)
	}
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, nil
	}
	return strings.Split(trimmed, "\n"), nil
}

// setMaterialized records paths as the current materialized set,
// written atomically alongside the merged-root marker.
func (w *Workspace) setMaterialized(paths []string) error {
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)
	return writeFileAtomic(w.materializedListPath(), []byte(strings.Join(sorted, "\n")))
}

// LastMergedRoot reads the last commit hash materialized into this
// workspace, if any.
func (w *Workspace) LastMergedRoot() (hash plumbing.Hash, ok bool, err error) {
	data, err := os.ReadFile(w.mergedRootPath())
	if err != nil {
		if os.IsNotExist(err) {
			return plumbing.ZeroHash, false, nil
		}
		return plumbing.ZeroHash, false, jinerr.Wrap(err)
	}
	h := plumbing.NewHash(string(data))
	if h.IsZero() {
		return plumbing.ZeroHash, false, nil
	}
	return h, true, nil
}

// SetLastMergedRoot records hash as the workspace's merged root, written
// atomically (temp + rename) per spec §5's apply write discipline.
func (w *Workspace) SetLastMergedRoot(hash plumbing.Hash) error {
	return writeFileAtomic(w.mergedRootPath(), []byte(hash.String()))
}

// CheckDetached verifies the workspace's last-known merged root is
// reachable from currentTip (spec §4.F: "verify that the workspace's
// last-known merged root commit ... is reachable from current layer
// tips"). A workspace with no recorded merged root is never detached
// (first apply). Returns jinerr.ErrDetachedWorkspace when it is not
// reachable.
func (w *Workspace) CheckDetached(ac AncestorChecker, currentTip plumbing.Hash) error {
	last, ok, err := w.LastMergedRoot()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	reachable, err := ac.IsAncestor(last, currentTip)
	if err != nil {
		return err
	}
	if !reachable {
		return &jinerr.Error{Kind: jinerr.DetachedWorkspace,
			Message: "workspace's last-known merged root is not reachable from current layer tips; run reset --hard or repair"}
	}
	return nil
}

// ApplyResult reports what Apply did.
type ApplyResult struct {
	Written []string // paths actually written (non-conflicted)
	Removed []string // paths deleted because they no longer appear in the merge
	Blocked []string // paths refused because host-VCS-tracked
	DryRun  bool
}

// Apply writes files to the workspace. Host-tracked paths are collected
// into result.Blocked rather than stopping at the first one, so a caller
// can report the whole set; a single PathBlocked error naming the first
// blocked path is still returned so the call fails overall.
//
// Any path materialized by a previous Apply but absent from files (a
// path tombstoned in every contributing layer since) is deleted, unless
// it has since become host-VCS-tracked — Jin never deletes a file it
// does not own.
//
// dryRun performs every check but writes nothing.
func (w *Workspace) Apply(files []File, host HostTracker, dryRun bool) (ApplyResult, error) {
	result := ApplyResult{DryRun: dryRun}

	for _, f := range files {
		tracked, err := host.IsTracked(f.Path)
		if err != nil {
			return result, jinerr.Wrap(err)
		}
		if tracked {
			result.Blocked = append(result.Blocked, f.Path)
		}
	}
	if len(result.Blocked) > 0 {
		return result, jinerr.PathBlockedf(result.Blocked[0])
	}

	stillPresent := make(map[string]bool, len(files))
	for _, f := range files {
		stillPresent[f.Path] = true
	}
	previous, err := w.lastMaterialized()
	if err != nil {
		return result, err
	}
	for _, p := range previous {
		if p == "" || stillPresent[p] {
			continue
		}
		tracked, err := host.IsTracked(p)
		if err != nil {
			return result, jinerr.Wrap(err)
		}
		if tracked {
			continue
		}
		if !dryRun {
			full := filepath.Join(w.root, filepath.FromSlash(p))
			if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
				return result, jinerr.Wrap(err)
			}
		}
		result.Removed = append(result.Removed, p)
	}

	for _, f := range files {
		if dryRun {
			result.Written = append(result.Written, f.Path)
			continue
		}
		full := filepath.Join(w.root, filepath.FromSlash(f.Path))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return result, jinerr.Wrap(err)
		}
		mode := os.FileMode(0o644)
		if f.Executable {
			mode = 0o755
		}
		if err := writeFileAtomicMode(full, f.Content, mode); err != nil {
			return result, err
		}
		result.Written = append(result.Written, f.Path)
	}

	if !dryRun {
		if err := w.setMaterialized(result.Written); err != nil {
			return result, err
		}
	}

	return result, nil
}

// ExecutableFromStoreMode reports whether a store entry's mode bits
// should materialize with the executable bit set.
func ExecutableFromStoreMode(mode filemode.FileMode) bool {
	return mode == filemode.Executable
}

// ModeForExecutable is the inverse of ExecutableFromStoreMode, used when
// staging a file read off disk into the object store.
func ModeForExecutable(executable bool) filemode.FileMode {
	if executable {
		return filemode.Executable
	}
	return filemode.Regular
}

func writeFileAtomic(path string, data []byte) error {
	return writeFileAtomicMode(path, data, 0o644)
}

func writeFileAtomicMode(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return jinerr.Wrap(err)
	}
	tmp, err := os.CreateTemp(dir, ".jin-write-*.tmp")
	if err != nil {
		return jinerr.Wrap(err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return jinerr.Wrap(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return jinerr.Wrap(err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		os.Remove(tmpName)
		return jinerr.Wrap(err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return jinerr.Wrap(err)
	}
	return nil
}
