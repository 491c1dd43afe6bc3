// Package conflict implements pause/resume conflict resolution (spec
// §4.G): writing `.jinmerge` sidecars for files the merge engine could
// not resolve, persisting paused-apply state across command
// invocations, and validating/finalizing resolution via `resolve`.
package conflict

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-git/go-git/v5/plumbing"
	"gopkg.in/yaml.v3"

	"github.com/dabstractor/jin/internal/jinerr"
	"github.com/dabstractor/jin/internal/merge"
)

const sidecarSuffix = ".jinmerge"

const banner = "# Jin merge conflict. Resolve by editing this file, removing the\n" +
	"# <<<<<<<, =======, >>>>>>> markers, then run `jin resolve <path>`.\n"

// PausedState is the on-disk record of an in-progress apply with one or
// more unresolved conflicts (spec §3, "paused-apply state").
type PausedState struct {
	ConflictPaths []string `yaml:"conflict_paths"`
	TargetRoot    string   `yaml:"target_root"`
}

// Manager owns the paused-apply state and `.jinmerge` sidecars for one
// workspace.
type Manager struct {
	workspaceRoot string
	statePath     string
}

// Open returns a Manager rooted at workspaceRoot, ensuring its private
// state directory exists.
func Open(workspaceRoot string) (*Manager, error) {
	privateDir := filepath.Join(workspaceRoot, ".jin")
	if err := os.MkdirAll(privateDir, 0o755); err != nil {
		return nil, jinerr.Wrap(err)
	}
	return &Manager{
		workspaceRoot: workspaceRoot,
		statePath:     filepath.Join(privateDir, "paused-apply.yaml"),
	}, nil
}

// HasPaused reports whether a paused apply is currently in progress.
func (m *Manager) HasPaused() (bool, error) {
	_, err := os.Stat(m.statePath)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, jinerr.Wrap(err)
}

// Load reads the current paused-apply state. Returns NoPausedApply if
// none exists.
func (m *Manager) Load() (*PausedState, error) {
	data, err := os.ReadFile(m.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, jinerr.NoPausedApplyf()
		}
		return nil, jinerr.Wrap(err)
	}
	var state PausedState
	if err := yaml.Unmarshal(data, &state); err != nil {
		return nil, &jinerr.Error{Kind: jinerr.Corrupt, FilePath: m.statePath, Err: err,
			Message: "corrupt paused-apply state " + m.statePath}
	}
	return &state, nil
}

func (m *Manager) save(state *PausedState) error {
	sort.Strings(state.ConflictPaths)
	data, err := yaml.Marshal(state)
	if err != nil {
		return jinerr.Wrap(err)
	}
	return writeFileAtomic(m.statePath, data)
}

func (m *Manager) clear() error {
	if err := os.Remove(m.statePath); err != nil && !os.IsNotExist(err) {
		return jinerr.Wrap(err)
	}
	return nil
}

// Begin writes a `.jinmerge` sidecar for each conflicted path (spec
// §4.G step 2), then persists paused-apply state naming them and the
// commit that apply will record as the merged root once every conflict
// is resolved.
func (m *Manager) Begin(conflicts map[string][]byte, targetRoot plumbing.Hash) (*PausedState, error) {
	paths := make([]string, 0, len(conflicts))
	for path, content := range conflicts {
		sidecar := filepath.Join(m.workspaceRoot, filepath.FromSlash(path)+sidecarSuffix)
		if err := os.MkdirAll(filepath.Dir(sidecar), 0o755); err != nil {
			return nil, jinerr.Wrap(err)
		}
		if err := writeFileAtomic(sidecar, append([]byte(banner), content...)); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}

	state := &PausedState{ConflictPaths: paths, TargetRoot: targetRoot.String()}
	if err := m.save(state); err != nil {
		return nil, err
	}
	return state, nil
}

// Resolve finalizes one conflicted path: reads the edited sidecar,
// rejects it if conflict markers remain, writes the resolved content to
// the real path, deletes the sidecar, and removes path from the paused
// state. Returns (true, nil) when this was the last conflict and the
// apply is now complete (the caller's last-merged-root bookkeeping is
// the caller's responsibility, via the returned TargetRoot).
func (m *Manager) Resolve(path string) (complete bool, targetRoot plumbing.Hash, err error) {
	state, err := m.Load()
	if err != nil {
		return false, plumbing.ZeroHash, err
	}
	if !contains(state.ConflictPaths, path) {
		return false, plumbing.ZeroHash, jinerr.NotInPausedStatef(path)
	}

	content, rerr := m.readResolvedSidecar(path)
	if rerr != nil {
		return false, plumbing.ZeroHash, rerr
	}

	realPath := filepath.Join(m.workspaceRoot, filepath.FromSlash(path))
	if err := writeFileAtomic(realPath, content); err != nil {
		return false, plumbing.ZeroHash, err
	}
	if err := os.Remove(sidecarPath(m.workspaceRoot, path)); err != nil && !os.IsNotExist(err) {
		return false, plumbing.ZeroHash, jinerr.Wrap(err)
	}

	state.ConflictPaths = remove(state.ConflictPaths, path)
	target := plumbing.NewHash(state.TargetRoot)
	if len(state.ConflictPaths) == 0 {
		if err := m.clear(); err != nil {
			return false, plumbing.ZeroHash, err
		}
		return true, target, nil
	}
	if err := m.save(state); err != nil {
		return false, plumbing.ZeroHash, err
	}
	return false, target, nil
}

// Abandon discards a paused apply outright, without validating any
// `.jinmerge` sidecar's content: it removes every sidecar for the
// current paused state and clears the paused-apply record. Used by
// `jin reset`, which discards in-progress conflict resolution rather
// than requiring it to be finished first.
func (m *Manager) Abandon() error {
	has, err := m.HasPaused()
	if err != nil || !has {
		return err
	}
	state, err := m.Load()
	if err != nil {
		return err
	}
	for _, path := range state.ConflictPaths {
		if err := os.Remove(sidecarPath(m.workspaceRoot, path)); err != nil && !os.IsNotExist(err) {
			return jinerr.Wrap(err)
		}
	}
	return m.clear()
}

// ResolveAll validates every remaining `.jinmerge` sidecar (spec §4.G:
// "resolve --all validates every .jinmerge in the workspace, then
// completes"), finalizing all of them only if none still carries
// conflict markers. Returns the target root to record as the workspace's
// merged root.
func (m *Manager) ResolveAll() (plumbing.Hash, error) {
	state, err := m.Load()
	if err != nil {
		return plumbing.ZeroHash, err
	}

	resolved := make(map[string][]byte, len(state.ConflictPaths))
	for _, path := range state.ConflictPaths {
		content, err := m.readResolvedSidecar(path)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		resolved[path] = content
	}

	for path, content := range resolved {
		realPath := filepath.Join(m.workspaceRoot, filepath.FromSlash(path))
		if err := writeFileAtomic(realPath, content); err != nil {
			return plumbing.ZeroHash, err
		}
		if err := os.Remove(sidecarPath(m.workspaceRoot, path)); err != nil && !os.IsNotExist(err) {
			return plumbing.ZeroHash, jinerr.Wrap(err)
		}
	}

	target := plumbing.NewHash(state.TargetRoot)
	if err := m.clear(); err != nil {
		return plumbing.ZeroHash, err
	}
	return target, nil
}

func (m *Manager) readResolvedSidecar(path string) ([]byte, error) {
	sidecar := sidecarPath(m.workspaceRoot, path)
	content, err := os.ReadFile(sidecar)
	if err != nil {
		return nil, jinerr.Wrap(err)
	}
	body := bytes.TrimPrefix(content, []byte(banner))
	if merge.ConflictMarkersPresent(body) {
		return nil, jinerr.StillConflictedf(path)
	}
	return body, nil
}

func sidecarPath(workspaceRoot, path string) string {
	return filepath.Join(workspaceRoot, filepath.FromSlash(path)+sidecarSuffix)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func remove(list []string, s string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

func writeFileAtomic(path string, data []byte) error {
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
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return jinerr.Wrap(err)
	}
	return nil
}
