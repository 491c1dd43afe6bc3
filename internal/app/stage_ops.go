package app

import (
	"os"
	"path/filepath"

	"github.com/dabstractor/jin/internal/jinerr"
	"github.com/dabstractor/jin/internal/layer"
	"github.com/dabstractor/jin/internal/workspace"
)

// Add stages path against the layer flags route to (spec §4.D): reads
// the file off disk, writes its content to the object store, and records
// a staging-index entry.
func (a *App) Add(path string, flags layer.Flags) error {
	ctx, err := a.ActiveContext()
	if err != nil {
		return err
	}
	target, err := layer.Route(flags, ctx, ctx.Project)
	if err != nil {
		return err
	}

	full := filepath.Join(a.WorkspaceRoot, path)
	data, err := os.ReadFile(full)
	if err != nil {
		return jinerr.Wrap(err)
	}
	info, err := os.Stat(full)
	if err != nil {
		return jinerr.Wrap(err)
	}

	hash, err := a.Store.WriteBlob(data)
	if err != nil {
		return err
	}
	mode := workspace.ModeForExecutable(info.Mode()&0o111 != 0)

	return a.Stage.StageAdd(path, target, hash, mode)
}

// Remove stages path's removal (spec §4.D `jin rm`). If path is already
// in the index (from a prior Add), its target layer is reused; otherwise
// the removal is routed the same way an add would be, so the commit
// knows which layer to retract the path from.
func (a *App) Remove(path string, flags layer.Flags) error {
	for _, e := range a.Stage.Entries() {
		if e.Path == path {
			return a.Stage.StageRemove(path)
		}
	}

	ctx, err := a.ActiveContext()
	if err != nil {
		return err
	}
	target, err := layer.Route(flags, ctx, ctx.Project)
	if err != nil {
		return err
	}
	return a.Stage.StageRemoveRouted(path, target)
}

// Move renames a file on disk and in the staging index (spec §4.D
// `jin mv`). oldPath must already be staged.
func (a *App) Move(oldPath, newPath string) error {
	oldFull := filepath.Join(a.WorkspaceRoot, oldPath)
	newFull := filepath.Join(a.WorkspaceRoot, newPath)
	if err := os.MkdirAll(filepath.Dir(newFull), 0o755); err != nil {
		return jinerr.Wrap(err)
	}
	if err := os.Rename(oldFull, newFull); err != nil {
		return jinerr.Wrap(err)
	}
	return a.Stage.StageRename(oldPath, newPath)
}
