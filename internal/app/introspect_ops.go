package app

import (
	"os"
	"path/filepath"

	"github.com/dabstractor/jin/internal/introspect"
	"github.com/dabstractor/jin/internal/jinerr"
	"github.com/dabstractor/jin/internal/layer"
)

// Status reports the active context, staged entries, paused-apply
// state, and managed-ignore health (spec §4.I `jin status`).
func (a *App) Status() (introspect.Status, error) {
	ctx, err := a.ActiveContext()
	if err != nil {
		return introspect.Status{}, err
	}
	return introspect.BuildStatus(ctx, a.Stage, a.Conflicts, a.Host)
}

// Diff compares path's working-tree content against the merged view of
// every contributing layer (spec §4.I `jin diff`).
func (a *App) Diff(path string) (introspect.FileDiff, error) {
	ctx, err := a.ActiveContext()
	if err != nil {
		return introspect.FileDiff{}, err
	}
	sources, err := a.contributingLayers(ctx)
	if err != nil {
		return introspect.FileDiff{}, err
	}

	var oldContent []byte
	if len(sources) > 0 {
		out, err := a.Merge.Merge(sources)
		if err != nil {
			return introspect.FileDiff{}, err
		}
		oldContent = out.MergedFiles[path]
	}

	newContent, err := os.ReadFile(filepath.Join(a.WorkspaceRoot, path))
	if err != nil && !os.IsNotExist(err) {
		return introspect.FileDiff{}, jinerr.Wrap(err)
	}

	return introspect.DiffFile(path, oldContent, newContent)
}

// Log enumerates commit history per layer (spec §4.I `jin log`).
func (a *App) Log(opts introspect.LogOptions) ([]introspect.LayerLog, error) {
	ctx, err := a.ActiveContext()
	if err != nil {
		return nil, err
	}
	return introspect.Log(a.Store, ctx, opts)
}

// Layers enumerates every live layer instance, independent of the active
// context, grouped by ascending precedence (spec SUPPLEMENTED FEATURES
// `jin layers`).
func (a *App) Layers() ([]layer.Instance, error) {
	refs, err := a.Store.ListRefs("refs/jin/layers/**")
	if err != nil {
		return nil, err
	}
	var out []layer.Instance
	for _, r := range refs {
		inst, err := layer.ParseRef(r.RefPath)
		if err != nil {
			continue
		}
		out = append(out, inst)
	}
	sortByPrecedence(out)
	return out, nil
}

func sortByPrecedence(insts []layer.Instance) {
	for i := 1; i < len(insts); i++ {
		j := i
		for j > 0 && insts[j-1].Kind.Precedence() > insts[j].Kind.Precedence() {
			insts[j-1], insts[j] = insts[j], insts[j-1]
			j--
		}
	}
}

// ListEntry is one path's metadata-only view: which layers contribute
// it, and Conflict set when more than one layer does. No byte-level
// merge is run, so Conflict does not say whether the contents would
// actually conflict (spec SUPPLEMENTED FEATURES `jin list`).
type ListEntry struct {
	Path     string
	Layers   []string
	Conflict bool
}

// List unions every contributing layer's paths for the active context
// by walking each layer's tree, reporting provenance without running the
// merge engine or materializing merged content (spec SUPPLEMENTED
// FEATURES `jin list`).
func (a *App) List() ([]ListEntry, error) {
	ctx, err := a.ActiveContext()
	if err != nil {
		return nil, err
	}
	sources, err := a.contributingLayers(ctx)
	if err != nil {
		return nil, err
	}

	type contrib struct {
		path   string
		layers []string
	}
	byPath := make(map[string]*contrib)
	var order []string

	for _, src := range sources {
		files, err := a.Store.WalkFiles(src.Tree)
		if err != nil {
			return nil, err
		}
		label := introspect.LayerLabel(src.Layer)
		for path := range files {
			c, ok := byPath[path]
			if !ok {
				c = &contrib{path: path}
				byPath[path] = c
				order = append(order, path)
			}
			c.layers = append(c.layers, label)
		}
	}

	out := make([]ListEntry, 0, len(order))
	for _, path := range order {
		c := byPath[path]
		out = append(out, ListEntry{Path: c.path, Layers: c.layers, Conflict: len(c.layers) > 1})
	}
	return out, nil
}
