package app

import (
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/dabstractor/jin/internal/audit"
	"github.com/dabstractor/jin/internal/jinerr"
	"github.com/dabstractor/jin/internal/layer"
	"github.com/dabstractor/jin/internal/merge"
	"github.com/dabstractor/jin/internal/txn"
	"github.com/dabstractor/jin/internal/workspace"
)

// ApplyResult reports what `jin apply` did.
type ApplyResult struct {
	workspace.ApplyResult
	Paused        bool
	ConflictPaths []string
}

// contributingLayers resolves the active context's applicable layers to
// their current tip commits and trees, skipping layers with no commits
// yet (an uninitialized layer simply contributes nothing).
func (a *App) contributingLayers(ctx layer.Context) ([]merge.LayerSource, error) {
	var sources []merge.LayerSource
	for _, inst := range layer.LayersInPrecedenceOrder(ctx) {
		refPath, err := layer.RefPath(inst)
		if err != nil {
			continue
		}
		tip, err := a.Store.Resolve(refPath)
		if err != nil {
			continue
		}
		info, err := a.Store.ReadCommit(tip)
		if err != nil {
			return nil, err
		}
		sources = append(sources, merge.LayerSource{Layer: inst, Commit: tip, Tree: info.Tree})
	}
	return sources, nil
}

// checkDetached reports DetachedWorkspace if the workspace's last-known
// merged root is not reachable from any currently contributing layer tip
// (spec §4.F). A workspace that has never applied, or whose active
// context currently contributes no layers, is never detached.
func (a *App) checkDetached(sources []merge.LayerSource) error {
	last, ok, err := a.Workspace.LastMergedRoot()
	if err != nil || !ok {
		return err
	}
	if len(sources) == 0 {
		return nil
	}
	for _, s := range sources {
		reachable, err := a.Store.IsAncestor(last, s.Commit)
		if err != nil {
			return err
		}
		if reachable {
			return nil
		}
	}
	return &jinerr.Error{Kind: jinerr.DetachedWorkspace,
		Message: "workspace's last-known merged root is not reachable from current layer tips; run reset --hard or repair"}
}

// Apply merges every applicable layer and materializes the result into
// the workspace (spec §4.F). On conflicts, the apply pauses (spec §4.G)
// rather than writing partial output; ApplyResult.Paused reports this.
func (a *App) Apply(dryRun bool) (ApplyResult, error) {
	ctx, err := a.ActiveContext()
	if err != nil {
		return ApplyResult{}, err
	}

	sources, err := a.contributingLayers(ctx)
	if err != nil {
		return ApplyResult{}, err
	}
	if !dryRun {
		if err := a.checkDetached(sources); err != nil {
			return ApplyResult{}, err
		}
	}

	out, err := a.Merge.Merge(sources)
	if err != nil {
		return ApplyResult{}, err
	}

	var files []workspace.File
	for path, content := range out.MergedFiles {
		files = append(files, workspace.File{Path: path, Content: content, Executable: a.executableFor(path, out)})
	}

	if len(out.ConflictFiles) > 0 {
		if dryRun {
			return ApplyResult{Paused: true, ConflictPaths: out.ConflictFiles}, nil
		}
		conflicts := make(map[string][]byte, len(out.ConflictFiles))
		for _, p := range out.ConflictFiles {
			conflicts[p] = out.MergedFiles[p]
		}
		root := highestTip(sources)
		if _, err := a.Conflicts.Begin(conflicts, root); err != nil {
			return ApplyResult{}, err
		}
		return ApplyResult{Paused: true, ConflictPaths: out.ConflictFiles}, nil
	}

	result, err := a.Workspace.Apply(files, a.Host, dryRun)
	if err != nil {
		return ApplyResult{ApplyResult: result}, err
	}

	if !dryRun {
		if err := a.Workspace.SetLastMergedRoot(highestTip(sources)); err != nil {
			return ApplyResult{}, err
		}
	}

	return ApplyResult{ApplyResult: result}, nil
}

// highestTip returns the tip commit of the highest-precedence contributing
// layer, used as the workspace's recorded merged-root marker. Only that
// one layer's tip is recorded; checkDetached accepts the marker when it
// is reachable from any contributing layer's tip.
func highestTip(sources []merge.LayerSource) plumbing.Hash {
	if len(sources) == 0 {
		return plumbing.ZeroHash
	}
	return sources[len(sources)-1].Commit
}

// executableFor preserves the executable bit of the highest-precedence
// contributing layer's entry at path, the layer whose content
// ultimately appears in the merged output for a non-conflicted path.
func (a *App) executableFor(path string, out merge.Output) bool {
	srcs := out.PerFileLayerSources[path]
	if len(srcs) == 0 {
		return false
	}
	top := srcs[len(srcs)-1]
	refPath, err := layer.RefPath(top)
	if err != nil {
		return false
	}
	tip, err := a.Store.Resolve(refPath)
	if err != nil {
		return false
	}
	info, err := a.Store.ReadCommit(tip)
	if err != nil {
		return false
	}
	entry, err := a.Store.GetEntry(info.Tree, path)
	if err != nil {
		return false
	}
	return workspace.ExecutableFromStoreMode(entry.Mode)
}

// Resolve finalizes one conflicted path (spec §4.G `jin resolve <path>`).
func (a *App) Resolve(path string) error {
	complete, root, err := a.Conflicts.Resolve(path)
	if err != nil {
		return err
	}
	if complete {
		return a.Workspace.SetLastMergedRoot(root)
	}
	return nil
}

// ResolveAll finalizes every remaining conflict (spec §4.G `resolve --all`).
func (a *App) ResolveAll() error {
	root, err := a.Conflicts.ResolveAll()
	if err != nil {
		return err
	}
	return a.Workspace.SetLastMergedRoot(root)
}

// rematerialize re-runs apply against current layer tips, used by
// `reset --hard` to recover a detached workspace (spec §4.F: "reset
// --hard re-materializes the workspace from current layer tips"). A
// conflicted merge pauses exactly as a normal apply would rather than
// forcing partial output.
func (a *App) rematerialize() error {
	ctx, err := a.ActiveContext()
	if err != nil {
		return err
	}
	sources, err := a.contributingLayers(ctx)
	if err != nil {
		return err
	}
	out, err := a.Merge.Merge(sources)
	if err != nil {
		return err
	}
	if len(out.ConflictFiles) > 0 {
		conflicts := make(map[string][]byte, len(out.ConflictFiles))
		for _, p := range out.ConflictFiles {
			conflicts[p] = out.MergedFiles[p]
		}
		_, err := a.Conflicts.Begin(conflicts, highestTip(sources))
		return err
	}
	var files []workspace.File
	for path, content := range out.MergedFiles {
		files = append(files, workspace.File{Path: path, Content: content, Executable: a.executableFor(path, out)})
	}
	if _, err := a.Workspace.Apply(files, a.Host, false); err != nil {
		return err
	}
	return a.Workspace.SetLastMergedRoot(highestTip(sources))
}

// recordAudit appends one audit record for a committed layer update.
func (a *App) recordAudit(r txn.Result, ctx layer.Context, files []string) {
	rec := audit.Record{
		Timestamp:    a.signature.When,
		User:         a.signature.Name,
		Workspace:    a.WorkspaceRoot,
		Project:      ctx.Project,
		Mode:         ctx.ActiveMode,
		Scope:        ctx.ActiveScope.String(),
		Layer:        r.Layer.Key(),
		Files:        files,
		BaseCommit:   r.OldHash.String(),
		ResultCommit: r.NewHash.String(),
	}
	_ = a.Audit.Append(rec)
}
