package app

import (
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"

	"github.com/dabstractor/jin/internal/jinerr"
	"github.com/dabstractor/jin/internal/layer"
	"github.com/dabstractor/jin/internal/stage"
	"github.com/dabstractor/jin/internal/store"
	"github.com/dabstractor/jin/internal/txn"
)

// CommitResult reports what a commit touched.
type CommitResult struct {
	Results []txn.Result
}

// Commit writes every staged entry as one commit per target layer,
// advanced atomically (spec §4.D, §4.C): each layer's tree is built by
// applying its staged edits on top of its current tip tree (or an empty
// tree for a layer with no prior commit), and removals are recorded as
// tombstones per the empty-blob-plus-manifest-flag convention.
func (a *App) Commit(message string) (CommitResult, error) {
	if a.Stage.Empty() {
		return CommitResult{}, jinerr.Validationf("nothing staged; use `jin add` first")
	}

	ctx, err := a.ActiveContext()
	if err != nil {
		return CommitResult{}, err
	}

	byLayer := a.Stage.ByLayer()
	manifests := make(map[string]store.Manifest, len(byLayer))

	var pending []txn.PendingCommit
	for _, entries := range byLayer {
		target := entries[0].TargetLayer
		refPath, err := layer.RefPath(target)
		if err != nil {
			return CommitResult{}, jinerr.Validationf("%v", err)
		}

		var baseTree plumbing.Hash
		if tip, err := a.Store.Resolve(refPath); err == nil {
			info, err := a.Store.ReadCommit(tip)
			if err != nil {
				return CommitResult{}, err
			}
			baseTree = info.Tree
		}

		manifest := store.Manifest{}
		var edits []store.PathEdit

		for _, e := range entries {
			switch e.Source {
			case stage.SourceStaged:
				edits = append(edits, store.PathEdit{Path: e.Path, Hash: e.ContentHash, Mode: e.ModeBits})
				manifest.Files = append(manifest.Files, e.Path)

			case stage.SourceRemoved:
				empty, err := a.Store.EmptyBlobHash()
				if err != nil {
					return CommitResult{}, err
				}
				edits = append(edits, store.PathEdit{Path: e.Path, Hash: empty, Mode: filemode.Regular})
				manifest.Files = append(manifest.Files, e.Path)
				manifest.Tombstones = append(manifest.Tombstones, e.Path)

			case stage.SourceRenamed:
				empty, err := a.Store.EmptyBlobHash()
				if err != nil {
					return CommitResult{}, err
				}
				edits = append(edits,
					store.PathEdit{Path: e.RenamedFrom, Hash: empty, Mode: filemode.Regular},
					store.PathEdit{Path: e.Path, Hash: e.ContentHash, Mode: e.ModeBits},
				)
				manifest.Files = append(manifest.Files, e.RenamedFrom, e.Path)
				manifest.Tombstones = append(manifest.Tombstones, e.RenamedFrom)
			}
		}

		tree, err := a.Store.ApplyEdits(baseTree, edits)
		if err != nil {
			return CommitResult{}, err
		}

		manifests[target.Key()] = manifest
		pending = append(pending, txn.PendingCommit{
			Layer:    target,
			Tree:     tree,
			Message:  message,
			Manifest: manifest,
		})
	}

	results, err := a.Committer.Commit(pending, a.signature)
	if err != nil {
		return CommitResult{}, err
	}

	if err := a.Stage.Clear(); err != nil {
		return CommitResult{}, err
	}

	for _, r := range results {
		a.recordAudit(r, ctx, manifests[r.Layer.Key()].Files)
	}

	return CommitResult{Results: results}, nil
}

// ResetMode selects how much state `jin reset` clears (spec §6 flags
// --soft/--mixed/--hard; semantics are git's conventional ones, Jin has
// no staged-index-vs-commit distinction beyond the staging index itself
// so --soft/--mixed differ only in whether paused-conflict state is also
// cleared).
type ResetMode int

const (
	ResetMixed ResetMode = iota // default: clear staging index + paused state
	ResetSoft                   // clear staging index only
	ResetHard                   // mixed, plus re-materialize workspace from layer tips
)

// Reset clears pending state per mode, optionally scoped to one target
// layer via flags (only entries routing to that layer are cleared; when
// scoped is false, everything is cleared).
func (a *App) Reset(mode ResetMode, flags layer.Flags, scoped bool) error {
	if !scoped {
		if err := a.Stage.Clear(); err != nil {
			return err
		}
	} else {
		ctx, err := a.ActiveContext()
		if err != nil {
			return err
		}
		target, err := layer.Route(flags, ctx, ctx.Project)
		if err != nil {
			return err
		}
		for _, e := range a.Stage.Entries() {
			if e.TargetLayer.Key() == target.Key() {
				if err := a.Stage.Unstage(e.Path); err != nil {
					return err
				}
			}
		}
	}

	if mode == ResetSoft {
		return nil
	}

	if err := a.Conflicts.Abandon(); err != nil {
		return err
	}

	if mode != ResetHard {
		return nil
	}

	return a.rematerialize()
}
