// Package repair implements the single-entry-point diagnostic and
// recovery pass (spec §4.J): orphan staging refs, stale staging-index
// entries, layer-map regeneration, managed-ignore-block repair, detached
// workspace detection, and stale active-context references. Every check
// supports a dry-run mode that reports findings without mutating state.
package repair

import (
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/dabstractor/jin/internal/context"
	"github.com/dabstractor/jin/internal/jinerr"
	"github.com/dabstractor/jin/internal/layer"
	"github.com/dabstractor/jin/internal/manifest"
	"github.com/dabstractor/jin/internal/stage"
	"github.com/dabstractor/jin/internal/store"
	"github.com/dabstractor/jin/internal/txn"
	"github.com/dabstractor/jin/internal/workspace"
)

// Finding is one repair check's result: what was wrong (or would be) and
// what repair was applied or proposed.
type Finding struct {
	Check   string
	Detail  string
	Applied bool // false in dry-run mode, or if the check found nothing
}

// IgnoreRepairer is the managed-ignore-block surface repair needs,
// implemented by internal/hostvcs.Host. Declared here to avoid an import
// cycle.
type IgnoreRepairer interface {
	CheckManagedBlockIntegrity() error
	UpdateManagedBlock(paths []string) error
}

// Options configures a repair run.
type Options struct {
	DryRun              bool
	OrphanStagingMaxAge time.Duration
	LayerLabel          func(layer.Instance) string
}

// Deps bundles the collaborators one repair pass operates over. Any of
// Ignore may be nil when that subsystem is not in use (e.g. no host VCS
// detected), in which case its check is skipped.
type Deps struct {
	Store     *store.Store
	Committer *txn.Committer
	Index     *stage.Index
	Ctx       *context.Manager
	Workspace *workspace.Workspace
	Ignore    IgnoreRepairer
	Ancestors workspace.AncestorChecker
}

// Run executes every repair check in spec §4.J's order and returns the
// findings. In dry-run mode no state is changed; Finding.Applied is
// always false and Finding.Detail describes the proposed repair instead.
func Run(deps Deps, now time.Time, opts Options) ([]Finding, error) {
	var findings []Finding

	f, err := checkOrphanStaging(deps, now, opts)
	if err != nil {
		return findings, err
	}
	findings = append(findings, f...)

	f, err = checkStagingIndexIntegrity(deps, opts)
	if err != nil {
		return findings, err
	}
	findings = append(findings, f...)

	f, err = checkLayerMap(deps, opts)
	if err != nil {
		return findings, err
	}
	findings = append(findings, f...)

	f, err = checkManagedIgnoreBlock(deps, opts)
	if err != nil {
		return findings, err
	}
	findings = append(findings, f...)

	f, err = checkDetachedWorkspace(deps, opts)
	if err != nil {
		return findings, err
	}
	findings = append(findings, f...)

	f, err = checkStaleActiveContext(deps, opts)
	if err != nil {
		return findings, err
	}
	findings = append(findings, f...)

	return findings, nil
}

// checkOrphanStaging is spec §4.J item 1.
func checkOrphanStaging(deps Deps, now time.Time, opts Options) ([]Finding, error) {
	maxAge := opts.OrphanStagingMaxAge
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}

	if opts.DryRun {
		// RecoverOrphanStaging itself deletes; dry-run needs a read-only
		// preview, so list the same refs without acting on them.
		refs, err := deps.Store.ListRefs("refs/jin/staging/**")
		if err != nil {
			return nil, err
		}
		var out []Finding
		for _, r := range refs {
			info, err := deps.Store.ReadCommit(r.Hash)
			if err != nil || now.Sub(info.Committer.When) > maxAge {
				out = append(out, Finding{Check: "orphan-staging-ref", Detail: "would delete " + r.RefPath})
			}
		}
		return out, nil
	}

	removed, err := deps.Committer.RecoverOrphanStaging(maxAge, now)
	if err != nil {
		return nil, err
	}
	var out []Finding
	for _, ref := range removed {
		out = append(out, Finding{Check: "orphan-staging-ref", Detail: "deleted " + ref, Applied: true})
	}
	return out, nil
}

// checkStagingIndexIntegrity is spec §4.J item 2: entries naming files
// that no longer exist in the workspace are stale.
func checkStagingIndexIntegrity(deps Deps, opts Options) ([]Finding, error) {
	if deps.Index == nil || deps.Workspace == nil {
		return nil, nil
	}
	var out []Finding
	for _, e := range deps.Index.Entries() {
		full := filepath.Join(deps.Workspace.Root(), filepath.FromSlash(e.Path))
		if _, err := os.Stat(full); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			return nil, jinerr.Wrap(err)
		}

		if opts.DryRun {
			out = append(out, Finding{Check: "stale-staging-entry", Detail: "would unstage " + e.Path})
			continue
		}
		if err := deps.Index.Unstage(e.Path); err != nil {
			return nil, err
		}
		out = append(out, Finding{Check: "stale-staging-entry", Detail: "unstaged " + e.Path, Applied: true})
	}
	return out, nil
}

// checkLayerMap is spec §4.J item 3: regenerate `.jinmap` if missing or
// malformed.
func checkLayerMap(deps Deps, opts Options) ([]Finding, error) {
	if deps.Ctx == nil || deps.Workspace == nil {
		return nil, nil
	}
	m, ok, err := manifest.Load(deps.Workspace.Root())
	if err != nil {
		// Corrupt: still needs regeneration below.
		ok = false
	}
	if ok && manifest.Valid(m) {
		return nil, nil
	}

	if opts.DryRun {
		return []Finding{{Check: "layer-map", Detail: "would regenerate .jinmap"}}, nil
	}

	ctx, err := deps.Ctx.Active()
	if err != nil {
		return nil, err
	}
	label := opts.LayerLabel
	if label == nil {
		label = func(inst layer.Instance) string { return inst.Key() }
	}
	fresh, err := manifest.Generate(deps.Store, ctx, label)
	if err != nil {
		return nil, err
	}
	if err := manifest.Save(deps.Workspace.Root(), fresh); err != nil {
		return nil, err
	}
	return []Finding{{Check: "layer-map", Detail: "regenerated .jinmap", Applied: true}}, nil
}

// checkManagedIgnoreBlock is spec §4.J item 4: detect missing/corrupt
// delimiters and rebuild from the layer map.
func checkManagedIgnoreBlock(deps Deps, opts Options) ([]Finding, error) {
	if deps.Ignore == nil || deps.Workspace == nil {
		return nil, nil
	}
	if err := deps.Ignore.CheckManagedBlockIntegrity(); err == nil {
		return nil, nil
	}

	if opts.DryRun {
		return []Finding{{Check: "managed-ignore-block", Detail: "would rebuild managed ignore block"}}, nil
	}

	m, ok, err := manifest.Load(deps.Workspace.Root())
	if err != nil || !ok {
		return nil, &jinerr.Error{Kind: jinerr.Corrupt,
			Message: "cannot rebuild managed ignore block: layer map unavailable, run layer-map repair first"}
	}
	var paths []string
	for _, l := range m.Layers {
		paths = append(paths, l.Paths...)
	}
	if err := deps.Ignore.UpdateManagedBlock(paths); err != nil {
		return nil, err
	}
	return []Finding{{Check: "managed-ignore-block", Detail: "rebuilt managed ignore block", Applied: true}}, nil
}

// checkDetachedWorkspace is spec §4.J item 5.
func checkDetachedWorkspace(deps Deps, opts Options) ([]Finding, error) {
	if deps.Workspace == nil || deps.Ancestors == nil || deps.Ctx == nil {
		return nil, nil
	}
	ctx, err := deps.Ctx.Active()
	if err != nil {
		return nil, err
	}
	tip, err := currentTip(deps.Store, ctx)
	if err != nil {
		return nil, err
	}
	if tip.IsZero() {
		return nil, nil
	}
	err = deps.Workspace.CheckDetached(deps.Ancestors, tip)
	if err == nil {
		return nil, nil
	}

	detail := "workspace detached from live layer tips"
	if opts.DryRun {
		return []Finding{{Check: "detached-workspace", Detail: detail + " (would reset on next apply --force or reset --hard)"}}, nil
	}
	return []Finding{{Check: "detached-workspace", Detail: detail + "; run reset --hard to recover"}}, nil
}

func currentTip(s *store.Store, ctx layer.Context) (plumbing.Hash, error) {
	instances := layer.LayersInPrecedenceOrder(ctx)
	for i := len(instances) - 1; i >= 0; i-- {
		refPath, err := layer.RefPath(instances[i])
		if err != nil {
			continue
		}
		hash, err := s.Resolve(refPath)
		if err != nil {
			continue
		}
		return hash, nil
	}
	return plumbing.ZeroHash, nil
}

// checkStaleActiveContext is spec §4.J item 6.
func checkStaleActiveContext(deps Deps, opts Options) ([]Finding, error) {
	if deps.Ctx == nil {
		return nil, nil
	}
	if opts.DryRun {
		// Preview without mutating: reuse the same existence checks
		// ClearStaleActive performs, but discard its write.
		active, err := deps.Ctx.Active()
		if err != nil {
			return nil, err
		}
		var out []Finding
		if active.ActiveMode != "" {
			if _, err := deps.Store.Resolve(mustRefPath(layer.Instance{Kind: layer.ModeBase, Mode: active.ActiveMode})); err != nil {
				out = append(out, Finding{Check: "stale-active-context", Detail: "would clear active mode " + active.ActiveMode})
			}
		}
		if active.ActiveScope.String() != "" {
			if _, err := deps.Store.Resolve(mustRefPath(layer.Instance{Kind: layer.ScopeBase, Scope: active.ActiveScope})); err != nil {
				out = append(out, Finding{Check: "stale-active-context", Detail: "would clear active scope " + active.ActiveScope.String()})
			}
		}
		return out, nil
	}

	cleared, err := deps.Ctx.ClearStaleActive()
	if err != nil {
		return nil, err
	}
	var out []Finding
	for _, c := range cleared {
		out = append(out, Finding{Check: "stale-active-context", Detail: "cleared " + c, Applied: true})
	}
	return out, nil
}

func mustRefPath(inst layer.Instance) string {
	p, err := layer.RefPath(inst)
	if err != nil {
		return ""
	}
	return p
}
