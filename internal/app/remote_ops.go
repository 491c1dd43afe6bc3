package app

import (
	"strings"

	"github.com/dabstractor/jin/internal/jinerr"
	"github.com/dabstractor/jin/internal/remoteconfig"
	"github.com/dabstractor/jin/internal/syncboundary"
)

// Link records the remote `jin fetch`/`pull`/`push`/`sync` talk to (spec
// §6 `jin link <url>`). An empty url falls back to the host VCS's
// configured origin, when one exists.
func (a *App) Link(name, url string) error {
	if name == "" {
		name = a.Config.DefaultRemote
	}
	if url == "" {
		origin, err := a.Host.OriginURL()
		if err != nil {
			return err
		}
		if origin == "" {
			return jinerr.Validationf("no URL given and no host VCS origin to fall back to")
		}
		url = origin
	}
	return remoteconfig.Save(a.WorkspaceRoot, remoteconfig.Config{Name: name, URL: url})
}

func (a *App) boundary() (*syncboundary.Boundary, error) {
	cfg, ok, err := remoteconfig.Load(a.WorkspaceRoot)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, jinerr.Validationf("no remote linked; run `jin link <url>` first")
	}
	return syncboundary.Open(a.Store, cfg.Name, cfg.URL, a.Conflicts), nil
}

// Fetch advances remote-tracking refs and reports which active-context
// layers moved (spec §4.L).
func (a *App) Fetch() ([]string, error) {
	b, err := a.boundary()
	if err != nil {
		return nil, err
	}
	updates, err := b.Fetch("refs/jin/layers/**")
	if err != nil {
		return nil, err
	}
	ctx, err := a.ActiveContext()
	if err != nil {
		return nil, err
	}
	return b.AffectedLayers(updates, ctx), nil
}

// Pull fetches, then fast-forwards every local layer ref to its
// remote-tracking counterpart where that is a fast-forward; a layer
// whose local tip has diverged from the remote is left untouched and
// reported, since reconciling divergent layer history is apply's job
// (spec §4.L only specifies fetch/push; pull is this package's
// supplement combining the two around a fast-forward check already used
// by push).
func (a *App) Pull() (affected []string, diverged []string, err error) {
	b, berr := a.boundary()
	if berr != nil {
		return nil, nil, berr
	}
	updates, ferr := b.Fetch("refs/jin/layers/**")
	if ferr != nil {
		return nil, nil, ferr
	}

	for _, u := range updates {
		layerRef, ok := trackingToLayer(u.RefPath)
		if !ok {
			continue
		}
		local, lerr := a.Store.Resolve(layerRef)
		hadLocal := lerr == nil
		if hadLocal && local == u.NewHash {
			continue
		}
		if hadLocal {
			ff, aerr := a.Store.IsAncestor(local, u.NewHash)
			if aerr != nil {
				return nil, nil, aerr
			}
			if !ff {
				diverged = append(diverged, layerRef)
				continue
			}
			prev := local
			if err := a.Store.SetRef(layerRef, u.NewHash, &prev); err != nil {
				return nil, nil, err
			}
		} else {
			if err := a.Store.SetRef(layerRef, u.NewHash, nil); err != nil {
				return nil, nil, err
			}
		}
	}

	ctx, cerr := a.ActiveContext()
	if cerr != nil {
		return nil, diverged, cerr
	}
	return b.AffectedLayers(updates, ctx), diverged, nil
}

// Push publishes local layer refs to the remote (spec §4.L).
func (a *App) Push(force bool) ([]syncboundary.Rejected, error) {
	b, err := a.boundary()
	if err != nil {
		return nil, err
	}
	return b.Push("refs/jin/layers/**", force)
}

// SyncResult reports what `jin sync` did across its three phases.
type SyncResult struct {
	Affected []string
	Diverged []string
	Applied  ApplyResult
	Rejected []syncboundary.Rejected
}

// Sync composes pull, apply, and push into the one-shot round-trip `jin
// sync` offers (spec §6 lists `sync` with no further elaboration beyond
// the command surface; this ordering is this package's supplement: pull
// first so apply merges the freshest remote state, then push so the
// result is shared).
func (a *App) Sync(force bool) (SyncResult, error) {
	affected, diverged, err := a.Pull()
	if err != nil {
		return SyncResult{}, err
	}

	applied, err := a.Apply(false)
	if err != nil {
		return SyncResult{Affected: affected, Diverged: diverged}, err
	}
	if applied.Paused {
		return SyncResult{Affected: affected, Diverged: diverged, Applied: applied}, nil
	}

	rejected, err := a.Push(force)
	if err != nil {
		return SyncResult{Affected: affected, Diverged: diverged, Applied: applied}, err
	}
	return SyncResult{Affected: affected, Diverged: diverged, Applied: applied, Rejected: rejected}, nil
}

// trackingToLayer maps a remote-tracking ref (refs/jin/remotes/<name>/...)
// back to the local layer ref it tracks.
func trackingToLayer(trackingRef string) (string, bool) {
	const prefix = "refs/jin/remotes/"
	rest, ok := strings.CutPrefix(trackingRef, prefix)
	if !ok {
		return "", false
	}
	idx := strings.IndexByte(rest, '/')
	if idx < 0 {
		return "", false
	}
	return "refs/jin/layers/" + rest[idx+1:], true
}
