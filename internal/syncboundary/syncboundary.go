// Package syncboundary implements the remote transport surface (spec
// §4.L): fetch advances remote-tracking refs, push publishes local layer
// refs under fast-forward or explicit force, and a post-fetch advisory
// reports which of the active context's layers moved.
//
// It is built directly on go-git's Remote, operating on the object
// store's own storage.Storer (internal/store.Store.Storer) rather than a
// checked-out working tree: the store already is a bare go-git
// repository, so fetch and push read and write objects and refs straight
// into it, the same way internal/store's other operations do (spec
// §4.A). This is a different boundary from internal/hostvcs, which
// shells out to the *host's* git/jj binary to talk to the user's
// existing checkout.
package syncboundary

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/dabstractor/jin/internal/introspect"
	"github.com/dabstractor/jin/internal/jinerr"
	"github.com/dabstractor/jin/internal/layer"
	"github.com/dabstractor/jin/internal/store"
)

const (
	layerPrefix    = "refs/jin/layers/"
	trackingPrefix = "refs/jin/remotes/"
)

// PausedChecker reports whether a paused conflict resolution is in
// progress, implemented by internal/conflict.Manager. Declared here to
// avoid an import cycle.
type PausedChecker interface {
	HasPaused() (bool, error)
}

// FetchUpdate is one advanced remote-tracking reference (spec §4.L:
// "fetch(ref_glob) -> iter<(ref_path, old_hash?, new_hash)>"). RefPath
// names the remote-tracking ref, under refs/jin/remotes/<remote>/.
type FetchUpdate struct {
	RefPath string
	OldHash plumbing.Hash
	HadOld  bool
	NewHash plumbing.Hash
}

// Rejected is one ref push refused by the boundary (spec §4.L:
// "push(ref_glob, force?) -> Ok | Rejected(ref_path, reason)").
type Rejected struct {
	RefPath string
	Reason  string
}

// remoteTransport is the slice of *git.Remote the boundary actually
// calls, narrowed to an interface so tests can exercise the ref-diffing,
// fast-forward, and invocation-ordering logic below without a live
// transport.
type remoteTransport interface {
	Fetch(o *git.FetchOptions) error
	Push(o *git.PushOptions) error
}

// Boundary is the narrow transport surface over one object store and one
// remote. One Boundary corresponds to one command invocation: Push
// requires that Fetch already ran on the same Boundary (spec §4.L).
type Boundary struct {
	store      *store.Store
	remote     remoteTransport
	remoteName string
	paused     PausedChecker
	fetched    bool
}

// Open returns a Boundary for remoteName at url, backed by the object
// store's own storer. paused may be nil if no conflict manager applies
// (push is then never blocked on that ground).
func Open(s *store.Store, remoteName, url string, paused PausedChecker) *Boundary {
	remote := git.NewRemote(s.Storer(), &config.RemoteConfig{Name: remoteName, URLs: []string{url}})
	return &Boundary{store: s, remote: remote, remoteName: remoteName, paused: paused}
}

// Fetch advances the remote-tracking refs mirroring refGlob under
// refs/jin/layers/ and reports what moved. refGlob follows the same
// grammar as Store.ListRefs, e.g. "refs/jin/layers/**".
func (b *Boundary) Fetch(refGlob string) ([]FetchUpdate, error) {
	srcGlob := starGlob(refGlob)
	trackGlob := b.trackingPath(srcGlob)

	before, err := b.store.ListRefs(b.trackingPath(refGlob))
	if err != nil {
		return nil, err
	}
	beforeByPath := make(map[string]plumbing.Hash, len(before))
	for _, r := range before {
		beforeByPath[r.RefPath] = r.Hash
	}

	spec := config.RefSpec(fmt.Sprintf("+%s:%s", srcGlob, trackGlob))
	err = b.store.WithWriteLock(func() error {
		ferr := b.remote.Fetch(&git.FetchOptions{
			RemoteName: b.remoteName,
			RefSpecs:   []config.RefSpec{spec},
		})
		if ferr != nil && ferr != git.NoErrAlreadyUpToDate {
			return jinerr.Transportf(ferr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	after, err := b.store.ListRefs(b.trackingPath(refGlob))
	if err != nil {
		return nil, err
	}

	var updates []FetchUpdate
	for _, r := range after {
		old, had := beforeByPath[r.RefPath]
		if had && old == r.Hash {
			continue
		}
		updates = append(updates, FetchUpdate{RefPath: r.RefPath, OldHash: old, HadOld: had, NewHash: r.Hash})
	}
	sort.Slice(updates, func(i, j int) bool { return updates[i].RefPath < updates[j].RefPath })

	b.fetched = true
	return updates, nil
}

// Push publishes local layer refs matching refGlob to the remote at the
// same ref path. A ref whose remote-tracking counterpart is not an
// ancestor of its local tip is rejected rather than pushed, unless force
// is set (spec §4.L: "push is rejected on non-fast-forward unless
// force"). Push itself requires that Fetch has already run on this
// Boundary and that no conflict resolution is paused.
func (b *Boundary) Push(refGlob string, force bool) ([]Rejected, error) {
	if !b.fetched {
		return nil, jinerr.Routef("push requires a fetch in this invocation first")
	}
	if b.paused != nil {
		paused, err := b.paused.HasPaused()
		if err != nil {
			return nil, err
		}
		if paused {
			return nil, jinerr.Routef("push is blocked while a conflict resolution is paused")
		}
	}

	localRefs, err := b.store.ListRefs(refGlob)
	if err != nil {
		return nil, err
	}
	tracking, err := b.store.ListRefs(b.trackingPath(refGlob))
	if err != nil {
		return nil, err
	}
	trackingByLayerPath := make(map[string]plumbing.Hash, len(tracking))
	for _, r := range tracking {
		if layerPath, ok := b.layerPathFromTracking(r.RefPath); ok {
			trackingByLayerPath[layerPath] = r.Hash
		}
	}

	var rejected []Rejected
	var specs []config.RefSpec
	for _, r := range localRefs {
		if !force {
			if remoteHash, known := trackingByLayerPath[r.RefPath]; known {
				ok, err := b.store.IsAncestor(remoteHash, r.Hash)
				if err != nil {
					return nil, err
				}
				if !ok {
					rejected = append(rejected, Rejected{RefPath: r.RefPath, Reason: "non-fast-forward"})
					continue
				}
			}
		}
		prefix := ""
		if force {
			prefix = "+"
		}
		specs = append(specs, config.RefSpec(fmt.Sprintf("%s%s:%s", prefix, r.RefPath, r.RefPath)))
	}

	if len(specs) == 0 {
		return rejected, nil
	}

	err = b.store.WithWriteLock(func() error {
		perr := b.remote.Push(&git.PushOptions{RemoteName: b.remoteName, RefSpecs: specs, Force: force})
		if perr != nil && perr != git.NoErrAlreadyUpToDate {
			return jinerr.Transportf(perr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rejected, nil
}

// AffectedLayers compares updates (as returned by Fetch) against ctx's
// active layer set and reports the human-readable labels of layers that
// moved, deduplicated and sorted (spec §4.L: "surface an advisory list
// of affected layers").
func (b *Boundary) AffectedLayers(updates []FetchUpdate, ctx layer.Context) []string {
	relevant := make(map[string]bool)
	for _, inst := range layer.LayersInPrecedenceOrder(ctx) {
		if p, err := layer.RefPath(inst); err == nil {
			relevant[p] = true
		}
	}

	seen := make(map[string]bool)
	var affected []string
	for _, u := range updates {
		layerPath, ok := b.layerPathFromTracking(u.RefPath)
		if !ok || !relevant[layerPath] {
			continue
		}
		inst, err := layer.ParseRef(layerPath)
		if err != nil {
			continue
		}
		label := introspect.LayerLabel(inst)
		if !seen[label] {
			seen[label] = true
			affected = append(affected, label)
		}
	}
	sort.Strings(affected)
	return affected
}

// trackingPath maps a refs/jin/layers/... path (or glob) to its
// remote-tracking counterpart under refs/jin/remotes/<remote>/...,
// mirroring git's own refs/remotes/<remote>/* convention.
func (b *Boundary) trackingPath(layerRefOrGlob string) string {
	rest := strings.TrimPrefix(layerRefOrGlob, layerPrefix)
	return trackingPrefix + b.remoteName + "/" + rest
}

// layerPathFromTracking is trackingPath's inverse.
func (b *Boundary) layerPathFromTracking(trackingRefPath string) (string, bool) {
	rest, ok := strings.CutPrefix(trackingRefPath, trackingPrefix+b.remoteName+"/")
	if !ok {
		return "", false
	}
	return layerPrefix + rest, true
}

// starGlob normalizes a Store.ListRefs-style glob ("refs/jin/layers/**"
// or an exact path) to the single-star form a git.RefSpec wildcard
// expects.
func starGlob(glob string) string {
	g := strings.TrimSuffix(glob, "/**")
	g = strings.TrimSuffix(g, "/*")
	return g + "/*"
}
