package syncboundary

import (
	"strings"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/dabstractor/jin/internal/layer"
	"github.com/dabstractor/jin/internal/store"
)

// splitRefSpec parses a literal (non-wildcard) "[+]src:dst" refspec, the
// only shape Boundary.Push ever builds.
func splitRefSpec(spec config.RefSpec) (src, dst string) {
	s := strings.TrimPrefix(string(spec), "+")
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(t.TempDir(), time.Second)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	return s
}

func testSig() store.Signature {
	return store.Signature{Name: "t", Email: "t@example.com", When: time.Unix(1700000000, 0).UTC()}
}

// commitGlobal writes a single-file commit to s and sets refs/jin/layers/
// global to it, returning its hash.
func commitGlobal(t *testing.T, s *store.Store, content string) plumbing.Hash {
	t.Helper()
	blob, err := s.WriteBlob([]byte(content))
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}
	tree, err := s.WriteTree([]store.Entry{{Name: "a.txt", Kind: store.BlobEntry, Hash: blob}})
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	hash, err := s.Commit(tree, nil, testSig(), "msg", store.Manifest{})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	refPath, err := layer.RefPath(layer.Instance{Kind: layer.GlobalBase})
	if err != nil {
		t.Fatalf("RefPath: %v", err)
	}
	if err := forceSetRef(s, refPath, hash); err != nil {
		t.Fatalf("forceSetRef: %v", err)
	}
	return hash
}

// forceSetRef sets refPath to hash regardless of its current value,
// working around Store.SetRef's CAS discipline for test setup.
func forceSetRef(s *store.Store, refPath string, hash plumbing.Hash) error {
	prev, err := s.Resolve(refPath)
	if err != nil {
		return s.SetRef(refPath, hash, nil)
	}
	return s.SetRef(refPath, hash, &prev)
}

func newBoundaryForTest(s *store.Store, remoteName string, paused PausedChecker, rt remoteTransport) *Boundary {
	return &Boundary{store: s, remote: rt, remoteName: remoteName, paused: paused}
}

// fakeTransport stands in for go-git's *git.Remote: Fetch copies
// preconfigured tracking-ref hashes into the boundary's own store (as a
// real fetch would, once object transfer has happened), and Push records
// what each refspec resolved to locally into remoteRefs.
type fakeTransport struct {
	store      *store.Store
	advance    map[string]plumbing.Hash
	remoteRefs map[string]plumbing.Hash
	fetchErr   error
	pushErr    error
	pushCalls  []gogit.PushOptions
}

func (f *fakeTransport) Fetch(o *gogit.FetchOptions) error {
	if f.fetchErr != nil {
		return f.fetchErr
	}
	for refPath, hash := range f.advance {
		if err := forceSetRef(f.store, refPath, hash); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeTransport) Push(o *gogit.PushOptions) error {
	f.pushCalls = append(f.pushCalls, *o)
	if f.pushErr != nil {
		return f.pushErr
	}
	if f.remoteRefs == nil {
		f.remoteRefs = map[string]plumbing.Hash{}
	}
	for _, spec := range o.RefSpecs {
		src, dst := splitRefSpec(spec)
		hash, err := f.store.Resolve(src)
		if err != nil {
			continue
		}
		f.remoteRefs[dst] = hash
	}
	return nil
}

type fakePaused struct {
	paused bool
	err    error
}

func (f fakePaused) HasPaused() (bool, error) { return f.paused, f.err }

func TestFetchReportsNewAndAdvancedRefs(t *testing.T) {
	s := newTestStore(t)
	trackRef := "refs/jin/remotes/origin/global"
	h1 := commitGlobal(t, s, "v1") // local commit, irrelevant to the fake's advance map directly

	ft := &fakeTransport{store: s, advance: map[string]plumbing.Hash{trackRef: h1}}
	b := newBoundaryForTest(s, "origin", nil, ft)

	updates, err := b.Fetch("refs/jin/layers/**")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(updates) != 1 {
		t.Fatalf("expected 1 update, got %+v", updates)
	}
	if updates[0].RefPath != trackRef || updates[0].HadOld || updates[0].NewHash != h1 {
		t.Fatalf("unexpected update: %+v", updates[0])
	}
	if !b.fetched {
		t.Fatalf("expected fetched flag set after Fetch")
	}

	// A second fetch that advances the same tracking ref reports OldHash.
	h2 := commitGlobal(t, s, "v2")
	ft.advance[trackRef] = h2
	updates, err = b.Fetch("refs/jin/layers/**")
	if err != nil {
		t.Fatalf("second Fetch: %v", err)
	}
	if len(updates) != 1 || !updates[0].HadOld || updates[0].OldHash != h1 || updates[0].NewHash != h2 {
		t.Fatalf("unexpected second update: %+v", updates)
	}
}

func TestFetchNoOpWhenNothingAdvances(t *testing.T) {
	s := newTestStore(t)
	ft := &fakeTransport{store: s, advance: map[string]plumbing.Hash{}}
	b := newBoundaryForTest(s, "origin", nil, ft)

	updates, err := b.Fetch("refs/jin/layers/**")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(updates) != 0 {
		t.Fatalf("expected no updates, got %+v", updates)
	}
}

func TestPushRequiresFetchFirst(t *testing.T) {
	s := newTestStore(t)
	ft := &fakeTransport{store: s}
	b := newBoundaryForTest(s, "origin", nil, ft)

	if _, err := b.Push("refs/jin/layers/**", false); err == nil {
		t.Fatalf("expected push to fail without a prior fetch")
	}
	if len(ft.pushCalls) != 0 {
		t.Fatalf("transport Push must not be called")
	}
}

func TestPushBlockedWhilePaused(t *testing.T) {
	s := newTestStore(t)
	ft := &fakeTransport{store: s, advance: map[string]plumbing.Hash{}}
	b := newBoundaryForTest(s, "origin", fakePaused{paused: true}, ft)
	if _, err := b.Fetch("refs/jin/layers/**"); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if _, err := b.Push("refs/jin/layers/**", false); err == nil {
		t.Fatalf("expected push to be blocked while paused")
	}
}

func TestPushFastForwardSucceeds(t *testing.T) {
	s := newTestStore(t)
	trackRef := "refs/jin/remotes/origin/global"
	base := commitGlobal(t, s, "v1")

	ft := &fakeTransport{store: s, advance: map[string]plumbing.Hash{trackRef: base}}
	b := newBoundaryForTest(s, "origin", nil, ft)
	if _, err := b.Fetch("refs/jin/layers/**"); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	// Advance the local ref past the fetched tracking tip: a fast-forward.
	blob, err := s.WriteBlob([]byte("v2"))
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}
	tree, err := s.WriteTree([]store.Entry{{Name: "a.txt", Kind: store.BlobEntry, Hash: blob}})
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	child, err := s.Commit(tree, []plumbing.Hash{base}, testSig(), "msg", store.Manifest{})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	refPath, err := layer.RefPath(layer.Instance{Kind: layer.GlobalBase})
	if err != nil {
		t.Fatalf("RefPath: %v", err)
	}
	if err := forceSetRef(s, refPath, child); err != nil {
		t.Fatalf("forceSetRef: %v", err)
	}

	rejected, err := b.Push("refs/jin/layers/**", false)
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	if len(rejected) != 0 {
		t.Fatalf("expected no rejections, got %+v", rejected)
	}
	if len(ft.pushCalls) != 1 {
		t.Fatalf("expected exactly one transport Push call, got %d", len(ft.pushCalls))
	}
}

func TestPushRejectsNonFastForwardUnlessForced(t *testing.T) {
	s := newTestStore(t)
	trackRef := "refs/jin/remotes/origin/global"
	base := commitGlobal(t, s, "v1")

	ft := &fakeTransport{store: s, advance: map[string]plumbing.Hash{trackRef: base}}
	b := newBoundaryForTest(s, "origin", nil, ft)
	if _, err := b.Fetch("refs/jin/layers/**"); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	// Diverge: rewrite refs/jin/layers/global to an unrelated commit that
	// does not descend from base, so base is not an ancestor of it.
	diverged := commitGlobal(t, s, "diverged-v1")
	refPath, _ := layer.RefPath(layer.Instance{Kind: layer.GlobalBase})
	if err := forceSetRef(s, refPath, diverged); err != nil {
		t.Fatalf("forceSetRef: %v", err)
	}

	rejected, err := b.Push("refs/jin/layers/**", false)
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	if len(rejected) != 1 || rejected[0].RefPath != refPath {
		t.Fatalf("expected a non-fast-forward rejection, got %+v", rejected)
	}

	rejected, err = b.Push("refs/jin/layers/**", true)
	if err != nil {
		t.Fatalf("forced Push: %v", err)
	}
	if len(rejected) != 0 {
		t.Fatalf("expected forced push to succeed, got %+v", rejected)
	}
}

func TestAffectedLayersFiltersToActiveContext(t *testing.T) {
	s := newTestStore(t)
	_ = s
	b := &Boundary{remoteName: "origin"}

	globalTrack := "refs/jin/remotes/origin/global"
	modeTrack := "refs/jin/remotes/origin/mode/dev/_"

	updates := []FetchUpdate{
		{RefPath: globalTrack, NewHash: plumbing.NewHash("aa")},
		{RefPath: modeTrack, NewHash: plumbing.NewHash("bb")},
	}

	// Active context has no mode set, so only the global layer applies.
	affected := b.AffectedLayers(updates, layer.Context{})
	if len(affected) != 1 || affected[0] != "global" {
		t.Fatalf("expected only global affected, got %v", affected)
	}

	affected = b.AffectedLayers(updates, layer.Context{ActiveMode: "dev"})
	if len(affected) != 2 {
		t.Fatalf("expected global and mode:dev affected, got %v", affected)
	}
}

func TestStarGlobNormalization(t *testing.T) {
	cases := map[string]string{
		"refs/jin/layers/**":          "refs/jin/layers/*",
		"refs/jin/layers/*":           "refs/jin/layers/*",
		"refs/jin/layers/mode/dev/**": "refs/jin/layers/mode/dev/*",
	}
	for in, want := range cases {
		if got := starGlob(in); got != want {
			t.Fatalf("starGlob(%q) = %q, want %q", in, got, want)
		}
	}
}
