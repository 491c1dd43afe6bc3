package repair

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/dabstractor/jin/internal/context"
	"github.com/dabstractor/jin/internal/layer"
	"github.com/dabstractor/jin/internal/manifest"
	"github.com/dabstractor/jin/internal/stage"
	"github.com/dabstractor/jin/internal/store"
	"github.com/dabstractor/jin/internal/txn"
	"github.com/dabstractor/jin/internal/workspace"
)

type fakeHost struct{}

func (fakeHost) IsTracked(path string) (bool, error) { return false, nil }

type fakeIgnore struct {
	integrityErr error
	rebuilt      []string
}

func (f *fakeIgnore) CheckManagedBlockIntegrity() error { return f.integrityErr }
func (f *fakeIgnore) UpdateManagedBlock(paths []string) error {
	f.rebuilt = paths
	f.integrityErr = nil
	return nil
}

func newDeps(t *testing.T) (Deps, string) {
	t.Helper()
	root := t.TempDir()
	s, err := store.Open(t.TempDir(), time.Second)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	idx, err := stage.Open(root, fakeHost{}, 0)
	if err != nil {
		t.Fatalf("stage.Open: %v", err)
	}
	ctxMgr, err := context.Open(root, s)
	if err != nil {
		t.Fatalf("context.Open: %v", err)
	}
	ws, err := workspace.Open(root)
	if err != nil {
		t.Fatalf("workspace.Open: %v", err)
	}
	return Deps{
		Store:     s,
		Committer: txn.New(s),
		Index:     idx,
		Ctx:       ctxMgr,
		Workspace: ws,
		Ancestors: s,
	}, root
}

func sigFor() store.Signature {
	return store.Signature{Name: "t", Email: "t@example.com", When: time.Now()}
}

func TestCheckStagingIndexIntegrityRemovesStaleEntries(t *testing.T) {
	deps, root := newDeps(t)
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := deps.Index.StageAdd("a.txt", layer.Instance{Kind: layer.GlobalBase}, plumbing.ZeroHash, 0); err != nil {
		t.Fatalf("StageAdd a: %v", err)
	}
	if err := deps.Index.StageAdd("gone.txt", layer.Instance{Kind: layer.GlobalBase}, plumbing.ZeroHash, 0); err != nil {
		t.Fatalf("StageAdd gone: %v", err)
	}

	findings, err := Run(deps, time.Now(), Options{DryRun: true})
	if err != nil {
		t.Fatalf("Run dry-run: %v", err)
	}
	if !hasFinding(findings, "stale-staging-entry", false) {
		t.Fatalf("expected dry-run stale-staging-entry finding, got %+v", findings)
	}
	if len(deps.Index.Entries()) != 2 {
		t.Fatalf("dry-run must not mutate index, got %d entries", len(deps.Index.Entries()))
	}

	findings, err = Run(deps, time.Now(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !hasFinding(findings, "stale-staging-entry", true) {
		t.Fatalf("expected applied stale-staging-entry finding, got %+v", findings)
	}
	if len(deps.Index.Entries()) != 1 {
		t.Fatalf("expected gone.txt unstaged, got %+v", deps.Index.Entries())
	}
}

func TestCheckLayerMapRegeneratesWhenMissing(t *testing.T) {
	deps, root := newDeps(t)

	findings, err := Run(deps, time.Now(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !hasFinding(findings, "layer-map", true) {
		t.Fatalf("expected layer-map regeneration finding, got %+v", findings)
	}
	if _, ok, err := manifest.Load(root); err != nil || !ok {
		t.Fatalf("expected .jinmap to exist after repair, ok=%v err=%v", ok, err)
	}
}

func TestCheckManagedIgnoreBlockRebuildsFromLayerMap(t *testing.T) {
	deps, root := newDeps(t)
	if err := manifest.Save(root, manifest.Map{Layers: []manifest.LayerMap{
		{Label: "global", Paths: []string{"a.txt", "b.txt"}},
	}}); err != nil {
		t.Fatalf("manifest.Save: %v", err)
	}
	ignore := &fakeIgnore{integrityErr: errCorrupt}
	deps.Ignore = ignore

	findings, err := Run(deps, time.Now(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !hasFinding(findings, "managed-ignore-block", true) {
		t.Fatalf("expected managed-ignore-block rebuild finding, got %+v", findings)
	}
	if len(ignore.rebuilt) != 2 {
		t.Fatalf("expected 2 paths rebuilt, got %v", ignore.rebuilt)
	}
}

func TestCheckStaleActiveContextClearsDeletedMode(t *testing.T) {
	deps, _ := newDeps(t)
	if err := deps.Ctx.ModeCreate("dev", sigFor()); err != nil {
		t.Fatal(err)
	}
	if err := deps.Ctx.ModeUse("dev"); err != nil {
		t.Fatal(err)
	}
	if err := deps.Ctx.ModeDelete("dev"); err != nil {
		t.Fatal(err)
	}

	findings, err := Run(deps, time.Now(), Options{DryRun: true})
	if err != nil {
		t.Fatalf("Run dry-run: %v", err)
	}
	if !hasFinding(findings, "stale-active-context", false) {
		t.Fatalf("expected dry-run stale-active-context finding, got %+v", findings)
	}

	findings, err = Run(deps, time.Now(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !hasFinding(findings, "stale-active-context", true) {
		t.Fatalf("expected applied stale-active-context finding, got %+v", findings)
	}
	active, err := deps.Ctx.Active()
	if err != nil {
		t.Fatal(err)
	}
	if active.ActiveMode != "" {
		t.Fatalf("expected active mode cleared, got %q", active.ActiveMode)
	}
}

func hasFinding(findings []Finding, check string, applied bool) bool {
	for _, f := range findings {
		if f.Check == check && f.Applied == applied {
			return true
		}
	}
	return false
}

var errCorrupt = &corruptErr{}

type corruptErr struct{}

func (*corruptErr) Error() string { return "managed ignore block markers missing" }
