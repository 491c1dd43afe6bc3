package introspect

import (
	"testing"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"

	"github.com/dabstractor/jin/internal/conflict"
	"github.com/dabstractor/jin/internal/layer"
	"github.com/dabstractor/jin/internal/stage"
)

type fakeHostTracker struct{}

func (fakeHostTracker) IsTracked(path string) (bool, error) { return false, nil }

type fakeIgnoreChecker struct{ err error }

func (f fakeIgnoreChecker) CheckManagedBlockIntegrity() error { return f.err }

func newTestIndex(t *testing.T) *stage.Index {
	t.Helper()
	idx, err := stage.Open(t.TempDir(), fakeHostTracker{}, 0)
	if err != nil {
		t.Fatalf("stage.Open: %v", err)
	}
	return idx
}

func newTestConflictManager(t *testing.T) *conflict.Manager {
	t.Helper()
	m, err := conflict.Open(t.TempDir())
	if err != nil {
		t.Fatalf("conflict.Open: %v", err)
	}
	return m
}

func TestBuildStatusGroupsStagedEntriesByLayerLabel(t *testing.T) {
	idx := newTestIndex(t)
	if err := idx.StageAdd("a.txt", layer.Instance{Kind: layer.GlobalBase}, plumbing.ZeroHash, filemode.Regular); err != nil {
		t.Fatalf("StageAdd: %v", err)
	}
	if err := idx.StageAdd("b.txt", layer.Instance{Kind: layer.ModeBase, Mode: "dev"}, plumbing.ZeroHash, filemode.Regular); err != nil {
		t.Fatalf("StageAdd: %v", err)
	}

	conflicts := newTestConflictManager(t)
	ctx := layer.Context{ActiveMode: "dev"}

	status, err := BuildStatus(ctx, idx, conflicts, fakeIgnoreChecker{})
	if err != nil {
		t.Fatalf("BuildStatus: %v", err)
	}
	if len(status.StagedByLayer["global"]) != 1 {
		t.Fatalf("expected 1 entry under global, got %+v", status.StagedByLayer)
	}
	if len(status.StagedByLayer["mode:dev"]) != 1 {
		t.Fatalf("expected 1 entry under mode:dev, got %+v", status.StagedByLayer)
	}
	if status.Paused {
		t.Fatal("expected Paused false with no paused apply")
	}
	if !status.IgnoreHealth.OK {
		t.Fatalf("expected ignore health OK, got %+v", status.IgnoreHealth)
	}
}

func TestBuildStatusReportsIgnoreHealthError(t *testing.T) {
	idx := newTestIndex(t)
	conflicts := newTestConflictManager(t)
	ctx := layer.Context{}

	status, err := BuildStatus(ctx, idx, conflicts, fakeIgnoreChecker{err: errBoom})
	if err != nil {
		t.Fatalf("BuildStatus: %v", err)
	}
	if status.IgnoreHealth.OK {
		t.Fatal("expected ignore health not OK")
	}
	if status.IgnoreHealth.Error == "" {
		t.Fatal("expected ignore health error message")
	}
}

func TestBuildStatusReportsPausedConflicts(t *testing.T) {
	idx := newTestIndex(t)
	conflicts := newTestConflictManager(t)
	if _, err := conflicts.Begin(map[string][]byte{"x.txt": []byte("<<<<<<< ours\na\n=======\nb\n>>>>>>> theirs\n")}, plumbing.ZeroHash); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	ctx := layer.Context{}

	status, err := BuildStatus(ctx, idx, conflicts, fakeIgnoreChecker{})
	if err != nil {
		t.Fatalf("BuildStatus: %v", err)
	}
	if !status.Paused {
		t.Fatal("expected Paused true")
	}
	if len(status.ConflictPaths) != 1 || status.ConflictPaths[0] != "x.txt" {
		t.Fatalf("expected conflict path x.txt, got %v", status.ConflictPaths)
	}
}

var errBoom = errTest("boom")

type errTest string

func (e errTest) Error() string { return string(e) }
