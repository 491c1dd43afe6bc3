package introspect

import (
	"testing"
	"time"

	"github.com/dabstractor/jin/internal/layer"
	"github.com/dabstractor/jin/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(t.TempDir(), time.Second)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	return s
}

func testSig() store.Signature {
	return store.Signature{Name: "t", Email: "t@example.com", When: time.Now()}
}

func commitLayer(t *testing.T, s *store.Store, inst layer.Instance, msg string, manifest store.Manifest) {
	t.Helper()
	refPath, err := layer.RefPath(inst)
	if err != nil {
		t.Fatalf("RefPath: %v", err)
	}
	tree, err := s.WriteTree(nil)
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	commitHash, err := s.Commit(tree, nil, testSig(), msg, manifest)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := s.SetRef(refPath, commitHash, nil); err != nil {
		t.Fatalf("SetRef: %v", err)
	}
}

func TestLayerLabel(t *testing.T) {
	cases := []struct {
		inst layer.Instance
		want string
	}{
		{layer.Instance{Kind: layer.GlobalBase}, "global"},
		{layer.Instance{Kind: layer.ModeBase, Mode: "dev"}, "mode:dev"},
		{layer.Instance{Kind: layer.ProjectBase, Project: "widgets"}, "project:widgets"},
	}
	for _, c := range cases {
		if got := LayerLabel(c.inst); got != c.want {
			t.Errorf("LayerLabel(%+v) = %q, want %q", c.inst, got, c.want)
		}
	}
}

func TestLogEnumeratesLayersInPrecedenceOrder(t *testing.T) {
	s := newTestStore(t)

	commitLayer(t, s, layer.Instance{Kind: layer.GlobalBase}, "global commit", store.Manifest{Files: []string{"a.txt"}})
	commitLayer(t, s, layer.Instance{Kind: layer.ModeBase, Mode: "dev"}, "mode commit", store.Manifest{Files: []string{"b.txt"}})

	ctx := layer.Context{ActiveMode: "dev"}
	logs, err := Log(s, ctx, LogOptions{})
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected 2 layer logs, got %d", len(logs))
	}
	if logs[0].Layer.Kind.Precedence() > logs[1].Layer.Kind.Precedence() {
		t.Fatalf("expected ascending precedence order, got %+v", logs)
	}
	for _, l := range logs {
		if len(l.Entries) != 1 {
			t.Fatalf("expected 1 entry for layer %+v, got %d", l.Layer, len(l.Entries))
		}
	}
}

func TestLogFiltersByLayerLabel(t *testing.T) {
	s := newTestStore(t)
	commitLayer(t, s, layer.Instance{Kind: layer.GlobalBase}, "global commit", store.Manifest{})
	commitLayer(t, s, layer.Instance{Kind: layer.ModeBase, Mode: "dev"}, "mode commit", store.Manifest{})

	ctx := layer.Context{ActiveMode: "dev"}
	logs, err := Log(s, ctx, LogOptions{LayerLabel: "mode:dev"})
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if len(logs) != 1 || logs[0].Layer.Mode != "dev" {
		t.Fatalf("expected only mode:dev layer, got %+v", logs)
	}
}

func TestLogExcludesOutOfContextLayersUnlessAll(t *testing.T) {
	s := newTestStore(t)
	commitLayer(t, s, layer.Instance{Kind: layer.GlobalBase}, "global commit", store.Manifest{})
	commitLayer(t, s, layer.Instance{Kind: layer.ModeBase, Mode: "prod"}, "mode commit", store.Manifest{})

	ctx := layer.Context{ActiveMode: "dev"}
	logs, err := Log(s, ctx, LogOptions{})
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	for _, l := range logs {
		if l.Layer.Kind == layer.ModeBase && l.Layer.Mode == "prod" {
			t.Fatalf("expected prod mode layer excluded from dev context, got %+v", logs)
		}
	}

	all, err := Log(s, ctx, LogOptions{All: true})
	if err != nil {
		t.Fatalf("Log All: %v", err)
	}
	found := false
	for _, l := range all {
		if l.Layer.Kind == layer.ModeBase && l.Layer.Mode == "prod" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected prod mode layer included with All:true")
	}
}

func TestDiffFileStructuredJSON(t *testing.T) {
	fd, err := DiffFile("config.json", []byte(`{"a":1,"b":2}`), []byte(`{"a":1,"c":3}`))
	if err != nil {
		t.Fatalf("DiffFile: %v", err)
	}
	if !fd.Structured {
		t.Fatal("expected structured diff for .json path")
	}
	if len(fd.ChangedPaths) == 0 {
		t.Fatal("expected changed paths to be reported")
	}
}

func TestDiffFileTextualFallback(t *testing.T) {
	old := []byte("line one\nline two\n")
	new := []byte("line one\nline three\n")
	fd, err := DiffFile("notes.txt", old, new)
	if err != nil {
		t.Fatalf("DiffFile: %v", err)
	}
	if fd.Structured {
		t.Fatal("expected textual diff for .txt path")
	}
	var sawAdded, sawRemoved bool
	for _, l := range fd.Lines {
		if l.Type == LineAdded {
			sawAdded = true
		}
		if l.Type == LineRemoved {
			sawRemoved = true
		}
	}
	if !sawAdded || !sawRemoved {
		t.Fatalf("expected both added and removed lines, got %+v", fd.Lines)
	}
}

func TestDiffFileMalformedStructuredFallsBackToText(t *testing.T) {
	fd, err := DiffFile("config.json", []byte(`{not json`), []byte(`{"a":1}`))
	if err != nil {
		t.Fatalf("DiffFile: %v", err)
	}
	if fd.Structured {
		t.Fatal("expected fallback to textual diff when old side fails to parse")
	}
}
