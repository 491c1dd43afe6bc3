package manifest

import (
	"os"
	"path/filepath"
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

func commitLayerWithFile(t *testing.T, s *store.Store, inst layer.Instance, path, content string) {
	t.Helper()
	blob, err := s.WriteBlob([]byte(content))
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}
	tree, err := s.WriteTree([]store.Entry{{Name: path, Kind: store.BlobEntry, Hash: blob}})
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	refPath, err := layer.RefPath(inst)
	if err != nil {
		t.Fatalf("RefPath: %v", err)
	}
	commitHash, err := s.Commit(tree, nil, testSig(), "add "+path, store.Manifest{Files: []string{path}})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := s.SetRef(refPath, commitHash, nil); err != nil {
		t.Fatalf("SetRef: %v", err)
	}
}

func label(inst layer.Instance) string {
	if inst.Kind == layer.GlobalBase {
		return "global"
	}
	return "mode:" + inst.Mode
}

func TestGenerateDerivesPathsPerLayer(t *testing.T) {
	s := newTestStore(t)
	commitLayerWithFile(t, s, layer.Instance{Kind: layer.GlobalBase}, "a.txt", "a")
	commitLayerWithFile(t, s, layer.Instance{Kind: layer.ModeBase, Mode: "dev"}, "b.txt", "b")

	ctx := layer.Context{ActiveMode: "dev"}
	m, err := Generate(s, ctx, label)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(m.Layers) != 2 {
		t.Fatalf("expected 2 layers, got %+v", m.Layers)
	}
	found := map[string][]string{}
	for _, l := range m.Layers {
		found[l.Label] = l.Paths
	}
	if len(found["global"]) != 1 || found["global"][0] != "a.txt" {
		t.Fatalf("expected global -> [a.txt], got %+v", found["global"])
	}
	if len(found["mode:dev"]) != 1 || found["mode:dev"][0] != "b.txt" {
		t.Fatalf("expected mode:dev -> [b.txt], got %+v", found["mode:dev"])
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	root := t.TempDir()
	m := Map{Layers: []LayerMap{{Label: "global", Paths: []string{"a.txt"}}}}
	if err := Save(root, m); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, ok, err := Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !ok {
		t.Fatal("expected ok=true after Save")
	}
	if len(got.Layers) != 1 || got.Layers[0].Label != "global" {
		t.Fatalf("round-trip mismatch: %+v", got)
	}
}

func TestLoadMissingIsNotAnError(t *testing.T) {
	root := t.TempDir()
	_, ok, err := Load(root)
	if err != nil {
		t.Fatalf("expected no error for missing .jinmap, got %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for missing .jinmap")
	}
}

func TestLoadMalformedIsCorrupt(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, ".jin")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, fileName), []byte(": not valid yaml: [["), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, _, err := Load(root)
	if err == nil {
		t.Fatal("expected corrupt error for malformed .jinmap")
	}
}

func TestValidRejectsDuplicateOrEmptyLabels(t *testing.T) {
	if !Valid(Map{Layers: []LayerMap{{Label: "global"}, {Label: "mode:dev"}}}) {
		t.Fatal("expected distinct non-empty labels to be valid")
	}
	if Valid(Map{Layers: []LayerMap{{Label: "global"}, {Label: "global"}}}) {
		t.Fatal("expected duplicate labels to be invalid")
	}
	if Valid(Map{Layers: []LayerMap{{Label: ""}}}) {
		t.Fatal("expected empty label to be invalid")
	}
}
