package store

import (
	"testing"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), time.Second)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func TestBlobRoundTrip(t *testing.T) {
	s := newTestStore(t)
	hash, err := s.WriteBlob([]byte("hello jin"))
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}
	got, err := s.ReadBlob(hash)
	if err != nil {
		t.Fatalf("ReadBlob: %v", err)
	}
	if string(got) != "hello jin" {
		t.Fatalf("got %q", got)
	}
}

func TestTreeRoundTrip(t *testing.T) {
	s := newTestStore(t)
	blobHash, err := s.WriteBlob([]byte("{}"))
	if err != nil {
		t.Fatal(err)
	}
	treeHash, err := s.WriteTree([]Entry{
		{Name: "config.json", Kind: BlobEntry, Hash: blobHash},
	})
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	entries, err := s.ReadTree(treeHash)
	if err != nil {
		t.Fatalf("ReadTree: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "config.json" {
		t.Fatalf("got %+v", entries)
	}

	entry, err := s.GetEntry(treeHash, "config.json")
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if entry.Hash != blobHash {
		t.Fatalf("GetEntry hash mismatch")
	}

	if _, err := s.GetEntry(treeHash, "missing.json"); err == nil {
		t.Fatal("expected NotFound for missing path")
	}
}

func TestCommitRoundTripWithManifest(t *testing.T) {
	s := newTestStore(t)
	blobHash, err := s.WriteBlob([]byte("{}"))
	if err != nil {
		t.Fatal(err)
	}
	treeHash, err := s.WriteTree([]Entry{{Name: "a.json", Kind: BlobEntry, Hash: blobHash}})
	if err != nil {
		t.Fatal(err)
	}

	sig := Signature{Name: "tester", Email: "tester@example.com", When: time.Unix(0, 0).UTC()}
	manifest := Manifest{Files: []string{"a.json"}}
	commitHash, err := s.Commit(treeHash, nil, sig, "initial commit", manifest)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	info, err := s.ReadCommit(commitHash)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if info.Message != "initial commit" {
		t.Fatalf("message mismatch: %q", info.Message)
	}
	if len(info.Manifest.Files) != 1 || info.Manifest.Files[0] != "a.json" {
		t.Fatalf("manifest mismatch: %+v", info.Manifest)
	}
	if info.Tree != treeHash {
		t.Fatalf("tree mismatch")
	}
}

func TestSetRefCAS(t *testing.T) {
	s := newTestStore(t)
	blobHash, _ := s.WriteBlob([]byte("x"))
	treeHash, _ := s.WriteTree([]Entry{{Name: "x", Kind: BlobEntry, Hash: blobHash}})
	c1, _ := s.Commit(treeHash, nil, Signature{Name: "t", When: time.Now()}, "c1", Manifest{})
	c2, _ := s.Commit(treeHash, []plumbing.Hash{c1}, Signature{Name: "t", When: time.Now()}, "c2", Manifest{})

	const ref = "refs/jin/layers/global"

	if err := s.SetRef(ref, c1, nil); err != nil {
		t.Fatalf("initial SetRef: %v", err)
	}

	// Wrong expected prev should fail.
	wrongPrev := c2
	if err := s.SetRef(ref, c2, &wrongPrev); err == nil {
		t.Fatal("expected CAS failure with wrong expected prev")
	}

	// Correct expected prev should succeed.
	if err := s.SetRef(ref, c2, &c1); err != nil {
		t.Fatalf("SetRef with correct prev: %v", err)
	}

	got, err := s.Resolve(ref)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != c2 {
		t.Fatalf("ref points at %s, want %s", got, c2)
	}
}

func TestListRefsGlob(t *testing.T) {
	s := newTestStore(t)
	blobHash, _ := s.WriteBlob([]byte("x"))
	treeHash, _ := s.WriteTree([]Entry{{Name: "x", Kind: BlobEntry, Hash: blobHash}})
	c, _ := s.Commit(treeHash, nil, Signature{Name: "t", When: time.Now()}, "c", Manifest{})

	refsToCreate := []string{
		"refs/jin/layers/global",
		"refs/jin/layers/mode/dev/_",
		"refs/jin/staging/txn-1",
	}
	for _, r := range refsToCreate {
		if err := s.SetRef(r, c, nil); err != nil {
			t.Fatalf("SetRef(%s): %v", r, err)
		}
	}

	layers, err := s.ListRefs("refs/jin/layers/**")
	if err != nil {
		t.Fatal(err)
	}
	if len(layers) != 2 {
		t.Fatalf("expected 2 layer refs, got %d: %+v", len(layers), layers)
	}

	staging, err := s.ListRefs("refs/jin/staging/*")
	if err != nil {
		t.Fatal(err)
	}
	if len(staging) != 1 {
		t.Fatalf("expected 1 staging ref, got %d", len(staging))
	}
}

func TestResolveNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Resolve("refs/jin/layers/global"); err == nil {
		t.Fatal("expected NotFound")
	}
}
