package txn

import (
	"sync"
	"testing"
	"time"

	"github.com/go-git/go-git/v5/plumbing"

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

func TestCommitAdvancesMultipleRefsAtomically(t *testing.T) {
	s := newTestStore(t)
	c := New(s)

	blobA, _ := s.WriteBlob([]byte(`{"a":1}`))
	treeA, _ := s.WriteTree([]store.Entry{{Name: "a.json", Kind: store.BlobEntry, Hash: blobA}})

	blobB, _ := s.WriteBlob([]byte(`{"b":2}`))
	treeB, _ := s.WriteTree([]store.Entry{{Name: "b.json", Kind: store.BlobEntry, Hash: blobB}})

	sig := store.Signature{Name: "tester", Email: "t@example.com", When: time.Now()}

	results, err := c.Commit([]PendingCommit{
		{Layer: layer.Instance{Kind: layer.ModeBase, Mode: "dev"}, Tree: treeA, Message: "add a.json", Manifest: store.Manifest{Files: []string{"a.json"}}},
		{Layer: layer.Instance{Kind: layer.ProjectBase, Project: "widgets"}, Tree: treeB, Message: "add b.json", Manifest: store.Manifest{Files: []string{"b.json"}}},
	}, sig)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	for _, r := range results {
		got, err := s.Resolve(r.RefPath)
		if err != nil {
			t.Fatalf("Resolve(%s): %v", r.RefPath, err)
		}
		if got != r.NewHash {
			t.Fatalf("ref %s points at %s, want %s", r.RefPath, got, r.NewHash)
		}
	}

	// No staging refs should survive a successful commit.
	staging, err := s.ListRefs("refs/jin/staging/**")
	if err != nil {
		t.Fatal(err)
	}
	if len(staging) != 0 {
		t.Fatalf("expected no staging refs left, got %+v", staging)
	}
}

func TestCommitRejectsEmptyPending(t *testing.T) {
	s := newTestStore(t)
	c := New(s)
	if _, err := c.Commit(nil, store.Signature{}); err == nil {
		t.Fatal("expected Validation error for empty commit")
	}
}

func TestConcurrentCommitsToSameLayerLeaveNoPartialState(t *testing.T) {
	s := newTestStore(t)
	c := New(s)
	sig := store.Signature{Name: "t", When: time.Now()}

	blobA, _ := s.WriteBlob([]byte("a"))
	treeA, _ := s.WriteTree([]store.Entry{{Name: "a", Kind: store.BlobEntry, Hash: blobA}})
	blobB, _ := s.WriteBlob([]byte("b"))
	treeB, _ := s.WriteTree([]store.Entry{{Name: "b", Kind: store.BlobEntry, Hash: blobB}})

	inst := layer.Instance{Kind: layer.GlobalBase}

	var wg sync.WaitGroup
	results := make([]error, 2)
	trees := []struct {
		tree plumbing.Hash
	}{{treeA}, {treeB}}

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := c.Commit([]PendingCommit{
				{Layer: inst, Tree: trees[i].tree, Message: "race", Manifest: store.Manifest{}},
			}, sig)
			results[i] = err
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range results {
		if err == nil {
			successes++
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly one of two concurrent commits to win the race to an unset ref (since both start from no prior tip), got %d successes: %v", successes, results)
	}

	refPath, _ := layer.RefPath(inst)
	final, err := s.Resolve(refPath)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	finalInfo, err := s.ReadCommit(final)
	if err != nil {
		t.Fatal(err)
	}
	if finalInfo.Tree != treeA && finalInfo.Tree != treeB {
		t.Fatalf("final tree is neither candidate: %v", finalInfo.Tree)
	}

	staging, err := s.ListRefs("refs/jin/staging/**")
	if err != nil {
		t.Fatal(err)
	}
	if len(staging) != 0 {
		t.Fatalf("expected no staging refs left after race settles, got %+v", staging)
	}
}
