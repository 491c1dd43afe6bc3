package audit

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestAppendAndReadAllRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	rec1 := Record{Timestamp: time.Unix(1000, 0).UTC(), User: "alice", Workspace: "/w", Layer: "global",
		Files: []string{"a.txt"}, BaseCommit: "aaa", ResultCommit: "bbb"}
	rec2 := Record{Timestamp: time.Unix(2000, 0).UTC(), User: "alice", Workspace: "/w", Mode: "dev", Layer: "mode:dev",
		Files: []string{"b.txt"}, BaseCommit: "bbb", ResultCommit: "ccc"}

	if err := l.Append(rec1); err != nil {
		t.Fatalf("Append rec1: %v", err)
	}
	if err := l.Append(rec2); err != nil {
		t.Fatalf("Append rec2: %v", err)
	}

	records, skipped, err := ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if skipped != 0 {
		t.Fatalf("expected 0 skipped, got %d", skipped)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].User != "alice" || records[0].Layer != "global" {
		t.Fatalf("unexpected rec1: %+v", records[0])
	}
	if records[1].Mode != "dev" || records[1].Layer != "mode:dev" {
		t.Fatalf("unexpected rec2: %+v", records[1])
	}
}

func TestReadAllSkipsCorruptLinesWithoutFailing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	rec := Record{Timestamp: time.Unix(1000, 0).UTC(), User: "bob", Workspace: "/w", Layer: "global",
		Files: []string{"a.txt"}, BaseCommit: "aaa", ResultCommit: "bbb"}
	if err := l.Append(rec); err != nil {
		t.Fatalf("Append: %v", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if _, err := f.WriteString("{not valid json\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	if err := l.Append(Record{Timestamp: time.Unix(3000, 0).UTC(), User: "bob", Workspace: "/w", Layer: "global",
		Files: []string{"c.txt"}, BaseCommit: "bbb", ResultCommit: "ccc"}); err != nil {
		t.Fatalf("Append after corruption: %v", err)
	}

	records, skipped, err := ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if skipped != 1 {
		t.Fatalf("expected 1 skipped line, got %d", skipped)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 valid records around the corrupt line, got %d", len(records))
	}
}

func TestReadAllMissingFileIsNotAnError(t *testing.T) {
	records, skipped, err := ReadAll(filepath.Join(t.TempDir(), "nope.log"))
	if err != nil {
		t.Fatalf("expected no error for missing audit log, got %v", err)
	}
	if records != nil || skipped != 0 {
		t.Fatalf("expected empty result, got %v skipped=%d", records, skipped)
	}
}
