package merge

import (
	"strings"
	"testing"
)

func TestMergeTextIdenticalSides(t *testing.T) {
	content := []byte("line1\nline2\n")
	result := MergeText(nil, content, content, "ref/a", "ref/b")
	if result.Conflicted {
		t.Fatal("identical sides must never conflict")
	}
	if string(result.Merged) != string(content) {
		t.Fatalf("expected unchanged content, got %q", result.Merged)
	}
}

func TestMergeTextTwoWayConflictsWhenLineDiffers(t *testing.T) {
	ours := []byte("a\nb\nc\n")
	theirs := []byte("a\nB\nc\n")
	result := MergeText(nil, ours, theirs, "ref/ours", "ref/theirs")
	if !result.Conflicted {
		t.Fatalf("expected a conflict on the differing line without a common base, got:\n%s", result.Merged)
	}
}

func TestMergeTextThreeWayNoConflictWhenOnlyOursChangedFromBase(t *testing.T) {
	base := []byte("a\nb\nc\n")
	ours := []byte("a\nB\nc\n")
	theirs := []byte("a\nb\nc\n")
	result := MergeText(base, ours, theirs, "ref/ours", "ref/theirs")
	if result.Conflicted {
		t.Fatalf("expected no conflict when only ours changed from base, got:\n%s", result.Merged)
	}
	if string(result.Merged) != "a\nB\nc\n" {
		t.Fatalf("expected ours's change to win, got %q", result.Merged)
	}
}

func TestMergeTextConflictMarkersAnnotatedWithLayerRefs(t *testing.T) {
	ours := []byte("hello ours\n")
	theirs := []byte("hello theirs\n")
	result := MergeText(nil, ours, theirs, "refs/jin/layers/mode/dev/_", "refs/jin/layers/mode/claude/_")
	if !result.Conflicted {
		t.Fatal("expected a conflict for genuinely divergent content")
	}
	if !ConflictMarkersPresent(result.Merged) {
		t.Fatal("expected conflict markers in merged output")
	}
	s := string(result.Merged)
	if !strings.Contains(s, "refs/jin/layers/mode/dev/_") || !strings.Contains(s, "refs/jin/layers/mode/claude/_") {
		t.Fatalf("expected conflict markers annotated with layer ref paths, got:\n%s", s)
	}
}

func TestConflictMarkersPresentDetectsResolvedFile(t *testing.T) {
	if ConflictMarkersPresent([]byte("clean content\nno markers here\n")) {
		t.Fatal("expected no markers detected in clean content")
	}
}
