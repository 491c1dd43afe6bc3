package main

import (
	"testing"

	"github.com/dabstractor/jin/internal/jinerr"
)

func TestExitCodeForMapsEveryKind(t *testing.T) {
	cases := []struct {
		kind jinerr.Kind
		want int
	}{
		{jinerr.NotInitialized, 3},
		{jinerr.NotFound, 8},
		{jinerr.RouteErr, 2},
		{jinerr.Validation, 2},
		{jinerr.NotInPausedState, 2},
		{jinerr.NoPausedApply, 2},
		{jinerr.Transport, 4},
		{jinerr.PathBlocked, 6},
		{jinerr.AlreadyTracked, 6},
		{jinerr.ConflictKind, 7},
		{jinerr.StillConflicted, 7},
		{jinerr.Corrupt, 1},
		{jinerr.Locked, 1},
	}
	for _, c := range cases {
		err := &jinerr.Error{Kind: c.kind, Message: "test"}
		if got := exitCodeFor(err); got != c.want {
			t.Errorf("exitCodeFor(%v) = %d, want %d", c.kind, got, c.want)
		}
	}
}

func TestExitCodeForNonJinError(t *testing.T) {
	if got := exitCodeFor(errPlain("boom")); got != 1 {
		t.Errorf("exitCodeFor(plain error) = %d, want 1", got)
	}
}

type errPlain string

func (e errPlain) Error() string { return string(e) }

func TestLayerFlagsReflectsPersistentFlagState(t *testing.T) {
	prevGlobal, prevLocal, prevMode, prevProject, prevScopes := flagGlobal, flagLocal, flagMode, flagProject, flagScopes
	defer func() {
		flagGlobal, flagLocal, flagMode, flagProject, flagScopes = prevGlobal, prevLocal, prevMode, prevProject, prevScopes
	}()

	flagGlobal = true
	flagLocal = false
	flagMode = true
	flagProject = false
	flagScopes = []string{"work"}

	got := layerFlags()
	if !got.Global || got.Local || !got.Mode || got.Project {
		t.Fatalf("layerFlags() = %+v, unexpected boolean fields", got)
	}
	if len(got.Scopes) != 1 || got.Scopes[0] != "work" {
		t.Fatalf("layerFlags().Scopes = %v, want [work]", got.Scopes)
	}
}
