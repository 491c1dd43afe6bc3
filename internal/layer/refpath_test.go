package layer

import "testing"

func TestRefPathRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		inst Instance
	}{
		{"global", Instance{Kind: GlobalBase}},
		{"mode-base", Instance{Kind: ModeBase, Mode: "claude"}},
		{"mode-scope single segment", Instance{Kind: ModeScope, Mode: "claude", Scope: Scope{Segments: []string{"rust"}}}},
		{"mode-scope multi segment", Instance{Kind: ModeScope, Mode: "dev", Scope: Scope{Segments: []string{"language", "rust"}}}},
		{"mode-scope-project", Instance{Kind: ModeScopeProject, Mode: "claude", Scope: Scope{Segments: []string{"language", "javascript"}}, Project: "widgets"}},
		{"mode-project", Instance{Kind: ModeProject, Mode: "claude", Project: "widgets"}},
		{"scope-base single", Instance{Kind: ScopeBase, Scope: Scope{Segments: []string{"rust"}}}},
		{"scope-base multi", Instance{Kind: ScopeBase, Scope: Scope{Segments: []string{"a", "b", "c"}}}},
		{"project-base", Instance{Kind: ProjectBase, Project: "widgets"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := RefPath(tt.inst)
			if err != nil {
				t.Fatalf("RefPath: %v", err)
			}
			got, err := ParseRef(ref)
			if err != nil {
				t.Fatalf("ParseRef(%q): %v", ref, err)
			}
			if got.Kind != tt.inst.Kind || got.Mode != tt.inst.Mode ||
				got.Project != tt.inst.Project || got.Scope.String() != tt.inst.Scope.String() {
				t.Fatalf("round trip mismatch: got %+v, want %+v (ref=%s)", got, tt.inst, ref)
			}
		})
	}
}

func TestScopeColonForm(t *testing.T) {
	inst := Instance{Kind: ModeScope, Mode: "dev", Scope: Scope{Segments: []string{"language", "rust"}}}
	ref, err := RefPath(inst)
	if err != nil {
		t.Fatal(err)
	}
	want := "refs/jin/layers/mode/dev/scope/language/rust/_"
	if ref != want {
		t.Fatalf("got %q want %q", ref, want)
	}

	s, err := ParseScope("a:b:c")
	if err != nil {
		t.Fatal(err)
	}
	if s.String() != "a:b:c" {
		t.Fatalf("colon round trip: got %q", s.String())
	}
	if len(s.Segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(s.Segments))
	}
}

func TestUserLocalAndWorkspaceActiveHaveNoRefPath(t *testing.T) {
	if _, err := RefPath(Instance{Kind: UserLocal}); err == nil {
		t.Fatal("expected error for UserLocal ref path")
	}
	if _, err := RefPath(Instance{Kind: WorkspaceActive}); err == nil {
		t.Fatal("expected error for WorkspaceActive ref path")
	}
}

func TestParseRefRejectsGarbage(t *testing.T) {
	if _, err := ParseRef("refs/heads/main"); err == nil {
		t.Fatal("expected error for non-jin ref")
	}
	if _, err := ParseRef("refs/jin/layers/mode/dev/scope/_"); err == nil {
		t.Fatal("expected error for mode-scope ref missing scope segments")
	}
}
