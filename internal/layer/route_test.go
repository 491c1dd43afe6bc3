package layer

import (
	"errors"
	"testing"

	"github.com/dabstractor/jin/internal/jinerr"
)

func TestRouteTable(t *testing.T) {
	devCtx := Context{ActiveMode: "dev", Project: "widgets"}

	tests := []struct {
		name    string
		flags   Flags
		ctx     Context
		project string
		want    Kind
		wantErr bool
	}{
		{"none with project", Flags{}, Context{Project: "widgets"}, "widgets", ProjectBase, false},
		{"none without project", Flags{}, Context{}, "", 0, true},
		{"global", Flags{Global: true}, Context{}, "", GlobalBase, false},
		{"local", Flags{Local: true}, Context{}, "", UserLocal, false},
		{"scope only", Flags{Scopes: []string{"rust"}}, Context{}, "", ScopeBase, false},
		{"mode only", Flags{Mode: true}, devCtx, "widgets", ModeBase, false},
		{"mode no active mode", Flags{Mode: true}, Context{}, "widgets", 0, true},
		{"mode+project", Flags{Mode: true, Project: true}, devCtx, "widgets", ModeProject, false},
		{"mode+project no project", Flags{Mode: true, Project: true}, Context{ActiveMode: "dev"}, "", 0, true},
		{"mode+scope", Flags{Mode: true, Scopes: []string{"rust"}}, devCtx, "widgets", ModeScope, false},
		{"mode+scope+project", Flags{Mode: true, Scopes: []string{"rust"}, Project: true}, devCtx, "widgets", ModeScopeProject, false},
		{"two scopes", Flags{Scopes: []string{"a", "b"}}, devCtx, "widgets", 0, true},
		{"project flag alone", Flags{Project: true}, devCtx, "widgets", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, err := Route(tt.flags, tt.ctx, tt.project)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				var je *jinerr.Error
				if !errors.As(err, &je) || je.Kind != jinerr.RouteErr {
					t.Fatalf("expected RouteError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if inst.Kind != tt.want {
				t.Fatalf("got kind %v want %v", inst.Kind, tt.want)
			}
		})
	}
}

func TestRouteDeterministic(t *testing.T) {
	flags := Flags{Mode: true, Scopes: []string{"lang:rust"}}
	ctx := Context{ActiveMode: "dev"}
	a, errA := Route(flags, ctx, "widgets")
	b, errB := Route(flags, ctx, "widgets")
	if errA != nil || errB != nil {
		t.Fatalf("unexpected errors: %v %v", errA, errB)
	}
	if a.Key() != b.Key() {
		t.Fatalf("routing is not deterministic: %v vs %v", a, b)
	}
}
