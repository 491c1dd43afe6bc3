package layer

import (
	"fmt"
	"sync"
)

// Descriptor carries the static facts about a layer kind: its precedence,
// required qualifiers, and a human name. Modeled on
// internal/vcs/registry.go's constructor registry, but since the nine
// kinds are a closed set fixed at compile time, registration happens once
// in init() rather than from pluggable implementation packages. Lookup
// and Descriptors expose the registry; the layers command and repair do
// not read it.
type Descriptor struct {
	Kind     Kind
	Name     string
	Requires Requires
}

var (
	registryMu sync.RWMutex
	registry   = make(map[Kind]Descriptor)
)

func register(k Kind, name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[k]; exists {
		panic(fmt.Sprintf("layer: register called twice for kind %s", k))
	}
	registry[k] = Descriptor{Kind: k, Name: name, Requires: k.Requires()}
}

func init() {
	register(GlobalBase, "global-base")
	register(ModeBase, "mode-base")
	register(ModeScope, "mode-scope")
	register(ModeScopeProject, "mode-scope-project")
	register(ModeProject, "mode-project")
	register(ScopeBase, "scope-base")
	register(ProjectBase, "project-base")
	register(UserLocal, "user-local")
	register(WorkspaceActive, "workspace-active")
}

// Lookup returns the descriptor for a kind.
func Lookup(k Kind) (Descriptor, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	d, ok := registry[k]
	return d, ok
}

// Descriptors returns every registered descriptor, ordered by precedence.
func Descriptors() []Descriptor {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]Descriptor, 0, len(registry))
	for _, d := range registry {
		out = append(out, d)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].Kind.Precedence() > out[j].Kind.Precedence(); j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
