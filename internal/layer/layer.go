// Package layer defines the nine-layer precedence hierarchy (spec §3),
// the reference-path grammar for each layer kind, and the routing rules
// that map an add command's flags plus active context to exactly one
// target layer instance (spec §4.B).
//
// The nine kinds form a closed sum type; all layer-keyed maps dispatch on
// the Kind tag rather than an open class hierarchy (spec §9).
package layer

import "fmt"

// Kind is one of the nine closed layer kinds.
type Kind int

const (
	GlobalBase Kind = iota + 1
	ModeBase
	ModeScope
	ModeScopeProject
	ModeProject
	ScopeBase
	ProjectBase
	UserLocal
	WorkspaceActive
)

// Precedence returns the layer's fixed precedence, 1 (lowest) to 9
// (highest). Precedence is total and fixed (spec §3 invariants).
func (k Kind) Precedence() int {
	switch k {
	case GlobalBase:
		return 1
	case ModeBase:
		return 2
	case ModeScope:
		return 3
	case ModeScopeProject:
		return 4
	case ModeProject:
		return 5
	case ScopeBase:
		return 6
	case ProjectBase:
		return 7
	case UserLocal:
		return 8
	case WorkspaceActive:
		return 9
	default:
		return 0
	}
}

func (k Kind) String() string {
	switch k {
	case GlobalBase:
		return "global-base"
	case ModeBase:
		return "mode-base"
	case ModeScope:
		return "mode-scope"
	case ModeScopeProject:
		return "mode-scope-project"
	case ModeProject:
		return "mode-project"
	case ScopeBase:
		return "scope-base"
	case ProjectBase:
		return "project-base"
	case UserLocal:
		return "user-local"
	case WorkspaceActive:
		return "workspace-active"
	default:
		return "unknown"
	}
}

// Requires reports which qualifiers a layer kind needs to be a complete
// instance, per the "Requires" column of spec §3's table.
type Requires struct {
	Mode    bool
	Scope   bool
	Project bool
}

func (k Kind) Requires() Requires {
	switch k {
	case ModeBase:
		return Requires{Mode: true}
	case ModeScope:
		return Requires{Mode: true, Scope: true}
	case ModeScopeProject:
		return Requires{Mode: true, Scope: true, Project: true}
	case ModeProject:
		return Requires{Mode: true, Project: true}
	case ScopeBase:
		return Requires{Scope: true}
	case ProjectBase:
		return Requires{Project: true}
	default:
		return Requires{}
	}
}

// Scope is a user-provided free-form identifier that may contain a colon
// (e.g. "language:javascript"). On disk the colon becomes a path
// separator, so a Scope is represented internally as an ordered sequence
// of segments and displayed to users in its original colon form.
type Scope struct {
	Segments []string
}

// ParseScope splits a colon-delimited scope identifier into segments.
func ParseScope(s string) (Scope, error) {
	if s == "" {
		return Scope{}, fmt.Errorf("scope identifier must not be empty")
	}
	segs := splitNonEmpty(s, ':')
	if len(segs) == 0 {
		return Scope{}, fmt.Errorf("scope identifier %q has no path segments", s)
	}
	return Scope{Segments: segs}, nil
}

// String renders the scope back to its original colon form.
func (s Scope) String() string {
	out := ""
	for i, seg := range s.Segments {
		if i > 0 {
			out += ":"
		}
		out += seg
	}
	return out
}

func splitNonEmpty(s string, sep byte) []string {
	var segs []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			if i > start {
				segs = append(segs, s[start:i])
			}
			start = i + 1
		}
	}
	if start < len(s) {
		segs = append(segs, s[start:])
	}
	return segs
}

// Instance identifies one concrete layer: a kind plus the qualifiers it
// requires (spec §3: "a layer instance is identified by
// (kind, mode?, scope?, project?)").
type Instance struct {
	Kind    Kind
	Mode    string
	Scope   Scope
	Project string
}

// Key returns a value suitable for use as a map key identifying this
// instance uniquely (Scope is a slice, so it's flattened to its string
// form first).
func (i Instance) Key() string {
	return fmt.Sprintf("%d|%s|%s|%s", i.Kind, i.Mode, i.Scope.String(), i.Project)
}

// Satisfied reports whether the instance carries every qualifier its kind
// requires, so it can be skipped otherwise when enumerating applicable
// layers for a context (spec §4.B, layers_in_precedence_order).
func (i Instance) Satisfied() bool {
	req := i.Kind.Requires()
	if req.Mode && i.Mode == "" {
		return false
	}
	if req.Scope && len(i.Scope.Segments) == 0 {
		return false
	}
	if req.Project && i.Project == "" {
		return false
	}
	return true
}
