package layer

import (
	"fmt"
	"strings"
)

// refPrefix is the private reference namespace all layer refs live under
// (spec §2.A, §3).
const refPrefix = "refs/jin/layers/"

// RefPath renders the canonical reference path for a layer instance,
// using the grammar in spec §3. UserLocal and WorkspaceActive have no
// ref path: UserLocal is stored outside the shared object store, and
// WorkspaceActive is derived and never a source of truth.
func RefPath(inst Instance) (string, error) {
	switch inst.Kind {
	case GlobalBase:
		return refPrefix + "global", nil
	case ModeBase:
		if inst.Mode == "" {
			return "", fmt.Errorf("mode-base layer requires a mode")
		}
		return refPrefix + "mode/" + inst.Mode + "/_", nil
	case ModeScope:
		if inst.Mode == "" || len(inst.Scope.Segments) == 0 {
			return "", fmt.Errorf("mode-scope layer requires mode and scope")
		}
		return refPrefix + "mode/" + inst.Mode + "/scope/" + strings.Join(inst.Scope.Segments, "/") + "/_", nil
	case ModeScopeProject:
		if inst.Mode == "" || len(inst.Scope.Segments) == 0 || inst.Project == "" {
			return "", fmt.Errorf("mode-scope-project layer requires mode, scope, and project")
		}
		return refPrefix + "mode/" + inst.Mode + "/scope/" + strings.Join(inst.Scope.Segments, "/") + "/project/" + inst.Project, nil
	case ModeProject:
		if inst.Mode == "" || inst.Project == "" {
			return "", fmt.Errorf("mode-project layer requires mode and project")
		}
		return refPrefix + "mode/" + inst.Mode + "/project/" + inst.Project, nil
	case ScopeBase:
		if len(inst.Scope.Segments) == 0 {
			return "", fmt.Errorf("scope-base layer requires scope")
		}
		return refPrefix + "scope/" + strings.Join(inst.Scope.Segments, "/"), nil
	case ProjectBase:
		if inst.Project == "" {
			return "", fmt.Errorf("project-base layer requires project")
		}
		return refPrefix + "project/" + inst.Project, nil
	case UserLocal:
		return "", fmt.Errorf("user-local layer has no shared-store ref path")
	case WorkspaceActive:
		return "", fmt.Errorf("workspace-active layer is derived and has no ref path")
	default:
		return "", fmt.Errorf("unknown layer kind %v", inst.Kind)
	}
}

// ParseRef parses a ref path under refs/jin/layers/** back into a layer
// Instance. It must be robust to colonized (multi-segment) scope names:
// scope is matched as a variable-length path component bounded by the
// "scope"/"project"/"_" keywords on either side (spec §4.B).
func ParseRef(refPath string) (Instance, error) {
	rest, ok := strings.CutPrefix(refPath, refPrefix)
	if !ok {
		return Instance{}, fmt.Errorf("not a jin layer ref: %q", refPath)
	}
	segs := strings.Split(rest, "/")
	segs = nonEmptySegs(segs)

	switch {
	case len(segs) == 1 && segs[0] == "global":
		return Instance{Kind: GlobalBase}, nil

	case len(segs) >= 1 && segs[0] == "project" && len(segs) == 2:
		return Instance{Kind: ProjectBase, Project: segs[1]}, nil

	case len(segs) >= 2 && segs[0] == "scope":
		// [scope, ...Y...] -> ScopeBase
		return Instance{Kind: ScopeBase, Scope: Scope{Segments: segs[1:]}}, nil

	case len(segs) >= 2 && segs[0] == "mode":
		mode := segs[1]
		tail := segs[2:]
		return parseModeTail(mode, tail)
	}

	return Instance{}, fmt.Errorf("unrecognized jin layer ref shape: %q", refPath)
}

func parseModeTail(mode string, tail []string) (Instance, error) {
	switch {
	case len(tail) == 1 && tail[0] == "_":
		// [mode, X, "_"] -> ModeBase
		return Instance{Kind: ModeBase, Mode: mode}, nil

	case len(tail) >= 2 && tail[0] == "project":
		// [mode, X, project, Z] -> ModeProject
		return Instance{Kind: ModeProject, Mode: mode, Project: tail[1]}, nil

	case len(tail) >= 2 && tail[0] == "scope":
		// [mode, X, scope, ...Y..., "_"] -> ModeScope
		// [mode, X, scope, ...Y..., project, Z] -> ModeScopeProject
		scopeTail := tail[1:]
		if idx := indexOf(scopeTail, "project"); idx >= 0 && idx < len(scopeTail)-1 {
			scopeSegs := scopeTail[:idx]
			project := scopeTail[idx+1]
			if len(scopeSegs) == 0 {
				return Instance{}, fmt.Errorf("mode-scope-project ref missing scope segments")
			}
			return Instance{Kind: ModeScopeProject, Mode: mode, Scope: Scope{Segments: scopeSegs}, Project: project}, nil
		}
		if len(scopeTail) >= 2 && scopeTail[len(scopeTail)-1] == "_" {
			scopeSegs := scopeTail[:len(scopeTail)-1]
			return Instance{Kind: ModeScope, Mode: mode, Scope: Scope{Segments: scopeSegs}}, nil
		}
		return Instance{}, fmt.Errorf("unrecognized mode-scope ref tail: %v", tail)
	}
	return Instance{}, fmt.Errorf("unrecognized mode ref tail: %v", tail)
}

func indexOf(segs []string, target string) int {
	for i, s := range segs {
		if s == target {
			return i
		}
	}
	return -1
}

func nonEmptySegs(segs []string) []string {
	out := segs[:0:0]
	for _, s := range segs {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
