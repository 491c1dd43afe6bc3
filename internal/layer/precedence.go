package layer

import "sort"

// AllKinds lists every layer kind except the derived WorkspaceActive, in
// declaration order, used to build the full candidate set for a context.
var AllKinds = []Kind{
	GlobalBase, ModeBase, ModeScope, ModeScopeProject, ModeProject,
	ScopeBase, ProjectBase, UserLocal,
}

// LayersInPrecedenceOrder returns the applicable layer instances for a
// given active context, skipping kinds whose requirements are unmet, in
// ascending precedence order (lowest first) so later entries override
// earlier ones during merge (spec §4.B, §4.E).
func LayersInPrecedenceOrder(ctx Context) []Instance {
	var out []Instance
	for _, k := range AllKinds {
		inst := Instance{Kind: k, Mode: ctx.ActiveMode, Scope: ctx.ActiveScope, Project: ctx.Project}
		if inst.Satisfied() {
			out = append(out, inst)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Kind.Precedence() < out[j].Kind.Precedence()
	})
	return out
}
