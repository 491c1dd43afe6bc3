package layer

import "github.com/dabstractor/jin/internal/jinerr"

// Flags captures the add-command flag set relevant to routing (spec §4.B,
// §6). Scopes holds every "--scope=" occurrence verbatim; supplying more
// than one is a RouteError ("two scopes").
type Flags struct {
	Global  bool
	Local   bool
	Mode    bool
	Scopes  []string
	Project bool
}

// Route maps a flag set plus active context and inferred project to
// exactly one target layer instance, or returns a RouteError. Route is a
// pure function: equal invocations always choose the same layer (spec §8
// quantified invariant on routing).
func Route(flags Flags, ctx Context, project string) (Instance, error) {
	if len(flags.Scopes) > 1 {
		return Instance{}, jinerr.Routef("only one --scope may be given, got %d", len(flags.Scopes))
	}

	var scope Scope
	hasScope := len(flags.Scopes) == 1
	if hasScope {
		s, err := ParseScope(flags.Scopes[0])
		if err != nil {
			return Instance{}, jinerr.Routef("invalid scope: %v", err)
		}
		scope = s
	}

	switch {
	case flags.Global:
		return Instance{Kind: GlobalBase}, nil

	case flags.Local:
		return Instance{Kind: UserLocal}, nil

	case flags.Mode && hasScope && flags.Project:
		if ctx.ActiveMode == "" {
			return Instance{}, jinerr.Routef("no active mode; run `jin mode use <name>`")
		}
		if project == "" {
			return Instance{}, jinerr.Routef("no project identity; the workspace has no host VCS origin")
		}
		return Instance{Kind: ModeScopeProject, Mode: ctx.ActiveMode, Scope: scope, Project: project}, nil

	case flags.Mode && hasScope && !flags.Project:
		if ctx.ActiveMode == "" {
			return Instance{}, jinerr.Routef("no active mode; run `jin mode use <name>`")
		}
		return Instance{Kind: ModeScope, Mode: ctx.ActiveMode, Scope: scope}, nil

	case flags.Mode && !hasScope && flags.Project:
		if ctx.ActiveMode == "" {
			return Instance{}, jinerr.Routef("no active mode; run `jin mode use <name>`")
		}
		if project == "" {
			return Instance{}, jinerr.Routef("no project identity; the workspace has no host VCS origin")
		}
		return Instance{Kind: ModeProject, Mode: ctx.ActiveMode, Project: project}, nil

	case flags.Mode && !hasScope && !flags.Project:
		if ctx.ActiveMode == "" {
			return Instance{}, jinerr.Routef("no active mode; run `jin mode use <name>`")
		}
		return Instance{Kind: ModeBase, Mode: ctx.ActiveMode}, nil

	case !flags.Mode && hasScope && !flags.Project:
		return Instance{Kind: ScopeBase, Scope: scope}, nil

	case !flags.Mode && !hasScope && flags.Project:
		return Instance{}, jinerr.Routef("--project requires --mode (or omit all flags to target the project layer implicitly)")

	case !flags.Mode && hasScope && flags.Project:
		return Instance{}, jinerr.Routef("--project combined with --scope requires --mode")

	default: // no flags at all
		if project == "" {
			return Instance{}, jinerr.Routef("no project identity; the workspace has no host VCS origin")
		}
		return Instance{Kind: ProjectBase, Project: project}, nil
	}
}
