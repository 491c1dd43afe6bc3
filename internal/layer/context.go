package layer

// Context is the minimal per-workspace state layer algebra needs to
// enumerate applicable layers and route an add: the active mode/scope
// (spec §3, "Active context") and the inferred project identity
// (spec §3, "Project identity"). Persistence of the active context lives
// in internal/context; this type is the pure-function input.
type Context struct {
	ActiveMode  string // empty if unset
	ActiveScope Scope  // zero value if unset
	Project     string // empty if no host VCS origin
}

func (c Context) hasMode() bool    { return c.ActiveMode != "" }
func (c Context) hasScope() bool   { return len(c.ActiveScope.Segments) > 0 }
func (c Context) hasProject() bool { return c.Project != "" }
