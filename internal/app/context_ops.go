package app

// ModeCreate materializes a new mode (spec §4.H `jin mode create`).
func (a *App) ModeCreate(name string) error {
	return a.Ctx.ModeCreate(name, a.signature)
}

// ModeDelete removes a mode outright (spec §4.H `jin mode delete`).
func (a *App) ModeDelete(name string) error {
	return a.Ctx.ModeDelete(name)
}

// ModeUse sets the active mode (spec §4.H `jin mode use`).
func (a *App) ModeUse(name string) error {
	return a.Ctx.ModeUse(name)
}

// ModeUnset clears the active mode (spec §4.H `jin mode unset`).
func (a *App) ModeUnset() error {
	return a.Ctx.ModeUnset()
}

// ModeList enumerates every existing mode (spec §4.H `jin mode list`).
func (a *App) ModeList() ([]string, error) {
	return a.Ctx.ModeList()
}

// ScopeCreate materializes a new scope (spec §4.H `jin scope create`).
func (a *App) ScopeCreate(name string) error {
	return a.Ctx.ScopeCreate(name, a.signature)
}

// ScopeDelete removes a scope outright (spec §4.H `jin scope delete`).
func (a *App) ScopeDelete(name string) error {
	return a.Ctx.ScopeDelete(name)
}

// ScopeUse sets the active scope (spec §4.H `jin scope use`).
func (a *App) ScopeUse(name string) error {
	return a.Ctx.ScopeUse(name)
}

// ScopeUnset clears the active scope (spec §4.H `jin scope unset`).
func (a *App) ScopeUnset() error {
	return a.Ctx.ScopeUnset()
}

// ScopeList enumerates every existing scope (spec §4.H `jin scope list`).
func (a *App) ScopeList() ([]string, error) {
	return a.Ctx.ScopeList()
}
