package app

import "github.com/dabstractor/jin/internal/hostvcs"

// managedIgnorePatterns lists the paths Jin asks the host VCS to ignore:
// its private per-workspace state directory and the `.jinmerge` sidecar
// files left behind by a paused apply (spec §4.F, "Managed-ignore
// block").
var managedIgnorePatterns = []string{".jin/", "*.jinmerge"}

// InitResult reports what `jin init` did.
type InitResult struct {
	HostDetected bool
	OriginURL    string
}

// Init prepares a workspace for Jin: the object store, staging index,
// active-context file, and audit log are already created lazily by Open,
// so init's own job is establishing the host-VCS managed-ignore block
// (spec §4.F) and reporting what host integration was found (spec §6
// `jin init`).
func (a *App) Init() (InitResult, error) {
	if a.Host.Kind() == hostvcs.KindNone {
		return InitResult{}, nil
	}
	if err := a.Host.UpdateManagedBlock(managedIgnorePatterns); err != nil {
		return InitResult{}, err
	}
	origin, err := a.Host.OriginURL()
	if err != nil {
		return InitResult{}, err
	}
	return InitResult{HostDetected: true, OriginURL: origin}, nil
}
