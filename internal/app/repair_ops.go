package app

import (
	"time"

	"github.com/dabstractor/jin/internal/introspect"
	"github.com/dabstractor/jin/internal/repair"
)

// Repair runs every diagnostic/recovery check (spec §4.J `jin repair`).
func (a *App) Repair(dryRun bool, orphanStagingMaxAge time.Duration) ([]repair.Finding, error) {
	deps := repair.Deps{
		Store:     a.Store,
		Committer: a.Committer,
		Index:     a.Stage,
		Ctx:       a.Ctx,
		Workspace: a.Workspace,
		Ignore:    a.Host,
		Ancestors: a.Store,
	}
	opts := repair.Options{
		DryRun:              dryRun,
		OrphanStagingMaxAge: orphanStagingMaxAge,
		LayerLabel:          introspect.LayerLabel,
	}
	return repair.Run(deps, time.Now(), opts)
}
