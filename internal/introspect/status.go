package introspect

import (
	"github.com/dabstractor/jin/internal/conflict"
	"github.com/dabstractor/jin/internal/layer"
	"github.com/dabstractor/jin/internal/stage"
)

// IgnoreHealth reports the managed-ignore-block state for status output.
type IgnoreHealth struct {
	OK    bool
	Error string
}

// Status is the report produced by `jin status` (spec §4.I): active
// context, staged entries grouped by layer, paused-apply state, and the
// managed-ignore-block's health.
type Status struct {
	ActiveContext layer.Context
	StagedByLayer map[string][]stage.Entry // keyed by LayerLabel
	Paused        bool
	ConflictPaths []string
	IgnoreHealth  IgnoreHealth
}

// IgnoreChecker reports the integrity of the host VCS's managed ignore
// block. Implemented by internal/hostvcs.Host; declared here to avoid an
// import cycle.
type IgnoreChecker interface {
	CheckManagedBlockIntegrity() error
}

// BuildStatus assembles a Status report from the staging index, the
// paused-apply manager, and the ignore-block checker.
func BuildStatus(ctx layer.Context, idx *stage.Index, conflicts *conflict.Manager, ignore IgnoreChecker) (Status, error) {
	s := Status{ActiveContext: ctx, StagedByLayer: make(map[string][]stage.Entry)}

	for _, e := range idx.Entries() {
		label := LayerLabel(e.TargetLayer)
		s.StagedByLayer[label] = append(s.StagedByLayer[label], e)
	}

	paused, err := conflicts.HasPaused()
	if err != nil {
		return s, err
	}
	s.Paused = paused
	if paused {
		state, err := conflicts.Load()
		if err != nil {
			return s, err
		}
		s.ConflictPaths = state.ConflictPaths
	}

	if err := ignore.CheckManagedBlockIntegrity(); err != nil {
		s.IgnoreHealth = IgnoreHealth{OK: false, Error: err.Error()}
	} else {
		s.IgnoreHealth = IgnoreHealth{OK: true}
	}

	return s, nil
}
