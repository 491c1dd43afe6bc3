// Package introspect implements log, status, and diff (spec §4.I):
// read-only views over the object store's layer refs, the staging
// index, and paused-apply state. Nothing here mutates any state.
package introspect

import (
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/dabstractor/jin/internal/layer"
	"github.com/dabstractor/jin/internal/store"
)

// LayerLabel renders a layer instance into the human-readable name used
// by `jin log --layer NAME` and `jin status` output.
func LayerLabel(inst layer.Instance) string {
	switch inst.Kind {
	case layer.GlobalBase:
		return "global"
	case layer.ModeBase:
		return "mode:" + inst.Mode
	case layer.ModeScope:
		return "mode:" + inst.Mode + ":scope:" + inst.Scope.String()
	case layer.ModeScopeProject:
		return "mode:" + inst.Mode + ":scope:" + inst.Scope.String() + ":project:" + inst.Project
	case layer.ModeProject:
		return "mode:" + inst.Mode + ":project:" + inst.Project
	case layer.ScopeBase:
		return "scope:" + inst.Scope.String()
	case layer.ProjectBase:
		return "project:" + inst.Project
	case layer.UserLocal:
		return "user-local"
	case layer.WorkspaceActive:
		return "workspace-active"
	default:
		return "unknown"
	}
}

// LogEntry is one commit in a layer's history.
type LogEntry struct {
	Commit   plumbing.Hash
	Message  string
	Author   store.Signature
	Manifest store.Manifest
}

// LayerLog is one layer's commit history, newest first.
type LayerLog struct {
	Layer   layer.Instance
	RefPath string
	Entries []LogEntry
}

// LogOptions controls Log's scope (spec §4.I).
type LogOptions struct {
	LayerLabel string // restrict to one layer by LayerLabel, empty means all
	Count      int    // 0 means unlimited
	All        bool   // include layers outside the active context
}

// Log enumerates every ref under refs/jin/layers/** (spec §4.I: "not a
// hardcoded set"), groups by parsed layer instance, and walks each ref's
// commit history, in precedence order (lowest first).
func Log(s *store.Store, ctx layer.Context, opts LogOptions) ([]LayerLog, error) {
	refs, err := s.ListRefs("refs/jin/layers/**")
	if err != nil {
		return nil, err
	}

	var inScope map[string]bool
	if !opts.All {
		inScope = make(map[string]bool)
		for _, inst := range layer.LayersInPrecedenceOrder(ctx) {
			inScope[inst.Key()] = true
		}
	}

	var logs []LayerLog
	for _, ref := range refs {
		inst, err := layer.ParseRef(ref.RefPath)
		if err != nil {
			continue
		}
		if !opts.All && !inScope[inst.Key()] {
			continue
		}
		label := LayerLabel(inst)
		if opts.LayerLabel != "" && label != opts.LayerLabel {
			continue
		}

		entries, err := walkHistory(s, ref.Hash, opts.Count)
		if err != nil {
			return nil, err
		}
		logs = append(logs, LayerLog{Layer: inst, RefPath: ref.RefPath, Entries: entries})
	}

	sortLayerLogsByPrecedence(logs)
	return logs, nil
}

func walkHistory(s *store.Store, tip plumbing.Hash, count int) ([]LogEntry, error) {
	var out []LogEntry
	h := tip
	for !h.IsZero() {
		if count > 0 && len(out) >= count {
			break
		}
		info, err := s.ReadCommit(h)
		if err != nil {
			break
		}
		out = append(out, LogEntry{
			Commit:   info.Hash,
			Message:  info.Message,
			Author:   info.Author,
			Manifest: info.Manifest,
		})
		if len(info.Parents) == 0 {
			break
		}
		h = info.Parents[0]
	}
	return out, nil
}

func sortLayerLogsByPrecedence(logs []LayerLog) {
	for i := 1; i < len(logs); i++ {
		j := i
		for j > 0 && logs[j-1].Layer.Kind.Precedence() > logs[j].Layer.Kind.Precedence() {
			logs[j-1], logs[j] = logs[j], logs[j-1]
			j--
		}
	}
}
