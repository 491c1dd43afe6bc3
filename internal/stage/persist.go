package stage

import (
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"gopkg.in/yaml.v3"

	"github.com/dabstractor/jin/internal/jinerr"
	"github.com/dabstractor/jin/internal/layer"
)

// onDiskEntry is the YAML-serializable form of Entry: layer.Instance and
// plumbing.Hash don't round-trip cleanly through yaml tags on their own,
// so the index is stored in a flattened shape and reassembled on load.
type onDiskEntry struct {
	Path        string `yaml:"path"`
	LayerKind   int    `yaml:"layer_kind"`
	Mode        string `yaml:"mode,omitempty"`
	Scope       string `yaml:"scope,omitempty"`
	Project     string `yaml:"project,omitempty"`
	ContentHash string `yaml:"content_hash,omitempty"`
	ModeBits    uint32 `yaml:"mode_bits"`
	Source      Source `yaml:"source"`
	RenamedFrom string `yaml:"renamed_from,omitempty"`
}

type onDiskIndex struct {
	Entries []onDiskEntry `yaml:"entries"`
}

// load reads the index file from disk, tolerating its absence (spec
// §4.D: a never-staged workspace has no index file yet).
func (idx *Index) load() error {
	data, err := os.ReadFile(idx.indexPath)
	if err != nil {
		if os.IsNotExist(err) {
			idx.order = nil
			idx.entries = make(map[string]Entry)
			return nil
		}
		return jinerr.Wrap(err)
	}

	var onDisk onDiskIndex
	if err := yaml.Unmarshal(data, &onDisk); err != nil {
		return &jinerr.Error{Kind: jinerr.Corrupt, FilePath: idx.indexPath, Err: err,
			Message: "corrupt staging index " + idx.indexPath}
	}

	idx.order = nil
	idx.entries = make(map[string]Entry, len(onDisk.Entries))
	for _, e := range onDisk.Entries {
		var scope layer.Scope
		if e.Scope != "" {
			var err error
			scope, err = layer.ParseScope(e.Scope)
			if err != nil {
				return &jinerr.Error{Kind: jinerr.Corrupt, FilePath: idx.indexPath, Err: err,
					Message: "corrupt staging index " + idx.indexPath}
			}
		}
		entry := Entry{
			Path: e.Path,
			TargetLayer: layer.Instance{
				Kind:    layer.Kind(e.LayerKind),
				Mode:    e.Mode,
				Scope:   scope,
				Project: e.Project,
			},
			ModeBits:    filemode.FileMode(e.ModeBits),
			Source:      e.Source,
			RenamedFrom: e.RenamedFrom,
		}
		if e.ContentHash != "" {
			entry.ContentHash = plumbing.NewHash(e.ContentHash)
		}
		idx.set(e.Path, entry)
	}
	return nil
}

// save persists the index atomically via write-to-temp-then-rename, so a
// process crash mid-write never leaves a half-written index file.
func (idx *Index) save() error {
	onDisk := onDiskIndex{Entries: make([]onDiskEntry, 0, len(idx.order))}
	for _, p := range idx.order {
		e := idx.entries[p]
		onDisk.Entries = append(onDisk.Entries, onDiskEntry{
			Path:        e.Path,
			LayerKind:   int(e.TargetLayer.Kind),
			Mode:        e.TargetLayer.Mode,
			Scope:       e.TargetLayer.Scope.String(),
			Project:     e.TargetLayer.Project,
			ContentHash: e.ContentHash.String(),
			ModeBits:    uint32(e.ModeBits),
			Source:      e.Source,
			RenamedFrom: e.RenamedFrom,
		})
	}

	data, err := yaml.Marshal(onDisk)
	if err != nil {
		return jinerr.Wrap(err)
	}

	dir := filepath.Dir(idx.indexPath)
	tmp, err := os.CreateTemp(dir, ".index-*.yaml.tmp")
	if err != nil {
		return jinerr.Wrap(err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return jinerr.Wrap(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return jinerr.Wrap(err)
	}
	if err := os.Rename(tmpName, idx.indexPath); err != nil {
		os.Remove(tmpName)
		return jinerr.Wrap(err)
	}
	return nil
}
