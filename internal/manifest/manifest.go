// Package manifest derives and persists `.jinmap`, the per-workspace
// layer map (spec §3, "Layer map"): for each active layer instance, the
// list of file paths it contributes. It is always regenerable from
// object-store state and never a source of truth.
package manifest

import (
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/dabstractor/jin/internal/jinerr"
	"github.com/dabstractor/jin/internal/layer"
	"github.com/dabstractor/jin/internal/store"
)

// LayerMap is one layer instance's contributed file paths.
type LayerMap struct {
	Label string   `yaml:"label"`
	Paths []string `yaml:"paths"`
}

// Map is the full `.jinmap`: one LayerMap per applicable layer instance,
// in ascending precedence order (lowest-precedence layer first).
type Map struct {
	Layers []LayerMap `yaml:"layers"`
}

const fileName = ".jinmap"

func mapPath(workspaceRoot string) string {
	return filepath.Join(workspaceRoot, ".jin", fileName)
}

// Generate derives the layer map from the object store for ctx's
// applicable layers by reading each layer ref's tip tree and walking its
// files (spec §4.J item 3: "regenerate from the object store").
func Generate(s *store.Store, ctx layer.Context, layerLabel func(layer.Instance) string) (Map, error) {
	instances := layer.LayersInPrecedenceOrder(ctx)

	var out Map
	for _, inst := range instances {
		refPath, err := layer.RefPath(inst)
		if err != nil {
			continue
		}
		tip, err := s.Resolve(refPath)
		if err != nil {
			continue // layer not yet created; contributes nothing
		}
		info, err := s.ReadCommit(tip)
		if err != nil {
			return Map{}, err
		}
		files, err := s.WalkFiles(info.Tree)
		if err != nil {
			return Map{}, err
		}
		paths := make([]string, 0, len(files))
		for p := range files {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		out.Layers = append(out.Layers, LayerMap{Label: layerLabel(inst), Paths: paths})
	}
	return out, nil
}

// Load reads the persisted `.jinmap`. Returns ok=false (not an error) if
// the file is missing; returns a jinerr.Corrupt error if it exists but
// fails to parse, both of which the repair flow treats as "regenerate"
// (spec §4.J item 3).
func Load(workspaceRoot string) (m Map, ok bool, err error) {
	data, err := os.ReadFile(mapPath(workspaceRoot))
	if err != nil {
		if os.IsNotExist(err) {
			return Map{}, false, nil
		}
		return Map{}, false, jinerr.Wrap(err)
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Map{}, false, &jinerr.Error{Kind: jinerr.Corrupt, FilePath: mapPath(workspaceRoot), Err: err,
			Message: "corrupt layer map " + mapPath(workspaceRoot)}
	}
	return m, true, nil
}

// Save atomically persists m as the workspace's `.jinmap`.
func Save(workspaceRoot string, m Map) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return jinerr.Wrap(err)
	}
	path := mapPath(workspaceRoot)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return jinerr.Wrap(err)
	}
	tmp, err := os.CreateTemp(dir, ".jin-write-*.tmp")
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
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return jinerr.Wrap(err)
	}
	return nil
}

// Valid reports whether m looks structurally sound: every layer entry
// has a non-empty label and no duplicate labels. Used by repair to
// decide whether a loaded `.jinmap` needs regeneration beyond a bare
// parse failure.
func Valid(m Map) bool {
	seen := make(map[string]bool, len(m.Layers))
	for _, l := range m.Layers {
		if l.Label == "" || seen[l.Label] {
			return false
		}
		seen[l.Label] = true
	}
	return true
}

