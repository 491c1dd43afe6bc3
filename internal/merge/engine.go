package merge

import (
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/dabstractor/jin/internal/jinerr"
	"github.com/dabstractor/jin/internal/layer"
	"github.com/dabstractor/jin/internal/store"
)

// LayerSource is one precedence-ordered contributing layer: its
// instance (for conflict-marker annotation and per-file provenance),
// the commit this merge is reading, and that commit's tree.
type LayerSource struct {
	Layer  layer.Instance
	Commit plumbing.Hash
	Tree   plumbing.Hash
}

// Output is the merge engine's result over an entire set of layers
// (spec §4.E: "Output: merged_files, conflict_files,
// per_file_layer_sources").
type Output struct {
	MergedFiles         map[string][]byte
	ConflictFiles       []string
	PerFileLayerSources map[string][]layer.Instance
}

// Engine runs the structured/text merge algorithm (spec §4.E) reading
// file content from a Store.
type Engine struct {
	store *store.Store
}

func New(s *store.Store) *Engine {
	return &Engine{store: s}
}

// contribution is one layer's entry at a given path, used while folding
// WalkFiles results from every layer into a per-path contributor list.
type contribution struct {
	layer layer.Instance
	entry store.Entry
}

// Merge runs the merge algorithm over layers, given in ascending
// precedence order (lowest first, as required by spec §4.E's input
// contract).
func (e *Engine) Merge(layers []LayerSource) (Output, error) {
	out := Output{
		MergedFiles:         make(map[string][]byte),
		PerFileLayerSources: make(map[string][]layer.Instance),
	}

	byPath := make(map[string][]contribution)
	var pathOrder []string

	for _, ls := range layers {
		files, err := e.store.WalkFiles(ls.Tree)
		if err != nil {
			return Output{}, err
		}
		for path, entry := range files {
			if _, seen := byPath[path]; !seen {
				pathOrder = append(pathOrder, path)
			}
			byPath[path] = append(byPath[path], contribution{layer: ls.Layer, entry: entry})
		}
	}

	for _, path := range pathOrder {
		contribs := byPath[path]

		tombstoned := make([]bool, len(contribs))
		for i, c := range contribs {
			t, err := e.store.IsTombstonedAt(commitFor(c.layer, layers), path)
			if err != nil {
				return Output{}, err
			}
			tombstoned[i] = t
		}

		// The highest-precedence contributor's tombstone masks every
		// lower layer's content at this path entirely (the same
		// precedence rule every other per-file property follows): an
		// explicit removal at the top of the stack is absolute, not a
		// "delete" content to merge against what's underneath.
		if tombstoned[len(tombstoned)-1] {
			continue
		}

		var live []contribution
		for i, c := range contribs {
			if !tombstoned[i] {
				live = append(live, c)
			}
		}
		contribs = live

		for _, c := range contribs {
			out.PerFileLayerSources[path] = append(out.PerFileLayerSources[path], c.layer)
		}

		if len(contribs) == 1 {
			data, err := e.store.ReadBlob(contribs[0].entry.Hash)
			if err != nil {
				return Output{}, err
			}
			out.MergedFiles[path] = data
			continue
		}

		format := ClassifyPath(path)
		if format.Structured() {
			merged, err := e.mergeStructuredPath(format, path, contribs)
			if err != nil {
				return Output{}, err
			}
			out.MergedFiles[path] = merged
			continue
		}

		merged, conflicted, err := e.mergeTextPath(path, contribs, layers)
		if err != nil {
			return Output{}, err
		}
		out.MergedFiles[path] = merged
		if conflicted {
			out.ConflictFiles = append(out.ConflictFiles, path)
		}
	}

	return out, nil
}

func (e *Engine) mergeStructuredPath(format Format, path string, contribs []contribution) ([]byte, error) {
	blobs := make([][]byte, 0, len(contribs))
	for _, c := range contribs {
		data, err := e.store.ReadBlob(c.entry.Hash)
		if err != nil {
			return nil, err
		}
		if looksBinary(data) {
			return nil, jinerr.Validationf("%s: binary content is not supported for structured merge", path)
		}
		blobs = append(blobs, data)
	}
	merged, _, err := MergeStructured(format, path, blobs)
	return merged, err
}

func (e *Engine) mergeTextPath(path string, contribs []contribution, layers []LayerSource) ([]byte, bool, error) {
	// Fold pairwise, lowest to highest precedence: the running merged
	// result stands in for "ours" and each next contributing layer is
	// "theirs", looking up a common ancestor between the two layers'
	// commits when one exists (spec §4.E step 3).
	acc, err := e.store.ReadBlob(contribs[0].entry.Hash)
	if err != nil {
		return nil, false, err
	}
	if looksBinary(acc) {
		return nil, false, jinerr.Validationf("%s: binary content is not supported for text merge", path)
	}

	accCommit := commitFor(contribs[0].layer, layers)
	conflicted := false
	oursRefPath, _ := layer.RefPath(contribs[0].layer)

	for i := 1; i < len(contribs); i++ {
		data, err := e.store.ReadBlob(contribs[i].entry.Hash)
		if err != nil {
			return nil, false, err
		}
		if looksBinary(data) {
			return nil, false, jinerr.Validationf("%s: binary content is not supported for text merge", path)
		}

		theirsCommit := commitFor(contribs[i].layer, layers)
		theirsRefPath, _ := layer.RefPath(contribs[i].layer)

		var base []byte
		if accCommit != plumbing.ZeroHash && theirsCommit != plumbing.ZeroHash {
			baseCommit, found, err := e.store.MergeBase(accCommit, theirsCommit)
			if err == nil && found {
				if baseData, err := e.baseEntry(baseCommit, path); err == nil {
					base = baseData
				}
			}
		}

		result := MergeText(base, acc, data, oursRefPath, theirsRefPath)
		acc = result.Merged
		if result.Conflicted {
			conflicted = true
		}
		accCommit = theirsCommit
		oursRefPath = theirsRefPath
	}

	return acc, conflicted, nil
}

func (e *Engine) baseEntry(commitHash plumbing.Hash, path string) ([]byte, error) {
	info, err := e.store.ReadCommit(commitHash)
	if err != nil {
		return nil, err
	}
	entry, err := e.store.GetEntry(info.Tree, path)
	if err != nil {
		return nil, err
	}
	return e.store.ReadBlob(entry.Hash)
}

func commitFor(inst layer.Instance, layers []LayerSource) plumbing.Hash {
	for _, ls := range layers {
		if ls.Layer.Key() == inst.Key() {
			return ls.Commit
		}
	}
	return plumbing.ZeroHash
}
