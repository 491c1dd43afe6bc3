// Package merge implements the structured and text merge engine (spec
// §4.E): given a layer-tagged sequence of file trees in ascending
// precedence order, it produces one merged byte stream per path, or a
// conflict for paths that cannot be resolved deterministically.
package merge

import (
	"path/filepath"
	"strings"
)

// Format classifies a path's merge strategy.
type Format int

const (
	FormatText Format = iota
	FormatJSON
	FormatYAML
	FormatTOML
	FormatINI
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	case FormatTOML:
		return "toml"
	case FormatINI:
		return "ini"
	default:
		return "text"
	}
}

// Structured reports whether f uses the deep-merge structured path
// rather than the text-merge path.
func (f Format) Structured() bool { return f != FormatText }

// ClassifyPath determines a path's Format from its extension (spec
// §4.E step 1).
func ClassifyPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	case ".toml":
		return FormatTOML
	case ".ini":
		return FormatINI
	default:
		return FormatText
	}
}

// looksBinary reports whether data contains a NUL byte, the stage-time
// binary-content heuristic named in spec §4.E's tie-breaking rules.
func looksBinary(data []byte) bool {
	for _, b := range data {
		if b == 0 {
			return true
		}
	}
	return false
}
