package introspect

import (
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/dabstractor/jin/internal/merge"
)

// LineType classifies one line of a textual diff.
type LineType int

const (
	LineContext LineType = iota
	LineAdded
	LineRemoved
)

// Line is one line of a textual diff.
type Line struct {
	Type    LineType
	Content string
}

// FileDiff is the result of comparing one path's two versions.
type FileDiff struct {
	Path       string
	Structured bool
	// ChangedPaths holds structured-diff results (dotted key paths,
	// annotated "(added)"/"(removed)"/"(changed)"), populated when
	// Structured is true.
	ChangedPaths []string
	// Lines holds the textual-diff fallback, populated when Structured
	// is false.
	Lines []Line
}

// DiffFile compares old and new content at path, using structured
// diffing when the path classifies as a structured format and both
// sides parse, falling back to line-level textual diff otherwise (spec
// §4.I: "Uses structured merge for parsing when both sides are
// structured; falls back to textual diff").
func DiffFile(path string, oldContent, newContent []byte) (FileDiff, error) {
	format := merge.ClassifyPath(path)
	if format.Structured() {
		changed, err := merge.DiffStructured(format, path, oldContent, newContent)
		if err == nil {
			return FileDiff{Path: path, Structured: true, ChangedPaths: changed}, nil
		}
		// Malformed structured content on either side: fall back to text.
	}
	return FileDiff{Path: path, Lines: textDiff(oldContent, newContent)}, nil
}

// textDiff computes a line-level diff using sergi/go-diff's line-mode
// reduction (DiffLinesToChars/DiffCharsToLines), the same technique used
// elsewhere in the retrieval pack for code diffs.
func textDiff(oldContent, newContent []byte) []Line {
	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(string(oldContent), string(newContent))
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var out []Line
	for _, d := range diffs {
		lineType := LineContext
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			lineType = LineAdded
		case diffmatchpatch.DiffDelete:
			lineType = LineRemoved
		}
		for _, l := range splitKeepEmpty(d.Text) {
			out = append(out, Line{Type: lineType, Content: l})
		}
	}
	return out
}

func splitKeepEmpty(s string) []string {
	if s == "" {
		return nil
	}
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
