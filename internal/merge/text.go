package merge

import (
	"fmt"
	"strings"
)

// TextMergeResult is the outcome of merging one text file across two
// contributing layers.
type TextMergeResult struct {
	Merged     []byte
	Conflicted bool
}

// MergeText performs spec §4.E step 3: a 3-way merge when a common
// ancestor is available, else a 2-way merge, annotating unresolved
// hunks with Git-style markers carrying the two contributing layers'
// ref paths.
//
// base may be nil, meaning no common ancestor was reachable (the 2-way
// fallback decided in SPEC_FULL.md's Open Question resolution); in that
// case identical lines still merge cleanly and only genuinely differing
// lines conflict.
func MergeText(base, ours, theirs []byte, oursRef, theirsRef string) TextMergeResult {
	if bytesEqual(ours, theirs) {
		return TextMergeResult{Merged: ours}
	}

	oursLines := splitLines(ours)
	theirsLines := splitLines(theirs)

	var baseLines []string
	if base != nil {
		baseLines = splitLines(base)
	}

	hunks := diff3(baseLines, oursLines, theirsLines)

	var out strings.Builder
	conflicted := false
	for _, h := range hunks {
		if !h.conflict {
			writeLines(&out, h.resolved)
			continue
		}
		conflicted = true
		fmt.Fprintf(&out, "<<<<<<< %s\n", oursRef)
		writeLines(&out, h.ours)
		out.WriteString("=======\n")
		writeLines(&out, h.theirs)
		fmt.Fprintf(&out, ">>>>>>> %s\n", theirsRef)
	}

	return TextMergeResult{Merged: []byte(out.String()), Conflicted: conflicted}
}

type hunk struct {
	conflict bool
	resolved []string // valid when !conflict
	ours     []string // valid when conflict
	theirs   []string // valid when conflict
}

// diff3 produces a minimal two/three-way merge over line slices. It is
// deliberately line-granular (not a full Myers diff) matching the
// hunk-level conflict markers the spec calls for, rather than
// reconstructing a general alignment: lines are compared position by
// position against the common length, trailing extra lines from either
// side are appended, and a base (when present) resolves the
// "one side changed, the other didn't" case without conflict.
func diff3(base, ours, theirs []string) []hunk {
	maxLen := len(ours)
	if len(theirs) > maxLen {
		maxLen = len(theirs)
	}

	var hunks []hunk
	for i := 0; i < maxLen; i++ {
		var baseLine *string
		if i < len(base) {
			baseLine = &base[i]
		}
		var oursLine, theirsLine *string
		if i < len(ours) {
			oursLine = &ours[i]
		}
		if i < len(theirs) {
			theirsLine = &theirs[i]
		}

		switch {
		case oursLine != nil && theirsLine != nil && *oursLine == *theirsLine:
			hunks = append(hunks, hunk{resolved: []string{*oursLine}})
		case baseLine != nil && oursLine != nil && *baseLine == *oursLine && theirsLine != nil:
			// Only theirs changed from base.
			hunks = append(hunks, hunk{resolved: []string{*theirsLine}})
		case baseLine != nil && theirsLine != nil && *baseLine == *theirsLine && oursLine != nil:
			// Only ours changed from base.
			hunks = append(hunks, hunk{resolved: []string{*oursLine}})
		case oursLine == nil && theirsLine != nil:
			hunks = append(hunks, hunk{resolved: []string{*theirsLine}})
		case theirsLine == nil && oursLine != nil:
			hunks = append(hunks, hunk{resolved: []string{*oursLine}})
		default:
			h := hunk{conflict: true}
			if oursLine != nil {
				h.ours = []string{*oursLine}
			}
			if theirsLine != nil {
				h.theirs = []string{*theirsLine}
			}
			hunks = append(hunks, h)
		}
	}
	return hunks
}

func splitLines(b []byte) []string {
	if len(b) == 0 {
		return nil
	}
	s := string(b)
	lines := strings.Split(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func writeLines(out *strings.Builder, lines []string) {
	for _, l := range lines {
		out.WriteString(l)
		out.WriteByte('\n')
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ConflictMarkersPresent reports whether merged content still carries
// any unresolved Git-style conflict markers, the validation spec §4.G's
// resolve operation performs before accepting a resolution.
func ConflictMarkersPresent(content []byte) bool {
	s := string(content)
	return strings.Contains(s, "<<<<<<< ") || strings.Contains(s, "\n=======\n") ||
		strings.Contains(s, "=======\n") || strings.Contains(s, ">>>>>>> ")
}
