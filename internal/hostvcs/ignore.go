package hostvcs

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/dabstractor/jin/internal/jinerr"
)

const (
	managedStart = "### JIN MANAGED START"
	managedEnd   = "### JIN MANAGED END"
)

// IgnoreFilePath returns the path to the host VCS's ignore file (only
// .gitignore is understood; jj defers to git's ignore files when
// colocated).
func (h *Host) IgnoreFilePath() string {
	return filepath.Join(h.root, ".gitignore")
}

// UpdateManagedBlock rewrites the delimited Jin-managed region of the
// ignore file to contain exactly paths, preserving everything outside
// the markers verbatim (spec §4.F, "Managed-ignore block").
func (h *Host) UpdateManagedBlock(paths []string) error {
	ignorePath := h.IgnoreFilePath()

	existing, err := os.ReadFile(ignorePath)
	if err != nil && !os.IsNotExist(err) {
		return jinerr.Wrap(err)
	}

	before, _, after, err := splitManagedBlock(string(existing))
	if err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString(before)
	if before != "" && !strings.HasSuffix(before, "\n") {
		b.WriteString("\n")
	}
	b.WriteString(managedStart)
	b.WriteString("\n")
	for _, p := range paths {
		b.WriteString(p)
		b.WriteString("\n")
	}
	b.WriteString(managedEnd)
	b.WriteString("\n")
	b.WriteString(after)

	return writeFileAtomic(ignorePath, []byte(b.String()))
}

// ManagedPaths reads back the paths currently listed in the managed
// block, used by internal/repair to detect drift between the index and
// the ignore file.
func (h *Host) ManagedPaths() ([]string, error) {
	data, err := os.ReadFile(h.IgnoreFilePath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, jinerr.Wrap(err)
	}
	_, block, _, err := splitManagedBlock(string(data))
	if err != nil {
		return nil, err
	}
	var out []string
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out, nil
}

// CheckManagedBlockIntegrity reports a descriptive error if the ignore
// file has exactly one of the two markers, or nested markers — the
// corruption cases spec §4.F requires to be "detected and repairable".
func (h *Host) CheckManagedBlockIntegrity() error {
	data, err := os.ReadFile(h.IgnoreFilePath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return jinerr.Wrap(err)
	}
	_, _, _, err = splitManagedBlock(string(data))
	return err
}

// splitManagedBlock divides content into (before, block-interior,
// after) around the managed markers. With no markers present, block is
// empty and before holds all of content. Returns a Corrupt error if
// exactly one marker is present, or if either marker appears more than
// once (nested/duplicated markers).
func splitManagedBlock(content string) (before, block, after string, err error) {
	startCount := strings.Count(content, managedStart)
	endCount := strings.Count(content, managedEnd)

	if startCount == 0 && endCount == 0 {
		return content, "", "", nil
	}
	if startCount != 1 || endCount != 1 {
		return "", "", "", &jinerr.Error{Kind: jinerr.Corrupt,
			Message: "managed ignore block markers are missing or duplicated"}
	}

	startIdx := strings.Index(content, managedStart)
	endIdx := strings.Index(content, managedEnd)
	if endIdx < startIdx {
		return "", "", "", &jinerr.Error{Kind: jinerr.Corrupt,
			Message: "managed ignore block end marker precedes start marker"}
	}

	before = content[:startIdx]
	interiorStart := startIdx + len(managedStart)
	if interiorStart < len(content) && content[interiorStart] == '\n' {
		interiorStart++
	}
	block = content[interiorStart:endIdx]
	afterStart := endIdx + len(managedEnd)
	if afterStart < len(content) && content[afterStart] == '\n' {
		afterStart++
	}
	after = content[afterStart:]
	return before, block, after, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return jinerr.Wrap(err)
	}
	tmp, err := os.CreateTemp(dir, ".gitignore-*.tmp")
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
