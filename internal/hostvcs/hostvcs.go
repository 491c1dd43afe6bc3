// Package hostvcs is Jin's narrow boundary onto the repository it
// overlays (spec §1, §4.F, §4.H): it never touches Jin's own object
// store, only the host VCS checked out at the workspace root. It
// answers three questions — what is the project's origin URL, is a
// path already tracked, and how do we maintain the managed block in
// the host's ignore file — by shelling out to the host VCS binary, the
// same way internal/vcs's git/jj backends do.
package hostvcs

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/dabstractor/jin/internal/jinerr"
)

// Kind identifies which host VCS is in play. Jin only needs to
// distinguish git from "none detected"; jj repositories are expected to
// be colocated with git for Jin's purposes (a jj-only repository with
// no git directory has no ignore file or tracked-path concept Jin can
// query, so it is treated as untracked).
type Kind string

const (
	KindGit  Kind = "git"
	KindNone Kind = "none"
)

// Host is Jin's view of the repository at root.
type Host struct {
	root string
	kind Kind
}

// Detect walks up from dir looking for a .git directory, mirroring
// internal/vcs's Detect precedence but narrowed to what Jin needs: it
// does not distinguish jj from git, and never fails on "not found" —
// an un-hosted workspace (no git repo at all) is valid for Jin, just
// one where IsTracked always reports false and project identity must
// come from elsewhere (spec §4.H, project identity inference).
func Detect(dir string) (*Host, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, jinerr.Wrap(err)
	}

	current := abs
	for {
		gitPath := filepath.Join(current, ".git")
		if info, err := os.Stat(gitPath); err == nil && (info.IsDir() || info.Mode().IsRegular()) {
			return &Host{root: current, kind: KindGit}, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return &Host{root: abs, kind: KindNone}, nil
		}
		current = parent
	}
}

// Kind reports which host VCS was detected.
func (h *Host) Kind() Kind { return h.kind }

// Root returns the repository root Jin considers this workspace rooted
// at (the directory the .git was found in, or the original directory
// when none was found).
func (h *Host) Root() string { return h.root }

func (h *Host) git(args ...string) ([]byte, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = h.root
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git %s failed: %w", strings.Join(args, " "), err)
	}
	return output, nil
}

// OriginURL returns the configured "origin" remote URL, used by
// internal/context to derive project identity (spec §4.H). Returns
// empty string, not an error, when there is no host VCS or no origin
// remote configured — project identity falls back to other inference
// in that case.
func (h *Host) OriginURL() (string, error) {
	if h.kind != KindGit {
		return "", nil
	}
	out, err := h.git("remote", "get-url", "origin")
	if err != nil {
		return "", nil
	}
	return strings.TrimSpace(string(out)), nil
}

// IsTracked reports whether path (relative to the host repo root) is
// already tracked by the host VCS, the check internal/stage applies at
// stage time (spec §4.D: "not already tracked by the host VCS").
func (h *Host) IsTracked(path string) (bool, error) {
	if h.kind != KindGit {
		return false, nil
	}
	cmd := exec.Command("git", "ls-files", "--error-unmatch", "--", path)
	cmd.Dir = h.root
	if err := cmd.Run(); err != nil {
		// A non-zero exit from --error-unmatch means the path is not
		// tracked; any other failure (e.g. git not found) is treated the
		// same way, since a conservative "not tracked" only widens what
		// Jin is willing to manage, never narrows it onto host-owned files.
		return false, nil
	}
	return true, nil
}
