// Package context manages the active mode/scope lifecycle and project
// identity inference (spec §4.H): mode/scope create/delete/use/unset/
// list, and deriving a project identifier from the host VCS origin URL.
package context

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dabstractor/jin/internal/jinerr"
	"github.com/dabstractor/jin/internal/layer"
	"github.com/dabstractor/jin/internal/store"
)

// onDiskActive is the persisted form of the active context (spec §3,
// "Active context"). Scope is stored in its original colon form so a
// multi-segment scope round-trips exactly as the user typed it (spec
// §4.H: "Scope names carrying colons ... displayed with their original
// colon form").
type onDiskActive struct {
	Mode  string `yaml:"mode,omitempty"`
	Scope string `yaml:"scope,omitempty"`
}

// Manager owns the active-context file for one workspace and the
// underlying object store's mode/scope entity refs.
type Manager struct {
	statePath string
	store     *store.Store
}

// Open returns a Manager rooted at workspaceRoot, ensuring its private
// state directory exists.
func Open(workspaceRoot string, s *store.Store) (*Manager, error) {
	privateDir := filepath.Join(workspaceRoot, ".jin")
	if err := os.MkdirAll(privateDir, 0o755); err != nil {
		return nil, jinerr.Wrap(err)
	}
	return &Manager{
		statePath: filepath.Join(privateDir, "active-context.yaml"),
		store:     s,
	}, nil
}

func (m *Manager) load() (onDiskActive, error) {
	data, err := os.ReadFile(m.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return onDiskActive{}, nil
		}
		return onDiskActive{}, jinerr.Wrap(err)
	}
	var a onDiskActive
	if err := yaml.Unmarshal(data, &a); err != nil {
		return onDiskActive{}, &jinerr.Error{Kind: jinerr.Corrupt, FilePath: m.statePath, Err: err,
			Message: "corrupt active-context state " + m.statePath}
	}
	return a, nil
}

func (m *Manager) save(a onDiskActive) error {
	data, err := yaml.Marshal(a)
	if err != nil {
		return jinerr.Wrap(err)
	}
	return writeFileAtomic(m.statePath, data)
}

// Active returns the current active mode/scope as a layer.Context.
// Project is left empty: project identity is derived from the host VCS
// boundary once per command invocation and supplied by the caller
// (spec §4.H), not persisted here.
func (m *Manager) Active() (layer.Context, error) {
	a, err := m.load()
	if err != nil {
		return layer.Context{}, err
	}
	var scope layer.Scope
	if a.Scope != "" {
		scope, err = layer.ParseScope(a.Scope)
		if err != nil {
			return layer.Context{}, &jinerr.Error{Kind: jinerr.Corrupt, FilePath: m.statePath, Err: err,
				Message: "corrupt active-context scope " + a.Scope}
		}
	}
	return layer.Context{ActiveMode: a.Mode, ActiveScope: scope}, nil
}

// ModeCreate materializes a new mode: an initial commit with an empty
// tree under the mode-base ref (spec §4.H: "create materializes an
// empty initial layer instance").
func (m *Manager) ModeCreate(name string, sig store.Signature) error {
	inst := layer.Instance{Kind: layer.ModeBase, Mode: name}
	return m.createEntity(inst, sig, "create mode "+name)
}

// ModeDelete removes a mode's ref outright. The entity must exist.
func (m *Manager) ModeDelete(name string) error {
	return m.deleteEntity(layer.Instance{Kind: layer.ModeBase, Mode: name}, "mode", name)
}

// ModeUse sets the active mode. The named mode must already exist
// (spec §4.H: "use <name> requires the named entity to exist").
func (m *Manager) ModeUse(name string) error {
	if err := m.requireExists(layer.Instance{Kind: layer.ModeBase, Mode: name}, "mode", name); err != nil {
		return err
	}
	a, err := m.load()
	if err != nil {
		return err
	}
	a.Mode = name
	return m.save(a)
}

// ModeUnset clears the active mode. Idempotent (spec §4.H).
func (m *Manager) ModeUnset() error {
	a, err := m.load()
	if err != nil {
		return err
	}
	a.Mode = ""
	return m.save(a)
}

// ModeList enumerates every existing mode (live mode-base refs).
func (m *Manager) ModeList() ([]string, error) {
	entries, err := m.store.ListRefs("refs/jin/layers/mode/*/_")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		inst, err := layer.ParseRef(e.RefPath)
		if err != nil || inst.Kind != layer.ModeBase {
			continue
		}
		names = append(names, inst.Mode)
	}
	return names, nil
}

// ScopeCreate materializes a new scope, accepting its original colon
// form (e.g. "language:javascript").
func (m *Manager) ScopeCreate(name string, sig store.Signature) error {
	scope, err := layer.ParseScope(name)
	if err != nil {
		return jinerr.Validationf("invalid scope %q: %v", name, err)
	}
	inst := layer.Instance{Kind: layer.ScopeBase, Scope: scope}
	return m.createEntity(inst, sig, "create scope "+name)
}

// ScopeDelete removes a scope's ref outright.
func (m *Manager) ScopeDelete(name string) error {
	scope, err := layer.ParseScope(name)
	if err != nil {
		return jinerr.Validationf("invalid scope %q: %v", name, err)
	}
	return m.deleteEntity(layer.Instance{Kind: layer.ScopeBase, Scope: scope}, "scope", name)
}

// ScopeUse sets the active scope.
func (m *Manager) ScopeUse(name string) error {
	scope, err := layer.ParseScope(name)
	if err != nil {
		return jinerr.Validationf("invalid scope %q: %v", name, err)
	}
	if err := m.requireExists(layer.Instance{Kind: layer.ScopeBase, Scope: scope}, "scope", name); err != nil {
		return err
	}
	a, err := m.load()
	if err != nil {
		return err
	}
	a.Scope = scope.String()
	return m.save(a)
}

// ScopeUnset clears the active scope. Idempotent.
func (m *Manager) ScopeUnset() error {
	a, err := m.load()
	if err != nil {
		return err
	}
	a.Scope = ""
	return m.save(a)
}

// ScopeList enumerates every existing scope in its original colon form.
func (m *Manager) ScopeList() ([]string, error) {
	entries, err := m.store.ListRefs("refs/jin/layers/scope/**")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		inst, err := layer.ParseRef(e.RefPath)
		if err != nil || inst.Kind != layer.ScopeBase {
			continue
		}
		names = append(names, inst.Scope.String())
	}
	return names, nil
}

func (m *Manager) createEntity(inst layer.Instance, sig store.Signature, message string) error {
	refPath, err := layer.RefPath(inst)
	if err != nil {
		return jinerr.Validationf("%v", err)
	}
	return m.store.WithWriteLock(func() error {
		if _, err := m.store.Resolve(refPath); err == nil {
			return jinerr.Validationf("%s already exists", refPath)
		}
		tree, err := m.store.WriteTree(nil)
		if err != nil {
			return err
		}
		commit, err := m.store.Commit(tree, nil, sig, message, store.Manifest{})
		if err != nil {
			return err
		}
		return m.store.SetRef(refPath, commit, nil)
	})
}

func (m *Manager) deleteEntity(inst layer.Instance, kind, name string) error {
	refPath, err := layer.RefPath(inst)
	if err != nil {
		return jinerr.Validationf("%v", err)
	}
	if _, err := m.store.Resolve(refPath); err != nil {
		return jinerr.NotFoundf(kind, name)
	}
	return m.store.DeleteRef(refPath)
}

func (m *Manager) requireExists(inst layer.Instance, kind, name string) error {
	refPath, err := layer.RefPath(inst)
	if err != nil {
		return jinerr.Validationf("%v", err)
	}
	if _, err := m.store.Resolve(refPath); err != nil {
		return jinerr.NotFoundf(kind, name)
	}
	return nil
}

// ProjectIdentity derives a project identifier from a host VCS origin
// URL (spec §4.H): the URL's final path component, with any protocol,
// user-info, and ".git" suffix stripped, lowercased. Returns empty
// string for an empty URL (no host VCS origin configured).
func ProjectIdentity(originURL string) string {
	s := strings.TrimSpace(originURL)
	if s == "" {
		return ""
	}
	if idx := strings.Index(s, "://"); idx >= 0 {
		s = s[idx+3:]
	}
	if idx := strings.Index(s, "@"); idx >= 0 && !strings.Contains(s[:idx], "/") {
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(s, "/")
	s = strings.TrimSuffix(s, ".git")
	idx := strings.LastIndexAny(s, "/:")
	name := s
	if idx >= 0 {
		name = s[idx+1:]
	}
	return strings.ToLower(name)
}

// ClearStaleActive checks the active mode and scope (if set) against the
// store's live entity refs and unsets whichever no longer exists (spec
// §4.J item 6: "active-context references deleted entities ... clear the
// stale reference"). Returns the labels of what was cleared, e.g.
// "mode:dev", "scope:language:javascript".
func (m *Manager) ClearStaleActive() ([]string, error) {
	a, err := m.load()
	if err != nil {
		return nil, err
	}
	var cleared []string

	if a.Mode != "" {
		refPath, err := layer.RefPath(layer.Instance{Kind: layer.ModeBase, Mode: a.Mode})
		if err != nil {
			return nil, jinerr.Validationf("%v", err)
		}
		if _, err := m.store.Resolve(refPath); err != nil {
			cleared = append(cleared, "mode:"+a.Mode)
			a.Mode = ""
		}
	}
	if a.Scope != "" {
		scope, err := layer.ParseScope(a.Scope)
		if err != nil {
			cleared = append(cleared, "scope:"+a.Scope)
			a.Scope = ""
		} else {
			refPath, err := layer.RefPath(layer.Instance{Kind: layer.ScopeBase, Scope: scope})
			if err != nil {
				return nil, jinerr.Validationf("%v", err)
			}
			if _, err := m.store.Resolve(refPath); err != nil {
				cleared = append(cleared, "scope:"+a.Scope)
				a.Scope = ""
			}
		}
	}

	if len(cleared) == 0 {
		return nil, nil
	}
	return cleared, m.save(a)
}

func writeFileAtomic(path string, data []byte) error {
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
