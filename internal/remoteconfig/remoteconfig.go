// Package remoteconfig persists the single remote a workspace is linked
// to (`jin link <url>`, spec §6 command surface), the URL
// internal/syncboundary's fetch/push talk to. It follows the same
// .jin-private, atomic-write convention as internal/stage and
// internal/context.
package remoteconfig

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/dabstractor/jin/internal/jinerr"
)

const fileName = "remote.yaml"

// Config names the linked remote.
type Config struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

func path(workspaceRoot string) string {
	return filepath.Join(workspaceRoot, ".jin", fileName)
}

// Load reads the linked remote, if any. ok is false (with a nil error)
// when the workspace has never been linked.
func Load(workspaceRoot string) (cfg Config, ok bool, err error) {
	data, err := os.ReadFile(path(workspaceRoot))
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, false, nil
		}
		return Config{}, false, jinerr.Wrap(err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, false, &jinerr.Error{Kind: jinerr.Corrupt, FilePath: path(workspaceRoot), Err: err,
			Message: "corrupt remote config " + path(workspaceRoot)}
	}
	return cfg, true, nil
}

// Save writes cfg atomically (temp + rename).
func Save(workspaceRoot string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return jinerr.Wrap(err)
	}

	dest := path(workspaceRoot)
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return jinerr.Wrap(err)
	}

	tmp, err := os.CreateTemp(dir, ".remote-*.yaml.tmp")
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
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return jinerr.Wrap(err)
	}
	return nil
}
