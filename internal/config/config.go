// Package config loads Jin's process-wide configuration: the object-store
// location (JIN_DIR, the only load-bearing environment variable per spec
// §6), lock timeouts, and the audit directory. Layering follows viper's
// usual precedence: flags > environment > config file > defaults.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the resolved, process-wide configuration for one invocation.
// It is threaded explicitly through constructors; there is no singleton
// (spec §9, "Global state").
type Config struct {
	// JinDir is the bare object-store location (spec §6 on-disk layout).
	JinDir string

	// LockTimeout bounds advisory lock acquisition (spec §5).
	LockTimeout time.Duration

	// AuditDir holds audit records when not workspace-scoped.
	AuditDir string

	// OrphanStagingAge is the repair threshold for orphaned staging refs
	// (spec §4.J item 1).
	OrphanStagingAge time.Duration

	// MaxStagedFileSize caps the size of a file `jin add` will stage
	// (spec §4.D, "size limit if configured"). Zero means unlimited.
	MaxStagedFileSize int64

	// DefaultRemote is the remote name `jin link` records when it is
	// given no name (spec §4.L, §6).
	DefaultRemote string
}

const (
	envJinDir = "JIN_DIR"

	defaultLockTimeout      = 5 * time.Second
	defaultOrphanStagingAge = 24 * time.Hour
	defaultRemoteName       = "origin"
)

// Load resolves configuration from flags, environment, an optional TOML
// config file, and built-in defaults, in that precedence order.
//
// flags may be nil, in which case only environment and defaults apply.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	v.SetDefault("jin_dir", filepath.Join(home, ".jin"))
	v.SetDefault("lock_timeout", defaultLockTimeout.String())
	v.SetDefault("audit_dir", filepath.Join(home, ".jin", "audit"))
	v.SetDefault("orphan_staging_age", defaultOrphanStagingAge.String())
	v.SetDefault("max_staged_file_size", int64(0))
	v.SetDefault("default_remote", defaultRemoteName)

	v.SetConfigName(".jinconfig")
	v.AddConfigPath(home)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	v.SetEnvPrefix("jin")
	_ = v.BindEnv("jin_dir", envJinDir)

	if flags != nil {
		_ = v.BindPFlag("jin_dir", flags.Lookup("jin-dir"))
		_ = v.BindPFlag("lock_timeout", flags.Lookup("lock-timeout"))
	}

	lockTimeout, err := time.ParseDuration(v.GetString("lock_timeout"))
	if err != nil {
		lockTimeout = defaultLockTimeout
	}
	orphanAge, err := time.ParseDuration(v.GetString("orphan_staging_age"))
	if err != nil {
		orphanAge = defaultOrphanStagingAge
	}

	return &Config{
		JinDir:            v.GetString("jin_dir"),
		LockTimeout:       lockTimeout,
		AuditDir:          v.GetString("audit_dir"),
		OrphanStagingAge:  orphanAge,
		MaxStagedFileSize: v.GetInt64("max_staged_file_size"),
		DefaultRemote:     v.GetString("default_remote"),
	}, nil
}
