package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dabstractor/jin/internal/app"
	"github.com/dabstractor/jin/internal/config"
	"github.com/dabstractor/jin/internal/jinerr"
	"github.com/dabstractor/jin/internal/jinlog"
	"github.com/dabstractor/jin/internal/layer"
)

var (
	flagMode    bool
	flagScopes  []string
	flagProject bool
	flagGlobal  bool
	flagLocal   bool
	flagForce   bool
	flagDryRun  bool
	flagJSON    bool
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:           "jin",
	Short:         "A phantom version-control overlay for layered, portable configuration",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("jin-dir", "", "override the object-store location (default: $JIN_DIR or ~/.jin)")
	pf.Duration("lock-timeout", 0, "advisory write-lock timeout")
	pf.BoolVar(&flagMode, "mode", false, "route to the active mode's layer")
	pf.StringArrayVar(&flagScopes, "scope", nil, "route to a named scope's layer")
	pf.BoolVar(&flagProject, "project", false, "qualify the routed layer by the current project")
	pf.BoolVar(&flagGlobal, "global", false, "route to the global-base layer")
	pf.BoolVar(&flagLocal, "local", false, "route to the workspace-local layer")
	pf.BoolVar(&flagForce, "force", false, "override a normally-rejected operation")
	pf.BoolVar(&flagDryRun, "dry-run", false, "report what would happen without mutating state")
	pf.BoolVar(&flagJSON, "json", false, "accepted for compatibility; output is always human-readable")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "write a rotating debug log")

	rootCmd.AddGroup(
		&cobra.Group{ID: "stage", Title: "Staging and committing:"},
		&cobra.Group{ID: "sync", Title: "Layer application and remote sync:"},
		&cobra.Group{ID: "context", Title: "Mode and scope management:"},
		&cobra.Group{ID: "inspect", Title: "Introspection:"},
		&cobra.Group{ID: "maint", Title: "Maintenance:"},
	)
}

// Execute runs the command tree and maps any returned error to an exit
// code per spec §6's table, via jinerr.Kind.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps a returned error to one of spec §6's exit codes:
// 0 success, 1 generic failure, 2 misuse/bad flags, 3 not initialized,
// 4 remote/transport, 5 authentication, 6 authorization/write-blocked,
// 7 conflict, 8 not found. Jin's closed error-kind set (spec §7) has no
// dedicated authentication kind of its own: go-git's transport layer
// reports credential failures as transport errors indistinguishable at
// this boundary, so every Transport error maps to 4 rather than
// guessing at 5 from string content.
func exitCodeFor(err error) int {
	e, ok := jinerr.As(err)
	if !ok {
		return 1
	}
	switch e.Kind {
	case jinerr.NotInitialized:
		return 3
	case jinerr.NotFound:
		return 8
	case jinerr.RouteErr, jinerr.Validation, jinerr.NotInPausedState, jinerr.NoPausedApply:
		return 2
	case jinerr.Transport:
		return 4
	case jinerr.PathBlocked, jinerr.AlreadyTracked:
		return 6
	case jinerr.ConflictKind, jinerr.StillConflicted:
		return 7
	default:
		return 1
	}
}

// layerFlags assembles the routing flags common to every layer-scoped
// verb (spec §4.B).
func layerFlags() layer.Flags {
	return layer.Flags{
		Global:  flagGlobal,
		Local:   flagLocal,
		Mode:    flagMode,
		Scopes:  flagScopes,
		Project: flagProject,
	}
}

// openApp loads configuration bound to the root command's persistent
// flags and opens an App rooted at the current working directory.
func openApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := config.Load(rootCmd.PersistentFlags())
	if err != nil {
		return nil, err
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, jinerr.Wrap(err)
	}
	return app.Open(wd, cfg)
}

// newLogger builds the process logger, writing its rotating debug sink
// (when --verbose) under the workspace's private directory.
func newLogger(workspaceRoot string) *jinlog.Logger {
	var debugPath string
	if flagVerbose {
		debugPath = filepath.Join(workspaceRoot, ".jin", "debug.log")
	}
	return jinlog.New(flagVerbose, debugPath)
}
