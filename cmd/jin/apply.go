package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/dabstractor/jin/internal/app"
	"github.com/dabstractor/jin/internal/jinlog"
)

var applyCmd = &cobra.Command{
	Use:     "apply",
	Short:   "Merge every applicable layer and materialize the result into the workspace",
	GroupID: "sync",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		watch, _ := cmd.Flags().GetBool("watch")
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		logger := newLogger(a.WorkspaceRoot)

		if watch {
			return watchApply(cmd, a, logger)
		}
		return runApplyOnce(cmd, a)
	},
}

func init() {
	applyCmd.Flags().Bool("watch", false, "re-apply automatically as the object store's layer refs change")
	rootCmd.AddCommand(applyCmd)
}

func runApplyOnce(cmd *cobra.Command, a *app.App) error {
	result, err := a.Apply(flagDryRun)
	if err != nil {
		return err
	}
	if result.Paused {
		fmt.Fprintf(cmd.OutOrStdout(), "Apply paused on %d conflict(s); resolve with `jin resolve <path>` then `jin resolve --all`.\n", len(result.ConflictPaths))
		for _, p := range result.ConflictPaths {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", p)
		}
		return nil
	}
	for _, p := range result.Removed {
		fmt.Fprintf(cmd.OutOrStdout(), "removed: %s\n", p)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Workspace up to date.")
	return nil
}

// watchApply re-runs apply whenever the object store's ref namespace
// changes on disk, a developer convenience for a workspace linked to a
// layer source under active local edit.
func watchApply(cmd *cobra.Command, a *app.App, logger *jinlog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(a.Store.Path()); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	if err := runApplyOnce(cmd, a); err != nil {
		logger.Errorf("%v", err)
	}

	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := runApplyOnce(cmd, a); err != nil {
				logger.Errorf("%v", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Errorf("watch: %v", err)
		case <-sigCh:
			return nil
		}
	}
}
