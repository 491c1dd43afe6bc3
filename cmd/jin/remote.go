package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:     "fetch",
	Short:   "Advance remote-tracking refs for every layer",
	GroupID: "sync",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		affected, err := a.Fetch()
		if err != nil {
			return err
		}
		reportAffected(cmd, affected)
		return nil
	},
}

var pullCmd = &cobra.Command{
	Use:     "pull",
	Short:   "Fetch and fast-forward local layer refs that are not ahead of the remote",
	GroupID: "sync",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		affected, diverged, err := a.Pull()
		if err != nil {
			return err
		}
		reportAffected(cmd, affected)
		for _, d := range diverged {
			fmt.Fprintf(cmd.OutOrStdout(), "diverged (not fast-forwarded): %s\n", d)
		}
		return nil
	},
}

var pushCmd = &cobra.Command{
	Use:     "push",
	Short:   "Publish local layer refs to the linked remote",
	GroupID: "sync",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		rejected, err := a.Push(flagForce)
		if err != nil {
			return err
		}
		for _, r := range rejected {
			fmt.Fprintf(cmd.OutOrStdout(), "rejected: %s (%s)\n", r.RefPath, r.Reason)
		}
		if len(rejected) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Push complete.")
		}
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:     "sync",
	Short:   "Pull, apply, then push in one round-trip",
	GroupID: "sync",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		result, err := a.Sync(flagForce)
		if err != nil {
			return err
		}
		reportAffected(cmd, result.Affected)
		for _, d := range result.Diverged {
			fmt.Fprintf(cmd.OutOrStdout(), "diverged (not fast-forwarded): %s\n", d)
		}
		if result.Applied.Paused {
			fmt.Fprintf(cmd.OutOrStdout(), "Apply paused on %d conflict(s); push skipped.\n", len(result.Applied.ConflictPaths))
			return nil
		}
		for _, r := range result.Rejected {
			fmt.Fprintf(cmd.OutOrStdout(), "rejected: %s (%s)\n", r.RefPath, r.Reason)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd, pullCmd, pushCmd, syncCmd)
}

func reportAffected(cmd *cobra.Command, affected []string) {
	if len(affected) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No active-context layers moved.")
		return
	}
	for _, layer := range affected {
		fmt.Fprintf(cmd.OutOrStdout(), "moved: %s\n", layer)
	}
}
