package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dabstractor/jin/internal/app"
)

var addCmd = &cobra.Command{
	Use:     "add <path>...",
	Short:   "Stage one or more paths against the routed layer",
	GroupID: "stage",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		for _, p := range args {
			if err := a.Add(p, layerFlags()); err != nil {
				return fmt.Errorf("%s: %w", p, err)
			}
		}
		return nil
	},
}

var rmCmd = &cobra.Command{
	Use:     "rm <path>...",
	Short:   "Stage the removal of one or more paths",
	GroupID: "stage",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		for _, p := range args {
			if err := a.Remove(p, layerFlags()); err != nil {
				return fmt.Errorf("%s: %w", p, err)
			}
		}
		return nil
	},
}

var mvCmd = &cobra.Command{
	Use:     "mv <old> <new>",
	Short:   "Rename a staged path on disk and in the staging index",
	GroupID: "stage",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		return a.Move(args[0], args[1])
	},
}

var commitCmd = &cobra.Command{
	Use:     "commit",
	Short:   "Commit every staged entry, one commit per target layer",
	GroupID: "stage",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		message, _ := cmd.Flags().GetString("message")
		if message == "" {
			return fmt.Errorf("commit message required (-m)")
		}
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		result, err := a.Commit(message)
		if err != nil {
			return err
		}
		for _, r := range result.Results {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s -> %s\n", r.Layer.Key(), shortHash(r.OldHash), shortHash(r.NewHash))
		}
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:     "reset",
	Short:   "Clear staged changes and, optionally, paused conflicts and workspace state",
	GroupID: "stage",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		soft, _ := cmd.Flags().GetBool("soft")
		hard, _ := cmd.Flags().GetBool("hard")
		mode := app.ResetMixed
		switch {
		case soft:
			mode = app.ResetSoft
		case hard:
			mode = app.ResetHard
		}

		scoped := flagGlobal || flagLocal || flagMode || flagProject || len(flagScopes) > 0
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		return a.Reset(mode, layerFlags(), scoped)
	},
}

func init() {
	commitCmd.Flags().StringP("message", "m", "", "commit message")
	resetCmd.Flags().Bool("soft", false, "clear the staging index only")
	resetCmd.Flags().Bool("hard", false, "also re-materialize the workspace from current layer tips")
	rootCmd.AddCommand(addCmd, rmCmd, mvCmd, commitCmd, resetCmd)
}

func shortHash(h interface{ String() string }) string {
	s := h.String()
	if len(s) > 10 {
		return s[:10]
	}
	return s
}
