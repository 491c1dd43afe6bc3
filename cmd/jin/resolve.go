package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:     "resolve [path]",
	Short:   "Finalize one or every paused merge conflict",
	GroupID: "sync",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		if all {
			if err := a.ResolveAll(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All conflicts resolved.")
			return nil
		}
		if len(args) != 1 {
			return fmt.Errorf("resolve requires a path, or --all")
		}
		if err := a.Resolve(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s resolved.\n", args[0])
		return nil
	},
}

func init() {
	resolveCmd.Flags().Bool("all", false, "finalize every remaining conflict")
	rootCmd.AddCommand(resolveCmd)
}
