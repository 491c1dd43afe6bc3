package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var repairCmd = &cobra.Command{
	Use:     "repair",
	Short:   "Run every diagnostic and recovery check",
	GroupID: "maint",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		findings, err := a.Repair(flagDryRun, a.Config.OrphanStagingAge)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(findings) == 0 {
			fmt.Fprintln(out, "Nothing to repair.")
			return nil
		}
		for _, f := range findings {
			state := "applied"
			if !f.Applied {
				state = "proposed"
			}
			fmt.Fprintf(out, "[%s] %s: %s\n", state, f.Check, f.Detail)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(repairCmd)
}
