package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:     "init",
	Short:   "Prepare the current directory as a Jin workspace",
	GroupID: "stage",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		result, err := a.Init()
		if err != nil {
			return err
		}
		switch {
		case result.HostDetected && result.OriginURL != "":
			fmt.Fprintf(cmd.OutOrStdout(), "Jin workspace ready (host origin: %s)\n", result.OriginURL)
		case result.HostDetected:
			fmt.Fprintln(cmd.OutOrStdout(), "Jin workspace ready (host VCS detected, no origin configured)")
		default:
			fmt.Fprintln(cmd.OutOrStdout(), "Jin workspace ready (no host VCS detected)")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
