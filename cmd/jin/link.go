package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var linkCmd = &cobra.Command{
	Use:     "link [url]",
	Short:   "Record the remote a linked workspace's fetch/pull/push/sync talk to",
	GroupID: "sync",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		name, _ := cmd.Flags().GetString("name")
		var url string
		if len(args) == 1 {
			url = args[0]
		}
		if err := a.Link(name, url); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Remote linked.")
		return nil
	},
}

func init() {
	linkCmd.Flags().String("name", "", "remote name (default: configured default remote)")
	rootCmd.AddCommand(linkCmd)
}
