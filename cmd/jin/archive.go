package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:     "export <path>",
	Short:   "Serialize the routed layer's tree to a gzipped tarball",
	GroupID: "maint",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		if err := a.Export(layerFlags(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", args[0])
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:     "import <path>",
	Short:   "Stage a gzipped tarball's contents against the routed layer",
	GroupID: "maint",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		imported, err := a.Import(layerFlags(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Staged %d file(s); run `jin commit` to finish.\n", len(imported))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd, importCmd)
}
