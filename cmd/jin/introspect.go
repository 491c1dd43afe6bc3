package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/dabstractor/jin/internal/introspect"
)

var sectionStyle = lipgloss.NewStyle().Bold(true).Underline(true)

var statusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Show the active context, staged entries, and paused-apply state",
	GroupID: "inspect",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		s, err := a.Status()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, sectionStyle.Render("Active context"))
		fmt.Fprintf(out, "  mode=%q scope=%q project=%q\n", s.ActiveContext.ActiveMode, s.ActiveContext.ActiveScope.String(), s.ActiveContext.Project)

		fmt.Fprintln(out, sectionStyle.Render("Staged"))
		if len(s.StagedByLayer) == 0 {
			fmt.Fprintln(out, "  (nothing staged)")
		}
		for label, entries := range s.StagedByLayer {
			fmt.Fprintf(out, "  %s:\n", label)
			for _, e := range entries {
				fmt.Fprintf(out, "    %s\n", e.Path)
			}
		}

		if s.Paused {
			fmt.Fprintln(out, sectionStyle.Render("Paused conflicts"))
			for _, p := range s.ConflictPaths {
				fmt.Fprintf(out, "  %s\n", p)
			}
		}

		fmt.Fprintln(out, sectionStyle.Render("Managed ignore block"))
		if s.IgnoreHealth.OK {
			fmt.Fprintln(out, "  ok")
		} else {
			fmt.Fprintf(out, "  %s\n", s.IgnoreHealth.Error)
		}
		return nil
	},
}

var diffCmd = &cobra.Command{
	Use:     "diff <path>",
	Short:   "Compare a path's working-tree content against the merged layer view",
	GroupID: "inspect",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		d, err := a.Diff(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if d.Structured {
			for _, c := range d.ChangedPaths {
				fmt.Fprintln(out, c)
			}
			return nil
		}
		for _, l := range d.Lines {
			switch l.Type {
			case introspect.LineAdded:
				fmt.Fprintf(out, "+%s\n", l.Content)
			case introspect.LineRemoved:
				fmt.Fprintf(out, "-%s\n", l.Content)
			default:
				fmt.Fprintf(out, " %s\n", l.Content)
			}
		}
		return nil
	},
}

var logCmd = &cobra.Command{
	Use:     "log",
	Short:   "Show commit history per layer",
	GroupID: "inspect",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		layerLabel, _ := cmd.Flags().GetString("layer")
		count, _ := cmd.Flags().GetInt("count")
		all, _ := cmd.Flags().GetBool("all")

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		logs, err := a.Log(introspect.LogOptions{LayerLabel: layerLabel, Count: count, All: all})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, l := range logs {
			fmt.Fprintln(out, sectionStyle.Render(introspect.LayerLabel(l.Layer)))
			for _, e := range l.Entries {
				fmt.Fprintf(out, "  %s %s\n", shortHash(e.Commit), e.Message)
			}
		}
		return nil
	},
}

var layersCmd = &cobra.Command{
	Use:     "layers",
	Short:   "Enumerate every live layer instance",
	GroupID: "inspect",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		insts, err := a.Layers()
		if err != nil {
			return err
		}
		for _, inst := range insts {
			fmt.Fprintln(cmd.OutOrStdout(), introspect.LayerLabel(inst))
		}
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List files contributed by the active, composed layer set",
	GroupID: "inspect",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		entries, err := a.List()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, e := range entries {
			marker := ""
			if e.Conflict {
				marker = " (conflict)"
			}
			fmt.Fprintf(out, "%s%s\n", e.Path, marker)
		}
		return nil
	},
}

func init() {
	logCmd.Flags().String("layer", "", "restrict to one layer by label")
	logCmd.Flags().Int("count", 0, "limit the number of commits shown (0 = unlimited)")
	logCmd.Flags().Bool("all", false, "include layers outside the active context")
	rootCmd.AddCommand(statusCmd, diffCmd, logCmd, layersCmd, listCmd)
}
