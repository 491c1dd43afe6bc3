package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var modeCmd = &cobra.Command{
	Use:     "mode",
	Short:   "Create, select, or list modes",
	GroupID: "context",
}

var scopeCmd = &cobra.Command{
	Use:     "scope",
	Short:   "Create, select, or list scopes",
	GroupID: "context",
}

func init() {
	modeCmd.AddCommand(
		entityCreateCmd("mode", func(a appOps, name string) error { return a.ModeCreate(name) }),
		entityUseCmd("mode", func(a appOps, name string) error { return a.ModeUse(name) }),
		entityUnsetCmd("mode", func(a appOps) error { return a.ModeUnset() }),
		entityDeleteCmd("mode", func(a appOps, name string) error { return a.ModeDelete(name) }),
		entityListCmd("mode", func(a appOps) ([]string, error) { return a.ModeList() }),
	)
	scopeCmd.AddCommand(
		entityCreateCmd("scope", func(a appOps, name string) error { return a.ScopeCreate(name) }),
		entityUseCmd("scope", func(a appOps, name string) error { return a.ScopeUse(name) }),
		entityUnsetCmd("scope", func(a appOps) error { return a.ScopeUnset() }),
		entityDeleteCmd("scope", func(a appOps, name string) error { return a.ScopeDelete(name) }),
		entityListCmd("scope", func(a appOps) ([]string, error) { return a.ScopeList() }),
	)
	rootCmd.AddCommand(modeCmd, scopeCmd)
}

// appOps is the subset of *app.App the entity command factories below
// call through, named narrowly so the factories stay reusable between
// mode and scope without importing internal/app here.
type appOps interface {
	ModeCreate(string) error
	ModeUse(string) error
	ModeUnset() error
	ModeDelete(string) error
	ModeList() ([]string, error)
	ScopeCreate(string) error
	ScopeUse(string) error
	ScopeUnset() error
	ScopeDelete(string) error
	ScopeList() ([]string, error)
}

func entityCreateCmd(kind string, fn func(appOps, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new " + kind,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			if err := fn(a, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %q created.\n", kind, args[0])
			return nil
		},
	}
}

func entityUseCmd(kind string, fn func(appOps, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   "use <name>",
		Short: "Select the active " + kind,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			return fn(a, args[0])
		},
	}
}

func entityUnsetCmd(kind string, fn func(appOps) error) *cobra.Command {
	return &cobra.Command{
		Use:   "unset",
		Short: "Clear the active " + kind,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			return fn(a)
		},
	}
}

func entityDeleteCmd(kind string, fn func(appOps, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a " + kind,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			return fn(a, args[0])
		},
	}
}

func entityListCmd(kind string, fn func(appOps) ([]string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every existing " + kind,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			names, err := fn(a)
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
}
