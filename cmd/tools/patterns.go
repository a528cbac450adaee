package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/lychee-technology/appforge"
	"github.com/lychee-technology/appforge/internal"
	"github.com/spf13/cobra"
)

// loadLibrary returns the built-in library, or one read from dir when set.
func loadLibrary(dir string) (*internal.PatternLibrary, error) {
	if dir == "" {
		return internal.DefaultPatternLibrary()
	}
	return internal.LoadPatternLibrary(os.DirFS(dir))
}

func newPatternsCmd(_ *rootOptions) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "Inspect the pattern library",
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", "", "directory holding library.yaml and pattern templates (built-in library when empty)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List patterns in dependency order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := loadLibrary(dir)
			if err != nil {
				return err
			}
			ordered, dropped := internal.TopologicalSort(lib.Patterns())

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCATEGORY\tDEPENDS ON")
			for _, p := range ordered {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", p.ID, p.Category, strings.Join(p.Dependencies, ","))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if len(dropped) > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "Unorderable patterns: %s\n", strings.Join(dropped, ", "))
			}
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show <pattern-id>",
		Short: "Print a pattern with its templates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := loadLibrary(dir)
			if err != nil {
				return err
			}
			p, ok := lib.GetPattern(args[0])
			if !ok {
				return appforge.NewPatternNotFoundError(args[0])
			}
			return writeJSON(cmd.OutOrStdout(), p)
		},
	}

	check := &cobra.Command{
		Use:   "check",
		Short: "Check dependencies, cycles and template syntax of the library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := loadLibrary(dir)
			if err != nil {
				return err
			}
			errs := internal.ValidateLibrary(lib)
			if len(errs) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "OK: %d patterns\n", len(lib.ListPatterns()))
				return nil
			}
			for _, e := range errs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", e.Code(), e.Error())
			}
			return fmt.Errorf("pattern library has %d problems", len(errs))
		},
	}

	cmd.AddCommand(list, show, check)
	return cmd
}
