package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/lychee-technology/appforge"
	"github.com/lychee-technology/appforge/factory"
	"github.com/lychee-technology/appforge/internal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// readSpec loads a specification from path, or stdin when path is "-".
// The input may be raw model output; it goes through the normalizer.
func readSpec(cmd *cobra.Command, path string) (*appforge.Specification, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read spec %s: %w", path, err)
	}

	spec, notes, err := internal.NewSpecNormalizer(nil).Parse(string(data))
	if err != nil {
		return nil, err
	}
	for _, note := range notes {
		zap.S().Warnw("specification shape drift", "file", path, "note", note)
	}
	return spec, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <spec-file|->",
		Short: "Validate a specification and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			compiler, err := factory.NewCompiler(cfg.Build)
			if err != nil {
				return err
			}
			spec, err := readSpec(cmd, args[0])
			if err != nil {
				return err
			}

			result := compiler.Validate(spec)
			if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if !result.Valid {
				return appforge.NewNotBuildableError(result.ErrorMessages(cfg.Build.MaxSurfacedErrors))
			}
			return nil
		},
	}
}

func newMatchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "match <spec-file|->",
		Short: "Print the pattern references selected for a specification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			compiler, err := factory.NewCompiler(cfg.Build)
			if err != nil {
				return err
			}
			spec, err := readSpec(cmd, args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), compiler.MatchPatterns(spec))
		},
	}
}

func newBuildCmd(opts *rootOptions) *cobra.Command {
	var (
		output     string
		jsonResult bool
	)

	cmd := &cobra.Command{
		Use:   "build <spec-file|->",
		Short: "Compile a specification into a single html document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			compiler, err := factory.NewCompiler(cfg.Build)
			if err != nil {
				return err
			}
			spec, err := readSpec(cmd, args[0])
			if err != nil {
				return err
			}

			result := compiler.Build(spec, compiler.MatchPatterns(spec))
			for _, w := range result.Warnings {
				zap.S().Warnw("build warning", "warning", w)
			}
			if jsonResult {
				if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
			}
			if !result.Success {
				return appforge.NewNotBuildableError(result.Errors)
			}
			if jsonResult {
				return nil
			}

			if output == "" || output == "-" {
				_, err := io.WriteString(cmd.OutOrStdout(), result.HTML)
				return err
			}
			if err := os.WriteFile(output, []byte(result.HTML), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s (%d patterns)\n", output, len(result.Manifest.PatternsUsed))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write the html to (stdout when empty)")
	cmd.Flags().BoolVar(&jsonResult, "json", false, "print the full build result as JSON instead of html")
	return cmd
}
