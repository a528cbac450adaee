package main

import (
	"fmt"
	"os"

	"github.com/lychee-technology/appforge"
	"github.com/lychee-technology/appforge/factory"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type rootOptions struct {
	logLevel   string
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "forge-tools",
		Short:         "Offline tooling for the appforge compiler",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := factory.NewLogger(appforge.LoggingConfig{Level: opts.logLevel, Format: "console", Development: true})
			if err != nil {
				return fmt.Errorf("failed to set up logger: %w", err)
			}
			zap.ReplaceGlobals(logger)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("APPFORGE_CONFIG"), "path to a YAML or JSON config file")

	root.AddCommand(
		newValidateCmd(opts),
		newMatchCmd(opts),
		newBuildCmd(opts),
		newPatternsCmd(opts),
		newInitDBCmd(opts),
		newBenchCmd(opts),
	)
	return root
}

// loadConfig reads the config file named by --config, falling back to defaults.
func (o *rootOptions) loadConfig() (*appforge.Config, error) {
	return appforge.LoadConfig(o.configPath)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
