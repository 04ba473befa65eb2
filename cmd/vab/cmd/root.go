// Package cmd provides the CLI commands for vab.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/vabrowser/vab/internal/config"
	"github.com/vabrowser/vab/internal/logging"
	"github.com/vabrowser/vab/pkg/version"
)

var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the vab CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vab",
		Short: "Vector search over a 3D asset catalog",
		Long: `vab indexes a 3D asset catalog into a local vector index and serves
semantic queries over it with facet filtering, sorting, and pagination.

Indexing is incremental: runs pick up catalog rows changed since the last
committed checkpoint, so repeated runs only pay for what changed.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true, // main prints errors through the structured formatter
	}

	cmd.SetVersionTemplate("vab version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.vab/logs/")
	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRunE = teardownLogging

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newCheckpointCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func setupLogging(_ *cobra.Command, _ []string) error {
	if !debugMode {
		// Keep the terminal quiet; warnings and errors still surface.
		logging.SetupStderr("warn")
		return nil
	}
	logger, cleanup, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		return fmt.Errorf("failed to setup debug logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Info("debug logging enabled", "log_file", logging.DefaultLogPath())
	return nil
}

func teardownLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig loads vab configuration for the current directory.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(".")
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	return cfg, nil
}
