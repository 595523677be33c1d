// Package cmd provides the CLI commands for vulnscout.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vulnscout/vulnscout/internal/config"
	"github.com/vulnscout/vulnscout/internal/logging"
	"github.com/vulnscout/vulnscout/internal/profiling"
	"github.com/vulnscout/vulnscout/pkg/version"
)

var (
	cfgPath     string
	debugMode   bool
	noColor     bool
	cpuProfile  string
	heapProfile string

	loggingCleanup func()
	profile        *profiling.Session
)

// NewRootCmd creates the root command for the vulnscout CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vulnscout",
		Short: "Automated vulnerability discovery for source repositories",
		Long: `vulnscout analyzes a repository for known vulnerability patterns:
it chunks the source tree, builds (or reuses) a persisted vector index,
matches code against an external vulnerability corpus, and validates
candidates before reporting findings.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("vulnscout version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to config file")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable styled output")
	cmd.PersistentFlags().StringVar(&cpuProfile, "cpu-profile", "", "Write a CPU profile to this file")
	cmd.PersistentFlags().StringVar(&heapProfile, "heap-profile", "", "Write a heap profile to this file")
	_ = cmd.PersistentFlags().MarkHidden("cpu-profile")
	_ = cmd.PersistentFlags().MarkHidden("heap-profile")

	cmd.PersistentPreRunE = func(*cobra.Command, []string) error {
		if cpuProfile == "" && heapProfile == "" {
			return nil
		}
		var err error
		profile, err = profiling.Start(cpuProfile, heapProfile)
		return err
	}
	cmd.PersistentPostRun = func(*cobra.Command, []string) {
		if err := profile.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "profiling: %v\n", err)
		}
		if loggingCleanup != nil {
			loggingCleanup()
		}
	}

	cmd.AddCommand(newScanCmd())
	cmd.AddCommand(newRunsCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newCacheCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the CLI.
func Execute() error {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// loadConfig loads the configuration honoring the --config flag.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogging initializes structured logging per config and --debug.
func setupLogging(cfg *config.Config) (*slog.Logger, error) {
	level := cfg.Logging.Level
	if debugMode {
		level = "debug"
	}
	logger, cleanup, err := logging.Setup(logging.Config{
		Level:         level,
		FilePath:      cfg.Logging.File,
		WriteToStderr: debugMode,
	})
	if err != nil {
		return nil, err
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	return logger, nil
}
