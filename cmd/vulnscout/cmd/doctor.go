package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vulnscout/vulnscout/internal/embed"
	"github.com/vulnscout/vulnscout/internal/preflight"
)

// newDoctorCmd creates the doctor command.
func newDoctorCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that the environment is ready for scanning",
		Long: `Doctor probes the data directory, file descriptor limits, and the
embedding and vulnerability database endpoints, then prints a readiness
report. Scans run these checks automatically on first use; doctor re-runs
them on demand and resets the recorded result.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			embedder := embed.NewHTTPEmbedder(embed.HTTPConfig{
				Endpoint: cfg.Providers.Embedding.Endpoint,
				Model:    cfg.Providers.Embedding.Model,
			})
			checker := preflight.New(cfg.DataDir,
				preflight.WithEmbedder(embedder),
				preflight.WithVulnDB(cfg.Providers.VulnDB.Endpoint),
				preflight.WithOutput(cmd.OutOrStdout()),
				preflight.WithVerbose(verbose),
			)

			results := checker.Run(cmd.Context())
			checker.Print(results)

			if preflight.HasCriticalFailures(results) {
				return fmt.Errorf("environment is not ready")
			}
			if err := preflight.ClearMarker(cfg.DataDir); err != nil {
				return err
			}
			return preflight.MarkPassed(cfg.DataDir)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show per-check details")

	return cmd
}
