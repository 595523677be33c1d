package cmd

import (
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/vulnscout/vulnscout/internal/preflight"
	"github.com/vulnscout/vulnscout/internal/run"
	"github.com/vulnscout/vulnscout/internal/ui"
)

// newScanCmd creates the scan command.
func newScanCmd() *cobra.Command {
	var branch string
	var tier string
	var jsonOnly bool

	cmd := &cobra.Command{
		Use:   "scan <repository-url-or-path>",
		Short: "Analyze a repository for vulnerabilities",
		Long: `Scan clones (or uses a local path), indexes the source tree, matches it
against the vulnerability corpus, and writes a JSON report. An unchanged
repository reuses its persisted index and skips embedding entirely.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if tier != "" {
				cfg.Run.Tier = tier
				if err := cfg.Validate(); err != nil {
					return err
				}
			}

			logger, err := setupLogging(cfg)
			if err != nil {
				return err
			}

			svc, err := run.NewServices(cfg, logger)
			if err != nil {
				return err
			}
			defer svc.Close()

			if preflight.NeedsCheck(cfg.DataDir) {
				checker := preflight.New(cfg.DataDir,
					preflight.WithEmbedder(svc.Embedder),
					preflight.WithVulnDB(cfg.Providers.VulnDB.Endpoint),
					preflight.WithOutput(cmd.ErrOrStderr()),
				)
				results := checker.Run(cmd.Context())
				if preflight.HasCriticalFailures(results) {
					checker.Print(results)
					return fmt.Errorf("environment checks failed, see output above")
				}
				if err := preflight.MarkPassed(cfg.DataDir); err != nil {
					logger.Warn("could not record preflight marker", "error", err)
				}
			}

			renderer := ui.NewRenderer(ui.Config{Output: cmd.ErrOrStderr(), NoColor: noColor || jsonOnly})
			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				renderer.Watch(svc.Notifier.Events())
			}()

			rep, err := run.NewOrchestrator(svc).Execute(cmd.Context(), args[0], branch)
			svc.Notifier.Close()
			wg.Wait()
			if err != nil {
				renderer.Errorf("scan failed: %v", err)
				return err
			}

			if jsonOnly {
				fmt.Fprintln(cmd.OutOrStdout(), reportPath(cfg, rep.RunID))
				return nil
			}

			styles := ui.NoColorStyles()
			if !noColor {
				styles = ui.DefaultStyles()
			}
			ui.RenderReport(cmd.OutOrStdout(), styles, rep)
			renderer.Successf("report written to %s", reportPath(cfg, rep.RunID))
			return nil
		},
	}

	cmd.Flags().StringVar(&branch, "branch", "", "Branch to clone (default: remote default)")
	cmd.Flags().StringVar(&tier, "tier", "", "Run tier: quick, standard, or deep")
	cmd.Flags().BoolVar(&jsonOnly, "json", false, "Print only the report path")

	return cmd
}
