package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vulnscout/vulnscout/internal/report"
	"github.com/vulnscout/vulnscout/internal/run"
	"github.com/vulnscout/vulnscout/internal/ui"
)

// newStatusCmd creates the status command.
func newStatusCmd() *cobra.Command {
	var showReport bool

	cmd := &cobra.Command{
		Use:   "status <run-id>",
		Short: "Show the state of an analysis run",
		Long: `Status accepts a full run id or any unique prefix of one and prints the
run's stage, progress, and counts. With --report, the persisted report is
rendered when the run completed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			store, err := run.OpenRunStore(cfg.RunsDBPath())
			if err != nil {
				return err
			}
			defer store.Close()

			r, err := resolveRun(store, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run:        %s\n", r.ID)
			fmt.Fprintf(out, "repository: %s\n", r.RepoURL)
			fmt.Fprintf(out, "status:     %s\n", r.Status)
			fmt.Fprintf(out, "stage:      %s (%d%%)\n", r.Stage, r.Progress)
			fmt.Fprintf(out, "files:      %d\n", r.FileCount)
			fmt.Fprintf(out, "chunks:     %d\n", r.ChunkCount)
			fmt.Fprintf(out, "findings:   %d\n", r.FindingCount)
			fmt.Fprintf(out, "duration:   %s\n", r.Duration().Round(time.Millisecond))
			if r.Error != "" {
				fmt.Fprintf(out, "error:      %s\n", r.Error)
			}

			if showReport && r.Status == run.StatusCompleted {
				rep, err := report.Read(reportPath(cfg, r.ID))
				if err != nil {
					return err
				}
				fmt.Fprintln(out)
				styles := ui.NoColorStyles()
				if !noColor {
					styles = ui.DefaultStyles()
				}
				ui.RenderReport(out, styles, rep)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showReport, "report", false, "Render the run's report")
	return cmd
}

// resolveRun finds a run by id or unique prefix.
func resolveRun(store *run.RunStore, id string) (*run.AnalysisRun, error) {
	if r, err := store.Get(id); err == nil {
		return r, nil
	}

	runs, err := store.List(200)
	if err != nil {
		return nil, err
	}
	var found *run.AnalysisRun
	for _, r := range runs {
		if strings.HasPrefix(r.ID, id) {
			if found != nil {
				return nil, fmt.Errorf("run id prefix %q is ambiguous", id)
			}
			found = r
		}
	}
	if found == nil {
		return nil, fmt.Errorf("no run matches %q", id)
	}
	return found, nil
}
