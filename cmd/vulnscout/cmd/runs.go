package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vulnscout/vulnscout/internal/run"
)

// newRunsCmd creates the runs command.
func newRunsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent analysis runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			store, err := run.OpenRunStore(cfg.RunsDBPath())
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.List(limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tSTAGE\tFINDINGS\tSTARTED\tREPOSITORY")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
					shortID(r.ID), r.Status, r.Stage, r.FindingCount,
					r.StartedAt.Local().Format(time.DateTime), r.RepoURL)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to list")
	return cmd
}

// shortID truncates a uuid for table display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
