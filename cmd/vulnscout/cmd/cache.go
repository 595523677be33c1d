package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vulnscout/vulnscout/internal/cache"
	"github.com/vulnscout/vulnscout/internal/config"
)

// newCacheCmd creates the cache command group.
func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and prune the cache layer",
	}
	cmd.AddCommand(newCacheInfoCmd())
	cmd.AddCommand(newCacheClearCmd())
	return cmd
}

func newCacheInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show cache directories and sizes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, sub := range []string{"embeddings", "repometa", "indexes"} {
				dir := filepath.Join(cfg.Cache.Dir, sub)
				size, count := dirStats(dir)
				fmt.Fprintf(out, "%-12s %8d entries  %10d bytes  %s\n", sub, count, size, dir)
			}
			return nil
		},
	}
}

func newCacheClearCmd() *cobra.Command {
	var olderThanDays int

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove cache entries older than a number of days",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			embeddings := cache.NewEmbeddingCache(filepath.Join(cfg.Cache.Dir, "embeddings"), cfg.Cache.EmbeddingMemoryCap)
			repoMeta := cache.NewRepoMetadataCache(filepath.Join(cfg.Cache.Dir, "repometa"))

			removed := 0
			if n, err := embeddings.ClearOlderThan(olderThanDays); err == nil {
				removed += n
			}
			if n, err := repoMeta.ClearOlderThan(olderThanDays); err == nil {
				removed += n
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries older than %d days\n", removed, olderThanDays)
			return nil
		},
	}

	cmd.Flags().IntVar(&olderThanDays, "older-than", 30, "Age threshold in days")
	return cmd
}

// dirStats walks a cache directory counting files and bytes.
func dirStats(dir string) (size int64, count int) {
	filepath.WalkDir(dir, func(_ string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			size += info.Size()
			count++
		}
		return nil
	})
	return size, count
}

// reportPath is where a run's JSON report lands.
func reportPath(cfg *config.Config, runID string) string {
	return filepath.Join(cfg.ReportsDir(), runID+".json")
}
