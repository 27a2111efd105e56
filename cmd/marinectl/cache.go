package main

import (
	"fmt"

	"github.com/couchcryptid/marine-ops/internal/cache"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the forecast cache",
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete expired forecast cache entries",
	Long: `Delete forecast cache entries older than CACHE_TTL from
CACHE_DIR. Unreadable entries are treated as expired.

Examples:
  cache purge
  cache purge --all`,
	Args: cobra.NoArgs,
	RunE: runCachePurge,
}

func init() {
	cachePurgeCmd.Flags().Bool("all", false, "delete every entry, not only expired ones")
	cacheCmd.AddCommand(cachePurgeCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCachePurge(cmd *cobra.Command, _ []string) error {
	all, _ := cmd.Flags().GetBool("all")
	disk, err := cache.NewDisk(cfg.CacheDir, cfg.CacheTTL, clockwork.NewRealClock(), logger)
	if err != nil {
		return err
	}
	n, err := disk.Purge(all)
	if err != nil {
		return err
	}
	logger.Info("cache purged", "dir", cfg.CacheDir, "removed", n, "all", all)
	fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries from %s\n", n, cfg.CacheDir)
	return nil
}
