package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/scenecast/internal/cache"
	"github.com/dgnsrekt/scenecast/internal/config"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or empty the audio cache",
	Args:  cobra.NoArgs,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show how much synthesized audio is kept on disk",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		c, err := cache.New(cfg.Cache.Cache())
		if err != nil {
			return err
		}
		defer c.Close() //nolint:errcheck

		fmt.Println(paragraph(cacheSummary(cfg.Cache, c.Stats())))
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every cached clip",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		c, err := cache.New(cfg.Cache.Cache())
		if err != nil {
			return err
		}
		defer c.Close() //nolint:errcheck

		before := c.Stats()
		if err := c.Clear(); err != nil {
			return fmt.Errorf("unable to clear cache: %w", err)
		}
		size := humanize.Bytes(uint64(before.DiskBytes)) //nolint:gosec
		fmt.Println(paragraph(fmt.Sprintf("Removed %s (%s)", pluralize(before.DiskEntries, "clip"), size)))
		return nil
	},
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete clips older than the configured ttl",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		c, err := cache.New(cfg.Cache.Cache())
		if err != nil {
			return err
		}
		defer c.Close() //nolint:errcheck

		removed := c.Cleanup()
		fmt.Println(paragraph(fmt.Sprintf("Removed %s older than %s", pluralize(removed, "clip"), cfg.Cache.TTL)))
		return nil
	},
}

func cacheSummary(cc config.CacheConfig, s cache.Stats) string {
	if cc.Dir == "" || !cc.Disk {
		return subtle("The disk cache is disabled: set cache.dir and cache.disk to keep clips between runs.")
	}
	return fmt.Sprintf("%s\n%s on disk, %s",
		keyword(cc.Dir),
		pluralize(s.DiskEntries, "clip"),
		humanize.Bytes(uint64(s.DiskBytes)), //nolint:gosec
	)
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd, cachePruneCmd)
}
