package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	cachepkg "github.com/lingoroute/lingoroute/pkg/cache/sqlite"
	"github.com/lingoroute/lingoroute/pkg/models"
	"github.com/lingoroute/lingoroute/pkg/sqlitedb"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the translation cache",
	}

	var remote remoteFlags
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			var stats models.CacheStats
			if remote.enabled() {
				if err := remote.do(http.MethodGet, "/v1/cache/stats", nil, &stats); err != nil {
					return err
				}
			} else {
				c, cleanup, err := openCache(cmd)
				if err != nil {
					return err
				}
				defer cleanup()
				if stats, err = c.Stats(cmd.Context()); err != nil {
					return err
				}
			}
			fmt.Printf("Entries: %d\nHits:    %d\nMisses:  %d\n", stats.Entries, stats.Hits, stats.Misses)
			return nil
		},
	}
	remote.register(statsCmd)

	var expiredOnly bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, cleanup, err := openCache(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			n, err := c.Clear(cmd.Context(), expiredOnly)
			if err != nil {
				return err
			}
			if expiredOnly {
				fmt.Printf("%d expired cache entries cleared.\n", n)
			} else {
				fmt.Printf("%d cache entries cleared.\n", n)
			}
			return nil
		},
	}
	clearCmd.Flags().BoolVar(&expiredOnly, "expired", false, "only clear expired entries")

	cmd.AddCommand(statsCmd, clearCmd)
	return cmd
}

func openCache(cmd *cobra.Command) (*cachepkg.Cache, func(), error) {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	db, err := sqlitedb.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	c, err := cachepkg.New(db, cfg.Cache.TTL)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return c, func() { _ = db.Close() }, nil
}
