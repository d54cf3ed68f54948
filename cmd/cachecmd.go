package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/viper"

	"bookrate/internal/cache"
)

// CacheCmd groups cache maintenance subcommands
type CacheCmd struct {
	Clear CacheClearCmd `cmd:"" help:"Delete cached search and resolution results"`
}

// CacheClearCmd represents the cache clear command
type CacheClearCmd struct {
	Expired bool `help:"Only delete entries older than the configured TTL"`
}

func (c *CacheClearCmd) Run() error {
	db, err := cache.Global()
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}

	ttl := cache.DefaultTTL
	if d, perr := time.ParseDuration(viper.GetString("cache.ttl")); perr == nil && d > 0 {
		ttl = d
	}

	for _, table := range []string{cache.SearchTable, cache.ResolutionTable} {
		if c.Expired {
			err = db.ClearExpired(table, ttl)
		} else {
			err = db.ClearAll(table)
		}
		if err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
		slog.Info("Cleared cache table", "table", table, "expiredOnly", c.Expired)
	}
	return nil
}
