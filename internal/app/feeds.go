package app

import (
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/mdmops/console/internal/feed"
	"github.com/mdmops/console/internal/swr"
	"github.com/mdmops/console/jobs"
)

// FeedCacheName is shared by the server and the worker so both address the
// same persisted entries.
const FeedCacheName = "feeds"

// Feed names used in logs, metrics and warmup payloads.
const (
	FeedEmailTracker = "email-tracker"
	FeedRecons       = "recons"
)

// NewFeedReader builds the sheet client behind a stale-while-revalidate
// cache persisted to Redis. client may be nil for a memory-only cache.
func NewFeedReader(cfg *Config, client *redis.Client, observer swr.Observer, logger *slog.Logger) (*feed.CachedReader, *swr.Cache[feed.Table]) {
	opts := swr.Options{
		Name:            FeedCacheName,
		TTL:             cfg.FeedCacheTTL,
		RefreshInterval: cfg.FeedRefreshInterval,
		Logger:          logger,
		Observer:        observer,
	}
	if client != nil {
		opts.Store = swr.NewRedisStore(client)
	}
	cache := swr.New[feed.Table](opts)
	sheets := feed.NewClient(feed.ClientConfig{
		Host:          cfg.SheetsHost,
		Timeout:       cfg.AppRequestTimeout,
		RatePerSecond: cfg.FeedRatePerSecond,
	})
	return feed.NewCachedReader(sheets, cache), cache
}

// FeedTargets lists the configured feeds for warmup.
func FeedTargets(cfg *Config) []jobs.FeedRef {
	return []jobs.FeedRef{
		{Name: FeedEmailTracker, SheetID: cfg.EmailTrackerSheetID, SheetName: cfg.EmailTrackerSheetName},
		{Name: FeedRecons, SheetID: cfg.ReconsSheetID, SheetName: cfg.ReconsSheetName},
	}
}
