package feed

import (
	"context"
	"time"

	"github.com/mdmops/console/internal/swr"
)

// Fetcher fetches one feed.
type Fetcher interface {
	Fetch(ctx context.Context, sheetID, sheetName string) (Table, error)
}

// CachedReader serves feeds through a stale-while-revalidate cache keyed by
// sheet ID and tab name.
type CachedReader struct {
	fetcher Fetcher
	cache   *swr.Cache[Table]
}

// NewCachedReader constructs a CachedReader.
func NewCachedReader(fetcher Fetcher, cache *swr.Cache[Table]) *CachedReader {
	return &CachedReader{fetcher: fetcher, cache: cache}
}

// Read returns the cached table or loads it.
func (r *CachedReader) Read(ctx context.Context, sheetID, sheetName string) (Table, time.Time, error) {
	return r.cache.Get(ctx, cacheKey(sheetID, sheetName), r.loader(sheetID, sheetName))
}

// Refresh forces a load and stores the result.
func (r *CachedReader) Refresh(ctx context.Context, sheetID, sheetName string) (Table, time.Time, error) {
	return r.cache.Load(ctx, cacheKey(sheetID, sheetName), r.loader(sheetID, sheetName))
}

func (r *CachedReader) loader(sheetID, sheetName string) swr.Loader[Table] {
	return func(ctx context.Context) (Table, error) {
		return r.fetcher.Fetch(ctx, sheetID, sheetName)
	}
}

func cacheKey(sheetID, sheetName string) string {
	return sheetID + "|" + sheetName
}
