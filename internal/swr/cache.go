// Package swr implements a stale-while-revalidate cache shared by the feed
// consumers.
package swr

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Loader produces a fresh value for a key.
type Loader[T any] func(ctx context.Context) (T, error)

// Observer is notified after every load attempt.
type Observer func(name string, elapsed time.Duration, err error)

// Options configures a Cache.
type Options struct {
	// Name labels log lines and metrics.
	Name string
	// TTL is how long a value is served without revalidation.
	TTL time.Duration
	// RefreshInterval drives Run. Zero disables polling.
	RefreshInterval time.Duration
	// MaxTracked bounds the keys Run refreshes. When exceeded the least
	// recently read key is dropped. Defaults to 64.
	MaxTracked int
	// Store optionally persists values. Store failures are logged only.
	Store    Store
	Logger   *slog.Logger
	Observer Observer
}

type entry[T any] struct {
	value     T
	fetchedAt time.Time
	issued    uint64
	committed uint64
	has       bool
	usedAt    time.Time
}

// Cache serves cached values immediately and refreshes stale ones in the
// background. Concurrent loads of one key are collapsed, and a load only
// commits if no newer load has committed first.
type Cache[T any] struct {
	opts   Options
	logger *slog.Logger
	group  singleflight.Group
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*entry[T]
	loaders map[string]Loader[T]
}

// New constructs a Cache.
func New[T any](opts Options) *Cache[T] {
	if opts.TTL <= 0 {
		opts.TTL = time.Minute
	}
	if opts.MaxTracked <= 0 {
		opts.MaxTracked = 64
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache[T]{
		opts:    opts,
		logger:  logger.With(slog.String("cache", opts.Name)),
		now:     time.Now,
		entries: make(map[string]*entry[T]),
		loaders: make(map[string]Loader[T]),
	}
}

// Track registers the loader of key so Run and Revalidate can refresh it.
// Get tracks a key only once it has loaded successfully.
func (c *Cache[T]) Track(key string, load Loader[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaders[key] = load
	e, ok := c.entries[key]
	if !ok {
		e = &entry[T]{}
		c.entries[key] = e
	}
	e.usedAt = c.now()
	for len(c.loaders) > c.opts.MaxTracked {
		c.evictLocked(key)
	}
}

// evictLocked drops the least recently read tracked key other than keep.
func (c *Cache[T]) evictLocked(keep string) {
	var (
		oldest string
		at     time.Time
		found  bool
	)
	for key := range c.loaders {
		if key == keep {
			continue
		}
		e := c.entries[key]
		var used time.Time
		if e != nil {
			used = e.usedAt
		}
		if !found || used.Before(at) {
			oldest, at, found = key, used, true
		}
	}
	if !found {
		return
	}
	delete(c.loaders, oldest)
	delete(c.entries, oldest)
	c.group.Forget(oldest)
	c.logger.Debug("untracked key", slog.String("key", oldest))
}

// Keys lists tracked keys.
func (c *Cache[T]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.loaders))
	for key := range c.loaders {
		keys = append(keys, key)
	}
	return keys
}

// Get returns the value of key. A fresh value is returned as is; a stale one
// is returned while a background revalidation runs; a missing one is loaded
// synchronously.
func (c *Cache[T]) Get(ctx context.Context, key string, load Loader[T]) (T, time.Time, error) {
	if value, at, ok := c.peek(key); ok {
		c.touch(key)
		if c.fresh(at) {
			return value, at, nil
		}
		if value, at, ok := c.fromStore(ctx, key); ok && c.fresh(at) {
			return value, at, nil
		}
		go func() {
			_, _, _ = c.load(context.WithoutCancel(ctx), key, load)
		}()
		return value, at, nil
	}

	if value, at, ok := c.fromStore(ctx, key); ok {
		c.Track(key, load)
		if !c.fresh(at) {
			go func() {
				_, _, _ = c.load(context.WithoutCancel(ctx), key, load)
			}()
		}
		return value, at, nil
	}

	return c.load(ctx, key, load)
}

// Load runs load for key now and tracks the key once it succeeds.
func (c *Cache[T]) Load(ctx context.Context, key string, load Loader[T]) (T, time.Time, error) {
	return c.load(ctx, key, load)
}

// Peek returns the cached value of key without loading.
func (c *Cache[T]) Peek(key string) (T, time.Time, bool) {
	return c.peek(key)
}

// Revalidate loads a tracked key now. Loads already in flight for key are
// shared.
func (c *Cache[T]) Revalidate(ctx context.Context, key string) (T, time.Time, error) {
	var zero T
	c.mu.Lock()
	load, ok := c.loaders[key]
	c.mu.Unlock()
	if !ok {
		return zero, time.Time{}, fmt.Errorf("swr: %s: key %q is not tracked", c.opts.Name, key)
	}
	return c.load(ctx, key, load)
}

func (c *Cache[T]) load(ctx context.Context, key string, load Loader[T]) (T, time.Time, error) {
	var zero T
	res, err, _ := c.group.Do(key, func() (any, error) {
		gen := c.issue(key)
		start := c.now()
		value, err := load(ctx)
		if c.opts.Observer != nil {
			c.opts.Observer(c.opts.Name, time.Since(start), err)
		}
		if err != nil {
			return nil, err
		}
		at := c.now()
		if c.commit(key, gen, value, at) {
			c.persist(ctx, key, value, at)
		}
		c.Track(key, load)
		return result[T]{value: value, at: at}, nil
	})
	if err != nil {
		c.logger.Warn("revalidate failed", slog.String("key", key), slog.Any("error", err))
		c.dropUntracked(key)
		return zero, time.Time{}, err
	}
	r := res.(result[T])
	return r.value, r.at, nil
}

// Invalidate drops the cached value of key. A load already in flight will
// not commit.
func (c *Cache[T]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return
	}
	e.issued++
	e.committed = e.issued
	var zero T
	e.value = zero
	e.has = false
	c.group.Forget(key)
}

// Run revalidates every tracked key each RefreshInterval until ctx is done.
func (c *Cache[T]) Run(ctx context.Context) {
	if c.opts.RefreshInterval <= 0 {
		return
	}
	ticker := time.NewTicker(c.opts.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, key := range c.Keys() {
				if ctx.Err() != nil {
					return
				}
				_, _, _ = c.Revalidate(ctx, key)
			}
		}
	}
}

type result[T any] struct {
	value T
	at    time.Time
}

func (c *Cache[T]) fresh(at time.Time) bool {
	return c.now().Sub(at) < c.opts.TTL
}

func (c *Cache[T]) touch(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		e.usedAt = c.now()
	}
}

// dropUntracked forgets the bookkeeping of a key that never loaded.
func (c *Cache[T]) dropUntracked(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, tracked := c.loaders[key]; tracked {
		return
	}
	if e, ok := c.entries[key]; ok && !e.has {
		delete(c.entries, key)
	}
}

func (c *Cache[T]) peek(key string) (T, time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	e, ok := c.entries[key]
	if !ok || !e.has {
		return zero, time.Time{}, false
	}
	return e.value, e.fetchedAt, true
}

func (c *Cache[T]) issue(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		e = &entry[T]{}
		c.entries[key] = e
	}
	e.issued++
	return e.issued
}

// commit stores value unless a load issued later has already committed.
func (c *Cache[T]) commit(key string, gen uint64, value T, at time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || gen <= e.committed {
		return false
	}
	e.value = value
	e.fetchedAt = at
	e.committed = gen
	e.has = true
	return true
}

// adopt stores a persisted value if it is newer than what is held.
func (c *Cache[T]) adopt(key string, value T, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		e = &entry[T]{}
		c.entries[key] = e
	}
	if e.has && !at.After(e.fetchedAt) {
		return
	}
	e.value = value
	e.fetchedAt = at
	e.has = true
}

func (c *Cache[T]) fromStore(ctx context.Context, key string) (T, time.Time, bool) {
	var zero T
	if c.opts.Store == nil {
		return zero, time.Time{}, false
	}
	rec, ok, err := c.opts.Store.Load(ctx, c.storeKey(key))
	if err != nil {
		c.logger.Warn("load persisted value", slog.String("key", key), slog.Any("error", err))
		return zero, time.Time{}, false
	}
	if !ok {
		return zero, time.Time{}, false
	}
	var value T
	if err := json.Unmarshal(rec.Data, &value); err != nil {
		c.logger.Warn("decode persisted value", slog.String("key", key), slog.Any("error", err))
		return zero, time.Time{}, false
	}
	c.adopt(key, value, rec.At())
	return c.peek(key)
}

func (c *Cache[T]) persist(ctx context.Context, key string, value T, at time.Time) {
	if c.opts.Store == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("encode value", slog.String("key", key), slog.Any("error", err))
		return
	}
	rec := Record{Data: data, FetchedAt: at.UnixMilli()}
	if err := c.opts.Store.Save(ctx, c.storeKey(key), rec, 10*c.opts.TTL); err != nil {
		c.logger.Warn("persist value", slog.String("key", key), slog.Any("error", err))
	}
}

func (c *Cache[T]) storeKey(key string) string {
	if c.opts.Name == "" {
		return key
	}
	return c.opts.Name + ":" + key
}
