package rbac

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Snapshot is the cached permission state of one actor.
type Snapshot struct {
	Role      string        `json:"role"`
	Perms     PermissionMap `json:"perms"`
	ExpiresAt int64         `json:"expiresAt"`
}

// Fresh reports whether the snapshot is still usable at now.
func (s Snapshot) Fresh(now time.Time) bool {
	return s.ExpiresAt > now.UnixMilli()
}

// SnapshotCache persists snapshots. Implementations are best effort: Load
// reports a miss on any failure and Save swallows errors.
type SnapshotCache interface {
	Load(ctx context.Context, actor string) (Snapshot, bool)
	Save(ctx context.Context, actor string, snap Snapshot)
}

// RedisSnapshotCache stores snapshots as JSON under permcache:{actor}.
type RedisSnapshotCache struct {
	client *redis.Client
}

// NewRedisSnapshotCache constructs the cache.
func NewRedisSnapshotCache(client *redis.Client) *RedisSnapshotCache {
	return &RedisSnapshotCache{client: client}
}

// Load implements SnapshotCache.
func (c *RedisSnapshotCache) Load(ctx context.Context, actor string) (Snapshot, bool) {
	if c == nil || c.client == nil || actor == "" {
		return Snapshot{}, false
	}
	raw, err := c.client.Get(ctx, snapshotKey(actor)).Bytes()
	if err != nil {
		return Snapshot{}, false
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, false
	}
	return snap, true
}

// Save implements SnapshotCache.
func (c *RedisSnapshotCache) Save(ctx context.Context, actor string, snap Snapshot) {
	if c == nil || c.client == nil || actor == "" {
		return
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return
	}
	ttl := time.Until(time.UnixMilli(snap.ExpiresAt))
	if ttl <= 0 {
		return
	}
	_ = c.client.Set(ctx, snapshotKey(actor), raw, ttl).Err()
}

func snapshotKey(actor string) string {
	return "permcache:" + actor
}
