package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SnapshotCache mirrors the latest snapshot to Redis so a restarted process
// can serve a last-known-good dashboard before its first fetch completes.
type SnapshotCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewSnapshotCache(client *redis.Client, userID string, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{
		client: client,
		key:    fmt.Sprintf("affilink:snapshot:%s", userID),
		ttl:    ttl,
	}
}

func (c *SnapshotCache) Store(ctx context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := c.client.Set(ctx, c.key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}
	return nil
}

// Load returns the mirrored snapshot, or ok=false when none is cached.
func (c *SnapshotCache) Load(ctx context.Context) (Snapshot, bool, error) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if err == redis.Nil {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("failed to load snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return snap, true, nil
}
