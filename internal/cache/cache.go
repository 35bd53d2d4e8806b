// Package cache keeps short-lived per-user state in Redis.
// Every type here is nil-safe so callers need no branches when Redis is disabled.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/terra-clan/bumpstory/internal/models"
)

const (
	progressKeyPrefix        = "bumpstory:progress:"
	progressVersionKeyPrefix = "bumpstory:progress-version:"
)

// setIfVersion writes the snapshot only while the version key still holds the
// value read before the database query
var setIfVersion = redis.NewScript(`
if (redis.call("GET", KEYS[1]) or "0") == ARGV[1] then
	redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
	return 1
end
return 0
`)

// ProgressCache caches progress snapshots so catalog listings skip the database
type ProgressCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewProgressCache creates a progress cache; a nil client disables it
func NewProgressCache(client redis.Cmdable, ttl time.Duration) *ProgressCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &ProgressCache{client: client, ttl: ttl}
}

func progressKey(userID uuid.UUID) string {
	return progressKeyPrefix + userID.String()
}

func progressVersionKey(userID uuid.UUID) string {
	return progressVersionKeyPrefix + userID.String()
}

func (c *ProgressCache) enabled() bool {
	return c != nil && c.client != nil
}

// Get returns a cached snapshot. Misses and Redis errors both report false.
func (c *ProgressCache) Get(ctx context.Context, userID uuid.UUID) (*models.ProgressSnapshot, bool) {
	if !c.enabled() {
		return nil, false
	}

	data, err := c.client.Get(ctx, progressKey(userID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("progress cache read failed", "user_id", userID, "error", err)
		}
		return nil, false
	}

	var snap models.ProgressSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		slog.Warn("progress cache entry corrupt", "user_id", userID, "error", err)
		return nil, false
	}
	return &snap, true
}

// Version returns the user's progress version. Call it before reading the
// database and pass the result to Set. ok is false when Redis cannot answer.
func (c *ProgressCache) Version(ctx context.Context, userID uuid.UUID) (version int64, ok bool) {
	if !c.enabled() {
		return 0, false
	}

	version, err := c.client.Get(ctx, progressVersionKey(userID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, true
		}
		slog.Warn("progress version read failed", "user_id", userID, "error", err)
		return 0, false
	}
	return version, true
}

// Set stores a snapshot for the configured TTL unless an invalidation bumped
// the version since it was read
func (c *ProgressCache) Set(ctx context.Context, userID uuid.UUID, version int64, snap *models.ProgressSnapshot) {
	if !c.enabled() || snap == nil {
		return
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return
	}

	keys := []string{progressVersionKey(userID), progressKey(userID)}
	stored, err := setIfVersion.Run(ctx, c.client, keys,
		strconv.FormatInt(version, 10), data, c.ttl.Milliseconds()).Int64()
	if err != nil {
		slog.Warn("progress cache write failed", "user_id", userID, "error", err)
		return
	}
	if stored == 0 {
		slog.Debug("progress changed during read, snapshot not cached", "user_id", userID)
	}
}

// Invalidate bumps the version and drops the cached snapshot after a progress change
func (c *ProgressCache) Invalidate(ctx context.Context, userID uuid.UUID) {
	if !c.enabled() {
		return
	}

	versionKey := progressVersionKey(userID)
	if err := c.client.Incr(ctx, versionKey).Err(); err != nil {
		slog.Warn("progress version bump failed", "user_id", userID, "error", err)
	} else if err := c.client.Expire(ctx, versionKey, c.ttl).Err(); err != nil {
		slog.Warn("progress version expiry failed", "user_id", userID, "error", err)
	}
	if err := c.client.Del(ctx, progressKey(userID)).Err(); err != nil {
		slog.Warn("progress cache invalidate failed", "user_id", userID, "error", err)
	}
}

const revokedKeyPrefix = "bumpstory:revoked:"

// Revocations is a denylist of access token IDs
type Revocations struct {
	client redis.Cmdable
}

func NewRevocations(client redis.Cmdable) *Revocations {
	return &Revocations{client: client}
}

// Revoke denylists tokenID until its token would have expired anyway
func (r *Revocations) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if r == nil || r.client == nil {
		return nil
	}
	if err := r.client.Set(ctx, revokedKeyPrefix+tokenID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (r *Revocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if r == nil || r.client == nil {
		return false, nil
	}
	n, err := r.client.Exists(ctx, revokedKeyPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}
	return n > 0, nil
}
