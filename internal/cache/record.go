package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/PascalRepond/rero-mef/internal/model"
)

// Cache key prefixes and TTLs.
const (
	recordKeyPrefix   = "rec:"
	negCacheKeySuffix = ":neg"

	// DefaultRecordTTL is the TTL for cached record data. Records
	// change only on harvests, so a long TTL is safe.
	DefaultRecordTTL = 24 * time.Hour

	// NegativeCacheTTL is the TTL for negative cache entries.
	NegativeCacheTTL = 5 * time.Minute
)

// Common cache errors.
var (
	ErrCacheMiss = errors.New("cache miss")
)

// RecordKey builds the cache key of a record.
func RecordKey(e model.Entity, pid string) string {
	return recordKeyPrefix + string(e) + ":" + pid
}

// GetRecord retrieves a record from cache.
// Returns ErrCacheMiss if not found.
func (c *Cache) GetRecord(ctx context.Context, e model.Entity, pid string) (model.Record, error) {
	raw, err := c.client.Get(ctx, RecordKey(e, pid)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var rec model.Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("unmarshal cached record: %w", err)
	}
	return rec, nil
}

// SetRecord stores a record in cache.
func (c *Cache) SetRecord(ctx context.Context, e model.Entity, pid string, rec model.Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record for cache: %w", err)
	}
	key := RecordKey(e, pid)

	if err := c.client.SetEx(ctx, key, string(raw), DefaultRecordTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache record: %w", err)
	}

	// Remove negative cache if exists
	c.client.Del(ctx, key+negCacheKeySuffix)

	return nil
}

// DeleteRecord removes a record from cache.
func (c *Cache) DeleteRecord(ctx context.Context, e model.Entity, pid string) error {
	key := RecordKey(e, pid)

	pipe := c.client.Pipeline()
	pipe.Del(ctx, key)
	pipe.Del(ctx, key+negCacheKeySuffix)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete record from cache: %w", err)
	}

	return nil
}

// IsNegativelyCached checks if a pid is in negative cache.
func (c *Cache) IsNegativelyCached(ctx context.Context, e model.Entity, pid string) (bool, error) {
	key := RecordKey(e, pid) + negCacheKeySuffix

	exists, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check negative cache: %w", err)
	}

	return exists > 0, nil
}

// SetNegativeCache marks a pid as not found.
func (c *Cache) SetNegativeCache(ctx context.Context, e model.Entity, pid string) error {
	key := RecordKey(e, pid) + negCacheKeySuffix

	if err := c.client.SetEx(ctx, key, "", NegativeCacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to set negative cache: %w", err)
	}

	return nil
}

// Flush deletes all cached records and negative entries. The scan
// stays on the record prefix so the index stream is untouched.
func (c *Cache) Flush(ctx context.Context) (int, error) {
	var cursor uint64
	deleted := 0

	for {
		keys, next, err := c.client.Scan(ctx, cursor, recordKeyPrefix+"*", 100).Result()
		if err != nil {
			return deleted, fmt.Errorf("failed to scan record keys: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return deleted, fmt.Errorf("failed to delete record keys: %w", err)
			}
			deleted += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	return deleted, nil
}

// SplitRecordKey extracts entity and pid from a record cache key.
func SplitRecordKey(key string) (model.Entity, string, bool) {
	rest, ok := strings.CutPrefix(key, recordKeyPrefix)
	if !ok {
		return "", "", false
	}
	entity, pid, ok := strings.Cut(rest, ":")
	if !ok || pid == "" {
		return "", "", false
	}
	e, err := model.ParseEntity(entity)
	if err != nil {
		return "", "", false
	}
	return e, pid, true
}
