// Package redishist wraps a history store with a Redis read-through cache.
//
// The recent-history window is read on every generation attempt but only
// changes on publish, so a short TTL cache removes most database round trips.
// Cache failures degrade to the underlying store. Duplicate suppression
// tolerates a stale window.
package redishist

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/ai-puzzle-forge/internal/domain"
)

// Cache is a read-through layer over a HistoryStore.
type Cache struct {
	rdb  *redis.Client
	next domain.HistoryStore
	ttl  time.Duration
}

// New constructs a Cache over next with the given TTL.
func New(rdb *redis.Client, next domain.HistoryStore, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Cache{rdb: rdb, next: next, ttl: ttl}
}

func cacheKey(windowDays, maxItems int) string {
	return fmt.Sprintf("puzzles:recent:%d:%d", windowDays, maxItems)
}

// QueryRecent returns the cached window when fresh, otherwise reads through
// to the underlying store and repopulates the cache.
func (c *Cache) QueryRecent(ctx context.Context, windowDays, maxItems int) ([]domain.PuzzleSummary, error) {
	key := cacheKey(windowDays, maxItems)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var cached []domain.PuzzleSummary
		if err := json.Unmarshal(raw, &cached); err == nil {
			slog.Debug("history cache hit", slog.String("key", key), slog.Int("items", len(cached)))
			return cached, nil
		}
		// corrupt entry; fall through to the store and overwrite
		slog.Warn("history cache entry corrupt, refreshing", slog.String("key", key))
	} else if err != redis.Nil {
		slog.Warn("history cache read failed", slog.String("key", key), slog.Any("error", err))
	}

	items, err := c.next.QueryRecent(ctx, windowDays, maxItems)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(items); err == nil {
		if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			slog.Warn("history cache write failed", slog.String("key", key), slog.Any("error", err))
		}
	}
	return items, nil
}

// Save writes through to the store and invalidates cached windows so the new
// puzzle becomes visible on the next read.
func (c *Cache) Save(ctx context.Context, s domain.PuzzleSummary) error {
	if err := c.next.Save(ctx, s); err != nil {
		return err
	}
	iter := c.rdb.Scan(ctx, 0, "puzzles:recent:*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			slog.Warn("history cache invalidation failed", slog.String("key", iter.Val()), slog.Any("error", err))
		}
	}
	if err := iter.Err(); err != nil {
		slog.Warn("history cache scan failed", slog.Any("error", err))
	}
	return nil
}
