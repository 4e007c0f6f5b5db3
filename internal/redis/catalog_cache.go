package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hackgods/grooming-scheduler/internal/appointment"
)

const catalogKeyPrefix = "catalog:"

// CatalogCache is a read-through cache for reference data that changes only
// when the catalog is re-seeded. Appointment reads and writes pass through
// to the wrapped repository untouched. Redis failures fall back to the
// repository.
type CatalogCache struct {
	appointment.Repository
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCatalogCache(repo appointment.Repository, rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *CatalogCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogCache{
		Repository: repo,
		rdb:        rdb,
		ttl:        ttl,
		logger:     logger,
	}
}

func servicesKey(names []string) string {
	return catalogKeyPrefix + "services:" + sortedJoin(names)
}

func durationsKey(serviceIDs []string, size appointment.PetSize) string {
	return catalogKeyPrefix + "durations:" + string(size) + ":" + sortedJoin(serviceIDs)
}

func shiftKey(weekday time.Weekday) string {
	return fmt.Sprintf("%sshift:%d", catalogKeyPrefix, int(weekday))
}

func sortedJoin(items []string) string {
	sorted := append([]string(nil), items...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

func (c *CatalogCache) FindServicesByNames(ctx context.Context, names []string) ([]appointment.Service, error) {
	return readThrough(ctx, c, servicesKey(names), func(ctx context.Context) ([]appointment.Service, error) {
		return c.Repository.FindServicesByNames(ctx, names)
	})
}

func (c *CatalogCache) GetDurationRules(ctx context.Context, serviceIDs []string, size appointment.PetSize) ([]appointment.DurationRule, error) {
	return readThrough(ctx, c, durationsKey(serviceIDs, size), func(ctx context.Context) ([]appointment.DurationRule, error) {
		return c.Repository.GetDurationRules(ctx, serviceIDs, size)
	})
}

func (c *CatalogCache) GetWorkShift(ctx context.Context, weekday time.Weekday) (*appointment.WorkShift, error) {
	return readThrough(ctx, c, shiftKey(weekday), func(ctx context.Context) (*appointment.WorkShift, error) {
		return c.Repository.GetWorkShift(ctx, weekday)
	})
}

// Invalidate drops every cached catalog entry.
func (c *CatalogCache) Invalidate(ctx context.Context) error {
	iter := c.rdb.Scan(ctx, 0, catalogKeyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan catalog keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete catalog keys: %w", err)
	}
	return nil
}

// readThrough only caches successful loads. Errors such as
// ErrShiftNotFound are returned uncached.
func readThrough[T any](ctx context.Context, c *CatalogCache, key string, load func(context.Context) (T, error)) (T, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
		c.logger.Warn("catalog cache entry unreadable", "key", key)
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("catalog cache get failed", "key", key, "err", err)
	}

	v, err := load(ctx)
	if err != nil {
		return v, err
	}

	data, err := json.Marshal(v)
	if err != nil {
		return v, nil
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("catalog cache set failed", "key", key, "err", err)
	}
	return v, nil
}
