package metricstore

import (
	"context"
	"time"

	"github.com/wonny/valuescope/internal/contracts"
	"github.com/wonny/valuescope/pkg/logger"
	"github.com/wonny/valuescope/pkg/redis"
)

// Cached puts a Redis cache in front of snapshot and code-list reads.
// Series reads pass through; they are large and rarely repeated.
type Cached struct {
	next   contracts.MetricStore
	cache  *redis.Cache
	ttl    time.Duration
	logger *logger.Logger
}

// NewCached wraps next with a snapshot cache of the given TTL
func NewCached(next contracts.MetricStore, cache *redis.Cache, ttl time.Duration, log *logger.Logger) *Cached {
	if ttl <= 0 {
		ttl = redis.TTLShort
	}
	return &Cached{next: next, cache: cache, ttl: ttl, logger: log}
}

// GetSeries implements contracts.MetricStore
func (c *Cached) GetSeries(ctx context.Context, code string, metric contracts.MetricKind, from, to time.Time) (contracts.MetricSeries, error) {
	return c.next.GetSeries(ctx, code, metric, from, to)
}

// GetSnapshot implements contracts.MetricStore
func (c *Cached) GetSnapshot(ctx context.Context, code string) (contracts.MetricSnapshot, error) {
	key := redis.SnapshotKey(code)

	var snap contracts.MetricSnapshot
	found, err := c.cache.Get(ctx, key, &snap)
	if err != nil {
		// cache trouble degrades to a direct read
		c.logger.WithError(err).WithField("code", code).Warn("Snapshot cache read failed")
	}
	if found {
		if snap.Values == nil {
			snap.Values = make(map[contracts.MetricKind]float64)
		}
		return snap, nil
	}

	snap, err = c.next.GetSnapshot(ctx, code)
	if err != nil {
		return contracts.MetricSnapshot{}, err
	}

	if err := c.cache.Set(ctx, key, snap, c.ttl); err != nil {
		c.logger.WithError(err).WithField("code", code).Warn("Snapshot cache write failed")
	}
	return snap, nil
}

// ListCodes implements contracts.MetricStore
func (c *Cached) ListCodes(ctx context.Context) ([]string, error) {
	var codes []string
	found, err := c.cache.Get(ctx, redis.CodesKey(), &codes)
	if err == nil && found {
		return codes, nil
	}

	codes, err = c.next.ListCodes(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, redis.CodesKey(), codes, c.ttl); err != nil {
		c.logger.WithError(err).Warn("Code list cache write failed")
	}
	return codes, nil
}
