// Package ringcache memoises generated point rings so repeated comparisons
// against the same center and radius skip the geodesic solve.
package ringcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/allegro/bigcache/v3"

	"github.com/signalsfoundry/globe-scale/core"
	"github.com/signalsfoundry/globe-scale/internal/logging"
	"github.com/signalsfoundry/globe-scale/model"
)

// Recorder receives cache and ring generation events.
type Recorder interface {
	ObserveCacheLookup(hit bool)
	ObserveRing(points int)
}

// Cache is a bigcache-backed ring store. A nil *Cache is valid and always
// computes.
type Cache struct {
	cache   *bigcache.BigCache
	metrics Recorder
	log     logging.Logger
}

// Option customises a Cache.
type Option func(*Cache)

// WithMetricsRecorder attaches a recorder for hit/miss and ring counts.
func WithMetricsRecorder(r Recorder) Option {
	return func(c *Cache) {
		c.metrics = r
	}
}

// WithLogger attaches a logger for cache faults.
func WithLogger(l logging.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.log = l
		}
	}
}

// New builds a Cache whose entries expire after lifeWindow and whose
// memory is capped at maxMB (0 means unbounded).
func New(ctx context.Context, lifeWindow time.Duration, maxMB int, opts ...Option) (*Cache, error) {
	if lifeWindow <= 0 {
		lifeWindow = 10 * time.Minute
	}
	cfg := bigcache.DefaultConfig(lifeWindow)
	cfg.HardMaxCacheSize = maxMB
	cfg.CleanWindow = time.Minute
	cfg.Verbose = false

	bc, err := bigcache.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init ring cache: %w", err)
	}
	c := &Cache{cache: bc, log: logging.Noop()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Key identifies a ring by center (1e-7 degree precision), radius
// (millimetre precision) and effective segment count.
func Key(center model.GeoPoint, radiusMeters float64, segments int) string {
	return fmt.Sprintf("%s:%s:%s:%d",
		quantize(center.LatDeg, 1e7),
		quantize(center.LonDeg, 1e7),
		quantize(radiusMeters, 1e3),
		core.ClampSegments(segments),
	)
}

// quantize rounds x to 1/scale steps and formats the step count without
// integer conversion, so magnitudes beyond int64 keep distinct keys.
func quantize(x, scale float64) string {
	q := math.Round(x * scale)
	if q == 0 {
		q = 0 // fold -0
	}
	return strconv.FormatFloat(q, 'g', -1, 64)
}

// Points returns the ring for the circle, from the cache when present.
// Rings that would be empty are never cached.
func (c *Cache) Points(ctx context.Context, center model.GeoPoint, radiusMeters float64, segments int) []model.GeoPoint {
	if c == nil || c.cache == nil || !cacheable(center, radiusMeters) {
		return c.compute(center, radiusMeters, segments)
	}

	key := Key(center, radiusMeters, segments)
	if raw, err := c.cache.Get(key); err == nil {
		var pts []model.GeoPoint
		if err := json.Unmarshal(raw, &pts); err == nil && len(pts) > 0 {
			c.observeLookup(true)
			return pts
		}
		c.log.Warn(ctx, "discarding corrupt ring cache entry", logging.String("key", key))
		_ = c.cache.Delete(key)
	} else if !errors.Is(err, bigcache.ErrEntryNotFound) {
		c.log.Warn(ctx, "ring cache lookup failed", logging.String("key", key), logging.Err(err))
	}
	c.observeLookup(false)

	pts := c.compute(center, radiusMeters, segments)
	if raw, err := json.Marshal(pts); err == nil {
		if err := c.cache.Set(key, raw); err != nil {
			c.log.Warn(ctx, "ring cache store failed", logging.String("key", key), logging.Err(err))
		}
	}
	return pts
}

// Len reports the number of cached rings.
func (c *Cache) Len() int {
	if c == nil || c.cache == nil {
		return 0
	}
	return c.cache.Len()
}

// Reset drops every cached ring.
func (c *Cache) Reset() error {
	if c == nil || c.cache == nil {
		return nil
	}
	return c.cache.Reset()
}

// Close releases the cache's background cleaner.
func (c *Cache) Close() error {
	if c == nil || c.cache == nil {
		return nil
	}
	return c.cache.Close()
}

func (c *Cache) compute(center model.GeoPoint, radiusMeters float64, segments int) []model.GeoPoint {
	pts := core.CirclePoints(center, radiusMeters, segments)
	if c != nil && c.metrics != nil && len(pts) > 0 {
		c.metrics.ObserveRing(len(pts))
	}
	return pts
}

func (c *Cache) observeLookup(hit bool) {
	if c.metrics != nil {
		c.metrics.ObserveCacheLookup(hit)
	}
}

func cacheable(center model.GeoPoint, radiusMeters float64) bool {
	if math.IsNaN(radiusMeters) || math.IsInf(radiusMeters, 0) || radiusMeters <= 0 {
		return false
	}
	return !math.IsNaN(center.LatDeg) && !math.IsInf(center.LatDeg, 0) &&
		!math.IsNaN(center.LonDeg) && !math.IsInf(center.LonDeg, 0)
}
