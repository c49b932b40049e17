package ranker

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"resonance/internal/adapters/redis"
	"resonance/internal/domain/trend"
	"resonance/pkg/errors"
	"resonance/pkg/logger"
)

// CacheConfig contains configuration for ranking result caching
type CacheConfig struct {
	Enabled bool
	// Bucket is the wall-clock window one cached ranking covers. Requests
	// inside the same (niche, bucket) pair share a result.
	Bucket time.Duration
	// TTL bounds entry lifetime independently of bucket rollover.
	TTL time.Duration
}

// DefaultCacheConfig returns default configuration
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled: true,
		Bucket:  5 * time.Minute,
		TTL:     5 * time.Minute,
	}
}

// CachedRanking is the stored form of one ranking result
type CachedRanking struct {
	Niche    string              `json:"niche"`
	Bucket   int64               `json:"bucket"`
	Trends   []trend.RankedTrend `json:"trends"`
	CachedAt time.Time           `json:"cached_at"`
}

// RankCache caches ranking results per (niche, time bucket) in Redis.
// Entries expire by TTL and bucket rollover; there is no manual eviction
// surface.
type RankCache struct {
	config      CacheConfig
	redisClient *redis.Client
	log         *logger.Logger

	// Metrics
	hits   int64
	misses int64
	sets   int64
}

// NewRankCache creates a new ranking cache
func NewRankCache(config CacheConfig, redisClient *redis.Client) *RankCache {
	return &RankCache{
		config:      config,
		redisClient: redisClient,
		log:         logger.Get().With("component", "rank_cache"),
	}
}

// Get retrieves the cached ranking for the niche's current bucket. A nil
// result with nil error is a miss.
func (rc *RankCache) Get(ctx context.Context, niche string, asOf time.Time) ([]trend.RankedTrend, error) {
	if !rc.config.Enabled {
		return nil, nil
	}

	bucket := rc.bucketFor(asOf)
	key := rc.buildCacheKey(niche, bucket)

	var cached CachedRanking
	err := rc.redisClient.Get(ctx, key, &cached)
	if err != nil {
		if err.Error() == "redis: nil" {
			rc.misses++
			return nil, nil // Cache miss
		}
		return nil, errors.Wrap(err, "failed to get from rank cache")
	}

	if cached.Bucket != bucket {
		rc.misses++
		return nil, nil
	}

	rc.hits++
	rc.log.Debugw("Rank cache hit",
		"niche", niche,
		"bucket", bucket,
		"age", time.Since(cached.CachedAt))

	return cached.Trends, nil
}

// Set stores a ranking result under the niche's current bucket.
func (rc *RankCache) Set(ctx context.Context, niche string, asOf time.Time, trends []trend.RankedTrend) error {
	if !rc.config.Enabled {
		return nil
	}

	bucket := rc.bucketFor(asOf)
	cached := CachedRanking{
		Niche:    niche,
		Bucket:   bucket,
		Trends:   trends,
		CachedAt: time.Now(),
	}

	key := rc.buildCacheKey(niche, bucket)
	if err := rc.redisClient.Set(ctx, key, cached, rc.config.TTL); err != nil {
		return errors.Wrap(err, "failed to set rank cache")
	}

	rc.sets++
	rc.log.Debugw("Rank cache set",
		"niche", niche,
		"bucket", bucket,
		"trends", len(trends),
		"ttl", rc.config.TTL)

	return nil
}

// bucketFor floors a timestamp onto the bucket grid.
func (rc *RankCache) bucketFor(asOf time.Time) int64 {
	bucket := int64(rc.config.Bucket.Seconds())
	if bucket <= 0 {
		bucket = 1
	}
	return asOf.Unix() / bucket
}

// buildCacheKey generates a deterministic key for (niche, bucket)
func (rc *RankCache) buildCacheKey(niche string, bucket int64) string {
	keyData := fmt.Sprintf("%s:%d", niche, bucket)
	hash := sha256.Sum256([]byte(keyData))
	return fmt.Sprintf("rank:%s:%x", niche, hash[:8])
}

// GetMetrics returns cache metrics for monitoring
func (rc *RankCache) GetMetrics() map[string]interface{} {
	total := rc.hits + rc.misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(rc.hits) / float64(total) * 100
	}

	return map[string]interface{}{
		"enabled":  rc.config.Enabled,
		"hits":     rc.hits,
		"misses":   rc.misses,
		"sets":     rc.sets,
		"hit_rate": hitRate,
		"bucket":   rc.config.Bucket.String(),
		"ttl":      rc.config.TTL.String(),
	}
}
