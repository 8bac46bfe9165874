package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/logveil/logveil/internal/logger"
	"github.com/logveil/logveil/internal/redact"
)

// ResultCache handles Redis-based caching of sanitization results. Entries
// are keyed by profile version and input hash, so a profile reload
// invalidates every stale result without an explicit flush.
type ResultCache struct {
	client *redis.Client
	config *Config
	logger *logger.Logger
	stats  cacheStats
}

// cacheStats tracks cache performance metrics
type cacheStats struct {
	hits   atomic.Int64
	misses atomic.Int64
}

// NewResultCache creates a new Redis-based result cache
func NewResultCache(config *Config, log *logger.Logger) (*ResultCache, error) {
	// Parse Redis URL
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Configure connection pool
	opts.PoolSize = config.MaxConnections
	opts.MinIdleConns = config.MinIdleConns

	client := redis.NewClient(opts)

	cache := &ResultCache{
		client: client,
		config: config,
		logger: log,
	}

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := cache.ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("Result cache initialized successfully",
		zap.String("redis_url", maskRedisURL(config.RedisURL)),
		zap.Int("max_connections", config.MaxConnections),
		zap.Duration("default_ttl", config.DefaultTTL))

	return cache, nil
}

// ping tests the Redis connection
func (rc *ResultCache) ping(ctx context.Context) error {
	_, err := rc.client.Ping(ctx).Result()
	return err
}

// Get looks up a cached sanitization result for the given input under the
// given profile version. A miss or any Redis failure returns (nil, false);
// the caller falls through to the engine either way. Cached entries carry no
// trace originals, so callers that need full traces must skip the cache.
func (rc *ResultCache) Get(ctx context.Context, profileVersion uint64, text string) (*CachedResult, bool) {
	cacheKey := rc.resultKey(profileVersion, text)

	cachedData, err := rc.client.Get(ctx, cacheKey).Result()
	if err == redis.Nil {
		rc.stats.misses.Add(1)
		rc.logger.Debug("Cache miss", zap.String("key", cacheKey))
		return nil, false
	} else if err != nil {
		rc.logger.Error("Cache lookup failed", zap.Error(err))
		return nil, false
	}

	var cached CachedResult
	if err := json.Unmarshal([]byte(cachedData), &cached); err != nil {
		rc.logger.Error("Failed to unmarshal cached result", zap.Error(err))
		// Delete corrupted cache entry
		rc.client.Del(ctx, cacheKey)
		return nil, false
	}

	rc.stats.hits.Add(1)
	rc.logger.Debug("Cache hit",
		zap.String("key", cacheKey),
		zap.Int("traces", cached.TraceCount))

	return &cached, true
}

// Store caches a sanitization result. Traces are stripped down to rule
// names and a count; cached entries never carry original values.
func (rc *ResultCache) Store(ctx context.Context, profileVersion uint64, text string, result *redact.Result) error {
	cacheKey := rc.resultKey(profileVersion, text)

	seen := make(map[string]bool)
	var rules []string
	for _, tr := range result.Traces {
		if !seen[tr.Rule] {
			seen[tr.Rule] = true
			rules = append(rules, tr.Rule)
		}
	}

	entry := CachedResult{
		Text:       result.Text,
		Notes:      result.Notes,
		TraceCount: len(result.Traces),
		Rules:      rules,
		CachedAt:   time.Now(),
		TTL:        int64(rc.config.DefaultTTL.Seconds()),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal result for caching: %w", err)
	}

	if err := rc.client.Set(ctx, cacheKey, data, rc.config.DefaultTTL).Err(); err != nil {
		rc.logger.Error("Failed to cache result", zap.Error(err))
		return fmt.Errorf("failed to cache result: %w", err)
	}

	rc.logger.Debug("Result cached successfully",
		zap.String("key", cacheKey),
		zap.Int("traces", entry.TraceCount))

	return nil
}

// GetStats returns cache performance statistics
func (rc *ResultCache) GetStats(ctx context.Context) (*Stats, error) {
	info, err := rc.client.Info(ctx, "memory", "stats").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get Redis info: %w", err)
	}

	stats := &Stats{
		Hits:   rc.stats.hits.Load(),
		Misses: rc.stats.misses.Load(),
	}

	total := stats.Hits + stats.Misses
	if total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total) * 100
	}

	// Parse memory usage from Redis info
	for _, line := range strings.Split(info, "\r\n") {
		if strings.HasPrefix(line, "used_memory:") {
			if memStr := strings.TrimPrefix(line, "used_memory:"); memStr != "" {
				if mem, err := strconv.ParseInt(memStr, 10, 64); err == nil {
					stats.MemoryUsage = mem
				}
			}
		}
	}

	keys, err := rc.client.DBSize(ctx).Result()
	if err == nil {
		stats.TotalKeys = keys
	}

	return stats, nil
}

// Clear removes all cached results
func (rc *ResultCache) Clear(ctx context.Context) error {
	pattern := rc.config.KeyPrefix + ":res:*"

	iter := rc.client.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}

	if len(keys) == 0 {
		return nil
	}

	// Delete keys in batches
	batchSize := 100
	for i := 0; i < len(keys); i += batchSize {
		end := i + batchSize
		if end > len(keys) {
			end = len(keys)
		}
		if err := rc.client.Del(ctx, keys[i:end]...).Err(); err != nil {
			rc.logger.Error("Failed to delete cache keys", zap.Error(err))
			return fmt.Errorf("failed to delete cache keys: %w", err)
		}
	}

	rc.logger.Info("Cache cleared", zap.Int("deleted_keys", len(keys)))
	return nil
}

// Close closes the Redis connection
func (rc *ResultCache) Close() error {
	if rc.client != nil {
		return rc.client.Close()
	}
	return nil
}

// resultKey builds a cache key from the profile version and a hash of the
// input. Raw input never appears in the key.
func (rc *ResultCache) resultKey(profileVersion uint64, text string) string {
	sum := sha256.Sum256([]byte(text))
	hash := hex.EncodeToString(sum[:])
	return fmt.Sprintf("%s:res:%d:%s", rc.config.KeyPrefix, profileVersion, hash[:16])
}

// maskRedisURL masks sensitive information in Redis URL for logging
func maskRedisURL(url string) string {
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) >= 2 {
			userPart := parts[0]
			if strings.Contains(userPart, ":") {
				userParts := strings.Split(userPart, ":")
				if len(userParts) >= 3 {
					userParts[len(userParts)-1] = "***"
					parts[0] = strings.Join(userParts, ":")
				}
			}
			return strings.Join(parts, "@")
		}
	}
	return url
}
