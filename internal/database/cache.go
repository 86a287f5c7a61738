package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/models"
	"github.com/sirupsen/logrus"
)

// ErrCacheMiss is returned when a key is absent.
var ErrCacheMiss = errors.New("cache miss")

// Cache implementation
type Cache struct {
	client *redis.Client
	logger *logrus.Logger
}

func NewCache(client *redis.Client, logger *logrus.Logger) *Cache {
	return &Cache{
		client: client,
		logger: logger,
	}
}

// Cache key constants
const (
	RetrievalResultsKey = "retrieval:results:%s"
	RateLimitKey        = "ratelimit:%s:%d"
	SystemHealthKey     = "system:health"
)

// CacheRetrievalResults caches retrieval results for a normalized query key
func (c *Cache) CacheRetrievalResults(ctx context.Context, key string, results interface{}, expiration time.Duration) error {
	data, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("failed to marshal retrieval results: %w", err)
	}

	return c.client.Set(ctx, fmt.Sprintf(RetrievalResultsKey, key), data, expiration).Err()
}

// GetCachedRetrievalResults decodes cached results into result, or returns ErrCacheMiss
func (c *Cache) GetCachedRetrievalResults(ctx context.Context, key string, result interface{}) error {
	data, err := c.client.Get(ctx, fmt.Sprintf(RetrievalResultsKey, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}

	return json.Unmarshal(data, result)
}

// IncrementWindow counts a hit for client in the fixed window containing now
// and returns the running count.
func (c *Cache) IncrementWindow(ctx context.Context, client string, window time.Duration, now time.Time) (int64, error) {
	bucket := now.UnixNano() / int64(window)
	key := fmt.Sprintf(RateLimitKey, client, bucket)

	var incr *redis.IntCmd
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, window)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// CacheSystemHealth caches system health status
func (c *Cache) CacheSystemHealth(ctx context.Context, health []models.SystemHealth, expiration time.Duration) error {
	data, err := json.Marshal(health)
	if err != nil {
		return fmt.Errorf("failed to marshal system health: %w", err)
	}

	return c.client.Set(ctx, SystemHealthKey, data, expiration).Err()
}

// GetCachedSystemHealth retrieves cached system health
func (c *Cache) GetCachedSystemHealth(ctx context.Context) ([]models.SystemHealth, error) {
	data, err := c.client.Get(ctx, SystemHealthKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}

	var health []models.SystemHealth
	err = json.Unmarshal(data, &health)
	return health, err
}

// GetCacheStats reports a few redis INFO counters
func (c *Cache) GetCacheStats(ctx context.Context) (map[string]string, error) {
	info, err := c.client.Info(ctx, "stats").Result()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"keyspace_hits":   extractStat(info, "keyspace_hits"),
		"keyspace_misses": extractStat(info, "keyspace_misses"),
	}, nil
}

func extractStat(info, key string) string {
	for _, line := range strings.Split(info, "\r\n") {
		if strings.HasPrefix(line, key+":") {
			return strings.TrimPrefix(line, key+":")
		}
	}
	return "0"
}
