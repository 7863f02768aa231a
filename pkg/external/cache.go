package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/pregnancycare-risk-service/internal/domain"
)

// RedisCache stores assessment records in Redis and implements domain.AssessmentCache.
type RedisCache struct {
	redis      *redis.Client
	defaultTTL time.Duration
	log        *logrus.Logger
}

// NewRedisCache connects to Redis using the cache configuration
func NewRedisCache(config domain.CacheConfig, logger *logrus.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	if config.PoolTimeout > 0 {
		opts.PoolTimeout = config.PoolTimeout
	}
	if config.MaxRetries > 0 {
		opts.MaxRetries = config.MaxRetries
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisCacheFromClient(client, config.DefaultTTL, logger), nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *redis.Client, defaultTTL time.Duration, logger *logrus.Logger) *RedisCache {
	return &RedisCache{
		redis:      client,
		defaultTTL: defaultTTL,
		log:        logger,
	}
}

// cachedAssessment is the value stored under an assessment key
type cachedAssessment struct {
	Record   *domain.AssessmentRecord `json:"record"`
	CachedAt time.Time                `json:"cached_at"`
}

// Put caches a record. A zero ttl falls back to the default.
func (c *RedisCache) Put(ctx context.Context, record *domain.AssessmentRecord, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	key := domain.AssessmentKey(record.AssessmentID)

	data, err := json.Marshal(cachedAssessment{Record: record, CachedAt: time.Now().UTC()})
	if err != nil {
		return &domain.CacheError{Op: "put", Key: key, Err: err}
	}

	if err := c.redis.Set(ctx, key, data, ttl).Err(); err != nil {
		return &domain.CacheError{Op: "put", Key: key, Err: err}
	}
	return nil
}

// Get returns a cached record. Corrupted entries are removed and reported as a miss.
func (c *RedisCache) Get(ctx context.Context, assessmentID string) (*domain.AssessmentRecord, bool, error) {
	key := domain.AssessmentKey(assessmentID)

	val, err := c.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &domain.CacheError{Op: "get", Key: key, Err: err}
	}

	var cached cachedAssessment
	if err := json.Unmarshal(val, &cached); err != nil || cached.Record == nil {
		c.log.WithFields(logrus.Fields{"key": key, "error": err}).Warn("Removing corrupted cache entry")
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	return cached.Record, true, nil
}

// Invalidate removes a cached record
func (c *RedisCache) Invalidate(ctx context.Context, assessmentID string) error {
	return c.redis.Del(ctx, domain.AssessmentKey(assessmentID)).Err()
}

// Ping checks if Redis connection is alive
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.redis.Close()
}
