// Package cache provides an in-process assessment cache for deployments
// without Redis.
package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/pregnancycare-risk-service/internal/domain"
)

// DefaultSize is the number of records kept when no size is configured.
const DefaultSize = 1024

type entry struct {
	record    *domain.AssessmentRecord
	expiresAt time.Time
}

// MemoryCache is a size-bounded LRU of assessment records with expiry. It
// implements domain.AssessmentCache.
type MemoryCache struct {
	lru *expirable.LRU[string, entry]
	ttl time.Duration
	now func() time.Time
}

// NewMemoryCache creates a cache holding at most size records, each for at most ttl.
func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &MemoryCache{
		lru: expirable.NewLRU[string, entry](size, nil, ttl),
		ttl: ttl,
		now: time.Now,
	}
}

// Put stores a copy of the record. A ttl longer than the cache's own is capped.
func (c *MemoryCache) Put(_ context.Context, record *domain.AssessmentRecord, ttl time.Duration) error {
	if ttl <= 0 || ttl > c.ttl {
		ttl = c.ttl
	}
	c.lru.Add(domain.AssessmentKey(record.AssessmentID), entry{
		record:    record.Clone(),
		expiresAt: c.now().Add(ttl),
	})
	return nil
}

// Get returns a copy of a cached record.
func (c *MemoryCache) Get(_ context.Context, assessmentID string) (*domain.AssessmentRecord, bool, error) {
	key := domain.AssessmentKey(assessmentID)
	e, ok := c.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(e.expiresAt) {
		c.lru.Remove(key)
		return nil, false, nil
	}
	return e.record.Clone(), true, nil
}

// Len reports the number of cached records.
func (c *MemoryCache) Len() int { return c.lru.Len() }

// Ping always succeeds.
func (c *MemoryCache) Ping(context.Context) error { return nil }
