package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	appErrors "github.com/noah-isme/coursework-api/pkg/errors"
)

// MemoryCacheRepository keeps JSON encoded read models in a bounded
// in-process LRU. Entries share the TTL the LRU was built with, so the ttl
// argument of Set is ignored.
type MemoryCacheRepository struct {
	lru *expirable.LRU[string, []byte]
}

// NewMemoryCacheRepository wraps an expirable LRU.
func NewMemoryCacheRepository(lru *expirable.LRU[string, []byte]) *MemoryCacheRepository {
	return &MemoryCacheRepository{lru: lru}
}

// Get decodes the cached value for key into dest, or returns ErrCacheMiss.
func (r *MemoryCacheRepository) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := r.lru.Get(key)
	if !ok {
		return appErrors.ErrCacheMiss
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode cache value for %s: %w", key, err)
	}
	return nil
}

// Set stores value under key.
func (r *MemoryCacheRepository) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache value for %s: %w", key, err)
	}
	r.lru.Add(key, payload)
	return nil
}

// DeleteByPattern removes every key matching a glob pattern such as "tasks:*".
func (r *MemoryCacheRepository) DeleteByPattern(_ context.Context, pattern string) error {
	for _, key := range r.lru.Keys() {
		matched, err := path.Match(pattern, key)
		if err != nil {
			return fmt.Errorf("match cache pattern %s: %w", pattern, err)
		}
		if matched {
			r.lru.Remove(key)
		}
	}
	return nil
}

// Ping always succeeds for the in-process cache.
func (r *MemoryCacheRepository) Ping(context.Context) error { return nil }

// Close drops every entry.
func (r *MemoryCacheRepository) Close() error {
	r.lru.Purge()
	return nil
}
