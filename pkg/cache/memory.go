package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/noah-isme/coursework-api/pkg/config"
)

// NewMemory returns a bounded in-process store whose entries expire after the configured TTL.
func NewMemory(cfg config.CacheConfig) *expirable.LRU[string, []byte] {
	size := cfg.MaxEntries
	if size <= 0 {
		size = 500
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return expirable.NewLRU[string, []byte](size, nil, ttl)
}
