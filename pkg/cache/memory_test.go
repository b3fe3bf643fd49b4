package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/coursework-api/pkg/config"
)

func TestNewMemoryBoundsEntries(t *testing.T) {
	lru := NewMemory(config.CacheConfig{MaxEntries: 2, TTL: time.Minute})
	lru.Add("a", []byte("1"))
	lru.Add("b", []byte("2"))
	lru.Add("c", []byte("3"))

	assert.Equal(t, 2, lru.Len())
	_, ok := lru.Get("a")
	assert.False(t, ok)
}

func TestNewMemoryDefaults(t *testing.T) {
	lru := NewMemory(config.CacheConfig{})
	lru.Add("k", []byte("v"))
	v, ok := lru.Get("k")
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)
}
