package ui

import (
	"hash/fnv"
	"sync"
)

// RenderCache provides hash-based caching for rendered content, keyed by
// content, width and style. It holds at most maxSize entries.
type RenderCache struct {
	mu      sync.Mutex
	entries map[uint64]*cacheEntry
	order   []uint64
	maxSize int
}

// cacheEntry stores cached render output with metadata.
type cacheEntry struct {
	content string
	hits    int
}

// NewRenderCache creates a new render cache with the specified max size.
func NewRenderCache(maxSize int) *RenderCache {
	if maxSize < 1 {
		maxSize = 1
	}
	return &RenderCache{
		entries: make(map[uint64]*cacheEntry),
		maxSize: maxSize,
	}
}

// computeHash computes a FNV-1a hash for cache keys.
// Supported types are limited to string, int and bool.
func computeHash(inputs ...interface{}) uint64 {
	h := fnv.New64a()
	var b [8]byte

	for _, input := range inputs {
		switch v := input.(type) {
		case string:
			h.Write([]byte(v))
			h.Write([]byte{0})
		case int:
			u := uint64(v)
			for i := range b {
				b[i] = byte(u >> (8 * i))
			}
			h.Write(b[:])
		case bool:
			if v {
				h.Write([]byte{1})
			} else {
				h.Write([]byte{0})
			}
		}
	}

	return h.Sum64()
}

// ComputeKey generates a cache key from multiple inputs.
func ComputeKey(inputs ...interface{}) uint64 {
	return computeHash(inputs...)
}

// Get retrieves cached content if available.
func (rc *RenderCache) Get(key uint64) (string, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if entry, ok := rc.entries[key]; ok {
		entry.hits++
		return entry.content, true
	}
	return "", false
}

// Set stores rendered content, evicting the oldest entry when full.
func (rc *RenderCache) Set(key uint64, content string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if entry, ok := rc.entries[key]; ok {
		entry.content = content
		return
	}
	if len(rc.order) >= rc.maxSize {
		oldest := rc.order[0]
		rc.order = rc.order[1:]
		delete(rc.entries, oldest)
	}
	rc.entries[key] = &cacheEntry{content: content, hits: 1}
	rc.order = append(rc.order, key)
}

// Len returns the number of cached entries.
func (rc *RenderCache) Len() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return len(rc.entries)
}

// Clear empties the cache.
func (rc *RenderCache) Clear() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.entries = make(map[uint64]*cacheEntry)
	rc.order = nil
}

// GetOrCompute retrieves from cache or computes if missing.
func (rc *RenderCache) GetOrCompute(key uint64, compute func() string) string {
	if content, ok := rc.Get(key); ok {
		return content
	}
	content := compute()
	rc.Set(key, content)
	return content
}
