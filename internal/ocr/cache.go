package ocr

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

type cacheEntry struct {
	expiry time.Time
	result Result
}

// resultCache remembers OCR results by image digest so a resubmitted
// screenshot does not cost a second remote call.
type resultCache struct {
	entries   map[string]cacheEntry
	stopCh    chan struct{}
	ttl       time.Duration
	mu        sync.RWMutex
	closeOnce sync.Once
}

func newResultCache(ttl time.Duration) *resultCache {
	if ttl == 0 {
		ttl = DefaultCacheTTL
	}

	cache := &resultCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}
	go cache.cleanup()
	return cache
}

// imageKey is the hex sha256 of the image bytes.
func imageKey(image []byte) string {
	sum := sha256.Sum256(image)
	return hex.EncodeToString(sum[:])
}

func (c *resultCache) get(key string) (Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[key]
	if !exists || time.Now().After(entry.expiry) {
		return Result{}, false
	}
	return entry.result, true
}

func (c *resultCache) set(key string, result Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{
		result: result,
		expiry: time.Now().Add(c.ttl),
	}
}

// cleanup periodically removes expired entries.
func (c *resultCache) cleanup() {
	interval := c.ttl
	if interval > 5*time.Minute {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for key, entry := range c.entries {
				if now.After(entry.expiry) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

func (c *resultCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the cleanup goroutine.
func (c *resultCache) Close() {
	c.closeOnce.Do(func() { close(c.stopCh) })
}
