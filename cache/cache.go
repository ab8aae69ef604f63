package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// Store caches raw advanced-backend responses by key. Implementations are
// safe for concurrent use; a failing store behaves like a miss.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	// Len returns the number of live entries, or -1 when the store cannot tell.
	Len() int
	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
	Close() error
}

// Key derives a cache key from the page URL and a namespace such as the
// backend base URL.
func Key(namespace, url string) string {
	h := sha256.New()
	h.Write([]byte(namespace))
	h.Write([]byte("|"))
	h.Write([]byte(url))
	return hex.EncodeToString(h.Sum(nil))
}

// entry holds a cached value with its expiry.
type entry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is an in-process Store with per-entry TTLs.
type Memory struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	now        func() time.Time

	done     chan struct{}
	stopOnce sync.Once
}

// NewMemory creates a Memory store holding at most maxEntries. A background
// goroutine evicts expired entries every 5 minutes until Close is called.
func NewMemory(maxEntries int) *Memory {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	c := &Memory{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		now:        time.Now,
		done:       make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

// Get returns a live entry.
func (c *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok || !c.now().Before(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

// Set stores value for ttl. If the store is at capacity, a random entry is
// evicted to make room. A non-positive ttl is a no-op.
func (c *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.store[key]; !exists && len(c.store) >= c.maxEntries {
		// Map iteration order is random.
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}
	c.store[key] = &entry{value: value, expiresAt: c.now().Add(ttl)}
}

// Len returns the number of stored entries, expired ones included until the
// next sweep.
func (c *Memory) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Ping always succeeds for the in-process store.
func (c *Memory) Ping(context.Context) error { return nil }

// Close stops the cleanup goroutine.
func (c *Memory) Close() error {
	c.stopOnce.Do(func() { close(c.done) })
	return nil
}

func (c *Memory) sweep() {
	now := c.now()
	c.mu.Lock()
	for k, e := range c.store {
		if !now.Before(e.expiresAt) {
			delete(c.store, k)
		}
	}
	c.mu.Unlock()
}

func (c *Memory) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.done:
			return
		}
	}
}
