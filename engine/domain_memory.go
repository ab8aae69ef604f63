package engine

import (
	"net/url"
	"sync"
	"time"
)

// DomainMemory remembers hosts for which the advanced backend recently failed
// or missed its deadline, so those hosts go straight to the direct pipeline
// until the cool-down expires. Expired entries are cleaned up periodically.
type DomainMemory struct {
	store    sync.Map // domain (string) -> expiry (time.Time)
	cooldown time.Duration
	done     chan struct{}
	once     sync.Once
}

// NewDomainMemory creates a DomainMemory with the given cool-down and starts
// a background goroutine that prunes expired entries.
func NewDomainMemory(cooldown time.Duration) *DomainMemory {
	dm := &DomainMemory{
		cooldown: cooldown,
		done:     make(chan struct{}),
	}
	go dm.cleanupLoop()
	return dm
}

// Skip reports whether the backend should be bypassed for the URL's host.
func (dm *DomainMemory) Skip(rawURL string) bool {
	domain := extractDomain(rawURL)
	val, ok := dm.store.Load(domain)
	if !ok {
		return false
	}
	if time.Now().After(val.(time.Time)) {
		dm.store.Delete(domain)
		return false
	}
	return true
}

// MarkFailed starts (or restarts) the cool-down for the URL's host.
func (dm *DomainMemory) MarkFailed(rawURL string) {
	if dm.cooldown <= 0 {
		return
	}
	dm.store.Store(extractDomain(rawURL), time.Now().Add(dm.cooldown))
}

// Clear removes any cool-down for the URL's host (after a backend success).
func (dm *DomainMemory) Clear(rawURL string) {
	dm.store.Delete(extractDomain(rawURL))
}

// Stop terminates the background cleanup goroutine. Safe to call twice.
func (dm *DomainMemory) Stop() {
	dm.once.Do(func() { close(dm.done) })
}

func (dm *DomainMemory) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-dm.done:
			return
		case <-ticker.C:
			now := time.Now()
			dm.store.Range(func(key, value any) bool {
				if now.After(value.(time.Time)) {
					dm.store.Delete(key)
				}
				return true
			})
		}
	}
}

// extractDomain parses the hostname from a URL string.
func extractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}
