package cache

import (
	"sync"
	"time"

	"audio-bridge/internal/logging"
	"audio-bridge/internal/mediainfo"
)

// entry pairs a cached value with its creation time. Entries are owned
// exclusively by the cache and replaced, never partially updated.
type entry struct {
	value     *mediainfo.AudioInfo
	createdAt time.Time
}

// AudioInfoCache memoizes resolved audio metadata by media identifier.
// Hits require the entry to be younger than the TTL; the TTL check at
// read time guarantees correctness even if the background sweep never
// runs. The sweep only bounds memory.
type AudioInfoCache struct {
	mu      sync.Mutex
	entries map[string]entry

	ttl time.Duration
	now func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
}

// DefaultTTL is how long a resolved catalog stays usable.
const DefaultTTL = 1 * time.Hour

// DefaultSweepInterval is how often expired entries are reclaimed.
const DefaultSweepInterval = 10 * time.Minute

// New creates a cache with the given TTL. A nil clock defaults to
// time.Now; tests inject a fake clock to drive expiry.
func New(ttl time.Duration, clock func() time.Time) *AudioInfoCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = time.Now
	}
	return &AudioInfoCache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     clock,
		stop:    make(chan struct{}),
	}
}

// Get returns the cached value for id, or false on a miss. An entry at
// or past the TTL is treated as a miss and dropped.
func (c *AudioInfoCache) Get(id string) (*mediainfo.AudioInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.createdAt) >= c.ttl {
		delete(c.entries, id)
		return nil, false
	}
	return e.value, true
}

// Put stores a value for id, replacing any existing entry.
func (c *AudioInfoCache) Put(id string, value *mediainfo.AudioInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = entry{value: value, createdAt: c.now()}
}

// Clear empties the cache unconditionally.
func (c *AudioInfoCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// Len returns the number of entries, expired ones included until the
// next sweep reclaims them.
func (c *AudioInfoCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// StartSweeper launches the background eviction loop. It runs until
// Stop is called.
func (c *AudioInfoCache) StartSweeper(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if removed := c.sweep(); removed > 0 {
					logging.Debug("cache sweep removed %d expired entries", removed)
				}
			case <-c.stop:
				return
			}
		}
	}()
}

// Stop terminates the background sweeper. Safe to call more than once.
func (c *AudioInfoCache) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// sweep removes all expired entries and returns how many were dropped.
func (c *AudioInfoCache) sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	now := c.now()
	for id, e := range c.entries {
		if now.Sub(e.createdAt) >= c.ttl {
			delete(c.entries, id)
			removed++
		}
	}
	return removed
}
