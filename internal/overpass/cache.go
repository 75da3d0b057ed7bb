package overpass

import (
	"sync"
	"time"

	"github.com/golang/geo/s2"
	"github.com/google/uuid"
)

// Snapshot is one cached aggregation for a point.
type Snapshot struct {
	ID         string    `json:"id"`
	Point      GeoPoint  `json:"point"`
	Records    []Record  `json:"records"`
	ComputedAt time.Time `json:"computedAt"`
}

// cacheEntry holds a snapshot with its expiration time
type cacheEntry struct {
	snapshot  *Snapshot
	expiresAt time.Time
}

// Cache keeps aggregation snapshots in memory for a TTL. Points are bucketed
// by the S2 cell at the configured level, so nearby requests share an entry.
type Cache struct {
	mu       sync.RWMutex
	entries  map[s2.CellID]cacheEntry
	ttl      time.Duration
	level    int
	now      func() time.Time
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewCache creates a cache and starts its cleanup goroutine. level is clamped
// to the valid S2 range.
func NewCache(ttl, cleanupInterval time.Duration, level int) *Cache {
	if level < 0 {
		level = 0
	}
	if level > s2.MaxLevel {
		level = s2.MaxLevel
	}
	c := &Cache{
		entries:  make(map[s2.CellID]cacheEntry),
		ttl:      ttl,
		level:    level,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}

	go c.cleanupLoop(cleanupInterval)

	return c
}

// Key returns the cache key of point.
func (c *Cache) Key(point GeoPoint) s2.CellID {
	return point.Cell(c.level)
}

// Get returns the live snapshot for the cell containing point.
func (c *Cache) Get(point GeoPoint) (*Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[c.Key(point)]
	if !ok || c.now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.snapshot, true
}

// Put stores records for point and returns the new snapshot.
func (c *Cache) Put(point GeoPoint, records []Record) *Snapshot {
	now := c.now()
	snap := &Snapshot{
		ID:         uuid.NewString(),
		Point:      point,
		Records:    records,
		ComputedAt: now.UTC(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[c.Key(point)] = cacheEntry{
		snapshot:  snap,
		expiresAt: now.Add(c.ttl),
	}
	return snap
}

// Delete removes the entry for the cell containing point.
func (c *Cache) Delete(point GeoPoint) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, c.Key(point))
}

// Stop stops the background cleanup goroutine.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
}

func (c *Cache) cleanupLoop(interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stopChan:
			return
		}
	}
}

// cleanup removes all expired entries.
func (c *Cache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

// Stats returns the number of entries and the age of the oldest one.
func (c *Cache) Stats() (count int, oldestAge time.Duration) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	count = len(c.entries)
	if count == 0 {
		return 0, 0
	}

	var oldest time.Time
	for _, entry := range c.entries {
		if oldest.IsZero() || entry.snapshot.ComputedAt.Before(oldest) {
			oldest = entry.snapshot.ComputedAt
		}
	}
	return count, c.now().Sub(oldest)
}
