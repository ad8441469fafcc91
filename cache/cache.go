package cache

import (
	"sync"

	"github.com/google/uuid"
	"github.com/opd-ai/velocut/frame"
	"github.com/sirupsen/logrus"
)

// BucketsPerSecond is the time-bucket resolution of cache keys.
const BucketsPerSecond = 4

// DefaultEvictBatch is the number of keys removed per eviction round.
const DefaultEvictBatch = 32

// Key identifies one cached frame.
type Key struct {
	Owner  uuid.UUID
	Bucket int
}

// BucketOf returns the quarter-second bucket containing timestamp seconds.
// Negative timestamps map to bucket 0.
func BucketOf(timestamp float64) int {
	if timestamp <= 0 {
		return 0
	}
	return int(timestamp * BucketsPerSecond)
}

// KeyFor builds the key of a frame from its owner and timestamp.
func KeyFor(f *frame.Frame) Key {
	return Key{Owner: f.OwnerID, Bucket: BucketOf(f.Timestamp)}
}

// Observer receives cache activity. The metrics package implements it.
type Observer interface {
	CacheResident(bytes, entries int)
	CacheEvicted(entries int)
}

// Config controls a Cache.
type Config struct {
	// CeilingBytes is the maximum resident byte total.
	CeilingBytes int
	// EvictBatch defaults to DefaultEvictBatch.
	EvictBatch int
	Observer   Observer
}

type entry struct {
	frame *frame.Frame
	size  int
}

// Cache is a byte-budgeted frame store. It is safe for concurrent use.
type Cache struct {
	mu       sync.RWMutex
	entries  map[Key]entry
	bytes    int
	playhead int

	ceiling    int
	evictBatch int
	observer   Observer
}

// New returns an empty cache.
func New(cfg Config) *Cache {
	batch := cfg.EvictBatch
	if batch <= 0 {
		batch = DefaultEvictBatch
	}
	return &Cache{
		entries:    make(map[Key]entry),
		ceiling:    cfg.CeilingBytes,
		evictBatch: batch,
		observer:   cfg.Observer,
	}
}

// SetPlayhead moves the position eviction distances are measured from.
func (c *Cache) SetPlayhead(timestamp float64) {
	c.mu.Lock()
	c.playhead = BucketOf(timestamp)
	c.mu.Unlock()
}

// Playhead returns the current playhead bucket.
func (c *Cache) Playhead() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.playhead
}

// Insert stores f under key, replacing any frame already there. Entries
// furthest from the playhead are evicted first until f fits. A frame larger
// than the whole ceiling is not stored and Insert returns false.
func (c *Cache) Insert(key Key, f *frame.Frame) bool {
	size := f.Size()

	c.mu.Lock()
	defer c.mu.Unlock()

	if size > c.ceiling {
		logrus.WithFields(logrus.Fields{
			"function": "Cache.Insert",
			"size":     size,
			"ceiling":  c.ceiling,
		}).Debug("Frame exceeds cache ceiling, not stored")
		return false
	}

	if old, ok := c.entries[key]; ok {
		delete(c.entries, key)
		c.bytes -= old.size
	}

	evicted := 0
	for c.bytes+size > c.ceiling && len(c.entries) > 0 {
		evicted += c.evictLocked()
	}

	c.entries[key] = entry{frame: f, size: size}
	c.bytes += size

	if c.observer != nil {
		if evicted > 0 {
			c.observer.CacheEvicted(evicted)
		}
		c.observer.CacheResident(c.bytes, len(c.entries))
	}
	return true
}

// evictLocked removes up to one batch of the keys furthest from the
// playhead and returns how many were removed.
func (c *Cache) evictLocked() int {
	keys := make([]Key, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	n := min(c.evictBatch, len(keys))
	selectFurthest(keys, n, c.playhead)

	for _, k := range keys[:n] {
		c.bytes -= c.entries[k].size
		delete(c.entries, k)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Cache.evict",
		"evicted":  n,
		"playhead": c.playhead,
		"resident": c.bytes,
	}).Debug("Evicted frames furthest from playhead")
	return n
}

// Get returns the frame stored under key.
func (c *Cache) Get(key Key) (*frame.Frame, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e.frame, ok
}

// Contains reports whether key is resident.
func (c *Cache) Contains(key Key) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[key]
	return ok
}

// Nearest returns the frame of owner at bucket or the closest bucket below
// it, looking back at most maxBack buckets.
func (c *Cache) Nearest(owner uuid.UUID, bucket, maxBack int) (*frame.Frame, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for d := 0; d <= maxBack && bucket-d >= 0; d++ {
		if e, ok := c.entries[Key{Owner: owner, Bucket: bucket - d}]; ok {
			return e.frame, true
		}
	}
	return nil, false
}

// Remove drops key if present.
func (c *Cache) Remove(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		delete(c.entries, key)
		c.bytes -= e.size
	}
	if c.observer != nil {
		c.observer.CacheResident(c.bytes, len(c.entries))
	}
}

// Clear drops every entry and resets the byte total.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[Key]entry)
	c.bytes = 0
	if c.observer != nil {
		c.observer.CacheResident(0, 0)
	}
}

// Bytes returns the resident byte total.
func (c *Cache) Bytes() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bytes
}

// Len returns the number of resident entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Ceiling returns the configured byte ceiling.
func (c *Cache) Ceiling() int { return c.ceiling }
