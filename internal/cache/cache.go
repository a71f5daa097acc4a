// Package cache holds insight narratives in memory for the lifetime of the
// process.
package cache

import (
	"sync"
	"time"

	"github.com/darshan-rambhia/opticdeck/internal/model"
)

// Key identifies one provider request.
type Key struct {
	Kind  model.InsightKind
	Input string
}

// Entry is a cached narrative and the time it was stored.
type Entry struct {
	Narrative string
	Stored    time.Time
}

// Cache is a thread-safe in-memory narrative store.
type Cache struct {
	mu      sync.RWMutex
	entries map[Key]Entry
	now     func() time.Time
}

// New returns an initialized Cache.
func New() *Cache {
	return &Cache{
		entries: make(map[Key]Entry),
		now:     time.Now,
	}
}

// Get returns the entry for kind and input.
func (c *Cache) Get(kind model.InsightKind, input string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[Key{Kind: kind, Input: input}]
	return e, ok
}

// Set stores a narrative, replacing any previous entry for the same key.
func (c *Cache) Set(kind model.InsightKind, input, narrative string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[Key{Kind: kind, Input: input}] = Entry{Narrative: narrative, Stored: c.now()}
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Prune drops entries stored before cutoff and returns how many were removed.
func (c *Cache) Prune(cutoff time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, e := range c.entries {
		if e.Stored.Before(cutoff) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}
