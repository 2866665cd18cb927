package snapshot

import (
	"sync"
	"time"
)

// Observer is notified after every upsert, outside the cache lock. It must
// not block.
type Observer func(key string, snap PipelineSnapshot)

type Stats struct {
	CachedSubjects int `json:"cached_subjects"`
}

// Cache maps a subject key (the requester identity) to its latest snapshot.
// Entries live for the lifetime of the process, one per key.
type Cache struct {
	mu        sync.Mutex
	entries   map[string]PipelineSnapshot
	observers []Observer
	now       func() time.Time
}

func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]PipelineSnapshot),
		now:     time.Now,
	}
}

// WithClock replaces the timestamp source. Used by tests.
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

// Subscribe registers an observer. Call during wiring, before traffic.
func (c *Cache) Subscribe(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, o)
}

// Upsert overwrites the entry for key and stamps LastUpdated.
func (c *Cache) Upsert(key string, snap PipelineSnapshot) PipelineSnapshot {
	stored := snap.Clone()

	c.mu.Lock()
	stored.LastUpdated = c.now().UTC()
	c.entries[key] = stored
	observers := c.observers
	c.mu.Unlock()

	for _, o := range observers {
		o(key, stored.Clone())
	}
	return stored.Clone()
}

func (c *Cache) Get(key string) (PipelineSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.entries[key]
	if !ok {
		return PipelineSnapshot{}, false
	}
	return s.Clone(), true
}

// Latest returns the entry with the greatest LastUpdated. ok is false when
// the cache is empty.
func (c *Cache) Latest() (PipelineSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		latest PipelineSnapshot
		found  bool
	)
	for _, s := range c.entries {
		if !found || s.LastUpdated.After(latest.LastUpdated) {
			latest = s
			found = true
		}
	}
	if !found {
		return PipelineSnapshot{}, false
	}
	return latest.Clone(), true
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{CachedSubjects: len(c.entries)}
}

func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}
