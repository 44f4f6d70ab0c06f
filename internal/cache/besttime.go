package cache

import "sync"

// BestTimeCache maps track names to the best finish time recorded for them.
// The race machine consults it on the hot path of a finish verdict, so
// lookups never touch storage; the backend warms it at startup and the
// OnPut hook hands new records off for persistence.
type BestTimeCache struct {
	mu    sync.RWMutex
	times map[string]float64

	// OnPut, when set, is called after a record is stored, outside the
	// lock. Wired to the dispatcher so persistence never blocks the tick.
	OnPut func(track string, elapsed float64)
}

// NewBestTimeCache creates an empty BestTimeCache
func NewBestTimeCache() *BestTimeCache {
	return &BestTimeCache{
		times: make(map[string]float64),
	}
}

// Get retrieves the best time for a track
func (c *BestTimeCache) Get(track string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.times[track]
	return t, ok
}

// Put stores a best time for a track and hands it to the OnPut hook
func (c *BestTimeCache) Put(track string, elapsed float64) {
	c.mu.Lock()
	c.times[track] = elapsed
	hook := c.OnPut
	c.mu.Unlock()
	if hook != nil {
		hook(track, elapsed)
	}
}

// Delete removes a track's best time
func (c *BestTimeCache) Delete(track string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.times, track)
}

// Warm replaces the cache contents, e.g. from storage at startup.
// The OnPut hook is not called for warmed entries.
func (c *BestTimeCache) Warm(times map[string]float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.times = make(map[string]float64, len(times))
	for track, t := range times {
		c.times[track] = t
	}
}

// Reset clears all best times from the cache
func (c *BestTimeCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.times = make(map[string]float64)
}
