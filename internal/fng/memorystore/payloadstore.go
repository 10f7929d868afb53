package memorystore

import (
	"sync"
	"time"

	"feargreed/internal/fng/model"
)

// Entry is the cached aggregate and the moment it was captured.
type Entry struct {
	Data       *model.AggregatePayload
	CapturedAt time.Time
}

// PayloadCache holds the last aggregate computed by this process.
// It starts empty and is only ever replaced, never cleared.
type PayloadCache struct {
	mu    sync.RWMutex
	entry Entry
}

func NewPayloadCache() *PayloadCache {
	return &PayloadCache{}
}

// Get returns the current entry; ok is false until the first Set.
func (c *PayloadCache) Get() (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entry, c.entry.Data != nil
}

func (c *PayloadCache) Set(payload *model.AggregatePayload, capturedAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry = Entry{Data: payload, CapturedAt: capturedAt}
}

// FreshWithin returns the cached payload if it was captured less than ttl before now.
func (c *PayloadCache) FreshWithin(now time.Time, ttl time.Duration) (*model.AggregatePayload, bool) {
	entry, ok := c.Get()
	if !ok || now.Sub(entry.CapturedAt) >= ttl {
		return nil, false
	}
	return entry.Data, true
}
