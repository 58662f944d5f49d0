package loader

import (
	"playbackengine/internal/library"
	"playbackengine/internal/queue"
)

// Cache is the audio cache: an in-memory map from track id to encoded
// bytes plus the set of in-flight loads keyed by track id with the
// request id that started each. It performs no locking of its own;
// the engine's Controller calls it only while holding its
// reader/writer lock over the library+queue bundle.
type Cache struct {
	bytes   map[library.TrackId][]byte
	pending map[library.TrackId]queue.RequestID
}

// NewCache returns an empty Audio Cache.
func NewCache() *Cache {
	return &Cache{
		bytes:   make(map[library.TrackId][]byte),
		pending: make(map[library.TrackId]queue.RequestID),
	}
}

// Get returns the cached bytes for id, if present.
func (c *Cache) Get(id library.TrackId) ([]byte, bool) {
	b, ok := c.bytes[id]
	return b, ok
}

// Insert stores bytes for id, regardless of whether a load is still
// marked pending for it; a late response's bytes are still cached for
// future use.
func (c *Cache) Insert(id library.TrackId, data []byte) {
	c.bytes[id] = data
}

// IsPending reports whether a load for id is currently in flight, and
// its request id.
func (c *Cache) IsPending(id library.TrackId) (queue.RequestID, bool) {
	r, ok := c.pending[id]
	return r, ok
}

// MarkPending records that a load for id has been started under reqID.
func (c *Cache) MarkPending(id library.TrackId, reqID queue.RequestID) {
	c.pending[id] = reqID
}

// ClearPending removes id from the pending set (called on load
// completion, success or failure).
func (c *Cache) ClearPending(id library.TrackId) {
	delete(c.pending, id)
}

// Has reports whether id is already cached.
func (c *Cache) Has(id library.TrackId) bool {
	_, ok := c.bytes[id]
	return ok
}

// EvictExcept drops every cached entry whose key is not in the window.
// Returns the evicted ids.
func (c *Cache) EvictExcept(window []library.TrackId) []library.TrackId {
	keep := make(map[library.TrackId]bool, len(window))
	for _, id := range window {
		keep[id] = true
	}
	var evicted []library.TrackId
	for id := range c.bytes {
		if !keep[id] {
			evicted = append(evicted, id)
		}
	}
	for _, id := range evicted {
		delete(c.bytes, id)
	}
	return evicted
}
