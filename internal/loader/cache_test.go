package loader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playbackengine/internal/library"
	"playbackengine/internal/queue"
)

func TestCacheInsertGet(t *testing.T) {
	c := NewCache()
	_, ok := c.Get("t1")
	assert.False(t, ok)

	c.Insert("t1", []byte{1, 2, 3})
	got, ok := c.Get("t1")
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, got)
	assert.True(t, c.Has("t1"))
}

func TestCachePendingLifecycle(t *testing.T) {
	c := NewCache()
	c.MarkPending("t1", 7)

	req, ok := c.IsPending("t1")
	require.True(t, ok)
	assert.Equal(t, queue.RequestID(7), req)

	c.ClearPending("t1")
	_, ok = c.IsPending("t1")
	assert.False(t, ok)
}

func TestEvictExceptKeepsWindowOnly(t *testing.T) {
	c := NewCache()
	for _, id := range []library.TrackId{"t1", "t2", "t3", "t4", "t5", "t6"} {
		c.Insert(id, []byte(id))
	}

	evicted := c.EvictExcept([]library.TrackId{"t2", "t3", "t4"})

	assert.ElementsMatch(t, []library.TrackId{"t1", "t5", "t6"}, evicted)
	for _, id := range []library.TrackId{"t2", "t3", "t4"} {
		assert.True(t, c.Has(id))
	}
	for _, id := range evicted {
		assert.False(t, c.Has(id))
	}
}

func TestInsertWhilePendingKeepsBytes(t *testing.T) {
	// A late response's bytes are still cached (stale-load rule).
	c := NewCache()
	c.MarkPending("t1", 3)
	c.Insert("t1", []byte("late"))

	got, ok := c.Get("t1")
	require.True(t, ok)
	assert.Equal(t, []byte("late"), got)
}
