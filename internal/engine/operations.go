package engine

import (
	"context"
	"time"

	"playbackengine/internal/artcache"
	"playbackengine/internal/library"
	"playbackengine/internal/playback"
	"playbackengine/internal/queue"
	"playbackengine/pkg/scrobbling"
)

// PlayTrack schedules tid for playback; it becomes the current track
// once the Playback Driver confirms it started. The queue's current
// index moves onto tid so navigation and the cache window follow the
// user's selection, with the out-of-ordering prepend rule applying
// when tid isn't part of the active mode's ordering.
func (c *Controller) PlayTrack(tid library.TrackId) {
	c.mu.Lock()
	found := -1
	for i, id := range c.qs.OrderedTracks {
		if id == tid {
			found = i
			break
		}
	}
	if found >= 0 {
		c.qs.CurrentIndex = found
	} else {
		queue.RecomputeQueue(c.lib, c.mode, c.qs, tid, true)
	}
	c.mu.Unlock()

	c.schedulePlay(tid)
}

// ToggleCurrent flips play/pause on whatever is currently loaded.
func (c *Controller) ToggleCurrent() { c.driver.Commands() <- playback.TogglePlayback() }

// PlayCurrent resumes playback of the currently loaded track.
func (c *Controller) PlayCurrent() { c.driver.Commands() <- playback.Play() }

// PauseCurrent pauses playback of the currently loaded track.
func (c *Controller) PauseCurrent() { c.driver.Commands() <- playback.Pause() }

// StopCurrent stops playback and requests a position-0 seek.
func (c *Controller) StopCurrent() { c.driver.Commands() <- playback.StopPlayback() }

// Next advances to the next track in ordered_tracks, wrapping around.
func (c *Controller) Next() {
	c.mu.Lock()
	length := c.qs.Len()
	if length == 0 {
		c.mu.Unlock()
		return
	}
	idx, _ := queue.NextIndex(c.qs.CurrentIndex, length)
	c.qs.CurrentIndex = idx
	tid := c.qs.OrderedTracks[idx]
	c.mu.Unlock()
	c.schedulePlay(tid)
}

// Previous moves to the previous track in ordered_tracks, wrapping
// around.
func (c *Controller) Previous() {
	c.mu.Lock()
	length := c.qs.Len()
	if length == 0 {
		c.mu.Unlock()
		return
	}
	idx, _ := queue.PreviousIndex(c.qs.CurrentIndex, length)
	c.qs.CurrentIndex = idx
	tid := c.qs.OrderedTracks[idx]
	c.mu.Unlock()
	c.schedulePlay(tid)
}

// NextGroup jumps to the first track of the next group in the queue,
// wrapping around.
func (c *Controller) NextGroup() {
	c.mu.Lock()
	idx, ok := queue.FindNextGroupStart(c.lib, c.qs.OrderedTracks, c.qs.CurrentIndex)
	if !ok {
		c.mu.Unlock()
		return
	}
	c.qs.CurrentIndex = idx
	tid := c.qs.OrderedTracks[idx]
	c.mu.Unlock()
	c.schedulePlay(tid)
}

// PreviousGroup jumps to the start of the current group, or the
// previous group if already at its start.
func (c *Controller) PreviousGroup() {
	c.mu.Lock()
	idx, ok := queue.FindPreviousGroupStart(c.lib, c.qs.OrderedTracks, c.qs.CurrentIndex)
	if !ok {
		c.mu.Unlock()
		return
	}
	c.qs.CurrentIndex = idx
	tid := c.qs.OrderedTracks[idx]
	c.mu.Unlock()
	c.schedulePlay(tid)
}

// Seek issues an absolute seek, debounced by the Playback Driver.
func (c *Controller) Seek(pos time.Duration) { c.driver.Commands() <- playback.Seek(pos) }

// SeekBy issues a relative seek computed against the last known
// position reported by the Playback Driver.
func (c *Controller) SeekBy(delta time.Duration) {
	c.mu.RLock()
	base := c.lastPosition
	c.mu.RUnlock()
	c.driver.Commands() <- playback.Seek(base + delta)
}

// SetVolume stores v and forwards its perceptual curve (v*v) to the
// sink.
func (c *Controller) SetVolume(v float64) {
	c.mu.Lock()
	c.volume = v
	c.mu.Unlock()
	c.driver.Commands() <- playback.SetVolume(v * v)
}

// SetPlaybackMode changes the ordering strategy and recomputes the
// queue around the current track.
func (c *Controller) SetPlaybackMode(m queue.Mode) {
	c.mu.Lock()
	c.mode = m
	current, hasCurrent := c.qs.Current()
	queue.RecomputeQueue(c.lib, m, c.qs, current, hasCurrent)
	c.mu.Unlock()
}

// SetSortOrder resorts the library and recomputes the queue.
func (c *Controller) SetSortOrder(o library.SortOrder) {
	c.mu.Lock()
	c.lib.Resort(o)
	current, hasCurrent := c.qs.Current()
	queue.RecomputeQueue(c.lib, c.mode, c.qs, current, hasCurrent)
	c.mu.Unlock()
}

// SetTrackStarred updates a track's starred flag, recomputing the
// queue if the active mode is a "liked" variant.
func (c *Controller) SetTrackStarred(tid library.TrackId, starred bool) {
	c.mu.Lock()
	c.lib.SetTrackStarred(tid, starred)
	c.recomputeIfLikedLocked()
	c.mu.Unlock()
}

// SetAlbumStarred updates an album (and its owning Group)'s starred
// flag, recomputing the queue if the active mode is a "liked" variant.
func (c *Controller) SetAlbumStarred(aid library.AlbumId, starred bool) {
	c.mu.Lock()
	c.lib.SetAlbumStarred(aid, starred)
	c.recomputeIfLikedLocked()
	c.mu.Unlock()
}

// recomputeIfLikedLocked must be called with mu held.
func (c *Controller) recomputeIfLikedLocked() {
	if c.mode != queue.LikedShuffle && c.mode != queue.LikedGroupShuffle {
		return
	}
	current, hasCurrent := c.qs.Current()
	queue.RecomputeQueue(c.lib, c.mode, c.qs, current, hasCurrent)
}

// RequestLyrics spawns a catalog lookup; LyricsData is emitted on the
// event bus when it completes.
func (c *Controller) RequestLyrics(tid library.TrackId) {
	c.loader.LoadLyrics(context.Background(), tid)
}

// RequestCoverArt resolves id through the Cover-Art Cache at the given
// priority, requesting a high-res fetch if needed. targetSize of 0
// uses the server's default.
func (c *Controller) RequestCoverArt(id library.CoverArtId, priority artcache.Priority, targetSize int) []byte {
	return c.art.Get(id, priority, targetSize)
}

// Search runs a case-insensitive substring search over the library's
// precomputed "artist album title" strings.
func (c *Controller) Search(query string) []library.TrackId {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lib.Search(query)
}

// CurrentTrack returns the track at the queue's current index, if any.
func (c *Controller) CurrentTrack() (library.TrackId, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.qs.Current()
}

// Queue returns a copy of ordered_tracks and the current index.
func (c *Controller) Queue() ([]library.TrackId, int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]library.TrackId, len(c.qs.OrderedTracks))
	copy(out, c.qs.OrderedTracks)
	return out, c.qs.CurrentIndex
}

// ScrobbleInfo resolves a track id into the metadata the scrobbling
// manager submits; pass it as the manager's TrackInfoFunc.
func (c *Controller) ScrobbleInfo(id library.TrackId) (scrobbling.ScrobbleTrack, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.lib.Track(id)
	if !ok {
		return scrobbling.ScrobbleTrack{}, false
	}
	info := scrobbling.ScrobbleTrack{
		ID:          id,
		Artist:      t.Artist,
		Title:       t.Title,
		Duration:    t.Duration,
		TrackNumber: t.Number,
	}
	if g, ok := c.lib.GroupForTrack(id); ok {
		info.Album = g.Album
		info.AlbumArtist = g.Artist
		if info.Artist == "" {
			info.Artist = g.Artist
		}
	}
	return info, true
}
