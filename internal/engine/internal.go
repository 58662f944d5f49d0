package engine

import (
	"context"
	"time"

	"playbackengine/internal/artcache"
	"playbackengine/internal/catalog"
	"playbackengine/internal/events"
	"playbackengine/internal/library"
	"playbackengine/internal/loader"
	"playbackengine/internal/playback"
	"playbackengine/internal/queue"
)

// schedulePlay makes tid the current load target under a fresh request
// id, then either plays it straight from the audio cache or starts a
// network load, and tops up the cache window either way.
func (c *Controller) schedulePlay(tid library.TrackId) {
	c.mu.Lock()
	c.loading = true
	c.qs.CurrentTarget = tid
	c.qs.HasCurrentTarget = true
	reqID := c.qs.NextRequestID()
	c.qs.CurrentTargetRequest = reqID
	c.qs.HasNextTrackAppended = false
	format := c.formats[tid]
	cached, cachedOK := c.cache.Get(tid)
	if !cachedOK {
		c.cache.MarkPending(tid, reqID)
	}
	c.mu.Unlock()

	if cachedOK {
		c.driver.Commands() <- playback.LoadTrack(tid, cached, format, playback.LoadMode{Play: true})
	} else {
		c.loader.LoadTrack(context.Background(), tid, reqID, loader.BehaviorPlay, format, 0)
	}
	c.ensureCacheWindow()
}

// scheduleNextTrack advances current_index per the active mode's
// navigation and schedules the resulting track.
func (c *Controller) scheduleNextTrack() {
	c.mu.Lock()
	length := c.qs.Len()
	if length == 0 {
		c.mu.Unlock()
		return
	}
	idx, ok := queue.NextIndex(c.qs.CurrentIndex, length)
	if !ok {
		c.mu.Unlock()
		return
	}
	c.qs.CurrentIndex = idx
	tid := c.qs.OrderedTracks[idx]
	c.mu.Unlock()

	c.schedulePlay(tid)
}

// handleTrackEndAdvance reacts to TrackEnded: RepeatOne restarts the
// current track, every other mode advances.
func (c *Controller) handleTrackEndAdvance() {
	c.mu.RLock()
	mode := c.mode
	c.mu.RUnlock()

	if mode == queue.RepeatOne {
		c.mu.RLock()
		tid, ok := c.qs.Current()
		c.mu.RUnlock()
		if ok {
			c.schedulePlay(tid)
		}
		return
	}
	c.scheduleNextTrack()
}

// handleTrackStarted reacts to the Playback Driver confirming a track
// is audible: it clears the loading indicator, and when the started
// track is the one gaplessly appended at the next queue index it moves
// the queue's current position onto it so the cache window slides and
// the track after it can be appended in turn.
func (c *Controller) handleTrackStarted(tid library.TrackId, pos time.Duration) {
	c.mu.Lock()
	if c.qs.HasCurrentTarget && c.qs.CurrentTarget == tid && pos == 0 {
		c.loading = false
	}
	if !c.qs.HasCurrentTarget || c.qs.CurrentTarget != tid {
		if length := c.qs.Len(); length > 0 {
			if idx, ok := queue.NextIndex(c.qs.CurrentIndex, length); ok && c.qs.OrderedTracks[idx] == tid {
				c.qs.CurrentIndex = idx
				c.qs.CurrentTarget = tid
				c.qs.HasCurrentTarget = true
				c.qs.HasNextTrackAppended = false
			}
		}
	}
	c.mu.Unlock()

	c.ensureCacheWindow()
	c.maybeQueueNextForGapless()
	c.preloadNextTrackSurroundingArt()
}

// preloadNextTrackSurroundingArt enqueues the cover-art ids of the
// groups surrounding the next track in the queue at NextTrack
// priority, so crossing a group boundary never shows placeholder art.
func (c *Controller) preloadNextTrackSurroundingArt() {
	c.mu.RLock()
	var ids []library.CoverArtId
	if length := c.qs.Len(); length > 0 {
		if idx, ok := queue.NextIndex(c.qs.CurrentIndex, length); ok {
			if gi, ok := c.lib.GroupIndexForTrack(c.qs.OrderedTracks[idx]); ok {
				groups := c.lib.Groups()
				for _, n := range []int{gi - 1, gi, gi + 1} {
					if n < 0 || n >= len(groups) || groups[n].CoverArt == "" {
						continue
					}
					ids = append(ids, groups[n].CoverArt)
				}
			}
		}
	}
	c.mu.RUnlock()

	for _, id := range ids {
		c.art.EnqueuePrefetch(id, artcache.NextTrack)
	}
}

// ensureCacheWindow evicts every cached track outside the window
// around the current index, then starts a cache-only load for each
// window entry that is neither cached nor already in flight.
func (c *Controller) ensureCacheWindow() {
	c.mu.Lock()
	window := queue.ComputeWindow(c.qs.OrderedTracks, c.qs.CurrentIndex, 2)
	c.cache.EvictExcept(window)

	type toLoad struct {
		id     library.TrackId
		reqID  queue.RequestID
		format string
	}
	var loads []toLoad
	for _, id := range window {
		if c.cache.Has(id) {
			continue
		}
		if _, pending := c.cache.IsPending(id); pending {
			continue
		}
		reqID := c.qs.NextRequestID()
		c.cache.MarkPending(id, reqID)
		loads = append(loads, toLoad{id: id, reqID: reqID, format: c.formats[id]})
	}
	c.mu.Unlock()

	for _, l := range loads {
		c.loader.LoadTrack(context.Background(), l.id, l.reqID, loader.BehaviorCacheOnly, l.format, 0)
	}
}

// maybeQueueNextForGapless appends the next queued track to the sink
// once its bytes are cached, recording what was appended to avoid
// doing it twice.
func (c *Controller) maybeQueueNextForGapless() {
	c.mu.Lock()
	length := c.qs.Len()
	if length == 0 {
		c.mu.Unlock()
		return
	}
	idx, ok := queue.NextIndex(c.qs.CurrentIndex, length)
	if !ok {
		c.mu.Unlock()
		return
	}
	next := c.qs.OrderedTracks[idx]
	if c.qs.HasNextTrackAppended && c.qs.NextTrackAppended == next {
		c.mu.Unlock()
		return
	}
	data, ok := c.cache.Get(next)
	if !ok {
		c.mu.Unlock()
		return
	}
	c.qs.NextTrackAppended = next
	c.qs.HasNextTrackAppended = true
	format := c.formats[next]
	c.mu.Unlock()

	c.driver.Commands() <- playback.AppendNextTrack(next, data, format)
}

// handleDriverEvent reacts to events published by the Playback Driver.
// The same bus also carries these events to public subscribers, so no
// re-publishing is needed here.
func (c *Controller) handleDriverEvent(ev events.Event) {
	switch ev.Kind {
	case events.KindTrackStarted:
		c.mu.Lock()
		c.lastPosition = ev.TrackStarted.Position
		c.mu.Unlock()
		c.handleTrackStarted(ev.TrackStarted.TrackID, ev.TrackStarted.Position)
	case events.KindPositionChanged:
		c.mu.Lock()
		c.lastPosition = ev.PositionChanged.Position
		c.mu.Unlock()
	case events.KindTrackEnded:
		c.handleTrackEndAdvance()
	case events.KindFailedToPlayTrack:
		c.setError(&events.DecodeTrackFailedError{
			TrackID: ev.FailedToPlayTrack.TrackID,
			Err:     errString(ev.FailedToPlayTrack.Err),
		})
	}
}

// handleTrackLoadResult completes a network load. Only the request id
// matching the current target's may cause audible playback changes;
// a stale response's bytes are still cached for future use.
func (c *Controller) handleTrackLoadResult(res loader.TrackLoadResult) {
	c.mu.Lock()
	c.cache.ClearPending(res.TrackID)

	if res.Err != nil {
		isCurrent := res.Behavior != loader.BehaviorCacheOnly &&
			c.qs.HasCurrentTarget && c.qs.CurrentTarget == res.TrackID &&
			c.qs.CurrentTargetRequest == res.RequestID
		c.mu.Unlock()

		if isCurrent {
			c.setError(&events.LoadTrackFailedError{TrackID: res.TrackID, Err: res.Err})
			c.mu.Lock()
			c.qs.PendingSkipAfterError = true
			c.mu.Unlock()
			c.scheduleNextTrack()
			c.mu.Lock()
			c.qs.PendingSkipAfterError = false
			c.mu.Unlock()
		} else {
			c.log.Warnf("discarding stale load failure for track %s (req %d): %v", res.TrackID, res.RequestID, res.Err)
		}
		return
	}

	c.cache.Insert(res.TrackID, res.Bytes)
	if res.Format != "" {
		c.formats[res.TrackID] = res.Format
	}

	isCurrent := c.qs.HasCurrentTarget && c.qs.CurrentTarget == res.TrackID &&
		c.qs.CurrentTargetRequest == res.RequestID
	c.mu.Unlock()

	if isCurrent {
		switch res.Behavior {
		case loader.BehaviorPlay:
			c.driver.Commands() <- playback.LoadTrack(res.TrackID, res.Bytes, res.Format, playback.LoadMode{Play: true})
		case loader.BehaviorPaused:
			c.driver.Commands() <- playback.LoadTrack(res.TrackID, res.Bytes, res.Format, playback.LoadMode{Play: false, Position: time.Duration(res.Position)})
		}
	}

	c.maybeQueueNextForGapless()
}

// handleCoverArtResult ingests a completed cover-art fetch and emits
// CoverArtLoaded or records CoverArtFetchFailed.
func (c *Controller) handleCoverArtResult(res loader.CoverArtResult) {
	if res.Err != nil {
		c.log.Warnf("cover art fetch failed for %s: %v", res.CoverArtID, res.Err)
		c.setError(&events.CoverArtFetchFailedError{CoverArtID: res.CoverArtID, Err: res.Err})
		c.art.Ingest(res)
		return
	}
	c.art.Ingest(res)
	c.bus.Publish(events.CoverArtLoaded(res.CoverArtID, res.Bytes))
}

// handleLyricsResult emits LyricsData, converting the catalog's wire
// shape into the public event shape.
func (c *Controller) handleLyricsResult(res loader.LyricsResult) {
	var lyrics *events.StructuredLyrics
	if res.Err == nil && len(res.Lyrics) > 0 {
		lyrics = convertLyrics(res.Lyrics[0])
	}
	c.bus.Publish(events.LyricsData(res.TrackID, lyrics))
}

func convertLyrics(sl catalog.StructuredLyrics) *events.StructuredLyrics {
	out := &events.StructuredLyrics{Synced: sl.Synced}
	for _, line := range sl.Line {
		out.Lines = append(out.Lines, events.LyricLine{
			Start: time.Duration(line.Start) * time.Millisecond,
			Text:  line.Value,
		})
	}
	return out
}

func errString(s string) error { return plainError(s) }

type plainError string

func (e plainError) Error() string { return string(e) }
