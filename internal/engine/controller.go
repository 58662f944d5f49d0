// Package engine implements the Controller: the public façade that
// owns the queue state and the audio cache, holds handles to the
// playback driver and network loader, processes inbound requests from
// front-ends, and drives the cache-window prefetcher and the gapless
// append of the next track.
package engine

import (
	"context"
	"sync"
	"time"

	"playbackengine/internal/artcache"
	"playbackengine/internal/catalog"
	"playbackengine/internal/engineconfig"
	"playbackengine/internal/enginelog"
	"playbackengine/internal/events"
	"playbackengine/internal/library"
	"playbackengine/internal/loader"
	"playbackengine/internal/playback"
	"playbackengine/internal/queue"
	"playbackengine/internal/sink"
)

const tickInterval = 50 * time.Millisecond

// Controller is the Playback Engine's public façade. Apart from Run and
// PopulateFromCatalog, which block, methods are non-blocking from the
// caller's point of view: they mutate locked state and/or post to
// channels, never perform I/O inline.
type Controller struct {
	mu   sync.RWMutex
	lib  *library.Library
	qs   *queue.State
	mode queue.Mode

	cache *loader.Cache
	// formats holds the catalog-reported suffix (mp3/flac/ogg/...) per
	// track, used to pick a decoder.
	formats map[library.TrackId]string

	volume       float64
	loading      bool
	lastPosition time.Duration

	errMu   sync.Mutex
	lastErr events.AppStateError

	catalogClient *catalog.Client
	loader        *loader.Loader
	driver        *playback.Driver
	bus           *events.Bus
	art           *artcache.Cache
	log           *enginelog.Logger

	quit chan struct{}
}

// Config bundles the collaborators a Controller needs at construction.
type Config struct {
	CatalogClient    *catalog.Client
	Sink             sink.Sink
	InitialMode      queue.Mode
	InitialSort      library.SortOrder
	InitialVolume    float64
	ShuffleSeed      uint64
	GroupShuffleSeed uint64
	ArtCacheDir      string
	Logger           *enginelog.Logger // nil discards
}

// New wires a Controller: its own event bus, a Network Loader over
// client, a Playback Driver over s, and an empty library/queue/cache
// triple.
func New(cfg Config) *Controller {
	bus := events.NewBus()
	l := loader.New(cfg.CatalogClient)
	driver := playback.NewDriver(cfg.Sink, bus)
	logger := cfg.Logger
	if logger == nil {
		logger = enginelog.Discard()
	}

	c := &Controller{
		lib:           library.New(cfg.InitialSort),
		qs:            queue.NewState(cfg.ShuffleSeed, cfg.GroupShuffleSeed),
		mode:          cfg.InitialMode,
		cache:         loader.NewCache(),
		formats:       make(map[library.TrackId]string),
		volume:        cfg.InitialVolume,
		catalogClient: cfg.CatalogClient,
		loader:        l,
		driver:        driver,
		bus:           bus,
		art:           artcache.New(l, cfg.ArtCacheDir),
		log:           logger,
		quit:          make(chan struct{}),
	}
	return c
}

// Subscribe registers a new event subscriber: TrackStarted,
// PlaybackStateChanged, PositionChanged, TrackEnded,
// FailedToPlayTrack, CoverArtLoaded, LyricsData, LibraryPopulated.
func (c *Controller) Subscribe() *events.Subscription { return c.bus.Subscribe() }

// Run starts the Playback Driver goroutine and the Controller's own
// event-ingestion loop. Blocks until Stop is called; call it in its
// own goroutine.
func (c *Controller) Run() {
	go c.driver.Run()

	driverEvents := c.bus.Subscribe()
	defer driverEvents.Unsubscribe()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.quit:
			return
		case ev := <-driverEvents.Events():
			c.handleDriverEvent(ev)
		case res := <-c.loader.TrackResults():
			c.handleTrackLoadResult(res)
		case res := <-c.loader.CoverArtResults():
			c.handleCoverArtResult(res)
		case res := <-c.loader.LyricsResults():
			c.handleLyricsResult(res)
		case <-ticker.C:
			c.tick()
		}
	}
}

// Stop terminates Run and the Playback Driver.
func (c *Controller) Stop() {
	close(c.quit)
	c.driver.Stop()
}

// tick drives the cover-art cache's periodic eviction and prefetch
// drain.
func (c *Controller) tick() {
	c.art.Update()
	c.art.DrainPrefetch()
}

// Error returns the most recently recorded AppStateError, if any;
// newer failures overwrite it, nothing accumulates.
func (c *Controller) Error() events.AppStateError {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.lastErr
}

func (c *Controller) setError(err events.AppStateError) {
	c.errMu.Lock()
	c.lastErr = err
	c.errMu.Unlock()
}

// Populate loads the library wholesale (the initial fetch or a full
// refresh), recomputes the queue against the current mode, and emits
// LibraryPopulated. formats carries each track's catalog suffix for
// the decoder registry.
func (c *Controller) Populate(tracks []*library.Track, albums map[library.AlbumId]*library.Album, artistSortNames map[library.ArtistId]string, formats map[library.TrackId]string) {
	c.mu.Lock()
	c.lib.Populate(tracks, albums, artistSortNames)
	for id, f := range formats {
		c.formats[id] = f
	}
	current, hasCurrent := c.qs.Current()
	queue.RecomputeQueue(c.lib, c.mode, c.qs, current, hasCurrent)
	c.mu.Unlock()

	c.bus.Publish(events.LibraryPopulated())
}

// Volume returns the stored (pre-perceptual-curve) volume.
func (c *Controller) Volume() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.volume
}

// Loading reports whether the current target is still being fetched.
func (c *Controller) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

// PersistedSnapshot captures the state a caller should save across
// restarts.
func (c *Controller) PersistedSnapshot() *engineconfig.PersistedState {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := &engineconfig.PersistedState{
		LastPlaybackMode: int(c.mode),
		LastSortOrder:    int(c.lib.Order()),
		LastVolume:       c.volume,
	}
	if tid, ok := c.qs.Current(); ok {
		snap.LastTrackID = string(tid)
		snap.LastPositionSecs = c.lastPosition.Seconds()
	}
	return snap
}

// RestoreSession cues up a previously-persisted track paused at the
// saved position, without auto-playing.
func (c *Controller) RestoreSession(tid library.TrackId, position time.Duration) {
	c.mu.Lock()
	c.qs.CurrentTarget = tid
	c.qs.HasCurrentTarget = true
	reqID := c.qs.NextRequestID()
	c.qs.CurrentTargetRequest = reqID
	format := c.formats[tid]
	cached, ok := c.cache.Get(tid)
	if !ok {
		c.cache.MarkPending(tid, reqID)
	}
	c.mu.Unlock()

	if ok {
		c.driver.Commands() <- playback.LoadTrack(tid, cached, format, playback.LoadMode{Play: false, Position: position})
	} else {
		c.loader.LoadTrack(context.Background(), tid, reqID, loader.BehaviorPaused, format, int64(position))
	}
	c.ensureCacheWindow()
}
