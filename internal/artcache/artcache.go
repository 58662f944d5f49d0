// Package artcache is the cover-art cache: a priority- and
// timeout-evicted in-memory map from cover-art id to bytes, backed by
// a small persistent low-resolution thumbnail sidecar on disk so
// scrolling through a cold library still shows something immediately.
package artcache

import (
	"bytes"
	"context"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // catalog servers may serve webp covers

	"playbackengine/internal/library"
	"playbackengine/internal/loader"
)

// Priority is the request urgency for a cover-art id; higher values
// are preferred survivors under eviction pressure.
type Priority int

const (
	Transient Priority = iota
	NextTrack
	Visible
)

// State is the lifecycle of one cache entry.
type State int

const (
	Unloaded State = iota
	Loading
	LoadedLowRes
	LoadingWithLowRes
	Loaded
)

type entry struct {
	firstRequested time.Time
	lastRequested  time.Time
	state          State
	priority       Priority
	data           []byte
}

const (
	sidecarDirName  = "album-art-cache"
	sidecarSize     = 16
	sidecarBlurR    = 1.0
	loadDebounce    = 100 * time.Millisecond
	defaultTimeout  = 15 * time.Second
	defaultMaxItems = 75
)

// Cache is the cover-art cache. Owned and driven by the Controller's
// tick loop.
type Cache struct {
	mu sync.Mutex

	entries map[library.CoverArtId]*entry
	loader  *loader.Loader

	maxSize int
	timeout time.Duration
	now     func() time.Time

	sidecarDir string

	prefetchQueue []prefetchRequest
}

type prefetchRequest struct {
	id       library.CoverArtId
	priority Priority
}

// New returns a Cover-Art Cache issuing high-res fetches through l and
// persisting low-res sidecars under dir/album-art-cache.
func New(l *loader.Loader, sidecarParentDir string) *Cache {
	return &Cache{
		entries:    make(map[library.CoverArtId]*entry),
		loader:     l,
		maxSize:    defaultMaxItems,
		timeout:    defaultTimeout,
		now:        time.Now,
		sidecarDir: filepath.Join(sidecarParentDir, sidecarDirName),
	}
}

// SetLimits overrides the default eviction timeout and max cache size.
func (c *Cache) SetLimits(maxSize int, timeout time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxSize = maxSize
	c.timeout = timeout
}

// Get refreshes the entry for id, attempts the disk sidecar on a cold
// Unloaded entry, and kicks off a high-res fetch once the debounce
// window has passed (fast scrolling never requests). Returns the best
// currently-available bytes, which may be nil.
func (c *Cache) Get(id library.CoverArtId, priority Priority, targetSize int) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	e, ok := c.entries[id]
	if !ok {
		e = &entry{firstRequested: now, state: Unloaded, priority: priority}
		c.entries[id] = e
	}
	e.lastRequested = now
	if priority > e.priority {
		e.priority = priority
	}

	if e.state == Unloaded {
		if data, ok := c.readSidecar(id); ok {
			e.data = data
			e.state = LoadedLowRes
		}
	}

	if now.Sub(e.firstRequested) >= loadDebounce && (e.state == Unloaded || e.state == LoadedLowRes) {
		if e.state == Unloaded {
			e.state = Loading
		} else {
			e.state = LoadingWithLowRes
		}
		c.loader.LoadCoverArt(context.Background(), id, targetSize)
	}

	return e.data
}

// Ingest processes one completed high-res fetch, transitioning the
// entry to Loaded and scheduling an async sidecar write.
func (c *Cache) Ingest(res loader.CoverArtResult) {
	c.mu.Lock()
	e, ok := c.entries[res.CoverArtID]
	if !ok {
		c.mu.Unlock()
		return
	}
	if res.Err != nil {
		// Recorded by the caller (Controller) as CoverArtFetchFailed;
		// revert to a state that permits a future retry.
		if e.state == LoadingWithLowRes {
			e.state = LoadedLowRes
		} else {
			e.state = Unloaded
		}
		c.mu.Unlock()
		return
	}
	e.data = res.Bytes
	e.state = Loaded
	dir := c.sidecarDir
	c.mu.Unlock()

	go writeSidecar(dir, res.CoverArtID, res.Bytes)
}

// Update evicts entries whose last_requested is older than the
// configured timeout, then (if still over max_size) evicts lowest
// priority then oldest first_requested, never evicting Visible.
// Returns the evicted ids so the caller can forget derived resources.
func (c *Cache) Update() []library.CoverArtId {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var evicted []library.CoverArtId
	for id, e := range c.entries {
		if e.priority != Visible && now.Sub(e.lastRequested) > c.timeout {
			evicted = append(evicted, id)
			delete(c.entries, id)
		}
	}

	if len(c.entries) > c.maxSize {
		type candidate struct {
			id library.CoverArtId
			e  *entry
		}
		var candidates []candidate
		for id, e := range c.entries {
			if e.priority == Visible {
				continue
			}
			candidates = append(candidates, candidate{id, e})
		}
		sort.Slice(candidates, func(i, j int) bool {
			if candidates[i].e.priority != candidates[j].e.priority {
				return candidates[i].e.priority < candidates[j].e.priority
			}
			return candidates[i].e.firstRequested.Before(candidates[j].e.firstRequested)
		})
		over := len(c.entries) - c.maxSize
		for i := 0; i < over && i < len(candidates); i++ {
			delete(c.entries, candidates[i].id)
			evicted = append(evicted, candidates[i].id)
		}
	}

	return evicted
}

// EnqueuePrefetch adds id to the background prefetch queue, drained at
// most one per Controller tick.
func (c *Cache) EnqueuePrefetch(id library.CoverArtId, priority Priority) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prefetchQueue = append(c.prefetchQueue, prefetchRequest{id: id, priority: priority})
}

// DrainPrefetch services at most one queued prefetch request.
func (c *Cache) DrainPrefetch() {
	c.mu.Lock()
	if len(c.prefetchQueue) == 0 {
		c.mu.Unlock()
		return
	}
	next := c.prefetchQueue[0]
	c.prefetchQueue = c.prefetchQueue[1:]
	c.mu.Unlock()

	c.Get(next.id, next.priority, 0)
}

func sidecarFilename(id library.CoverArtId) string {
	name := string(id)
	for _, ch := range []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|"} {
		name = strings.ReplaceAll(name, ch, "_")
	}
	return name + ".png"
}

func (c *Cache) readSidecar(id library.CoverArtId) ([]byte, bool) {
	path := filepath.Join(c.sidecarDir, sidecarFilename(id))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return data, true
}

// writeSidecar resizes+blurs highRes into a 16x16 thumbnail and writes
// it under dir, skipping the write if the sidecar already exists.
func writeSidecar(dir string, id library.CoverArtId, highRes []byte) {
	path := filepath.Join(dir, sidecarFilename(id))
	if _, err := os.Stat(path); err == nil {
		return
	}

	img, _, err := image.Decode(bytes.NewReader(highRes))
	if err != nil {
		return
	}
	thumb := imaging.Resize(img, sidecarSize, sidecarSize, imaging.Lanczos)
	thumb = imaging.Blur(thumb, sidecarBlurR)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return
	}
	f, err := os.Create(path)
	if err != nil {
		return
	}
	defer f.Close()
	_ = png.Encode(f, thumb)
}
