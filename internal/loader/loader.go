// Package loader is the network loader and its audio cache: the
// asynchronous task pool that issues track streams, cover-art fetches,
// and lyrics lookups against the catalog server, each load tagged with
// the request id that initiated it so stale completions can be
// rejected by the caller. Cache-window prefetch loads share a
// semaphore bounding their concurrency.
package loader

import (
	"context"

	"golang.org/x/sync/semaphore"

	"playbackengine/internal/catalog"
	"playbackengine/internal/library"
	"playbackengine/internal/queue"
)

// Behavior selects what the completion of a track load should do once
// bytes are available.
type Behavior int

const (
	// BehaviorPlay: send LoadTrack(Play) to the Playback Driver if
	// still the current target.
	BehaviorPlay Behavior = iota
	// BehaviorPaused: send LoadTrack(Paused(pos)) if still current.
	BehaviorPaused
	// BehaviorCacheOnly: populate the Audio Cache only; used by the
	// cache-window prefetcher.
	BehaviorCacheOnly
)

// TrackLoadResult is delivered on Loader.TrackResults() when a stream
// fetch completes (success or failure).
type TrackLoadResult struct {
	TrackID   library.TrackId
	RequestID queue.RequestID
	Behavior  Behavior
	Position  int64 // nanoseconds, meaningful only for BehaviorPaused
	Bytes     []byte
	Format    string
	Err       error
}

// CoverArtResult is delivered on Loader.CoverArtResults().
type CoverArtResult struct {
	CoverArtID library.CoverArtId
	Bytes      []byte
	Err        error
}

// LyricsResult is delivered on Loader.LyricsResults().
type LyricsResult struct {
	TrackID library.TrackId
	Lyrics  []catalog.StructuredLyrics
	Err     error
}

// windowConcurrency bounds concurrent BehaviorCacheOnly loads.
// Play/Paused loads bypass this bound since they're urgent, not
// prefetch.
const windowConcurrency = 4

// Loader is the Network Loader: a client plus one goroutine per
// request, with cache-window loads bounded by windowSem. Safe for
// concurrent use.
type Loader struct {
	client *catalog.Client

	windowSem *semaphore.Weighted

	trackResults    chan TrackLoadResult
	coverArtResults chan CoverArtResult
	lyricsResults   chan LyricsResult
}

// New returns a Loader issuing requests through client.
func New(client *catalog.Client) *Loader {
	return &Loader{
		client:          client,
		windowSem:       semaphore.NewWeighted(windowConcurrency),
		trackResults:    make(chan TrackLoadResult, 64),
		coverArtResults: make(chan CoverArtResult, 64),
		lyricsResults:   make(chan LyricsResult, 64),
	}
}

func (l *Loader) TrackResults() <-chan TrackLoadResult   { return l.trackResults }
func (l *Loader) CoverArtResults() <-chan CoverArtResult { return l.coverArtResults }
func (l *Loader) LyricsResults() <-chan LyricsResult     { return l.lyricsResults }

// LoadTrack issues a stream fetch for id, tagging the result with
// reqID so the Controller can reject a stale completion. format is a
// hint (the track's catalog-reported suffix); position is carried
// through untouched for BehaviorPaused.
func (l *Loader) LoadTrack(ctx context.Context, id library.TrackId, reqID queue.RequestID, behavior Behavior, format string, position int64) {
	go func() {
		if behavior == BehaviorCacheOnly {
			if err := l.windowSem.Acquire(ctx, 1); err != nil {
				l.trackResults <- TrackLoadResult{TrackID: id, RequestID: reqID, Behavior: behavior, Err: err}
				return
			}
			defer l.windowSem.Release(1)
		}

		data, err := safeStream(ctx, l.client, string(id), format)
		l.trackResults <- TrackLoadResult{
			TrackID:   id,
			RequestID: reqID,
			Behavior:  behavior,
			Position:  position,
			Bytes:     data,
			Format:    format,
			Err:       err,
		}
	}()
}

// LoadCoverArt issues a getCoverArt fetch. targetSize of 0 requests
// the server's default size.
func (l *Loader) LoadCoverArt(ctx context.Context, id library.CoverArtId, targetSize int) {
	go func() {
		data, err := safeCoverArt(ctx, l.client, string(id), targetSize)
		l.coverArtResults <- CoverArtResult{CoverArtID: id, Bytes: data, Err: err}
	}()
}

// LoadLyrics issues a getLyricsBySongId fetch.
func (l *Loader) LoadLyrics(ctx context.Context, id library.TrackId) {
	go func() {
		lyrics, err := safeLyrics(ctx, l.client, string(id))
		l.lyricsResults <- LyricsResult{TrackID: id, Lyrics: lyrics, Err: err}
	}()
}

// safeStream/safeCoverArt/safeLyrics recover from panics in the HTTP
// path so a single bad response can never take down the process.

func safeStream(ctx context.Context, c *catalog.Client, id, format string) (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicErr(r)
		}
	}()
	return c.Stream(ctx, id, format, 0)
}

func safeCoverArt(ctx context.Context, c *catalog.Client, id string, size int) (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicErr(r)
		}
	}()
	return c.GetCoverArt(ctx, id, size)
}

func safeLyrics(ctx context.Context, c *catalog.Client, id string) (lyrics []catalog.StructuredLyrics, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicErr(r)
		}
	}()
	return c.GetLyricsBySongId(ctx, id)
}

type recoveredPanicError struct{ v interface{} }

func (e *recoveredPanicError) Error() string { return "loader task panicked" }

func panicErr(v interface{}) error { return &recoveredPanicError{v: v} }
