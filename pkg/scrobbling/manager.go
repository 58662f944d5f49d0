// Package scrobbling submits played tracks to listen-tracking services:
// the catalog server's own scrobble endpoint, Last.fm, and
// ListenBrainz. It consumes the engine's playback event stream as one
// more subscriber and decides per track whether the play qualifies
// for submission.
package scrobbling

import (
	"context"
	"sync"
	"time"

	"playbackengine/internal/catalog"
	"playbackengine/internal/enginelog"
	"playbackengine/internal/events"
	"playbackengine/internal/library"
)

// Plays qualify for submission once half the track (or four minutes,
// whichever comes first) has been heard, and never for tracks shorter
// than 30 seconds.
const (
	minTrackSeconds   = 30
	maxQualifySeconds = 240
	retryInterval     = 5 * time.Minute
	retryBackoffSecs  = 60
	defaultMaxRetries = 3
)

// SubsonicService adapts the catalog server's scrobble endpoint to the
// ScrobbleService interface, so server-side listen tracking gets the
// same fanout/retry treatment as the external services.
type SubsonicService struct {
	client *catalog.Client
}

// NewSubsonicService wraps client's scrobble endpoint.
func NewSubsonicService(client *catalog.Client) *SubsonicService {
	return &SubsonicService{client: client}
}

func (s *SubsonicService) Name() string { return "Subsonic" }

func (s *SubsonicService) UpdateNowPlaying(track ScrobbleTrack) error {
	return s.client.Scrobble(context.Background(), string(track.ID), false)
}

func (s *SubsonicService) Scrobble(track ScrobbleTrack) error {
	return s.client.Scrobble(context.Background(), string(track.ID), true)
}

// Manager fans submissions out to every configured service and retries
// failures on a timer.
type Manager struct {
	services []ScrobbleService
	info     TrackInfoFunc
	log      *enginelog.Logger

	mutex           sync.RWMutex
	queuedScrobbles []QueuedScrobble

	ctx    context.Context
	cancel context.CancelFunc

	// playback bookkeeping for the qualification rule
	current     library.TrackId
	hasCurrent  bool
	startedAt   int64
	listenedSec int
	nowFn       func() int64
}

// NewManager creates a scrobbling manager submitting to the given
// services. info resolves track ids to metadata at submission time;
// a nil logger discards.
func NewManager(info TrackInfoFunc, logger *enginelog.Logger, services ...ScrobbleService) *Manager {
	if logger == nil {
		logger = enginelog.Discard()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		services: services,
		info:     info,
		log:      logger,
		ctx:      ctx,
		cancel:   cancel,
		nowFn:    func() int64 { return time.Now().Unix() },
	}
	go m.retryWorker()
	return m
}

// Close shuts down the scrobbling manager
func (m *Manager) Close() {
	m.cancel()
}

// Listen consumes playback events from sub until the subscription's
// channel closes or the manager is closed. Run it in its own
// goroutine alongside the engine's other subscribers.
func (m *Manager) Listen(sub *events.Subscription) {
	for {
		select {
		case <-m.ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			m.handleEvent(ev)
		}
	}
}

func (m *Manager) handleEvent(ev events.Event) {
	switch ev.Kind {
	case events.KindTrackStarted:
		started := ev.TrackStarted
		if m.hasCurrent && m.current == started.TrackID {
			return
		}
		m.finalizeCurrent()
		m.current = started.TrackID
		m.hasCurrent = true
		m.startedAt = m.nowFn()
		m.listenedSec = 0
		if track, ok := m.lookup(started.TrackID); ok {
			m.UpdateNowPlaying(track)
		}
	case events.KindPositionChanged:
		if m.hasCurrent && ev.PositionChanged.TrackID == m.current {
			m.listenedSec = int(ev.PositionChanged.Position / time.Second)
		}
	case events.KindTrackEnded:
		m.finalizeCurrent()
	}
}

// finalizeCurrent submits the play in progress if it qualifies, then
// clears it.
func (m *Manager) finalizeCurrent() {
	if !m.hasCurrent {
		return
	}
	id := m.current
	m.hasCurrent = false

	track, ok := m.lookup(id)
	if !ok {
		return
	}
	if !qualifies(track.Duration, m.listenedSec) {
		return
	}
	track.Timestamp = m.startedAt
	m.Scrobble(track)
}

func (m *Manager) lookup(id library.TrackId) (ScrobbleTrack, bool) {
	if m.info == nil {
		return ScrobbleTrack{}, false
	}
	return m.info(id)
}

func qualifies(durationSec, listenedSec int) bool {
	if durationSec < minTrackSeconds {
		return false
	}
	if listenedSec >= maxQualifySeconds {
		return true
	}
	return listenedSec*2 >= durationSec
}

// Scrobble submits a scrobble to all configured services
func (m *Manager) Scrobble(track ScrobbleTrack) []ScrobbleResult {
	results := m.fanout(track, func(s ScrobbleService) error { return s.Scrobble(track) })
	for _, result := range results {
		if !result.Success {
			m.queueForRetry(result.Track, result.Service)
		}
	}
	return results
}

// UpdateNowPlaying updates now playing status on all configured
// services; failures are not retried (the notification is transient).
func (m *Manager) UpdateNowPlaying(track ScrobbleTrack) []ScrobbleResult {
	return m.fanout(track, func(s ScrobbleService) error { return s.UpdateNowPlaying(track) })
}

func (m *Manager) fanout(track ScrobbleTrack, op func(ScrobbleService) error) []ScrobbleResult {
	var wg sync.WaitGroup
	resultsChan := make(chan ScrobbleResult, len(m.services))

	for _, svc := range m.services {
		wg.Add(1)
		go func(svc ScrobbleService) {
			defer wg.Done()
			result := ScrobbleResult{
				Service:   svc.Name(),
				Track:     track,
				Timestamp: m.nowFn(),
			}
			if err := op(svc); err != nil {
				result.Error = err
			} else {
				result.Success = true
			}
			resultsChan <- result
		}(svc)
	}

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	var results []ScrobbleResult
	for result := range resultsChan {
		results = append(results, result)
	}
	return results
}

// queueForRetry adds a failed scrobble to the retry queue
func (m *Manager) queueForRetry(track ScrobbleTrack, service string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.queuedScrobbles = append(m.queuedScrobbles, QueuedScrobble{
		Track:      track,
		Service:    service,
		Attempts:   1,
		LastTry:    m.nowFn(),
		MaxRetries: defaultMaxRetries,
	})
}

// retryWorker periodically retries failed scrobbles
func (m *Manager) retryWorker() {
	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.retryQueuedScrobbles()
		}
	}
}

func (m *Manager) serviceByName(name string) ScrobbleService {
	for _, svc := range m.services {
		if svc.Name() == name {
			return svc
		}
	}
	return nil
}

// retryQueuedScrobbles attempts to retry failed scrobbles
func (m *Manager) retryQueuedScrobbles() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var remaining []QueuedScrobble

	for _, queued := range m.queuedScrobbles {
		if queued.Attempts >= queued.MaxRetries {
			m.log.Warnf("dropping scrobble after %d attempts: %s - %s",
				queued.Attempts, queued.Track.Artist, queued.Track.Title)
			continue
		}

		if m.nowFn()-queued.LastTry < retryBackoffSecs {
			remaining = append(remaining, queued)
			continue
		}

		svc := m.serviceByName(queued.Service)
		if svc == nil {
			continue
		}
		if err := svc.Scrobble(queued.Track); err != nil {
			queued.Attempts++
			queued.LastTry = m.nowFn()
			remaining = append(remaining, queued)
			m.log.Warnf("retry failed (%d/%d): %s - %s via %s: %v",
				queued.Attempts, queued.MaxRetries,
				queued.Track.Artist, queued.Track.Title,
				queued.Service, err)
		}
	}

	m.queuedScrobbles = remaining
}

// QueueStats returns the retry queue's total size and how many entries
// have exhausted their retries.
func (m *Manager) QueueStats() (int, int) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	total := len(m.queuedScrobbles)
	failed := 0
	for _, queued := range m.queuedScrobbles {
		if queued.Attempts >= queued.MaxRetries {
			failed++
		}
	}
	return total, failed
}
