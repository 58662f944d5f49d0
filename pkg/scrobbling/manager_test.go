package scrobbling

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playbackengine/internal/events"
	"playbackengine/internal/library"
)

type recordingService struct {
	mu         sync.Mutex
	name       string
	err        error
	scrobbles  []ScrobbleTrack
	nowPlaying []ScrobbleTrack
}

func (r *recordingService) Name() string { return r.name }

func (r *recordingService) Scrobble(track ScrobbleTrack) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.scrobbles = append(r.scrobbles, track)
	return nil
}

func (r *recordingService) UpdateNowPlaying(track ScrobbleTrack) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.nowPlaying = append(r.nowPlaying, track)
	return nil
}

func (r *recordingService) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.nowPlaying), len(r.scrobbles)
}

func testInfo(id library.TrackId) (ScrobbleTrack, bool) {
	if id == "unknown" {
		return ScrobbleTrack{}, false
	}
	return ScrobbleTrack{ID: id, Artist: "Artist", Title: string(id), Album: "Album", Duration: 200}, true
}

func newTestManager(services ...ScrobbleService) *Manager {
	m := NewManager(testInfo, nil, services...)
	m.nowFn = func() int64 { return 1700000000 }
	return m
}

func TestQualifies(t *testing.T) {
	assert.False(t, qualifies(20, 20), "short tracks never qualify")
	assert.False(t, qualifies(200, 50), "under half")
	assert.True(t, qualifies(200, 100), "exactly half")
	assert.True(t, qualifies(1000, 240), "four minute cap")
	assert.False(t, qualifies(1000, 239))
}

func TestTrackStartedSendsNowPlaying(t *testing.T) {
	svc := &recordingService{name: "rec"}
	m := newTestManager(svc)
	defer m.Close()

	m.handleEvent(events.TrackStarted("t1", 0))

	now, scr := svc.counts()
	assert.Equal(t, 1, now)
	assert.Equal(t, 0, scr)
}

func TestQualifiedPlayScrobbledOnTrackEnd(t *testing.T) {
	svc := &recordingService{name: "rec"}
	m := newTestManager(svc)
	defer m.Close()

	m.handleEvent(events.TrackStarted("t1", 0))
	m.handleEvent(events.PositionChanged("t1", 150*time.Second))
	m.handleEvent(events.TrackEnded())

	_, scr := svc.counts()
	require.Equal(t, 1, scr)
	assert.Equal(t, library.TrackId("t1"), svc.scrobbles[0].ID)
	assert.Equal(t, int64(1700000000), svc.scrobbles[0].Timestamp)
}

func TestUnqualifiedPlayNotScrobbled(t *testing.T) {
	svc := &recordingService{name: "rec"}
	m := newTestManager(svc)
	defer m.Close()

	m.handleEvent(events.TrackStarted("t1", 0))
	m.handleEvent(events.PositionChanged("t1", 10*time.Second))
	m.handleEvent(events.TrackEnded())

	_, scr := svc.counts()
	assert.Equal(t, 0, scr)
}

func TestTrackChangeFinalizesPrevious(t *testing.T) {
	svc := &recordingService{name: "rec"}
	m := newTestManager(svc)
	defer m.Close()

	m.handleEvent(events.TrackStarted("t1", 0))
	m.handleEvent(events.PositionChanged("t1", 150*time.Second))
	m.handleEvent(events.TrackStarted("t2", 0))

	now, scr := svc.counts()
	assert.Equal(t, 2, now, "now-playing for both tracks")
	require.Equal(t, 1, scr)
	assert.Equal(t, library.TrackId("t1"), svc.scrobbles[0].ID)
}

func TestRepeatedTrackStartedIgnored(t *testing.T) {
	svc := &recordingService{name: "rec"}
	m := newTestManager(svc)
	defer m.Close()

	m.handleEvent(events.TrackStarted("t1", 0))
	m.handleEvent(events.TrackStarted("t1", 5*time.Second))

	now, _ := svc.counts()
	assert.Equal(t, 1, now)
}

func TestUnknownTrackSkipped(t *testing.T) {
	svc := &recordingService{name: "rec"}
	m := newTestManager(svc)
	defer m.Close()

	m.handleEvent(events.TrackStarted("unknown", 0))
	m.handleEvent(events.PositionChanged("unknown", 150*time.Second))
	m.handleEvent(events.TrackEnded())

	now, scr := svc.counts()
	assert.Equal(t, 0, now)
	assert.Equal(t, 0, scr)
}

func TestFailedScrobbleQueuedForRetry(t *testing.T) {
	svc := &recordingService{name: "rec", err: assert.AnError}
	m := newTestManager(svc)
	defer m.Close()

	m.Scrobble(ScrobbleTrack{ID: "t1", Artist: "A", Title: "T"})

	total, _ := m.QueueStats()
	assert.Equal(t, 1, total)
}

func TestFanoutReachesAllServices(t *testing.T) {
	a := &recordingService{name: "a"}
	b := &recordingService{name: "b"}
	m := newTestManager(a, b)
	defer m.Close()

	results := m.Scrobble(ScrobbleTrack{ID: "t1", Artist: "A", Title: "T"})
	require.Len(t, results, 2)
	for _, res := range results {
		assert.True(t, res.Success)
	}

	_, aScr := a.counts()
	_, bScr := b.counts()
	assert.Equal(t, 1, aScr)
	assert.Equal(t, 1, bScr)
}
