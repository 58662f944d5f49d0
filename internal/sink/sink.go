// Package sink is the audio output adapter: a thin, platform-abstract
// contract over a decoded-PCM output device exposing
// append/play/pause/seek/skip plus position/len/empty queries. Decoded
// tracks queue in order and play back-to-back, so the driver can
// append mid-playback for gapless transitions.
package sink

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

const (
	sinkSampleRate = 44100
	sinkChannels   = 2
	bytesPerSample = 2 // signed 16-bit LE
)

// Sink is the black-box audio output contract: any implementation
// supporting an in-order decoded queue with these operations suffices.
// The playback driver depends only on this interface, never on oto
// directly, so it can be faked in tests.
type Sink interface {
	Append(id string, decoded io.Reader, sampleRate, channels int) error
	Play()
	Pause()
	Seek(pos time.Duration) error
	Skip()
	Drain()
	Position() time.Duration
	Len() int
	Empty() bool
	Paused() bool
	SetVolume(v float64)
	Close() error
}

// track is one queued decoded source.
type track struct {
	id             string
	r              io.Reader
	bytesPerSecond float64
	bytesRead      int64
	done           bool
}

// OtoSink is the production Sink backed by a single long-lived
// oto.Player reading from a queueReader that multiplexes queued
// tracks back-to-back without the player ever observing EOF between
// them, the mechanism that makes gapless playback possible without
// reopening the output device.
type OtoSink struct {
	ctx    *oto.Context
	player *oto.Player
	q      *queueReader

	mu     sync.Mutex
	paused bool
}

// NewOtoSink creates the output device and starts it paused with an
// empty queue.
func NewOtoSink() (*OtoSink, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sinkSampleRate,
		ChannelCount: sinkChannels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   100 * time.Millisecond,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("creating audio context: %w", err)
	}
	<-ready

	q := newQueueReader()
	player := ctx.NewPlayer(q)

	return &OtoSink{ctx: ctx, player: player, q: q, paused: true}, nil
}

// Append enqueues a newly decoded track. The PCM is written to the
// oto context unconverted: no resampling or channel remixing is done,
// so it plays at its true speed and layout only when sampleRate and
// channels equal sinkSampleRate/sinkChannels. sampleRate and channels
// are used only to turn byte counts into positions.
func (s *OtoSink) Append(id string, decoded io.Reader, sampleRate, channels int) error {
	bps := float64(sampleRate) * float64(channels) * bytesPerSample
	s.q.push(&track{id: id, r: decoded, bytesPerSecond: bps})
	return nil
}

func (s *OtoSink) Play() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
	s.player.Play()
}

func (s *OtoSink) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
	s.player.Pause()
}

func (s *OtoSink) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Seek is best-effort: it discards bytes from the front-of-queue
// track's reader until bytesPerSecond*pos bytes in total have been
// consumed; the reader only moves forward in time and
// cannot un-read bytes already consumed.
func (s *OtoSink) Seek(pos time.Duration) error {
	return s.q.seekFront(pos)
}

// Skip drops the front-of-queue track without draining the rest.
func (s *OtoSink) Skip() { s.q.dropFront() }

// Drain clears every queued track, used when a new track replaces the
// whole queue.
func (s *OtoSink) Drain() { s.q.clear() }

// Position returns how far into the front-of-queue track playback has
// progressed.
func (s *OtoSink) Position() time.Duration { return s.q.frontPosition() }

// Len returns the number of decoded sources still queued, including
// the one currently playing.
func (s *OtoSink) Len() int { return s.q.len() }

// Empty reports whether the queue (and therefore the sink) has no more
// audio to play.
func (s *OtoSink) Empty() bool { return s.q.len() == 0 }

func (s *OtoSink) SetVolume(v float64) { s.player.SetVolume(v) }

func (s *OtoSink) Close() error {
	s.q.close()
	s.player.Close()
	return s.ctx.Suspend()
}
