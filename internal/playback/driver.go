// Package playback is the playback driver: a single dedicated
// goroutine that owns the audio sink, consumes a command channel, and
// emits playback events. Gapless advancement detection, position
// throttling, and seek debouncing all live here; nothing else touches
// the sink.
package playback

import (
	"bytes"
	"time"

	"playbackengine/internal/events"
	"playbackengine/internal/library"
	"playbackengine/internal/sink"
)

const (
	idleSleep        = 10 * time.Millisecond
	positionInterval = 250 * time.Millisecond
	seekDebounce     = 250 * time.Millisecond
)

// LoadMode selects how a newly loaded track should start.
type LoadMode struct {
	Play     bool          // false means Paused(Position)
	Position time.Duration // meaningful only when Play is false
}

// Command is the sum of messages the driver accepts.
type Command struct {
	Kind CommandKind

	LoadTrack  *LoadTrackCmd
	AppendNext *AppendNextCmd
	Seek       *SeekCmd
	SetVolume  *SetVolumeCmd
}

type CommandKind int

const (
	CmdLoadTrack CommandKind = iota
	CmdAppendNextTrack
	CmdTogglePlayback
	CmdPlay
	CmdPause
	CmdStopPlayback
	CmdSeek
	CmdSetVolume
)

type LoadTrackCmd struct {
	TrackID library.TrackId
	Bytes   []byte
	Format  string
	Mode    LoadMode
}

type AppendNextCmd struct {
	TrackID library.TrackId
	Bytes   []byte
	Format  string
}

type SeekCmd struct{ Position time.Duration }
type SetVolumeCmd struct{ Volume float64 }

func LoadTrack(id library.TrackId, data []byte, format string, mode LoadMode) Command {
	return Command{Kind: CmdLoadTrack, LoadTrack: &LoadTrackCmd{TrackID: id, Bytes: data, Format: format, Mode: mode}}
}
func AppendNextTrack(id library.TrackId, data []byte, format string) Command {
	return Command{Kind: CmdAppendNextTrack, AppendNext: &AppendNextCmd{TrackID: id, Bytes: data, Format: format}}
}
func TogglePlayback() Command { return Command{Kind: CmdTogglePlayback} }
func Play() Command { return Command{Kind: CmdPlay} }
func Pause() Command { return Command{Kind: CmdPause} }
func StopPlayback() Command { return Command{Kind: CmdStopPlayback} }
func Seek(pos time.Duration) Command { return Command{Kind: CmdSeek, Seek: &SeekCmd{Position: pos}} }
func SetVolume(v float64) Command { return Command{Kind: CmdSetVolume, SetVolume: &SetVolumeCmd{Volume: v}} }

// Driver owns the Sink and runs on its own goroutine; it must only be
// driven through Commands(), never called into directly.
type Driver struct {
	sink sink.Sink
	bus  *events.Bus

	commands chan Command
	quit     chan struct{}

	state        events.PlaybackState
	queuedTracks []library.TrackId
	lastTrackID  library.TrackId
	hasLast      bool

	lastSeekAt     time.Time
	hasLastSeek    bool
	lastPositionAt time.Time
}

// NewDriver constructs a Driver over the given Sink, publishing events
// on bus. Call Run in its own goroutine.
func NewDriver(s sink.Sink, bus *events.Bus) *Driver {
	return &Driver{
		sink:     s,
		bus:      bus,
		commands: make(chan Command, 64),
		quit:     make(chan struct{}),
		state:    events.Stopped,
	}
}

// Commands returns the channel callers send Commands on.
func (d *Driver) Commands() chan<- Command { return d.commands }

// Stop terminates Run's loop.
func (d *Driver) Stop() { close(d.quit) }

// Run is the driver's serial loop: drain pending commands
// non-blockingly, then do gapless/position bookkeeping, then sleep.
// Must run on its own goroutine for the lifetime of the Driver.
func (d *Driver) Run() {
	for {
		select {
		case <-d.quit:
			return
		default:
		}

	drainLoop:
		for {
			select {
			case cmd := <-d.commands:
				d.handle(cmd)
			default:
				break drainLoop
			}
		}

		d.detectGaplessAdvance()
		d.detectEndOfPlayback()
		d.emitPositionIfDue()

		time.Sleep(idleSleep)
	}
}

func (d *Driver) handle(cmd Command) {
	switch cmd.Kind {
	case CmdLoadTrack:
		d.handleLoadTrack(cmd.LoadTrack)
	case CmdAppendNextTrack:
		d.handleAppendNext(cmd.AppendNext)
	case CmdTogglePlayback:
		if d.sink.Paused() {
			d.sink.Play()
			d.setState(events.Playing)
		} else {
			d.sink.Pause()
			d.setState(events.Paused)
		}
	case CmdPlay:
		d.sink.Play()
		d.setState(events.Playing)
	case CmdPause:
		d.sink.Pause()
		d.setState(events.Paused)
	case CmdStopPlayback:
		d.sink.Pause()
		_ = d.sink.Seek(0)
		d.setState(events.Stopped)
		if d.hasLast {
			d.bus.Publish(events.PositionChanged(d.lastTrackID, 0))
		}
	case CmdSeek:
		d.handleSeek(cmd.Seek.Position)
	case CmdSetVolume:
		d.sink.SetVolume(cmd.SetVolume.Volume)
	}
}

func (d *Driver) handleLoadTrack(c *LoadTrackCmd) {
	d.sink.Drain()
	d.queuedTracks = nil

	decoder, pcm, err := sink.NewDecoder(c.Format, bytes.NewReader(c.Bytes))
	if err != nil {
		d.bus.Publish(events.TrackStarted(c.TrackID, 0))
		d.setState(events.Stopped)
		d.bus.Publish(events.FailedToPlayTrack(c.TrackID, err.Error()))
		return
	}
	if err := d.sink.Append(string(c.TrackID), pcm, decoder.SampleRate(), decoder.Channels()); err != nil {
		d.bus.Publish(events.TrackStarted(c.TrackID, 0))
		d.setState(events.Stopped)
		d.bus.Publish(events.FailedToPlayTrack(c.TrackID, err.Error()))
		return
	}

	d.queuedTracks = []library.TrackId{c.TrackID}
	d.lastTrackID = c.TrackID
	d.hasLast = true

	if c.Mode.Play {
		d.sink.Play()
		d.bus.Publish(events.TrackStarted(c.TrackID, 0))
		d.setState(events.Playing)
	} else {
		d.sink.Pause()
		_ = d.sink.Seek(c.Mode.Position)
		d.bus.Publish(events.TrackStarted(c.TrackID, c.Mode.Position))
		d.setState(events.Paused)
	}
}

func (d *Driver) handleAppendNext(c *AppendNextCmd) {
	decoder, pcm, err := sink.NewDecoder(c.Format, bytes.NewReader(c.Bytes))
	if err != nil {
		d.bus.Publish(events.FailedToPlayTrack(c.TrackID, err.Error()))
		return
	}
	if err := d.sink.Append(string(c.TrackID), pcm, decoder.SampleRate(), decoder.Channels()); err != nil {
		d.bus.Publish(events.FailedToPlayTrack(c.TrackID, err.Error()))
		return
	}
	d.queuedTracks = append(d.queuedTracks, c.TrackID)
}

// handleSeek applies at most one seek per debounce window; the rest
// are coalesced away.
func (d *Driver) handleSeek(pos time.Duration) {
	now := time.Now()
	if d.hasLastSeek && now.Sub(d.lastSeekAt) < seekDebounce {
		return
	}
	d.lastSeekAt = now
	d.hasLastSeek = true
	if err := d.sink.Seek(pos); err != nil {
		return
	}
	if d.hasLast {
		d.bus.Publish(events.PositionChanged(d.lastTrackID, pos))
	}
}

// detectGaplessAdvance compares the sink's reported queue length
// against the driver's own bookkeeping: a shrink means
// that many tracks finished, so we pop the front of queuedTracks and,
// if anything remains, the new front is now playing.
func (d *Driver) detectGaplessAdvance() {
	sinkLen := d.sink.Len()
	if sinkLen >= len(d.queuedTracks) {
		return
	}
	finished := len(d.queuedTracks) - sinkLen
	if finished > len(d.queuedTracks) {
		finished = len(d.queuedTracks)
	}
	d.queuedTracks = d.queuedTracks[finished:]

	if len(d.queuedTracks) > 0 {
		newFront := d.queuedTracks[0]
		d.lastTrackID = newFront
		d.hasLast = true
		d.bus.Publish(events.TrackStarted(newFront, d.sink.Position()))
	}
}

// detectEndOfPlayback fires TrackEnded once the sink has nothing left
// queued while the driver still believes it is playing.
func (d *Driver) detectEndOfPlayback() {
	if d.state == events.Playing && d.sink.Empty() {
		d.queuedTracks = nil
		d.setState(events.Stopped)
		d.bus.Publish(events.TrackEnded())
	}
}

// emitPositionIfDue publishes a PositionChanged at most once every
// positionInterval while playing.
func (d *Driver) emitPositionIfDue() {
	if d.state != events.Playing || d.sink.Empty() || !d.hasLast {
		return
	}
	now := time.Now()
	if now.Sub(d.lastPositionAt) < positionInterval {
		return
	}
	d.lastPositionAt = now
	d.bus.Publish(events.PositionChanged(d.lastTrackID, d.sink.Position()))
}

// setState publishes unconditionally: PlaybackStateChanged accompanies
// every LoadTrack/StopPlayback/Play/Pause command even when the state
// value itself is unchanged.
func (d *Driver) setState(s events.PlaybackState) {
	d.state = s
	d.bus.Publish(events.PlaybackStateChanged(s))
}
