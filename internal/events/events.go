// Package events defines the playback event taxonomy broadcast to UI
// subscribers and the typed AppStateError sum.
package events

import (
	"time"

	"playbackengine/internal/library"
)

// PlaybackState mirrors the Playback Driver's tri-state.
type PlaybackState int

const (
	Stopped PlaybackState = iota
	Playing
	Paused
)

// Event is the sum type broadcast on the event channel. Exactly one of
// the typed fields is meaningful per Kind.
type Event struct {
	Kind Kind

	TrackStarted        *TrackStartedEvent
	PlaybackStateChange *PlaybackStateChangeEvent
	PositionChanged     *PositionChangedEvent
	FailedToPlayTrack   *FailedToPlayTrackEvent
	CoverArtLoaded      *CoverArtLoadedEvent
	LyricsData          *LyricsDataEvent
}

type Kind int

const (
	KindTrackStarted Kind = iota
	KindPlaybackStateChanged
	KindPositionChanged
	KindTrackEnded
	KindFailedToPlayTrack
	KindCoverArtLoaded
	KindLyricsData
	KindLibraryPopulated
)

type TrackStartedEvent struct {
	TrackID  library.TrackId
	Position time.Duration
}

type PlaybackStateChangeEvent struct {
	State PlaybackState
}

type PositionChangedEvent struct {
	TrackID  library.TrackId
	Position time.Duration
}

type FailedToPlayTrackEvent struct {
	TrackID library.TrackId
	Err     string
}

type CoverArtLoadedEvent struct {
	CoverArtID library.CoverArtId
	Data       []byte
}

// StructuredLyrics mirrors the catalog server's getLyricsBySongId
// shape closely enough for playback-time display.
type StructuredLyrics struct {
	Synced bool
	Lines  []LyricLine
}

type LyricLine struct {
	Start time.Duration
	Text  string
}

type LyricsDataEvent struct {
	TrackID library.TrackId
	Lyrics  *StructuredLyrics // nil if the server had none
}

func TrackStarted(id library.TrackId, pos time.Duration) Event {
	return Event{Kind: KindTrackStarted, TrackStarted: &TrackStartedEvent{TrackID: id, Position: pos}}
}

func PlaybackStateChanged(s PlaybackState) Event {
	return Event{Kind: KindPlaybackStateChanged, PlaybackStateChange: &PlaybackStateChangeEvent{State: s}}
}

func PositionChanged(id library.TrackId, pos time.Duration) Event {
	return Event{Kind: KindPositionChanged, PositionChanged: &PositionChangedEvent{TrackID: id, Position: pos}}
}

func TrackEnded() Event {
	return Event{Kind: KindTrackEnded}
}

func FailedToPlayTrack(id library.TrackId, err string) Event {
	return Event{Kind: KindFailedToPlayTrack, FailedToPlayTrack: &FailedToPlayTrackEvent{TrackID: id, Err: err}}
}

func CoverArtLoaded(id library.CoverArtId, data []byte) Event {
	return Event{Kind: KindCoverArtLoaded, CoverArtLoaded: &CoverArtLoadedEvent{CoverArtID: id, Data: data}}
}

func LyricsData(id library.TrackId, lyrics *StructuredLyrics) Event {
	return Event{Kind: KindLyricsData, LyricsData: &LyricsDataEvent{TrackID: id, Lyrics: lyrics}}
}

func LibraryPopulated() Event {
	return Event{Kind: KindLibraryPopulated}
}
