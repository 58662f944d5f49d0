package events

import "playbackengine/internal/library"

// AppStateError is the typed error sum surfaced to callers; never
// stringly typed. Each concrete type implements error.
type AppStateError interface {
	error
	appStateError()
}

// InitialFetchFailedError: network or auth error during library
// population. Recoverable by retry; user-visible banner.
type InitialFetchFailedError struct{ Err error }

func (e *InitialFetchFailedError) Error() string  { return "initial library fetch failed: " + e.Err.Error() }
func (*InitialFetchFailedError) appStateError()   {}

// CoverArtFetchFailedError: recorded, does not affect playback.
type CoverArtFetchFailedError struct {
	CoverArtID library.CoverArtId
	Err        error
}

func (e *CoverArtFetchFailedError) Error() string {
	return "cover art fetch failed for " + string(e.CoverArtID) + ": " + e.Err.Error()
}
func (*CoverArtFetchFailedError) appStateError() {}

// LoadTrackFailedError: one track could not be streamed. Sets
// pending_skip_after_error; playback advances.
type LoadTrackFailedError struct {
	TrackID library.TrackId
	Err     error
}

func (e *LoadTrackFailedError) Error() string {
	return "load track failed for " + string(e.TrackID) + ": " + e.Err.Error()
}
func (*LoadTrackFailedError) appStateError() {}

// DecodeTrackFailedError: bytes were fetched but the decoder rejected
// them.
type DecodeTrackFailedError struct {
	TrackID library.TrackId
	Err     error
}

func (e *DecodeTrackFailedError) Error() string {
	return "decode track failed for " + string(e.TrackID) + ": " + e.Err.Error()
}
func (*DecodeTrackFailedError) appStateError() {}
