package scrobbling

import (
	"errors"
	"fmt"

	"github.com/shkh/lastfm-go/lastfm"
)

// ErrNotAuthenticated is returned when an operation requires a session key.
var ErrNotAuthenticated = errors.New("not authenticated")

// LastFMClient handles submissions to Last.fm through the lastfm-go API
// wrapper.
type LastFMClient struct {
	api        *lastfm.Api
	apiKey     string
	sessionKey string
}

// NewLastFMClient creates a new Last.fm client with the given API
// credentials.
func NewLastFMClient(apiKey, secret string) *LastFMClient {
	return &LastFMClient{
		api:    lastfm.New(apiKey, secret),
		apiKey: apiKey,
	}
}

// SetSessionKey sets the authenticated session key.
func (c *LastFMClient) SetSessionKey(key string) {
	c.sessionKey = key
	c.api.SetSession(key)
}

// IsAuthenticated returns true if a session key is set.
func (c *LastFMClient) IsAuthenticated() bool {
	return c.sessionKey != ""
}

// GetToken requests an authentication token from Last.fm.
func (c *LastFMClient) GetToken() (string, error) {
	token, err := c.api.GetToken()
	if err != nil {
		return "", fmt.Errorf("get token: %w", err)
	}
	return token, nil
}

// GetAuthURL returns the URL for user authorization (desktop auth flow).
func (c *LastFMClient) GetAuthURL(token string) string {
	return fmt.Sprintf("https://www.last.fm/api/auth/?api_key=%s&token=%s", c.apiKey, token)
}

// GetSession exchanges an authorized token for a session key.
func (c *LastFMClient) GetSession(token string) (string, error) {
	if err := c.api.LoginWithToken(token); err != nil {
		return "", fmt.Errorf("get session: %w", err)
	}
	c.sessionKey = c.api.GetSessionKey()
	return c.sessionKey, nil
}

// Name returns the service name.
func (c *LastFMClient) Name() string { return "Last.fm" }

func (c *LastFMClient) params(track ScrobbleTrack) lastfm.P {
	params := lastfm.P{
		"artist": track.Artist,
		"track":  track.Title,
	}
	if track.Album != "" {
		params["album"] = track.Album
	}
	if track.AlbumArtist != "" && track.AlbumArtist != track.Artist {
		params["albumArtist"] = track.AlbumArtist
	}
	if track.Duration > 0 {
		params["duration"] = track.Duration
	}
	if track.TrackNumber > 0 {
		params["trackNumber"] = track.TrackNumber
	}
	return params
}

// UpdateNowPlaying sends a "now playing" notification to Last.fm.
func (c *LastFMClient) UpdateNowPlaying(track ScrobbleTrack) error {
	if !c.IsAuthenticated() {
		return ErrNotAuthenticated
	}
	if _, err := c.api.Track.UpdateNowPlaying(c.params(track)); err != nil {
		return fmt.Errorf("update now playing: %w", err)
	}
	return nil
}

// Scrobble submits a track play to Last.fm.
func (c *LastFMClient) Scrobble(track ScrobbleTrack) error {
	if !c.IsAuthenticated() {
		return ErrNotAuthenticated
	}
	params := c.params(track)
	params["timestamp"] = track.Timestamp
	if _, err := c.api.Track.Scrobble(params); err != nil {
		return fmt.Errorf("scrobble: %w", err)
	}
	return nil
}
