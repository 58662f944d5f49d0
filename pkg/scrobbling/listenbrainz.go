package scrobbling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const ListenBrainzAPIURL = "https://api.listenbrainz.org"

// ListenBrainzClient handles submissions to ListenBrainz
type ListenBrainzClient struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

// NewListenBrainzClient creates a new ListenBrainz client
func NewListenBrainzClient(token string) *ListenBrainzClient {
	return &ListenBrainzClient{
		token:   token,
		baseURL: ListenBrainzAPIURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetTimeout sets the HTTP client timeout
func (c *ListenBrainzClient) SetTimeout(timeout time.Duration) {
	c.httpClient.Timeout = timeout
}

// Name returns the service name.
func (c *ListenBrainzClient) Name() string { return "ListenBrainz" }

// Listen represents a single listening event
type Listen struct {
	ListenedAt    int           `json:"listened_at,omitempty"`
	TrackMetadata TrackMetadata `json:"track_metadata"`
}

// TrackMetadata contains metadata about the track
type TrackMetadata struct {
	ArtistName     string                 `json:"artist_name"`
	TrackName      string                 `json:"track_name"`
	ReleaseName    string                 `json:"release_name,omitempty"`
	AdditionalInfo map[string]interface{} `json:"additional_info,omitempty"`
}

// ListenPayload represents the payload for listen submissions
type ListenPayload struct {
	ListenType string   `json:"listen_type"`
	Listens    []Listen `json:"listens"`
}

func listenMetadata(track ScrobbleTrack) TrackMetadata {
	metadata := TrackMetadata{
		ArtistName:  track.Artist,
		TrackName:   track.Title,
		ReleaseName: track.Album,
	}
	if track.Duration > 0 || track.TrackNumber > 0 {
		metadata.AdditionalInfo = make(map[string]interface{})
		if track.Duration > 0 {
			metadata.AdditionalInfo["duration"] = track.Duration
		}
		if track.TrackNumber > 0 {
			metadata.AdditionalInfo["tracknumber"] = track.TrackNumber
		}
	}
	return metadata
}

// Scrobble submits a single listen to ListenBrainz
func (c *ListenBrainzClient) Scrobble(track ScrobbleTrack) error {
	payload := ListenPayload{
		ListenType: "single",
		Listens: []Listen{{
			ListenedAt:    int(track.Timestamp),
			TrackMetadata: listenMetadata(track),
		}},
	}
	return c.submitPayload(context.Background(), "/1/submit-listens", payload)
}

// UpdateNowPlaying submits a "playing now" notification
func (c *ListenBrainzClient) UpdateNowPlaying(track ScrobbleTrack) error {
	payload := ListenPayload{
		ListenType: "playing_now",
		Listens:    []Listen{{TrackMetadata: listenMetadata(track)}},
	}
	return c.submitPayload(context.Background(), "/1/submit-listens", payload)
}

// submitPayload sends a payload to the ListenBrainz API
func (c *ListenBrainzClient) submitPayload(ctx context.Context, endpoint string, payload ListenPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("submitting listen: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("ListenBrainz returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
