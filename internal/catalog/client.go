package catalog

import (
	"bytes"
	"context"
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	apiVersion = "1.16.1"
	clientID   = "playbackengine"
)

// Client is the catalog server HTTP client. One per configured server;
// safe for concurrent use by the Network Loader's worker pool.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
}

// NewClient returns a Client for the given server.
func NewClient(serverURL, username, password string) *Client {
	return &Client{
		baseURL:  strings.TrimSuffix(serverURL, "/"),
		username: username,
		password: password,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetTimeout overrides the default HTTP client timeout.
func (c *Client) SetTimeout(d time.Duration) { c.httpClient.Timeout = d }

// authParams generates a fresh random salt and MD5(password||salt)
// token, returning the standard query parameters every request must
// carry.
func (c *Client) authParams() (url.Values, error) {
	saltBytes := make([]byte, 8)
	if _, err := rand.Read(saltBytes); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	salt := hex.EncodeToString(saltBytes)[:16]

	sum := md5.Sum([]byte(c.password + salt))
	token := hex.EncodeToString(sum[:])

	v := url.Values{}
	v.Set("u", c.username)
	v.Set("v", apiVersion)
	v.Set("c", clientID)
	v.Set("f", "json")
	v.Set("t", token)
	v.Set("s", salt)
	return v, nil
}

func (c *Client) buildURL(endpoint string, params url.Values) (string, error) {
	auth, err := c.authParams()
	if err != nil {
		return "", err
	}
	for k, vs := range params {
		for _, v := range vs {
			auth.Add(k, v)
		}
	}
	return fmt.Sprintf("%s/rest/%s?%s", c.baseURL, endpoint, auth.Encode()), nil
}

// doJSON issues endpoint and decodes the subsonic-response envelope,
// returning a SubsonicError if status != "ok".
func (c *Client) doJSON(ctx context.Context, endpoint string, params url.Values) (*json_response, error) {
	reqURL, err := c.buildURL(endpoint, params)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building %s request: %w", endpoint, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", endpoint, err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("parsing %s response: %w", endpoint, err)
	}
	if env.SubsonicResponse.Status != "ok" {
		if env.SubsonicResponse.Error != nil {
			return nil, env.SubsonicResponse.Error
		}
		return nil, fmt.Errorf("%s failed with status %q", endpoint, env.SubsonicResponse.Status)
	}
	return &env.SubsonicResponse, nil
}

// Ping authenticates against the server. Failure is always an
// InitialFetchFailed-shaped error from the caller's point of view.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.doJSON(ctx, "ping", url.Values{})
	return err
}

// GetAlbumList2 fetches up to size (capped at the server's 500 limit)
// albums of the given type starting at offset.
func (c *Client) GetAlbumList2(ctx context.Context, listType string, size, offset int) ([]AlbumID3, error) {
	if size > 500 {
		size = 500
	}
	params := url.Values{}
	params.Set("type", listType)
	params.Set("size", strconv.Itoa(size))
	params.Set("offset", strconv.Itoa(offset))

	resp, err := c.doJSON(ctx, "getAlbumList2", params)
	if err != nil {
		return nil, err
	}
	return resp.AlbumList2.Album, nil
}

// GetAlbum fetches one album with its full song list.
func (c *Client) GetAlbum(ctx context.Context, id string) (*AlbumWithSongsID3, error) {
	params := url.Values{}
	params.Set("id", id)
	resp, err := c.doJSON(ctx, "getAlbum", params)
	if err != nil {
		return nil, err
	}
	return &resp.Album, nil
}

// Search3Params carries search3's paging knobs.
type Search3Params struct {
	Query         string
	ArtistCount   int
	ArtistOffset  int
	AlbumCount    int
	AlbumOffset   int
	SongCount     int
	SongOffset    int
	MusicFolderID string
}

// Search3 performs a catalog-side search across artists, albums, and
// songs.
func (c *Client) Search3(ctx context.Context, p Search3Params) (*SearchResult3, error) {
	params := url.Values{}
	params.Set("query", p.Query)
	params.Set("artistCount", strconv.Itoa(p.ArtistCount))
	params.Set("artistOffset", strconv.Itoa(p.ArtistOffset))
	params.Set("albumCount", strconv.Itoa(p.AlbumCount))
	params.Set("albumOffset", strconv.Itoa(p.AlbumOffset))
	params.Set("songCount", strconv.Itoa(p.SongCount))
	params.Set("songOffset", strconv.Itoa(p.SongOffset))
	if p.MusicFolderID != "" {
		params.Set("musicFolderId", p.MusicFolderID)
	}

	resp, err := c.doJSON(ctx, "search3", params)
	if err != nil {
		return nil, err
	}
	return &resp.SearchResult3, nil
}

// GetLyricsBySongId fetches the structured (possibly synced) lyrics
// for a track, if the server has any.
func (c *Client) GetLyricsBySongId(ctx context.Context, id string) ([]StructuredLyrics, error) {
	params := url.Values{}
	params.Set("id", id)
	resp, err := c.doJSON(ctx, "getLyricsBySongId", params)
	if err != nil {
		return nil, err
	}
	return resp.LyricsList.StructuredLyrics, nil
}

// fetchBinary issues endpoint and returns the raw body, detecting the
// failure envelope even when the body is ostensibly binary: any body
// whose JSON root is subsonic-response with status="failed" is a typed
// error, not audio/image bytes.
func (c *Client) fetchBinary(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	reqURL, err := c.buildURL(endpoint, params)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building %s request: %w", endpoint, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", endpoint, err)
	}

	if looksLikeFailureEnvelope(body) {
		var env envelope
		if jsonErr := json.Unmarshal(body, &env); jsonErr == nil && env.SubsonicResponse.Status == "failed" {
			if env.SubsonicResponse.Error != nil {
				return nil, env.SubsonicResponse.Error
			}
			return nil, fmt.Errorf("%s failed with status %q", endpoint, env.SubsonicResponse.Status)
		}
	}
	return body, nil
}

// looksLikeFailureEnvelope cheaply rules out the overwhelming majority
// of binary responses (JPEG/PNG magic bytes, MP3 frame sync, OggS,
// fLaC) before paying for a full JSON unmarshal attempt.
func looksLikeFailureEnvelope(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// GetCoverArt fetches cover-art bytes for id, optionally requesting a
// server-side resize via size.
func (c *Client) GetCoverArt(ctx context.Context, id string, size int) ([]byte, error) {
	params := url.Values{}
	params.Set("id", id)
	if size > 0 {
		params.Set("size", strconv.Itoa(size))
	}
	return c.fetchBinary(ctx, "getCoverArt", params)
}

// Stream fetches the encoded audio bytes for a track, optionally
// requesting transcoding (format) or a bitrate ceiling (maxBitRate).
func (c *Client) Stream(ctx context.Context, id string, format string, maxBitRate int) ([]byte, error) {
	params := url.Values{}
	params.Set("id", id)
	if format != "" {
		params.Set("format", format)
	}
	if maxBitRate > 0 {
		params.Set("maxBitRate", strconv.Itoa(maxBitRate))
	}
	return c.fetchBinary(ctx, "stream", params)
}

// Download fetches the original file without transcoding, for callers
// that prefer the download endpoint over stream; it shares stream's
// failure-envelope-in-binary parsing via fetchBinary.
func (c *Client) Download(ctx context.Context, id string) ([]byte, error) {
	params := url.Values{}
	params.Set("id", id)
	return c.fetchBinary(ctx, "download", params)
}

// Scrobble submits a now-playing or submission scrobble, used by the
// event-stream scrobble subscriber (see pkg/scrobbling).
func (c *Client) Scrobble(ctx context.Context, id string, submission bool) error {
	params := url.Values{}
	params.Set("id", id)
	if submission {
		params.Set("submission", "true")
	}
	_, err := c.doJSON(ctx, "scrobble", params)
	return err
}

// StreamURL returns a fully authenticated stream URL for id, for
// callers that want to fetch the body themselves with their own HTTP
// pipeline. The sink's decoders do not use it; they read audio-cache
// bytes.
func (c *Client) StreamURL(id string) (string, error) {
	params := url.Values{}
	params.Set("id", id)
	return c.buildURL("stream", params)
}
