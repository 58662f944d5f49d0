package catalog

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return NewClient(srv.URL, "alice", "hunter2"), srv
}

func requireAuthParams(t *testing.T, q url.Values) {
	t.Helper()
	assert.Equal(t, "alice", q.Get("u"))
	assert.Equal(t, "json", q.Get("f"))
	assert.NotEmpty(t, q.Get("c"))
	assert.NotEmpty(t, q.Get("v"))

	salt := q.Get("s")
	require.Len(t, salt, 16)
	sum := md5.Sum([]byte("hunter2" + salt))
	assert.Equal(t, hex.EncodeToString(sum[:]), q.Get("t"))
}

func TestPingSendsSaltedToken(t *testing.T) {
	var captured url.Values
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		captured = r.URL.Query()
		assert.Equal(t, "/rest/ping", r.URL.Path)
		fmt.Fprint(w, `{"subsonic-response":{"status":"ok"}}`)
	})
	defer srv.Close()

	require.NoError(t, c.Ping(context.Background()))
	requireAuthParams(t, captured)
}

func TestPingFailureSurfacesSubsonicError(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"subsonic-response":{"status":"failed","error":{"code":40,"message":"Wrong username or password"}}}`)
	})
	defer srv.Close()

	err := c.Ping(context.Background())
	require.Error(t, err)
	var subErr *SubsonicError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, 40, subErr.Code)
	assert.Equal(t, "Wrong username or password", subErr.Message)
}

func TestGetAlbumList2PagingParams(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "alphabeticalByName", q.Get("type"))
		assert.Equal(t, "500", q.Get("size"))
		assert.Equal(t, "42", q.Get("offset"))
		fmt.Fprint(w, `{"subsonic-response":{"status":"ok","albumList2":{"album":[
			{"id":"al1","name":"First","artist":"A","songCount":10,"created":"2024-01-02T03:04:05Z"}
		]}}}`)
	})
	defer srv.Close()

	// Oversized requests are clamped to the server's 500 cap.
	albums, err := c.GetAlbumList2(context.Background(), "alphabeticalByName", 9999, 42)
	require.NoError(t, err)
	require.Len(t, albums, 1)
	assert.Equal(t, "al1", albums[0].ID)
	assert.Equal(t, 10, albums[0].SongCount)
}

func TestGetAlbumParsesSongs(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "al1", r.URL.Query().Get("id"))
		fmt.Fprint(w, `{"subsonic-response":{"status":"ok","album":{
			"id":"al1","name":"First","artist":"A",
			"song":[{"id":"s1","title":"One","albumId":"al1","suffix":"flac","track":1}]
		}}}`)
	})
	defer srv.Close()

	album, err := c.GetAlbum(context.Background(), "al1")
	require.NoError(t, err)
	require.Len(t, album.Song, 1)
	assert.Equal(t, "flac", album.Song[0].Suffix)
}

func TestSearch3Params(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "", q.Get("query"))
		assert.Equal(t, "500", q.Get("songCount"))
		assert.Equal(t, "250", q.Get("songOffset"))
		fmt.Fprint(w, `{"subsonic-response":{"status":"ok","searchResult3":{
			"song":[{"id":"s1","title":"One","albumId":"al1"}],
			"artist":[{"id":"ar1","name":"A","sortName":"A, The"}]
		}}}`)
	})
	defer srv.Close()

	res, err := c.Search3(context.Background(), Search3Params{SongCount: 500, SongOffset: 250})
	require.NoError(t, err)
	assert.Len(t, res.Song, 1)
	assert.Equal(t, "A, The", res.Artist[0].SortName)
}

func TestStreamReturnsRawBytes(t *testing.T) {
	audio := []byte{0xFF, 0xFB, 0x90, 0x00, 0x01, 0x02}
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/stream", r.URL.Path)
		assert.Equal(t, "t1", r.URL.Query().Get("id"))
		w.Write(audio)
	})
	defer srv.Close()

	got, err := c.Stream(context.Background(), "t1", "", 0)
	require.NoError(t, err)
	assert.Equal(t, audio, got)
}

func TestStreamDetectsFailureEnvelopeInBinaryResponse(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"subsonic-response":{"status":"failed","error":{"code":70,"message":"not found"}}}`)
	})
	defer srv.Close()

	_, err := c.Stream(context.Background(), "missing", "", 0)
	require.Error(t, err)
	var subErr *SubsonicError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, 70, subErr.Code)
}

func TestGetCoverArtPassesSize(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "300", r.URL.Query().Get("size"))
		w.Write([]byte{0x89, 'P', 'N', 'G'})
	})
	defer srv.Close()

	got, err := c.GetCoverArt(context.Background(), "cover1", 300)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, got)
}

func TestGetLyricsBySongId(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"subsonic-response":{"status":"ok","lyricsList":{"structuredLyrics":[
			{"synced":true,"line":[{"start":1200,"value":"hello"}]}
		]}}}`)
	})
	defer srv.Close()

	lyrics, err := c.GetLyricsBySongId(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, lyrics, 1)
	assert.True(t, lyrics[0].Synced)
	assert.Equal(t, int64(1200), lyrics[0].Line[0].Start)
	assert.Equal(t, "hello", lyrics[0].Line[0].Value)
}

func TestScrobbleSubmissionFlag(t *testing.T) {
	var submission string
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		submission = r.URL.Query().Get("submission")
		fmt.Fprint(w, `{"subsonic-response":{"status":"ok"}}`)
	})
	defer srv.Close()

	require.NoError(t, c.Scrobble(context.Background(), "t1", true))
	assert.Equal(t, "true", submission)

	require.NoError(t, c.Scrobble(context.Background(), "t1", false))
	assert.Equal(t, "", submission)
}

func TestFreshSaltPerRequest(t *testing.T) {
	salts := map[string]bool{}
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		salts[r.URL.Query().Get("s")] = true
		fmt.Fprint(w, `{"subsonic-response":{"status":"ok"}}`)
	})
	defer srv.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, c.Ping(context.Background()))
	}
	assert.Len(t, salts, 3)
}
