package library

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func populated(order SortOrder) *Library {
	lib := New(order)
	albums := map[AlbumId]*Album{
		"beatles-1": {ID: "beatles-1", Name: "Revolver", Artist: "The Beatles", ArtistID: "ar1", Year: 1966, Created: "2024-03-01T00:00:00Z", CoverArt: "ca1"},
		"zappa-1":   {ID: "zappa-1", Name: "Apostrophe", Artist: "Frank Zappa", ArtistID: "ar2", Year: 1974, Created: "2024-01-01T00:00:00Z", CoverArt: "ca2"},
		"abba-1":    {ID: "abba-1", Name: "Arrival", Artist: "ABBA", ArtistID: "ar3", Year: 1976, Created: "2024-02-01T00:00:00Z", CoverArt: "ca3"},
	}
	tracks := []*Track{
		{ID: "t1", Title: "Taxman", Artist: "The Beatles", AlbumID: "beatles-1", Number: 1},
		{ID: "t2", Title: "Eleanor Rigby", Artist: "The Beatles", AlbumID: "beatles-1", Number: 2},
		{ID: "t3", Title: "Cosmik Debris", Artist: "Frank Zappa", AlbumID: "zappa-1", Number: 4},
		{ID: "t4", Title: "Dancing Queen", Artist: "ABBA", AlbumID: "abba-1", Number: 2},
	}
	sortNames := map[ArtistId]string{"ar1": "Beatles, The"}
	lib.Populate(tracks, albums, sortNames)
	return lib
}

func TestPopulateBuildsGroupsAndIndices(t *testing.T) {
	lib := populated(Alphabetical)

	require.Len(t, lib.Groups(), 3)
	assert.Len(t, lib.TrackIDs(), 4)

	for _, tid := range lib.TrackIDs() {
		_, ok := lib.GroupIndexForTrack(tid)
		require.True(t, ok, "track %s missing group index", tid)
	}
	for _, g := range lib.Groups() {
		gi, ok := lib.GroupIndexForTrack(g.Tracks[0])
		require.True(t, ok)
		assert.Equal(t, g, lib.Groups()[gi])
	}
}

func TestGroupTracksInDiscAndNumberOrder(t *testing.T) {
	lib := populated(Alphabetical)
	g, ok := lib.GroupForTrack("t1")
	require.True(t, ok)
	assert.Equal(t, []TrackId{"t1", "t2"}, g.Tracks)
}

func TestAlphabeticalSortUsesSortArtist(t *testing.T) {
	lib := populated(Alphabetical)

	var artists []string
	for _, g := range lib.Groups() {
		artists = append(artists, g.Artist)
	}
	// Sort keys: "abba", "frank zappa", "the beatles, the"; the folded
	// article keeps The Beatles collating under "the".
	assert.Equal(t, []string{"ABBA", "Frank Zappa", "The Beatles"}, artists)
}

func TestNewestFirstSort(t *testing.T) {
	lib := populated(NewestFirst)

	var years []int
	for _, g := range lib.Groups() {
		years = append(years, g.Year)
	}
	assert.Equal(t, []int{1976, 1974, 1966}, years)
}

func TestRecentlyAddedSort(t *testing.T) {
	lib := populated(RecentlyAdded)

	var names []string
	for _, g := range lib.Groups() {
		names = append(names, g.Album)
	}
	// Created desc: Revolver (March), Arrival (February), Apostrophe (January).
	assert.Equal(t, []string{"Revolver", "Arrival", "Apostrophe"}, names)
}

func TestResortRebuildsIndices(t *testing.T) {
	lib := populated(Alphabetical)
	lib.Resort(NewestFirst)

	assert.Len(t, lib.TrackIDs(), 4)
	for _, tid := range lib.TrackIDs() {
		_, ok := lib.GroupIndexForTrack(tid)
		require.True(t, ok)
	}
}

func TestSearchMatchesArtistAlbumTitle(t *testing.T) {
	lib := populated(Alphabetical)

	assert.Equal(t, []TrackId{"t4"}, lib.Search("DANCING"))
	assert.Equal(t, []TrackId{"t3"}, lib.Search("cosmik"))
	assert.ElementsMatch(t, []TrackId{"t1", "t2"}, lib.Search("revolver"))
	assert.Empty(t, lib.Search("no such thing"))
}

func TestSearchCacheInvalidatedOnResort(t *testing.T) {
	lib := populated(Alphabetical)
	first := lib.Search("beatles")
	require.NotEmpty(t, first)

	lib.Resort(NewestFirst)
	second := lib.Search("beatles")
	assert.ElementsMatch(t, first, second)
}

func TestSetAlbumStarredPropagatesToGroup(t *testing.T) {
	lib := populated(Alphabetical)
	lib.SetAlbumStarred("abba-1", true)

	a, ok := lib.Album("abba-1")
	require.True(t, ok)
	assert.True(t, a.Starred)

	g, ok := lib.GroupForTrack("t4")
	require.True(t, ok)
	assert.True(t, g.Starred)
}

func TestSetTrackStarred(t *testing.T) {
	lib := populated(Alphabetical)
	lib.SetTrackStarred("t3", true)
	tr, ok := lib.Track("t3")
	require.True(t, ok)
	assert.True(t, tr.Starred)
}

func TestNormalizedSortArtist(t *testing.T) {
	cases := []struct {
		artist   string
		sortName string
		want     string
	}{
		{"The Beatles", "Beatles, The", "the beatles, the"},
		{"The Beatles", "", "the beatles"},
		{"Los Lobos", "Lobos", "los lobos"},
		{"Frank Zappa", "Zappa, Frank", "zappa, frank"},
		{"ABBA", "", "abba"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, normalizedSortArtist(tc.artist, tc.sortName), "artist %q", tc.artist)
	}
}
