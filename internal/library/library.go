package library

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// collator compares names with numeric ordering and case folding so
// "Album 2" sorts before "Album 10" regardless of letter case.
var collator = collate.New(language.Und, collate.IgnoreCase, collate.Numeric)

// SortOrder selects how groups (and therefore TrackIDs) are ordered.
type SortOrder int

const (
	Alphabetical SortOrder = iota
	NewestFirst
	RecentlyAdded
)

// searchCacheSize bounds the number of distinct queries the Library
// remembers results for.
const searchCacheSize = 50

// Library is the in-memory catalog snapshot. A single reader/writer
// lock (owned by the caller, see internal/engine) protects it; Library
// itself performs no locking.
type Library struct {
	order SortOrder

	trackIDs []TrackId
	trackMap map[TrackId]*Track
	groups   []*Group
	albums   map[AlbumId]*Album

	hasLoadedAll bool

	albumToGroupIndex      map[AlbumId]int
	trackToGroupIndex      map[TrackId]int
	trackToGroupTrackIndex map[TrackId]int
	trackSearchQueries     []string // parallel to trackIDs

	searchCache      map[string][]TrackId
	searchCacheOrder []string
}

// New returns an empty library with the given default sort order.
func New(order SortOrder) *Library {
	return &Library{
		order:       order,
		trackMap:    make(map[TrackId]*Track),
		albums:      make(map[AlbumId]*Album),
		searchCache: make(map[string][]TrackId),
	}
}

// Populate replaces the library contents wholesale (the initial fetch,
// or a full refresh) and builds groups + indices via Resort.
func (l *Library) Populate(tracks []*Track, albums map[AlbumId]*Album, artistSortNames map[ArtistId]string) {
	l.trackMap = make(map[TrackId]*Track, len(tracks))
	for _, t := range tracks {
		l.trackMap[t.ID] = t
	}
	l.albums = albums

	l.groups = buildGroups(l.trackMap, albums, artistSortNames)
	l.resortLocked(l.order)
	l.hasLoadedAll = true
}

// buildGroups produces one Group per album, each holding its track ids
// in disc then track-number order; sort order is applied afterward by
// resort.
func buildGroups(trackMap map[TrackId]*Track, albums map[AlbumId]*Album, artistSortNames map[ArtistId]string) []*Group {
	tracksByAlbum := make(map[AlbumId][]TrackId)
	var albumOrder []AlbumId
	seen := make(map[AlbumId]bool)
	for id, t := range trackMap {
		tracksByAlbum[t.AlbumID] = append(tracksByAlbum[t.AlbumID], id)
		if !seen[t.AlbumID] {
			seen[t.AlbumID] = true
			albumOrder = append(albumOrder, t.AlbumID)
		}
	}
	for _, ids := range tracksByAlbum {
		sort.Slice(ids, func(i, j int) bool {
			a, b := trackMap[ids[i]], trackMap[ids[j]]
			if a.Disc != b.Disc {
				return a.Disc < b.Disc
			}
			return a.Number < b.Number
		})
	}

	groups := make([]*Group, 0, len(albumOrder))
	for _, aid := range albumOrder {
		alb, ok := albums[aid]
		if !ok {
			continue
		}
		sortName := artistSortNames[alb.ArtistID]
		groups = append(groups, &Group{
			Artist:     alb.Artist,
			SortArtist: normalizedSortArtist(alb.Artist, sortName),
			Album:      alb.Name,
			Year:       alb.Year,
			Duration:   alb.Duration,
			CoverArt:   alb.CoverArt,
			AlbumID:    alb.ID,
			Starred:    alb.Starred,
			Tracks:     tracksByAlbum[aid],
		})
	}
	return groups
}

// Resort rebuilds groups, track ids, every reverse index, and the
// search strings; it invalidates the search cache.
func (l *Library) Resort(order SortOrder) {
	l.resortLocked(order)
}

func (l *Library) resortLocked(order SortOrder) {
	l.order = order
	sort.SliceStable(l.groups, func(i, j int) bool {
		return l.lessGroup(order, l.groups[i], l.groups[j])
	})

	l.trackIDs = l.trackIDs[:0]
	l.albumToGroupIndex = make(map[AlbumId]int, len(l.groups))
	l.trackToGroupIndex = make(map[TrackId]int, len(l.trackMap))
	l.trackToGroupTrackIndex = make(map[TrackId]int, len(l.trackMap))
	l.trackSearchQueries = l.trackSearchQueries[:0]

	for gi, g := range l.groups {
		l.albumToGroupIndex[g.AlbumID] = gi
		for ti, tid := range g.Tracks {
			l.trackIDs = append(l.trackIDs, tid)
			l.trackToGroupIndex[tid] = gi
			l.trackToGroupTrackIndex[tid] = ti
			l.trackSearchQueries = append(l.trackSearchQueries, searchString(g, l.trackMap[tid]))
		}
	}

	l.searchCache = make(map[string][]TrackId)
	l.searchCacheOrder = nil
}

func searchString(g *Group, t *Track) string {
	return strings.ToLower(g.Artist + " " + g.Album + " " + t.Title)
}

func (l *Library) lessGroup(order SortOrder, a, b *Group) bool {
	switch order {
	case NewestFirst:
		if c := cmpYearDesc(a.Year, b.Year); c != 0 {
			return c < 0
		}
		if c := cmpFold(a.SortArtist, b.SortArtist); c != 0 {
			return c < 0
		}
		return cmpFold(a.Album, b.Album) < 0
	case RecentlyAdded:
		// ISO-8601 creation timestamps compare correctly as plain
		// strings, descending so the most recently added album leads.
		ca, cb := l.created(a.AlbumID), l.created(b.AlbumID)
		if ca != cb {
			return ca > cb
		}
		return cmpArtistYearAlbum(a, b) < 0
	default: // Alphabetical
		return cmpArtistYearAlbum(a, b) < 0
	}
}

func (l *Library) created(id AlbumId) string {
	if a, ok := l.albums[id]; ok {
		return a.Created
	}
	return ""
}

func cmpArtistYearAlbum(a, b *Group) int {
	if c := cmpFold(a.SortArtist, b.SortArtist); c != 0 {
		return c
	}
	if c := cmpYearAsc(a.Year, b.Year); c != 0 {
		return c
	}
	return cmpFold(a.Album, b.Album)
}

func cmpFold(a, b string) int {
	return collator.CompareString(a, b)
}

// cmpYearAsc orders ascending with an absent year (0) sorted last.
func cmpYearAsc(a, b int) int {
	if a == b {
		return 0
	}
	if a == 0 {
		return 1
	}
	if b == 0 {
		return -1
	}
	if a < b {
		return -1
	}
	return 1
}

// cmpYearDesc orders descending with an absent year (0) sorted last.
func cmpYearDesc(a, b int) int {
	if a == b {
		return 0
	}
	if a == 0 {
		return 1
	}
	if b == 0 {
		return -1
	}
	if a > b {
		return -1
	}
	return 1
}

// TrackIDs returns the library order (post-sort) of all track ids.
func (l *Library) TrackIDs() []TrackId { return l.trackIDs }

// Track looks up a track by id.
func (l *Library) Track(id TrackId) (*Track, bool) {
	t, ok := l.trackMap[id]
	return t, ok
}

// Groups returns the ordered groups.
func (l *Library) Groups() []*Group { return l.groups }

// Album looks up an album by id.
func (l *Library) Album(id AlbumId) (*Album, bool) {
	a, ok := l.albums[id]
	return a, ok
}

// GroupForTrack returns the group a track belongs to.
func (l *Library) GroupForTrack(id TrackId) (*Group, bool) {
	gi, ok := l.trackToGroupIndex[id]
	if !ok {
		return nil, false
	}
	return l.groups[gi], true
}

// GroupIndexForTrack returns the index into Groups() for a track.
func (l *Library) GroupIndexForTrack(id TrackId) (int, bool) {
	gi, ok := l.trackToGroupIndex[id]
	return gi, ok
}

// Order returns the active sort order.
func (l *Library) Order() SortOrder { return l.order }

// HasLoadedAll reports whether the initial fetch has completed.
func (l *Library) HasLoadedAll() bool { return l.hasLoadedAll }

// SetTrackStarred updates a track's starred flag.
func (l *Library) SetTrackStarred(id TrackId, starred bool) {
	if t, ok := l.trackMap[id]; ok {
		t.Starred = starred
	}
}

// SetAlbumStarred updates an album's starred flag and propagates it to
// the owning Group so liked-group orderings see it immediately.
func (l *Library) SetAlbumStarred(id AlbumId, starred bool) {
	if a, ok := l.albums[id]; ok {
		a.Starred = starred
	}
	if gi, ok := l.albumToGroupIndex[id]; ok {
		l.groups[gi].Starred = starred
	}
}

// Search performs a case-insensitive substring match over the
// precomputed "artist album title" strings, caching up to
// searchCacheSize distinct queries.
func (l *Library) Search(query string) []TrackId {
	q := strings.ToLower(query)
	if cached, ok := l.searchCache[q]; ok {
		return cached
	}

	var results []TrackId
	for i, s := range l.trackSearchQueries {
		if strings.Contains(s, q) {
			results = append(results, l.trackIDs[i])
		}
	}

	l.searchCache[q] = results
	l.searchCacheOrder = append(l.searchCacheOrder, q)
	if len(l.searchCacheOrder) > searchCacheSize {
		oldest := l.searchCacheOrder[0]
		l.searchCacheOrder = l.searchCacheOrder[1:]
		delete(l.searchCache, oldest)
	}
	return results
}
