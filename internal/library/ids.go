// Package library holds the in-memory catalog snapshot: tracks, albums,
// groups, and the search/sort indices built over them.
package library

// TrackId, AlbumId, ArtistId and CoverArtId are opaque string handles.
// Equality and hashing are by exact byte content.
type (
	TrackId    string
	AlbumId    string
	ArtistId   string
	CoverArtId string
)
