package engine

import (
	"context"

	"golang.org/x/sync/errgroup"

	"playbackengine/internal/catalog"
	"playbackengine/internal/events"
	"playbackengine/internal/library"
)

const (
	albumPageSize  = 500
	searchPageSize = 500
)

// PopulateFromCatalog performs the initial library fetch: all albums,
// all tracks, and all artists (for their sort names), then populates
// the library and emits LibraryPopulated. The three listings page
// independently, so they run concurrently.
//
// Any failure records InitialFetchFailed and leaves the library
// untouched; the fetch is not retried automatically, but the caller
// may invoke this again after clearing the error.
func (c *Controller) PopulateFromCatalog(ctx context.Context, onProgress func(fetched int)) error {
	var (
		albumRecords  []catalog.AlbumID3
		songRecords   []catalog.SongID3
		artistRecords []catalog.ArtistID3
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		offset := 0
		for {
			page, err := c.catalogClient.GetAlbumList2(gctx, "alphabeticalByName", albumPageSize, offset)
			if err != nil {
				return err
			}
			if len(page) == 0 {
				return nil
			}
			albumRecords = append(albumRecords, page...)
			offset += len(page)
		}
	})

	g.Go(func() error {
		offset := 0
		for {
			res, err := c.catalogClient.Search3(gctx, catalog.Search3Params{
				Query:      "",
				SongCount:  searchPageSize,
				SongOffset: offset,
			})
			if err != nil {
				return err
			}
			if len(res.Song) == 0 {
				return nil
			}
			songRecords = append(songRecords, res.Song...)
			offset += len(res.Song)
			if onProgress != nil {
				onProgress(offset)
			}
		}
	})

	g.Go(func() error {
		offset := 0
		for {
			res, err := c.catalogClient.Search3(gctx, catalog.Search3Params{
				Query:        "",
				ArtistCount:  searchPageSize,
				ArtistOffset: offset,
			})
			if err != nil {
				return err
			}
			if len(res.Artist) == 0 {
				return nil
			}
			artistRecords = append(artistRecords, res.Artist...)
			offset += len(res.Artist)
		}
	})

	if err := g.Wait(); err != nil {
		c.setError(&events.InitialFetchFailedError{Err: err})
		return err
	}

	tracks, albums, sortNames, formats := convertCatalogRecords(songRecords, albumRecords, artistRecords)
	c.Populate(tracks, albums, sortNames, formats)
	return nil
}

func convertCatalogRecords(songs []catalog.SongID3, albumList []catalog.AlbumID3, artists []catalog.ArtistID3) (
	[]*library.Track,
	map[library.AlbumId]*library.Album,
	map[library.ArtistId]string,
	map[library.TrackId]string,
) {
	albums := make(map[library.AlbumId]*library.Album, len(albumList))
	for _, a := range albumList {
		albums[library.AlbumId(a.ID)] = &library.Album{
			ID:         library.AlbumId(a.ID),
			Name:       a.Name,
			Artist:     a.Artist,
			ArtistID:   library.ArtistId(a.ArtistID),
			CoverArt:   library.CoverArtId(a.CoverArt),
			TrackCount: a.SongCount,
			Duration:   a.Duration,
			Year:       a.Year,
			Genre:      a.Genre,
			Starred:    a.Starred != nil,
			Created:    a.Created.UTC().Format("2006-01-02T15:04:05Z"),
		}
	}

	tracks := make([]*library.Track, 0, len(songs))
	formats := make(map[library.TrackId]string, len(songs))
	for _, s := range songs {
		tracks = append(tracks, &library.Track{
			ID:       library.TrackId(s.ID),
			Title:    s.Title,
			Artist:   s.Artist,
			Number:   s.Track,
			Disc:     s.DiscNumber,
			Year:     s.Year,
			Duration: s.Duration,
			Genre:    s.Genre,
			AlbumID:  library.AlbumId(s.AlbumID),
			Starred:  s.Starred != nil,
		})
		if s.Suffix != "" {
			formats[library.TrackId(s.ID)] = s.Suffix
		}
	}

	sortNames := make(map[library.ArtistId]string, len(artists))
	for _, a := range artists {
		if a.SortName != "" {
			sortNames[library.ArtistId(a.ID)] = a.SortName
		}
	}

	return tracks, albums, sortNames, formats
}
