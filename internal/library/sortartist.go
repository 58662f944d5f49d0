package library

import "strings"

// leadingArticles are folded onto the canonical sort-artist: "The
// Beatles" with sort name "Beatles, The" becomes "the beatles, the",
// so it keeps collating under "the".
var leadingArticles = []string{"the ", "an ", "a ", "el ", "los ", "las ", "les "}

// normalizedSortArtist computes the sort-artist for a group, lowercased:
// when the album artist starts with a recognized leading article and
// the catalog server supplies a canonical sort name via the artist
// record, the article is prefixed onto that sort name; otherwise the
// sort name alone is used when present, falling back to the album
// artist name itself.
func normalizedSortArtist(albumArtist string, artistSortName string) string {
	lower := strings.ToLower(albumArtist)
	for _, article := range leadingArticles {
		if strings.HasPrefix(lower, article) {
			if artistSortName != "" {
				return article + strings.ToLower(artistSortName)
			}
			return lower
		}
	}
	if artistSortName != "" {
		return strings.ToLower(artistSortName)
	}
	return lower
}
