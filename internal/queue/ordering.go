package queue

import (
	"sort"

	"playbackengine/internal/library"
)

// ComputeFullOrdering is the pure function at the heart of the queue
// engine: given a library snapshot, a playback mode, the queue state
// (for its shuffle seeds), and the current track (if any), it produces
// the ordered track list that mode would play.
func ComputeFullOrdering(lib *library.Library, mode Mode, st *State, current library.TrackId, hasCurrent bool) []library.TrackId {
	switch mode {
	case Sequential:
		out := make([]library.TrackId, len(lib.TrackIDs()))
		copy(out, lib.TrackIDs())
		return out

	case RepeatOne:
		if hasCurrent {
			return []library.TrackId{current}
		}
		return nil

	case GroupRepeat:
		if !hasCurrent {
			return nil
		}
		g, ok := lib.GroupForTrack(current)
		if !ok {
			return nil
		}
		out := make([]library.TrackId, len(g.Tracks))
		copy(out, g.Tracks)
		return out

	case Shuffle:
		return shuffleTracks(lib.TrackIDs(), st.ShuffleSeed, nil)

	case LikedShuffle:
		return shuffleTracks(lib.TrackIDs(), st.ShuffleSeed, func(id library.TrackId) bool {
			t, ok := lib.Track(id)
			return ok && t.Starred
		})

	case GroupShuffle:
		return shuffleGroups(lib, st.GroupShuffleSeed, nil)

	case LikedGroupShuffle:
		return shuffleGroups(lib, st.GroupShuffleSeed, func(g *library.Group) bool { return g.Starred })
	}
	return nil
}

func shuffleTracks(ids []library.TrackId, seed uint64, filter func(library.TrackId) bool) []library.TrackId {
	var filtered []library.TrackId
	for _, id := range ids {
		if filter == nil || filter(id) {
			filtered = append(filtered, id)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return shuffleKey(string(filtered[i]), seed) < shuffleKey(string(filtered[j]), seed)
	})
	return filtered
}

func shuffleGroups(lib *library.Library, seed uint64, filter func(*library.Group) bool) []library.TrackId {
	groups := lib.Groups()
	indices := make([]int, 0, len(groups))
	for i, g := range groups {
		if filter == nil || filter(g) {
			indices = append(indices, i)
		}
	}
	sort.SliceStable(indices, func(i, j int) bool {
		return shuffleKeyIndex(indices[i], seed) < shuffleKeyIndex(indices[j], seed)
	})

	var out []library.TrackId
	for _, gi := range indices {
		out = append(out, groups[gi].Tracks...)
	}
	return out
}

// RecomputeQueue rebuilds st.OrderedTracks for the given mode and sets
// CurrentIndex to the position of current. If current is not in the
// resulting ordering, it is prepended and CurrentIndex becomes 0 (it
// naturally falls out of the ordering on the next advance).
func RecomputeQueue(lib *library.Library, mode Mode, st *State, current library.TrackId, hasCurrent bool) {
	ordering := ComputeFullOrdering(lib, mode, st, current, hasCurrent)

	if hasCurrent {
		found := -1
		for i, id := range ordering {
			if id == current {
				found = i
				break
			}
		}
		if found == -1 {
			ordering = append([]library.TrackId{current}, ordering...)
			found = 0
		}
		st.OrderedTracks = ordering
		st.CurrentIndex = found
		return
	}

	st.OrderedTracks = ordering
	st.CurrentIndex = 0
}
