package queue

import "playbackengine/internal/library"

// NextIndex returns the wrap-around successor of current within a
// queue of the given length, or false if the queue is empty.
func NextIndex(current, length int) (int, bool) {
	if length == 0 {
		return 0, false
	}
	return mod(current+1, length), true
}

// PreviousIndex returns the wrap-around predecessor of current within
// a queue of the given length, or false if the queue is empty.
func PreviousIndex(current, length int) (int, bool) {
	if length == 0 {
		return 0, false
	}
	return mod(current+length-1, length), true
}

func mod(a, n int) int {
	m := a % n
	if m < 0 {
		m += n
	}
	return m
}

// groupAt reports the group index (in the library's group list) that
// ordered_tracks[i] belongs to.
func groupAt(lib *library.Library, ordered []library.TrackId, i int) (int, bool) {
	return lib.GroupIndexForTrack(ordered[i])
}

// scanToGroupBoundary scans from "from" in the given direction (+1 or
// -1), up to length steps, and returns the first index whose group
// differs from the group at "from". Returns false if the whole queue
// is one group. Grounded on queue.rs `scan_to_group_boundary`.
func scanToGroupBoundary(lib *library.Library, ordered []library.TrackId, from, direction int) (int, bool) {
	length := len(ordered)
	if length == 0 {
		return 0, false
	}
	startGroup, ok := groupAt(lib, ordered, from)
	if !ok {
		return 0, false
	}
	for step := 1; step <= length; step++ {
		idx := mod(from+direction*step, length)
		g, ok := groupAt(lib, ordered, idx)
		if !ok {
			continue
		}
		if g != startGroup {
			return idx, true
		}
	}
	return 0, false
}

// FindNextGroupStart returns the first index after current whose group
// differs from current's group, wrapping around. False if the whole
// queue is one group.
func FindNextGroupStart(lib *library.Library, ordered []library.TrackId, current int) (int, bool) {
	return scanToGroupBoundary(lib, ordered, current, 1)
}

// FindPreviousGroupStart returns the start of the previous group: if
// current is not at the start of its own group, the start of the
// current group; otherwise the start of the group before that.
// Grounded on queue.rs `find_previous_group_start`.
func FindPreviousGroupStart(lib *library.Library, ordered []library.TrackId, current int) (int, bool) {
	length := len(ordered)
	if length == 0 {
		return 0, false
	}
	boundary, ok := scanToGroupBoundary(lib, ordered, current, -1)
	if !ok {
		return 0, false
	}
	startOfCurrentGroup := mod(boundary+1, length)
	if startOfCurrentGroup != current {
		return startOfCurrentGroup, true
	}
	// current is already at the start of its group: scan back again
	// from one step before it to find the previous group's start.
	prev := mod(current-1, length)
	boundary2, ok := scanToGroupBoundary(lib, ordered, prev, -1)
	if !ok {
		return 0, false
	}
	return mod(boundary2+1, length), true
}

// ComputeWindow returns the cache window around center: the center
// index plus up to radius wrap-around predecessors and radius
// wrap-around successors, deduplicated, capped at length. Grounded on
// queue.rs `compute_window_from_queue`.
func ComputeWindow(ordered []library.TrackId, center, radius int) []library.TrackId {
	length := len(ordered)
	if length == 0 {
		return nil
	}
	seen := make(map[int]bool, 1+2*radius)
	var indices []int
	add := func(i int) {
		i = mod(i, length)
		if !seen[i] {
			seen[i] = true
			indices = append(indices, i)
		}
	}
	add(center)
	for d := 1; d <= radius; d++ {
		add(center - d)
		if len(indices) >= length {
			break
		}
	}
	for d := 1; d <= radius; d++ {
		add(center + d)
		if len(indices) >= length {
			break
		}
	}
	out := make([]library.TrackId, len(indices))
	for i, idx := range indices {
		out[i] = ordered[idx]
	}
	return out
}
