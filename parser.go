package press

// Greedy implements the greedy matching strategy: It goes from the start of
// src to the end, choosing the longest match at each position, and appends
// the resulting sequences to dst. f is reset to src first. Matches shorter
// than minLen are not used.
//
// The flate package has its own parsers, tuned for DEFLATE's costs; this one
// is for inspecting what a Finder sees.
func Greedy(dst []Match, f Finder, src []byte, minLen, depth int) []Match {
	if minLen < MinMatch {
		minLen = MinMatch
	}
	f.Reset(src)

	nextEmit := 0
	for pos := 0; pos < len(src); {
		maxLen := len(src) - pos
		if maxLen > MaxMatch {
			maxLen = MaxMatch
		}
		length, distance := f.FindLongest(pos, minLen-1, maxLen, depth)
		if length < minLen {
			pos++
			continue
		}
		dst = append(dst, Match{
			Unmatched: pos - nextEmit,
			Length:    length,
			Distance:  distance,
		})
		f.Skip(pos+1, length-1)
		pos += length
		nextEmit = pos
	}

	if nextEmit < len(src) {
		dst = append(dst, Match{
			Unmatched: len(src) - nextEmit,
		})
	}
	return dst
}

// Lazy is like Greedy, but before taking a match it checks whether the
// next position has a longer one. If it does, the current byte becomes a
// literal and the check repeats from the next position.
func Lazy(dst []Match, f Finder, src []byte, minLen, depth int) []Match {
	if minLen < MinMatch {
		minLen = MinMatch
	}
	f.Reset(src)

	nextEmit := 0
	for pos := 0; pos < len(src); {
		length, distance := f.FindLongest(pos, minLen-1, min(len(src)-pos, MaxMatch), depth)
		if length < minLen {
			pos++
			continue
		}

		for {
			nextLen, nextDistance := f.FindLongest(pos+1, length, min(len(src)-pos-1, MaxMatch), depth)
			if nextDistance == 0 {
				break
			}
			pos++
			length, distance = nextLen, nextDistance
		}

		dst = append(dst, Match{
			Unmatched: pos - nextEmit,
			Length:    length,
			Distance:  distance,
		})
		// pos+1 was inserted by the last lookahead.
		f.Skip(pos+2, length-2)
		pos += length
		nextEmit = pos
	}

	if nextEmit < len(src) {
		dst = append(dst, Match{
			Unmatched: len(src) - nextEmit,
		})
	}
	return dst
}
