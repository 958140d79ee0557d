package press

import "strconv"

// A TextEncoder produces a human-readable representation of the LZ77 stage
// of compression. Matches are replaced with <Length,Distance> symbols.
type TextEncoder struct {
	// MaxLiteralRun, if positive, abbreviates longer literal runs to their
	// first MaxLiteralRun bytes followed by "...".
	MaxLiteralRun int
}

// Encode appends the text form of matches, which describe src, to dst.
func (t TextEncoder) Encode(dst []byte, src []byte, matches []Match) []byte {
	pos := 0
	for _, m := range matches {
		if m.Unmatched > 0 {
			lits := src[pos : pos+m.Unmatched]
			if t.MaxLiteralRun > 0 && len(lits) > t.MaxLiteralRun {
				dst = append(dst, lits[:t.MaxLiteralRun]...)
				dst = append(dst, "..."...)
			} else {
				dst = append(dst, lits...)
			}
			pos += m.Unmatched
		}
		if m.Length > 0 {
			dst = append(dst, '<')
			dst = strconv.AppendInt(dst, int64(m.Length), 10)
			dst = append(dst, ',')
			dst = strconv.AppendInt(dst, int64(m.Distance), 10)
			dst = append(dst, '>')
			pos += m.Length
		}
	}
	if pos < len(src) {
		dst = append(dst, src[pos:]...)
	}
	return dst
}

// Expand reconstructs the data described by matches and literals from src,
// appending it to dst. It is the inverse of the match finding stage, and
// panics if a match reaches back before the start of the output.
func Expand(dst []byte, src []byte, matches []Match) []byte {
	start := len(dst)
	pos := 0
	for _, m := range matches {
		dst = append(dst, src[pos:pos+m.Unmatched]...)
		pos += m.Unmatched
		if m.Length == 0 {
			continue
		}
		from := len(dst) - m.Distance
		if from < start {
			panic("press: match distance reaches before the start of the data")
		}
		for i := 0; i < m.Length; i++ {
			dst = append(dst, dst[from+i])
		}
		pos += m.Length
	}
	return dst
}
