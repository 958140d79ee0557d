// The press package is the LZ77 layer of a modular DEFLATE compressor.
//
// Many compression libraries have two main parts:
//  - Something that looks for repeated sequences of bytes
//  - An encoder for the compressed data format (often an entropy coder)
//
// This package holds the first part: match finders that work over a single
// in-memory buffer with a 32 KiB window, and the intermediate representation
// (a slice of Match) that the flate package turns into DEFLATE blocks.
package press

const (
	// WindowOrder is the base-2 logarithm of WindowSize.
	WindowOrder = 15

	// WindowSize is how far back a match may reach.
	WindowSize = 1 << WindowOrder

	// MinMatch and MaxMatch are the shortest and longest matches that
	// DEFLATE can represent.
	MinMatch = 3
	MaxMatch = 258

	windowMask = WindowSize - 1
)

// A Match is the basic unit of LZ77 compression.
type Match struct {
	Unmatched int // the number of unmatched bytes since the previous match
	Length    int // the number of bytes in the matched string; it may be 0 at the end of the input
	Distance  int // how far back in the stream to copy from
}

// A Candidate is a match found at one position of the input.
type Candidate struct {
	Length   int
	Distance int
}

// A Finder performs the LZ77 stage of compression, looking for matches one
// position at a time. Every position that is searched or skipped is inserted
// into the Finder's tables, so positions must be visited in increasing order.
type Finder interface {
	// Reset clears the tables and prepares to search src from the beginning.
	Reset(src []byte)

	// FindLongest looks for the longest match at pos that is longer than
	// prevLen and no longer than maxLen, examining at most depth candidates.
	// If there is none, it returns prevLen and 0.
	FindLongest(pos, prevLen, maxLen, depth int) (length, distance int)

	// Skip inserts the n positions starting at pos without searching.
	Skip(pos, n int)
}

// A MultiFinder can also report every useful match at a position.
type MultiFinder interface {
	Finder

	// FindAll appends the matches at pos to dst, in order of strictly
	// increasing length, and returns dst.
	FindAll(dst []Candidate, pos, maxLen int) []Candidate
}
