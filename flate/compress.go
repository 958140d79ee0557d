package flate

import (
	"github.com/andybalholm/press"
	"github.com/pkg/errors"
)

const (
	MinLevel     = 0
	MaxLevel     = 12
	DefaultLevel = 6
)

type strategy func(c *Compressor, w *bitWriter, src []byte)

type levelParams struct {
	strategy strategy
	depth    int
	nice     int
	passes   int
}

var levels = [MaxLevel + 1]levelParams{
	0:  {strategy: (*Compressor).compressNone},
	1:  {strategy: (*Compressor).compressFastest, nice: 32},
	2:  {(*Compressor).compressGreedy, 6, 10, 0},
	3:  {(*Compressor).compressGreedy, 12, 14, 0},
	4:  {(*Compressor).compressGreedy, 16, 30, 0},
	5:  {(*Compressor).compressLazy, 16, 30, 0},
	6:  {(*Compressor).compressLazy, 35, 65, 0},
	7:  {(*Compressor).compressLazy, 100, 130, 0},
	8:  {(*Compressor).compressLazy2, 300, maxMatchLen, 0},
	9:  {(*Compressor).compressLazy2, 600, maxMatchLen, 0},
	10: {(*Compressor).compressNearOptimal, 35, 75, 2},
	11: {(*Compressor).compressNearOptimal, 70, 150, 3},
	12: {(*Compressor).compressNearOptimal, 150, maxMatchLen, 4},
}

// A Compressor compresses whole buffers to raw DEFLATE, zlib or gzip
// format at a fixed level. It holds the match finder tables and other
// working memory, which are reused from call to call, so a Compressor
// should be kept for many calls rather than created for each. A Compressor
// must not be used by more than one goroutine at a time.
type Compressor struct {
	// Checksums are the checksum functions used for zlib and gzip
	// output.
	Checksums Checksums

	level             int
	minSizeToCompress int
	maxSearchDepth    int
	niceMatchLength   int
	strategy          strategy

	freqs  symbolFreqs
	codes  huffmanCodes
	header dynamicHeader
	split  splitStats
	seqs   []press.Match

	// Only the match finder for the level's strategy is allocated.
	table *press.HashTable
	chain *press.HashChain
	opt   *nearOptimal
}

// NewCompressor returns a Compressor for level, which must be between 0
// (no compression) and 12 (slowest and smallest). Level 6 is a good
// default.
func NewCompressor(level int) (*Compressor, error) {
	if level < MinLevel || level > MaxLevel {
		return nil, errors.Wrapf(ErrInvalidLevel, "level %d", level)
	}
	p := levels[level]
	c := &Compressor{
		level:             level,
		minSizeToCompress: 56 - 4*level,
		maxSearchDepth:    p.depth,
		niceMatchLength:   p.nice,
		strategy:          p.strategy,
	}
	switch {
	case level == 1:
		c.table = &press.HashTable{NiceLength: p.nice}
	case level >= 2 && level <= 9:
		c.chain = &press.HashChain{NiceLength: p.nice}
	case level >= 10:
		c.opt = newNearOptimal(p.depth, p.nice, p.passes)
	}
	return c, nil
}

// Level returns the compression level c was created with.
func (c *Compressor) Level() int {
	return c.level
}

// SetSliding forces the match finders to use sliding windows even for
// small inputs. The output is the same either way.
func (c *Compressor) SetSliding(sliding bool) {
	switch {
	case c.table != nil:
		c.table.Sliding = sliding
	case c.chain != nil:
		c.chain.Sliding = sliding
	case c.opt != nil:
		c.opt.mf.Sliding = sliding
	}
}

// Compress compresses src to a raw DEFLATE stream in dst, and returns the
// number of bytes written. If the output doesn't fit in dst, it returns
// ErrInsufficientSpace; a dst of CompressBound(len(src)) bytes is always
// big enough.
func (c *Compressor) Compress(dst, src []byte) (int, error) {
	var w bitWriter
	w.reset(dst)

	switch {
	case len(src) == 0:
		// A final static block with nothing but the end-of-block symbol.
		writeBlockHeader(&w, true, blockTypeStatic)
		w.writeBits(staticCodes.litlenCodewords[endOfBlock], uint(staticCodes.litlenLens[endOfBlock]))
	case len(src) < c.minSizeToCompress:
		writeStoredBlocks(&w, src, true)
	default:
		c.strategy(c, &w, src)
	}

	n := w.flush()
	if n == 0 {
		return 0, ErrInsufficientSpace
	}
	return n, nil
}

// CompressBound returns the largest size that compressing n bytes can
// produce, at any level.
//
// The compressor never uses more than the cost of storing the data, which is
// 5 bytes of overhead for each stored block of up to 65535 bytes, plus a
// byte of padding. Stored blocks are never shorter than 5000 bytes except
// at the end of the input, hence the estimate of one block per 5000 bytes.
func CompressBound(n int) int {
	blocks := max((n+minBlockLength-1)/minBlockLength, 1)
	return 5*blocks + n + 1
}
