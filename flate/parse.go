package flate

import "github.com/andybalholm/press"

// htRequiredBytes is the least input the hash table match finder needs
// left to look for a match.
const htRequiredBytes = 5

func (c *Compressor) beginSequences() {
	c.freqs.reset()
	c.seqs = append(c.seqs[:0], press.Match{})
}

func (c *Compressor) chooseLiteral(lit byte, gatherStats bool) {
	c.freqs.litlen[lit]++
	if gatherStats {
		c.split.observeLiteral(lit)
	}
	c.seqs[len(c.seqs)-1].Unmatched++
}

// chooseMatch ends the current sequence with a match and starts a new one.
func (c *Compressor) chooseMatch(length, offset int, gatherStats bool) {
	c.freqs.litlen[firstLengthSym+int(lengthSlot[length])]++
	c.freqs.offset[offsetSlot(offset)]++
	if gatherStats {
		c.split.observeMatch(length)
	}
	s := &c.seqs[len(c.seqs)-1]
	s.Length = length
	s.Distance = offset
	c.seqs = append(c.seqs, press.Match{})
}

// seqRoom reports whether another match fits in a block limited to limit
// sequences.
func (c *Compressor) seqRoom(limit int) bool {
	return len(c.seqs)-1 < limit
}

// lengthLimits returns the longest match allowed with remaining bytes of
// input left, and the nice length to use with it.
func (c *Compressor) lengthLimits(remaining int) (maxLen, nice int) {
	maxLen = min(remaining, maxMatchLen)
	return maxLen, min(c.niceMatchLength, maxLen)
}

// minMatchLens gives the shortest match worth taking, indexed by the number
// of distinct literals in use. With few distinct literals, literals are
// cheap and short matches don't pay for themselves.
var minMatchLens = [...]uint8{
	9, 9, 9, 9, 9, 9, 8, 8, 7, 7, 6, 6, 6, 6, 6, 6,
	5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5,
	5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 4, 4, 4,
	4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4,
	4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4,
}

func chooseMinMatchLen(numUsedLiterals, maxSearchDepth int) int {
	if numUsedLiterals >= len(minMatchLens) {
		return minMatchLen
	}
	l := int(minMatchLens[numUsedLiterals])
	// A shallow search misses many of the long matches that would make
	// a high minimum worthwhile.
	if maxSearchDepth < 16 {
		switch {
		case maxSearchDepth < 5:
			l = min(l, 4)
		case maxSearchDepth < 10:
			l = min(l, 5)
		default:
			l = min(l, 7)
		}
	}
	return l
}

// calculateMinMatchLen estimates the minimum match length from the
// distinct bytes at the start of data.
func calculateMinMatchLen(data []byte, maxSearchDepth int) int {
	var used [256]bool
	numUsed := 0
	for _, b := range data[:min(len(data), 4096)] {
		if !used[b] {
			used[b] = true
			numUsed++
		}
	}
	return chooseMinMatchLen(numUsed, maxSearchDepth)
}

// recalculateMinMatchLen updates the estimate from the literals chosen so
// far, ignoring ones that are used very rarely.
func recalculateMinMatchLen(freqs *symbolFreqs, maxSearchDepth int) int {
	var total uint32
	for _, f := range freqs.litlen[:numLiterals] {
		total += f
	}
	cutoff := total >> 10
	numUsed := 0
	for _, f := range freqs.litlen[:numLiterals] {
		if f > cutoff {
			numUsed++
		}
	}
	return chooseMinMatchLen(numUsed, maxSearchDepth)
}

// compressNone writes src as stored blocks.
func (c *Compressor) compressNone(w *bitWriter, src []byte) {
	writeStoredBlocks(w, src, true)
}

// compressFastest is the level 1 strategy: the first match the hash table
// finds is taken, and blocks are never split early.
func (c *Compressor) compressFastest(w *bitWriter, src []byte) {
	mf := c.table
	mf.Reset(src)

	pos := 0
	for pos != len(src) {
		blockBegin := pos
		maxBlockEnd := chooseMaxBlockEnd(pos, len(src), fastSoftMaxBlockLength)
		c.beginSequences()

		for {
			remaining := len(src) - pos
			if remaining < htRequiredBytes {
				for ; pos < len(src); pos++ {
					c.chooseLiteral(src[pos], false)
				}
				break
			}
			maxLen, _ := c.lengthLimits(remaining)
			length, offset := mf.FindLongest(pos, 0, maxLen, 0)
			if offset != 0 {
				c.chooseMatch(length, offset, false)
				mf.Skip(pos+1, length-1)
				pos += length
			} else {
				c.chooseLiteral(src[pos], false)
				pos++
			}
			if pos >= maxBlockEnd || !c.seqRoom(fastSeqStoreLength) {
				break
			}
		}

		c.flushBlock(w, src[blockBegin:pos], c.seqs, pos == len(src))
	}
}

// compressGreedy takes the longest match at each position.
func (c *Compressor) compressGreedy(w *bitWriter, src []byte) {
	mf := c.chain
	mf.Reset(src)

	pos := 0
	for pos != len(src) {
		blockBegin := pos
		maxBlockEnd := chooseMaxBlockEnd(pos, len(src), softMaxBlockLength)
		c.split.reset()
		c.beginSequences()
		minLen := calculateMinMatchLen(src[pos:maxBlockEnd], c.maxSearchDepth)

		for more := true; more; more = pos < maxBlockEnd && c.seqRoom(seqStoreLength) &&
			!c.split.shouldEndBlock(blockBegin, pos, len(src)) {
			maxLen, _ := c.lengthLimits(len(src) - pos)
			length, offset := mf.FindLongest(pos, minLen-1, maxLen, c.maxSearchDepth)

			// A length 3 match far away costs about as much as three
			// literals.
			if length >= minLen && offset != 0 && (length > minMatchLen || offset <= 4096) {
				c.chooseMatch(length, offset, true)
				mf.Skip(pos+1, length-1)
				pos += length
			} else {
				c.chooseLiteral(src[pos], true)
				pos++
			}
		}

		c.flushBlock(w, src[blockBegin:pos], c.seqs, pos == len(src))
	}
}

// compressLazy is the strategy for levels 5 to 7, and compressLazy2 for 8
// and 9.
func (c *Compressor) compressLazy(w *bitWriter, src []byte) {
	c.compressLazyGeneric(w, src, false)
}

func (c *Compressor) compressLazy2(w *bitWriter, src []byte) {
	c.compressLazyGeneric(w, src, true)
}

// compressLazyGeneric implements lazy matching: after finding a match, it
// looks for a better one starting at the next position (and, with lazy2,
// the one after that) before committing to it.
func (c *Compressor) compressLazyGeneric(w *bitWriter, src []byte, lazy2 bool) {
	mf := c.chain
	mf.Reset(src)
	depth := c.maxSearchDepth

	pos := 0
	for pos != len(src) {
		blockBegin := pos
		maxBlockEnd := chooseMaxBlockEnd(pos, len(src), softMaxBlockLength)
		nextRecalcMinLen := pos + min(len(src)-pos, 10000)
		c.split.reset()
		c.beginSequences()
		minLen := calculateMinMatchLen(src[pos:maxBlockEnd], depth)

		for more := true; more; more = pos < maxBlockEnd && c.seqRoom(seqStoreLength) &&
			!c.split.shouldEndBlock(blockBegin, pos, len(src)) {
			// The literal statistics of the block so far are a better
			// guide than the first 4096 bytes.
			if pos >= nextRecalcMinLen {
				minLen = recalculateMinMatchLen(&c.freqs, depth)
				nextRecalcMinLen += min(len(src)-nextRecalcMinLen, pos-blockBegin)
			}

			maxLen, _ := c.lengthLimits(len(src) - pos)
			curLen, curOffset := mf.FindLongest(pos, minLen-1, maxLen, depth)
			if curLen < minLen || curOffset == 0 || (curLen == minMatchLen && curOffset > 8192) {
				c.chooseLiteral(src[pos], true)
				pos++
				continue
			}
			pos++

			for {
				maxLen, nice := c.lengthLimits(len(src) - pos)
				if curLen >= nice {
					c.chooseMatch(curLen, curOffset, true)
					mf.Skip(pos, curLen-1)
					pos += curLen - 1
					break
				}

				// Try the next position. A longer match, or one
				// with a much smaller offset, wins.
				nextLen, nextOffset := mf.FindLongest(pos, curLen-1, maxLen, depth>>1)
				pos++
				if nextOffset != 0 && nextLen >= curLen &&
					4*(nextLen-curLen)+bsr(curOffset)-bsr(nextOffset) > 2 {
					c.chooseLiteral(src[pos-2], true)
					curLen, curOffset = nextLen, nextOffset
					continue
				}

				if !lazy2 {
					c.chooseMatch(curLen, curOffset, true)
					mf.Skip(pos, curLen-2)
					pos += curLen - 2
					break
				}

				// Try the position after that, which has to be
				// better by a bigger margin.
				maxLen, _ = c.lengthLimits(len(src) - pos)
				nextLen, nextOffset = mf.FindLongest(pos, curLen-1, maxLen, depth>>2)
				pos++
				if nextOffset != 0 && nextLen >= curLen &&
					4*(nextLen-curLen)+bsr(curOffset)-bsr(nextOffset) > 6 {
					c.chooseLiteral(src[pos-3], true)
					c.chooseLiteral(src[pos-2], true)
					curLen, curOffset = nextLen, nextOffset
					continue
				}

				c.chooseMatch(curLen, curOffset, true)
				if curLen > 3 {
					mf.Skip(pos, curLen-3)
					pos += curLen - 3
				}
				break
			}
		}

		c.flushBlock(w, src[blockBegin:pos], c.seqs, pos == len(src))
	}
}
