package flate

import "github.com/andybalholm/press"

// Costs in the near-optimal parser are in units of 1/bitCost bits.
const (
	bitCost = 16

	// Symbols that weren't used in the previous pass get these costs,
	// in bits.
	literalNostatBits = 13
	lengthNostatBits  = 13
	offsetNostatBits  = 10

	// matchCacheLength is the length at which the match cache is
	// considered full.
	matchCacheLength = softMaxBlockLength * 5

	// btRequiredBytes is the least input the binary tree needs left to
	// find matches at a position.
	btRequiredBytes = 5

	unreachableCost = 0x80000000
)

type costModel struct {
	literal    [numLiterals]uint32
	length     [maxMatchLen + 1]uint32
	offsetSlot [numUsableOffsetSyms]uint32
}

// An optimumNode is one position in the block's graph of choices.
type optimumNode struct {
	// costToEnd is the cost of the cheapest path from here to the end
	// of the block.
	costToEnd uint32

	// length and offset are the first step of that path. A literal has
	// length 1, and its value is stored in offset.
	length uint16
	offset uint16
}

// nearOptimal holds the state of the near-optimal parser, used for levels
// 10 to 12. It finds every match at nearly every position, then chooses
// among them by searching for the cheapest path through the block under a
// model of symbol costs, refining the model over several passes.
type nearOptimal struct {
	mf     press.BinaryTree
	passes int

	// cache holds, for each position of the block, the matches found
	// there, followed by a header whose Length is the number of matches
	// and whose Distance is the literal at that position.
	cache []press.Candidate
	nodes []optimumNode
	costs costModel

	matchLenFreqs    [maxMatchLen + 1]uint32
	newMatchLenFreqs [maxMatchLen + 1]uint32

	prevObservations    [numObservationTypes]uint32
	prevNumObservations uint32
}

func newNearOptimal(depth, nice, passes int) *nearOptimal {
	o := &nearOptimal{passes: passes}
	o.mf.SearchDepth = depth
	o.mf.NiceLength = nice
	return o
}

func (c *Compressor) initNearOptimalStats() {
	c.split.reset()
	c.opt.newMatchLenFreqs = [maxMatchLen + 1]uint32{}
	c.opt.matchLenFreqs = [maxMatchLen + 1]uint32{}
}

func (c *Compressor) mergeNearOptimalStats() {
	c.split.mergeNew()
	o := c.opt
	for i, f := range o.newMatchLenFreqs {
		o.matchLenFreqs[i] += f
	}
	o.newMatchLenFreqs = [maxMatchLen + 1]uint32{}
}

// saveNearOptimalStats remembers the observations of the block just
// written, for comparison with the next one.
func (c *Compressor) saveNearOptimalStats() {
	c.opt.prevObservations = c.split.observations
	c.opt.prevNumObservations = c.split.numObservations
}

// clearOldNearOptimalStats drops the statistics of the block just written,
// keeping the ones gathered since the last block check, which belong to
// the next block.
func (c *Compressor) clearOldNearOptimalStats() {
	c.split.observations = [numObservationTypes]uint32{}
	c.split.numObservations = 0
	c.opt.matchLenFreqs = [maxMatchLen + 1]uint32{}
}

func (c *Compressor) compressNearOptimal(w *bitWriter, src []byte) {
	o := c.opt
	mf := &o.mf
	mf.Reset(src)
	o.cache = o.cache[:0]
	c.initNearOptimalStats()

	pos, blockBegin := 0, 0
	for pos != len(src) {
		maxBlockEnd := chooseMaxBlockEnd(blockBegin, len(src), softMaxBlockLength)
		prevEndBlockCheck := -1
		changeDetected := false
		nextObservation := pos

		// The minimum match length only guides the statistics; the
		// parse itself can weigh short matches by their cost.
		minLen := calculateMinMatchLen(src[blockBegin:maxBlockEnd], c.maxSearchDepth)

		for {
			maxLen, nice := c.lengthLimits(len(src) - pos)
			n := len(o.cache)
			bestLen := 0
			if maxLen >= btRequiredBytes {
				o.cache = mf.FindAll(o.cache, pos, maxLen)
				if len(o.cache) > n {
					bestLen = o.cache[len(o.cache)-1].Length
				}
			}
			if pos >= nextObservation {
				if bestLen >= minLen {
					c.split.observeMatch(bestLen)
					nextObservation = pos + bestLen
					o.newMatchLenFreqs[bestLen]++
				} else {
					c.split.observeLiteral(src[pos])
					nextObservation = pos + 1
				}
			}
			o.cache = append(o.cache, press.Candidate{Length: len(o.cache) - n, Distance: int(src[pos])})
			pos++

			// Highly redundant data can have a huge number of matches.
			// After a long one, just insert the positions it covers.
			if bestLen >= minMatchLen && bestLen >= nice {
				for bestLen--; bestLen > 0; bestLen-- {
					if maxLen, _ := c.lengthLimits(len(src) - pos); maxLen >= btRequiredBytes {
						mf.Skip(pos, 1)
					}
					o.cache = append(o.cache, press.Candidate{Distance: int(src[pos])})
					pos++
				}
			}

			if pos >= maxBlockEnd || len(o.cache) >= matchCacheLength {
				break
			}
			if !c.split.readyToCheck(blockBegin, pos, len(src)) {
				continue
			}
			if c.split.endBlockCheck(pos - blockBegin) {
				changeDetected = true
				break
			}
			c.mergeNearOptimalStats()
			prevEndBlockCheck = pos
		}

		if changeDetected && prevEndBlockCheck >= 0 {
			// End the block before the data that changed, rather than
			// after it. The matches already found past that point are
			// kept for the next block.
			blockEnd := prevEndBlockCheck
			end := len(o.cache)
			for i := pos - blockEnd; i > 0; i-- {
				end--
				end -= o.cache[end].Length
			}

			c.optimizeBlock(src[blockBegin:blockEnd], o.cache[:end], blockBegin == 0, false)
			c.flushBlock(w, src[blockBegin:blockEnd], nil, false)
			o.cache = o.cache[:copy(o.cache, o.cache[end:])]
			c.saveNearOptimalStats()
			c.clearOldNearOptimalStats()
			blockBegin = blockEnd
		} else {
			final := pos == len(src)
			c.mergeNearOptimalStats()
			c.optimizeBlock(src[blockBegin:pos], o.cache, blockBegin == 0, final)
			c.flushBlock(w, src[blockBegin:pos], nil, final)
			o.cache = o.cache[:0]
			c.saveNearOptimalStats()
			c.initNearOptimalStats()
			blockBegin = pos
		}
	}
}

// optimizeBlock chooses the literals and matches for block, leaving them in
// c.opt.nodes, the symbol frequencies in c.freqs, and the Huffman codes in
// c.codes.
func (c *Compressor) optimizeBlock(block []byte, cache []press.Candidate, first, final bool) {
	o := c.opt
	n := len(block)
	if cap(o.nodes) < n+maxMatchLen {
		o.nodes = make([]optimumNode, n+maxMatchLen)
	}
	nodes := o.nodes[:n+maxMatchLen]

	// Matches may not run past the end of the block.
	for i := n; i < len(nodes); i++ {
		nodes[i].costToEnd = unreachableCost
	}

	litCost, lenSymCost := c.chooseDefaultLitlenCosts(block)
	if first {
		o.setDefaultCosts(litCost, lenSymCost)
	} else {
		o.adjustCosts(&c.split, litCost, lenSymCost)
	}

	for pass := 1; ; pass++ {
		o.findMinCostPath(nodes, n, cache)
		c.freqs.reset()
		c.tallyItems(n)
		c.codes.build(&c.freqs)

		// The costs from the last pass seed the next block.
		if pass < o.passes || !final {
			o.setCostsFromCodes(&c.codes)
		}
		if pass >= o.passes {
			return
		}
	}
}

// findMinCostPath works backwards from the end of the block, finding the
// cheapest way to reach the end from each position.
func (o *nearOptimal) findMinCostPath(nodes []optimumNode, n int, cache []press.Candidate) {
	nodes[n].costToEnd = 0
	end := len(cache)
	for i := n - 1; i >= 0; i-- {
		end--
		numMatches := cache[end].Length
		lit := cache[end].Distance

		best := o.costs.literal[lit] + nodes[i+1].costToEnd
		nodes[i].length = 1
		nodes[i].offset = uint16(lit)

		// For each length, only the nearest match offering it is
		// considered.
		length := minMatchLen
		for _, m := range cache[end-numMatches : end] {
			offsetCost := o.costs.offsetSlot[offsetSlot(m.Distance)]
			for ; length <= m.Length; length++ {
				cost := offsetCost + o.costs.length[length] + nodes[i+length].costToEnd
				if cost < best {
					best = cost
					nodes[i].length = uint16(length)
					nodes[i].offset = uint16(m.Distance)
				}
			}
		}
		end -= numMatches
		nodes[i].costToEnd = best
	}
}

func (c *Compressor) tallyItems(n int) {
	nodes := c.opt.nodes
	for i := 0; i < n; i += int(nodes[i].length) {
		node := nodes[i]
		if node.length == 1 {
			c.freqs.litlen[node.offset]++
			continue
		}
		c.freqs.litlen[firstLengthSym+int(lengthSlot[node.length])]++
		c.freqs.offset[offsetSlot(int(node.offset))]++
	}
	c.freqs.litlen[endOfBlock]++
}

// writeItems writes the literals and matches chosen for a block of n bytes.
func (o *nearOptimal) writeItems(w *bitWriter, codes *huffmanCodes, n int) {
	nodes := o.nodes
	for i := 0; i < n; i += int(nodes[i].length) {
		node := nodes[i]
		if node.length == 1 {
			writeLiteral(w, codes, byte(node.offset))
			w.flushBits()
			continue
		}
		writeMatch(w, codes, int(node.length), int(node.offset))
	}
}

func (o *nearOptimal) setCostsFromCodes(codes *huffmanCodes) {
	for i := range o.costs.literal {
		bits := uint32(codes.litlenLens[i])
		if bits == 0 {
			bits = literalNostatBits
		}
		o.costs.literal[i] = bits * bitCost
	}

	for i := minMatchLen; i <= maxMatchLen; i++ {
		slot := lengthSlot[i]
		bits := uint32(codes.litlenLens[firstLengthSym+int(slot)])
		if bits == 0 {
			bits = lengthNostatBits
		}
		bits += uint32(lengthExtraBits[slot])
		o.costs.length[i] = bits * bitCost
	}

	for i := range o.costs.offsetSlot {
		bits := uint32(codes.offsetLens[i])
		if bits == 0 {
			bits = offsetNostatBits
		}
		bits += uint32(offsetExtraBits[i])
		o.costs.offsetSlot[i] = bits * bitCost
	}
}

// chooseDefaultLitlenCosts estimates the cost of a literal and of a length
// symbol from the number of distinct literals in block and how often the
// matches found so far would have been used by a greedy parse.
func (c *Compressor) chooseDefaultLitlenCosts(block []byte) (litCost, lenSymCost uint32) {
	var counts [numLiterals]uint32
	for _, b := range block {
		counts[b]++
	}
	cutoff := uint32(len(block)) >> 11
	numUsed := 0
	for _, n := range counts {
		if n > cutoff {
			numUsed++
		}
	}
	if numUsed == 0 {
		numUsed = 1
	}

	literalFreq := len(block)
	matchFreq := 0
	for i := chooseMinMatchLen(numUsed, c.maxSearchDepth); i < len(c.opt.matchLenFreqs); i++ {
		f := int(c.opt.matchLenFreqs[i])
		matchFreq += f
		literalFreq -= i * f
	}
	literalFreq = max(literalFreq, 0)

	var i int
	switch {
	case matchFreq > literalFreq:
		i = 2
	case matchFreq*4 > literalFreq:
		i = 1
	}
	return uint32(defaultLitlenCosts[i].usedLitsToLitCost[numUsed]), uint32(defaultLitlenCosts[i].lenSymCost)
}

func defaultLengthCost(length int, lenSymCost uint32) uint32 {
	return lenSymCost + uint32(lengthExtraBits[lengthSlot[length]])*bitCost
}

// defaultOffsetSlotCost assumes all 30 offset symbols are equally likely.
func defaultOffsetSlotCost(slot int) uint32 {
	return 4*bitCost + 907*bitCost/1000 + uint32(offsetExtraBits[slot])*bitCost
}

func (o *nearOptimal) setDefaultCosts(litCost, lenSymCost uint32) {
	for i := range o.costs.literal {
		o.costs.literal[i] = litCost
	}
	for i := minMatchLen; i <= maxMatchLen; i++ {
		o.costs.length[i] = defaultLengthCost(i, lenSymCost)
	}
	for i := range o.costs.offsetSlot {
		o.costs.offsetSlot[i] = defaultOffsetSlotCost(i)
	}
}

// adjustCosts moves the costs left by the previous block toward the
// defaults. The more the new block's statistics differ from the previous
// block's, the further they move.
func (o *nearOptimal) adjustCosts(s *splitStats, litCost, lenSymCost uint32) {
	var totalDelta uint64
	for i := range s.observations {
		prev := uint64(o.prevObservations[i]) * uint64(s.numObservations)
		cur := uint64(s.observations[i]) * uint64(o.prevNumObservations)
		if prev > cur {
			totalDelta += prev - cur
		} else {
			totalDelta += cur - prev
		}
	}
	cutoff := uint64(o.prevNumObservations) * uint64(s.numObservations) * 200 / 512

	var change int
	switch {
	case 4*totalDelta > 9*cutoff:
		change = 3
	case 2*totalDelta > 3*cutoff:
		change = 2
	case 2*totalDelta > cutoff:
		change = 1
	}

	for i := range o.costs.literal {
		adjustCost(&o.costs.literal[i], litCost, change)
	}
	for i := minMatchLen; i <= maxMatchLen; i++ {
		adjustCost(&o.costs.length[i], defaultLengthCost(i, lenSymCost), change)
	}
	for i := range o.costs.offsetSlot {
		adjustCost(&o.costs.offsetSlot[i], defaultOffsetSlotCost(i), change)
	}
}

func adjustCost(cost *uint32, defaultCost uint32, change int) {
	switch change {
	case 0:
		*cost = (defaultCost + 3**cost) / 4
	case 1:
		*cost = (defaultCost + *cost) / 2
	case 2:
		*cost = (5*defaultCost + 3**cost) / 8
	default:
		*cost = (3*defaultCost + *cost) / 4
	}
}
