package flate

// Block splitting heuristic.
//
// While a block is being parsed, its literals and matches are sorted into a
// few coarse observation types. Every so often the distribution of recent
// observations is compared with that of the block so far, and if they differ
// enough the block is ended, so that each block's Huffman codes can fit its
// own data.
const (
	numLiteralObservationTypes = 8
	numMatchObservationTypes   = 2
	numObservationTypes        = numLiteralObservationTypes + numMatchObservationTypes

	observationsPerBlockCheck = 512

	minBlockLength         = 5000
	softMaxBlockLength     = 300000
	fastSoftMaxBlockLength = 65535

	seqStoreLength     = 50000
	fastSeqStoreLength = 8192
)

type splitStats struct {
	newObservations    [numObservationTypes]uint32
	observations       [numObservationTypes]uint32
	numNewObservations uint32
	numObservations    uint32
}

func (s *splitStats) reset() {
	*s = splitStats{}
}

// observeLiteral classifies a literal by its top two bits and its lowest bit.
func (s *splitStats) observeLiteral(lit byte) {
	s.newObservations[(lit>>5)&6|lit&1]++
	s.numNewObservations++
}

// observeMatch classifies a match as short or long.
func (s *splitStats) observeMatch(length int) {
	i := numLiteralObservationTypes
	if length >= 9 {
		i++
	}
	s.newObservations[i]++
	s.numNewObservations++
}

func (s *splitStats) mergeNew() {
	for i := range s.observations {
		s.observations[i] += s.newObservations[i]
		s.newObservations[i] = 0
	}
	s.numObservations += s.numNewObservations
	s.numNewObservations = 0
}

// endBlockCheck reports whether the new observations differ enough from
// the block so far that the block should end. If not, it merges them into
// the block's observations.
func (s *splitStats) endBlockCheck(blockLength int) bool {
	if s.numObservations > 0 {
		// Compare the proportions of each type, scaled by the
		// observation counts so the arithmetic stays in integers.
		var totalDelta uint32
		for i := range s.observations {
			expected := s.observations[i] * s.numNewObservations
			actual := s.newObservations[i] * s.numObservations
			if actual > expected {
				totalDelta += actual - expected
			} else {
				totalDelta += expected - actual
			}
		}

		numItems := s.numObservations + s.numNewObservations
		cutoff := s.numNewObservations * 200 / 512 * s.numObservations
		// Short blocks cost proportionally more in header overhead, so
		// they need a bigger change to be split off.
		if blockLength < 10000 && numItems < 8192 {
			cutoff += uint32(uint64(cutoff) * uint64(8192-numItems) / 8192)
		}

		if totalDelta+uint32(blockLength/4096)*s.numObservations >= cutoff {
			return true
		}
	}
	s.mergeNew()
	return false
}

func (s *splitStats) readyToCheck(blockBegin, pos, end int) bool {
	return s.numNewObservations >= observationsPerBlockCheck &&
		pos-blockBegin >= minBlockLength &&
		end-pos >= minBlockLength
}

func (s *splitStats) shouldEndBlock(blockBegin, pos, end int) bool {
	if !s.readyToCheck(blockBegin, pos, end) {
		return false
	}
	return s.endBlockCheck(pos - blockBegin)
}

// chooseMaxBlockEnd returns where a block starting at blockBegin must end.
// If ending at the soft maximum would leave a short final block, it extends
// the block to the end of the input instead.
func chooseMaxBlockEnd(blockBegin, end, softMaxLen int) int {
	if end-blockBegin < softMaxLen+minBlockLength {
		return end
	}
	return blockBegin + softMaxLen
}
