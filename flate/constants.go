package flate

import "math/bits"

const (
	blockTypeStored  = 0
	blockTypeStatic  = 1
	blockTypeDynamic = 2

	numLiterals    = 256
	endOfBlock     = 256
	firstLengthSym = 257

	numLitlenSyms  = 288
	numOffsetSyms  = 32
	numPrecodeSyms = 19

	// Symbols the format reserves but never assigns a meaning.
	numUsableLitlenSyms = 286
	numUsableOffsetSyms = 30

	maxCodewordLen        = 15
	maxPrecodeCodewordLen = 7

	// The compressor limits litlen codewords to 14 bits so that a whole
	// match (litlen codeword, length extra bits, offset codeword, offset
	// extra bits) always fits in the bit buffer along with leftover bits.
	maxLitlenCodewordLen = 14
	maxOffsetCodewordLen = 15

	minMatchLen = 3
	maxMatchLen = 258
	maxOffset   = 32768

	maxStoredLen = 65535
)

var lengthBase = [29]uint16{
	3, 4, 5, 6, 7, 8, 9, 10,
	11, 13, 15, 17, 19, 23, 27, 31,
	35, 43, 51, 59, 67, 83, 99, 115,
	131, 163, 195, 227, 258,
}

var lengthExtraBits = [29]uint8{
	0, 0, 0, 0, 0, 0, 0, 0,
	1, 1, 1, 1, 2, 2, 2, 2,
	3, 3, 3, 3, 4, 4, 4, 4,
	5, 5, 5, 5, 0,
}

var offsetBase = [30]uint16{
	1, 2, 3, 4, 5, 7, 9, 13,
	17, 25, 33, 49, 65, 97, 129, 193,
	257, 385, 513, 769, 1025, 1537, 2049, 3073,
	4097, 6145, 8193, 12289, 16385, 24577,
}

var offsetExtraBits = [30]uint8{
	0, 0, 0, 0, 1, 1, 2, 2,
	3, 3, 4, 4, 5, 5, 6, 6,
	7, 7, 8, 8, 9, 9, 10, 10,
	11, 11, 12, 12, 13, 13,
}

// The order in which precode lengths are stored in a dynamic block header.
var precodeLensPermutation = [numPrecodeSyms]uint8{
	16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15,
}

var precodeExtraBits = [numPrecodeSyms]uint8{
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 2, 3, 7,
}

// lengthSlot maps a match length to the index of its length symbol,
// counting from firstLengthSym.
var lengthSlot [maxMatchLen + 1]uint8

func init() {
	slot := 0
	for length := minMatchLen; length <= maxMatchLen; length++ {
		if slot+1 < len(lengthBase) && length >= int(lengthBase[slot+1]) {
			slot++
		}
		lengthSlot[length] = uint8(slot)
	}
}

// offsetSlot returns the offset symbol for a match offset in [1, 32768].
func offsetSlot(offset int) int {
	d := uint32(offset - 1)
	if d < 4 {
		return int(d)
	}
	n := bits.Len32(d) - 1
	return 2*n + int(d>>(n-1)&1)
}

// bsr returns the index of the highest set bit in v, which must be nonzero.
func bsr(v int) int {
	return bits.Len32(uint32(v)) - 1
}
