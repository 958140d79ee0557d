package flate

import (
	"math/bits"
	"slices"
)

// Symbols are sorted by frequency with the symbol value packed into the low
// bits, so that ties are broken by symbol value. The same words are reused
// while building the tree: the low bits keep the symbol, and the high bits
// hold a frequency, a parent index, or a depth.
const (
	numSymbolBits = 10
	symbolMask    = 1<<numSymbolBits - 1
)

type symbolFreqs struct {
	litlen [numLitlenSyms]uint32
	offset [numOffsetSyms]uint32
}

func (f *symbolFreqs) reset() {
	*f = symbolFreqs{}
}

type huffmanCodes struct {
	litlenLens      [numLitlenSyms]uint8
	offsetLens      [numOffsetSyms]uint8
	litlenCodewords [numLitlenSyms]uint32
	offsetCodewords [numOffsetSyms]uint32
}

func (c *huffmanCodes) build(f *symbolFreqs) {
	makeHuffmanCode(f.litlen[:], c.litlenLens[:], c.litlenCodewords[:], maxLitlenCodewordLen)
	makeHuffmanCode(f.offset[:], c.offsetLens[:], c.offsetCodewords[:], maxOffsetCodewordLen)
}

// staticCodes are the fixed Huffman codes of block type 1.
var staticCodes huffmanCodes

func init() {
	var f symbolFreqs
	// A symbol with frequency 1<<(9-n) gets an n-bit codeword.
	for i := range f.litlen {
		switch {
		case i < 144:
			f.litlen[i] = 1 << (9 - 8)
		case i < 256:
			f.litlen[i] = 1 << (9 - 9)
		case i < 280:
			f.litlen[i] = 1 << (9 - 7)
		default:
			f.litlen[i] = 1 << (9 - 8)
		}
	}
	for i := range f.offset {
		f.offset[i] = 1 << (5 - 5)
	}
	staticCodes.build(&f)
}

// makeHuffmanCode builds a length-limited canonical Huffman code for the
// symbols 0 through len(freqs)-1. It stores the codeword length of each
// symbol in lens (0 for unused symbols), and the codewords, bit-reversed
// for DEFLATE's LSB-first bit order, in codewords. codewords doubles as
// scratch space while the code is built.
//
// If only one symbol is used, two codewords of length 1 are assigned anyway,
// since some decoders reject codes with just one codeword.
func makeHuffmanCode(freqs []uint32, lens []uint8, codewords []uint32, maxLen int) {
	a := codewords[:0]
	for sym, f := range freqs {
		if f != 0 {
			a = append(a, uint32(sym)|f<<numSymbolBits)
		} else {
			lens[sym] = 0
		}
	}
	slices.Sort(a)

	switch len(a) {
	case 0:
		return
	case 1:
		sym := a[0] & symbolMask
		nonzero := sym
		if nonzero == 0 {
			nonzero = 1
		}
		codewords[0] = 0
		lens[0] = 1
		codewords[nonzero] = 1
		lens[nonzero] = 1
		return
	}

	buildTree(a)

	var lenCounts [maxCodewordLen + 1]uint32
	computeLengthCounts(a, len(a)-2, lenCounts[:], maxLen)
	genCodewords(a, lens, codewords, lenCounts[:], maxLen)
}

// buildTree turns a, which holds the used symbols sorted by frequency, into
// a Huffman tree. Leaves are taken from the front of a, and non-leaf nodes
// are stored in the entries already consumed, which form a queue sorted by
// frequency. When it returns, every entry except the root (a[len(a)-2])
// holds the index of its parent in the high bits.
func buildTree(a []uint32) {
	n := len(a)
	i := 0 // next leaf
	b := 0 // next non-leaf to take
	e := 0 // next slot to allocate as a non-leaf

	for {
		var m, k int
		if i != n && (b == e || a[i]>>numSymbolBits <= a[b]>>numSymbolBits) {
			m = i
			i++
		} else {
			m = b
			b++
		}
		if i != n && (b == e || a[i]>>numSymbolBits <= a[b]>>numSymbolBits) {
			k = i
			i++
		} else {
			k = b
			b++
		}

		freqShifted := (a[m] &^ symbolMask) + (a[k] &^ symbolMask)
		a[m] = a[m]&symbolMask | uint32(e)<<numSymbolBits
		a[k] = a[k]&symbolMask | uint32(e)<<numSymbolBits
		a[e] = a[e]&symbolMask | freqShifted
		e++
		if n-e <= 1 {
			break
		}
	}
}

// computeLengthCounts walks the tree built by buildTree from the root down,
// counting how many leaves end up at each depth. Any leaf deeper than
// maxLen is moved up to the deepest level that still has room for it,
// which keeps the code complete.
func computeLengthCounts(a []uint32, root int, lenCounts []uint32, maxLen int) {
	for i := range lenCounts[:maxLen+1] {
		lenCounts[i] = 0
	}
	lenCounts[1] = 2

	a[root] &= symbolMask

	for node := root - 1; node >= 0; node-- {
		parent := a[node] >> numSymbolBits
		depth := a[parent]>>numSymbolBits + 1
		a[node] = a[node]&symbolMask | depth<<numSymbolBits

		l := int(depth)
		if l >= maxLen {
			l = maxLen
			for {
				l--
				if lenCounts[l] != 0 {
					break
				}
			}
		}
		// The node at level l becomes a non-leaf with two children.
		lenCounts[l]--
		lenCounts[l+1] += 2
	}
}

// genCodewords gives the longest codewords to the least frequent symbols,
// then assigns canonical codewords: increasing values in order of length,
// then symbol.
func genCodewords(a []uint32, lens []uint8, codewords []uint32, lenCounts []uint32, maxLen int) {
	i := 0
	for l := maxLen; l >= 1; l-- {
		for count := lenCounts[l]; count > 0; count-- {
			lens[a[i]&symbolMask] = uint8(l)
			i++
		}
	}

	var next [maxCodewordLen + 1]uint32
	for l := 2; l <= maxLen; l++ {
		next[l] = (next[l-1] + lenCounts[l-1]) << 1
	}
	for sym := range lens {
		l := lens[sym]
		codewords[sym] = reverseCodeword(next[l], l)
		next[l]++
	}
}

// reverseCodeword reverses the low n bits of codeword.
func reverseCodeword(codeword uint32, n uint8) uint32 {
	return uint32(bits.Reverse16(uint16(codeword)) >> (16 - n))
}
