package flate

// A decode table has a main table of 1<<tableBits entries, indexed by the
// next tableBits bits of input, followed by subtables for codewords longer
// than tableBits. The enough sizes are the largest any valid code can need.
const (
	precodeTableBits = 7
	litlenTableBits  = 10
	offsetTableBits  = 8

	precodeEnough = 128
	litlenEnough  = 1334
	offsetEnough  = 402
)

// Decode table entries:
//
//	bit 31:     subtable pointer
//	bit 30:     literal (litlen table only)
//	bit 29:     reserved symbol that must not appear in valid data
//	bits 8-28:  decode result
//	bits 0-7:   codeword length, or subtable bits for a pointer
const (
	huffdecSubtablePointer = 0x80000000
	huffdecLiteral         = 0x40000000
	huffdecInvalid         = 0x20000000
	huffdecLengthMask      = 0xff
	huffdecResultShift     = 8

	// litlen results for lengths hold the length base and extra bits.
	huffdecLengthBaseShift = 8
	huffdecEndOfBlock      = 0

	// offset results hold the offset base and extra bits.
	huffdecExtraOffsetBitsShift = 16
	huffdecOffsetBaseMask       = 1<<huffdecExtraOffsetBitsShift - 1
)

var (
	precodeDecodeResults [numPrecodeSyms]uint32
	litlenDecodeResults  [numLitlenSyms]uint32
	offsetDecodeResults  [numOffsetSyms]uint32
)

func init() {
	for sym := range precodeDecodeResults {
		precodeDecodeResults[sym] = uint32(sym) << huffdecResultShift
	}

	for sym := 0; sym < numLiterals; sym++ {
		litlenDecodeResults[sym] = huffdecLiteral | uint32(sym)<<huffdecResultShift
	}
	litlenDecodeResults[endOfBlock] = huffdecEndOfBlock << huffdecLengthBaseShift << huffdecResultShift
	for slot := range lengthBase {
		r := uint32(lengthBase[slot])<<huffdecLengthBaseShift | uint32(lengthExtraBits[slot])
		litlenDecodeResults[firstLengthSym+slot] = r << huffdecResultShift
	}
	for sym := numUsableLitlenSyms; sym < numLitlenSyms; sym++ {
		litlenDecodeResults[sym] = huffdecInvalid
	}

	for slot := range offsetBase {
		r := uint32(offsetExtraBits[slot])<<huffdecExtraOffsetBitsShift | uint32(offsetBase[slot])
		offsetDecodeResults[slot] = r << huffdecResultShift
	}
	for sym := numUsableOffsetSyms; sym < numOffsetSyms; sym++ {
		offsetDecodeResults[sym] = huffdecInvalid
	}
}

// buildDecodeTable fills table for decoding the canonical Huffman code with
// the codeword lengths lens. The entry for symbol s carries results[s]. The
// table is indexed with bit-reversed codewords, since DEFLATE sends the
// first bit of a codeword in the lowest bit.
//
// It reports false if lens do not describe a usable code: an
// over-subscribed code is always rejected, and an incomplete code is
// accepted only if it is empty or has a single codeword of length 1.
func buildDecodeTable(table []uint32, lens []uint8, results []uint32, tableBits, maxLen uint, sortedSyms []uint16) bool {
	numSyms := len(lens)
	tableMask := uint32(1)<<tableBits - 1
	var lenCounts [maxCodewordLen + 1]uint32
	var offsets [maxCodewordLen + 1]uint32

	for _, l := range lens {
		lenCounts[l]++
	}

	// Sort the symbols by codeword length, then by symbol value.
	for l := uint(0); l < maxLen; l++ {
		offsets[l+1] = offsets[l] + lenCounts[l]
	}
	for sym, l := range lens {
		sortedSyms[offsets[l]] = uint16(sym)
		offsets[l]++
	}

	remainder := int32(1)
	for l := uint(1); l <= maxLen; l++ {
		remainder <<= 1
		remainder -= int32(lenCounts[l])
		if remainder < 0 {
			return false
		}
	}

	if remainder != 0 {
		// Unused codewords decode as symbol 0, with length 1 so that
		// decoding still makes progress.
		entry := results[0] | 1
		for i := range table[:1<<tableBits] {
			table[i] = entry
		}
		if remainder == 1<<maxLen {
			return true
		}
		if remainder != 1<<(maxLen-1) || lenCounts[1] != 1 {
			return false
		}
	}

	symIdx := int(offsets[0])
	sym := sortedSyms[symIdx]
	symIdx++
	codeword := uint32(0)
	codewordLen := uint(1)
	for lenCounts[codewordLen] == 0 {
		codewordLen++
	}
	stride := uint32(1) << codewordLen
	curTableEnd := uint32(1) << tableBits

	// next moves to the following codeword in canonical order. Codewords
	// are bit-reversed, so incrementing means setting the highest 0 bit
	// and clearing everything above it; moving to a longer length appends
	// 0 bits, which in reversed form changes nothing.
	next := func() {
		bit := uint32(1) << bsr(int(^codeword&(1<<codewordLen-1)))
		codeword &= bit - 1
		codeword |= bit
		lenCounts[codewordLen]--
		for lenCounts[codewordLen] == 0 {
			codewordLen++
			stride <<= 1
		}
	}

	// Codewords no longer than tableBits fill every main table entry whose
	// low bits match them.
	for codewordLen <= tableBits {
		entry := results[sym] | uint32(codewordLen)
		for i := codeword; i < curTableEnd; i += stride {
			table[i] = entry
		}
		if symIdx == numSyms {
			return true
		}
		sym = sortedSyms[symIdx]
		symIdx++
		next()
	}

	// The rest go in subtables, one for each distinct tableBits-bit prefix.
	stride >>= tableBits
	subtablePrefix := ^uint32(0)
	subtableStart := uint32(0)
	for {
		if codeword&tableMask != subtablePrefix {
			subtablePrefix = codeword & tableMask
			subtableStart = curTableEnd

			// The subtable must be big enough for the longest
			// codeword with this prefix.
			subtableBits := codewordLen - tableBits
			rem := int32(1) << subtableBits
			for {
				rem -= int32(lenCounts[tableBits+subtableBits])
				if rem <= 0 {
					break
				}
				subtableBits++
				rem <<= 1
			}
			curTableEnd = subtableStart + 1<<subtableBits

			table[subtablePrefix] = huffdecSubtablePointer |
				subtableStart<<huffdecResultShift | uint32(subtableBits)
		}

		entry := results[sym] | uint32(codewordLen-tableBits)
		for i := subtableStart + codeword>>tableBits; i < curTableEnd; i += stride {
			table[i] = entry
		}
		if symIdx == numSyms {
			return true
		}
		sym = sortedSyms[symIdx]
		symIdx++
		next()
	}
}
