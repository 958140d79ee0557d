package flate

import "github.com/andybalholm/press"

// dynamicHeader is the precomputed code description of a dynamic Huffman
// block.
type dynamicHeader struct {
	numLitlenSyms   int
	numOffsetSyms   int
	numExplicitLens int

	// lens holds the litlen lengths followed directly by the offset
	// lengths, so that runs can cross from one to the other.
	lens [numLitlenSyms + numOffsetSyms]uint8

	precodeFreqs     [numPrecodeSyms]uint32
	precodeLens      [numPrecodeSyms]uint8
	precodeCodewords [numPrecodeSyms]uint32

	// Each item is a precode symbol in the low 5 bits, with the value of
	// its extra bits above that.
	precodeItems []uint32
}

// computePrecodeItems run-length encodes lens with the precode alphabet,
// appending the items to items and counting symbol frequencies in freqs.
func computePrecodeItems(lens []uint8, freqs *[numPrecodeSyms]uint32, items []uint32) []uint32 {
	*freqs = [numPrecodeSyms]uint32{}

	runStart := 0
	for runStart != len(lens) {
		l := lens[runStart]
		runEnd := runStart + 1
		for runEnd != len(lens) && lens[runEnd] == l {
			runEnd++
		}

		if l == 0 {
			// Symbol 18: 11 to 138 zeroes.
			for runEnd-runStart >= 11 {
				extra := min(runEnd-runStart-11, 0x7f)
				freqs[18]++
				items = append(items, 18|uint32(extra)<<5)
				runStart += 11 + extra
			}
			// Symbol 17: 3 to 10 zeroes.
			if runEnd-runStart >= 3 {
				extra := min(runEnd-runStart-3, 0x7)
				freqs[17]++
				items = append(items, 17|uint32(extra)<<5)
				runStart += 3 + extra
			}
		} else if runEnd-runStart >= 4 {
			// Symbol 16 repeats the previous length 3 to 6 times, so
			// send the length once, then repeat it.
			freqs[l]++
			items = append(items, uint32(l))
			runStart++
			for {
				extra := min(runEnd-runStart-3, 0x3)
				freqs[16]++
				items = append(items, 16|uint32(extra)<<5)
				runStart += 3 + extra
				if runEnd-runStart < 3 {
					break
				}
			}
		}

		// Whatever is left is sent one length at a time.
		for ; runStart != runEnd; runStart++ {
			freqs[l]++
			items = append(items, uint32(l))
		}
	}
	return items
}

// precomputeHeader works out the dynamic block header for c.codes.
func (c *Compressor) precomputeHeader() {
	h := &c.header

	h.numLitlenSyms = numLitlenSyms
	for h.numLitlenSyms > 257 && c.codes.litlenLens[h.numLitlenSyms-1] == 0 {
		h.numLitlenSyms--
	}
	h.numOffsetSyms = numOffsetSyms
	for h.numOffsetSyms > 1 && c.codes.offsetLens[h.numOffsetSyms-1] == 0 {
		h.numOffsetSyms--
	}

	n := copy(h.lens[:], c.codes.litlenLens[:h.numLitlenSyms])
	n += copy(h.lens[n:], c.codes.offsetLens[:h.numOffsetSyms])

	h.precodeItems = computePrecodeItems(h.lens[:n], &h.precodeFreqs, h.precodeItems[:0])
	makeHuffmanCode(h.precodeFreqs[:], h.precodeLens[:], h.precodeCodewords[:], maxPrecodeCodewordLen)

	h.numExplicitLens = numPrecodeSyms
	for h.numExplicitLens > 4 && h.precodeLens[precodeLensPermutation[h.numExplicitLens-1]] == 0 {
		h.numExplicitLens--
	}
}

func (h *dynamicHeader) write(w *bitWriter) {
	w.addBits(uint32(h.numLitlenSyms-257), 5)
	w.addBits(uint32(h.numOffsetSyms-1), 5)
	w.addBits(uint32(h.numExplicitLens-4), 4)
	w.flushBits()

	for _, sym := range precodeLensPermutation[:h.numExplicitLens] {
		w.writeBits(uint32(h.precodeLens[sym]), 3)
	}

	for _, item := range h.precodeItems {
		sym := item & 0x1f
		w.addBits(h.precodeCodewords[sym], uint(h.precodeLens[sym]))
		if sym >= 16 {
			w.addBits(item>>5, uint(precodeExtraBits[sym]))
		}
		w.flushBits()
	}
}

func writeBlockHeader(w *bitWriter, final bool, blockType uint32) {
	var bfinal uint32
	if final {
		bfinal = 1
	}
	w.addBits(bfinal, 1)
	w.addBits(blockType, 2)
	w.flushBits()
}

// writeStoredBlocks writes data as stored blocks of at most 65535 bytes
// each. Only the last of them is marked final, and only if final is set.
func writeStoredBlocks(w *bitWriter, data []byte, final bool) {
	for {
		n := min(len(data), maxStoredLen)
		writeBlockHeader(w, final && n == len(data), blockTypeStored)
		w.alignToByte()
		hdr := [4]byte{byte(n), byte(n >> 8), ^byte(n), ^byte(n >> 8)}
		w.writeBytes(hdr[:])
		w.writeBytes(data[:n])
		data = data[n:]
		if len(data) == 0 {
			return
		}
	}
}

func writeLiteral(w *bitWriter, codes *huffmanCodes, lit byte) {
	w.addBits(codes.litlenCodewords[lit], uint(codes.litlenLens[lit]))
}

func writeMatch(w *bitWriter, codes *huffmanCodes, length, offset int) {
	slot := lengthSlot[length]
	sym := firstLengthSym + int(slot)
	w.addBits(codes.litlenCodewords[sym], uint(codes.litlenLens[sym]))
	w.addBits(uint32(length)-uint32(lengthBase[slot]), uint(lengthExtraBits[slot]))

	oslot := offsetSlot(offset)
	w.addBits(codes.offsetCodewords[oslot], uint(codes.offsetLens[oslot]))
	w.addBits(uint32(offset)-uint32(offsetBase[oslot]), uint(offsetExtraBits[oslot]))
	w.flushBits()
}

// writeSequences writes the literals and matches of a block. The last
// sequence has no match.
func writeSequences(w *bitWriter, codes *huffmanCodes, seqs []press.Match, block []byte) {
	pos := 0
	for _, s := range seqs {
		lits := block[pos : pos+s.Unmatched]
		for len(lits) >= 4 {
			writeLiteral(w, codes, lits[0])
			writeLiteral(w, codes, lits[1])
			writeLiteral(w, codes, lits[2])
			writeLiteral(w, codes, lits[3])
			w.flushBits()
			lits = lits[4:]
		}
		for _, b := range lits {
			writeLiteral(w, codes, b)
		}
		w.flushBits()
		pos += s.Unmatched

		if s.Length == 0 {
			return
		}
		writeMatch(w, codes, s.Length, s.Distance)
		pos += s.Length
	}
}

// flushBlock writes out a block, choosing whichever of the three block
// types encodes it in the fewest bits. If seqs is nil, the block comes from
// the near-optimal parser, which has already built c.codes and leaves its
// choices in c.opt.
func (c *Compressor) flushBlock(w *bitWriter, block []byte, seqs []press.Match, final bool) {
	if seqs != nil {
		c.freqs.litlen[endOfBlock]++
		c.codes.build(&c.freqs)
	}

	c.precomputeHeader()
	h := &c.header

	dynamicCost := 5 + 5 + 4 + 3*h.numExplicitLens
	for sym, f := range h.precodeFreqs {
		dynamicCost += int(f) * (int(precodeExtraBits[sym]) + int(h.precodeLens[sym]))
	}

	staticCost := 0
	for sym := 0; sym < numLiterals; sym++ {
		f := int(c.freqs.litlen[sym])
		dynamicCost += f * int(c.codes.litlenLens[sym])
		if sym < 144 {
			staticCost += f * 8
		} else {
			staticCost += f * 9
		}
	}

	dynamicCost += int(c.codes.litlenLens[endOfBlock])
	staticCost += 7

	for slot, extra := range lengthExtraBits {
		sym := firstLengthSym + slot
		f := int(c.freqs.litlen[sym])
		dynamicCost += f * (int(extra) + int(c.codes.litlenLens[sym]))
		staticCost += f * (int(extra) + int(staticCodes.litlenLens[sym]))
	}

	for slot, extra := range offsetExtraBits {
		f := int(c.freqs.offset[slot])
		dynamicCost += f * (int(extra) + int(c.codes.offsetLens[slot]))
		staticCost += f * (int(extra) + 5)
	}

	numStored := (len(block) + maxStoredLen - 1) / maxStoredLen
	storedCost := int(-(w.bitcount+3)&7) + 32 + 40*(numStored-1) + 8*len(block)

	var codes *huffmanCodes
	switch {
	case dynamicCost < min(staticCost, storedCost):
		writeBlockHeader(w, final, blockTypeDynamic)
		h.write(w)
		codes = &c.codes
	case staticCost < storedCost:
		writeBlockHeader(w, final, blockTypeStatic)
		codes = &staticCodes
	default:
		writeStoredBlocks(w, block, final)
		return
	}

	if seqs == nil {
		c.opt.writeItems(w, codes, len(block))
	} else {
		writeSequences(w, codes, seqs, block)
	}
	w.writeBits(codes.litlenCodewords[endOfBlock], uint(codes.litlenLens[endOfBlock]))
}
