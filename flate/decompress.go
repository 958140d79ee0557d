package flate

// maxOverread is how many bytes past the end of the input the bit reader
// may pretend to read. A valid stream never needs more than the bit
// buffer's lookahead.
const maxOverread = 8

// A bitReader reads bits, least significant first, from src. When src runs
// out, it supplies zero bytes and counts them in overread.
type bitReader struct {
	src      []byte
	pos      int
	bitbuf   uint64
	bitsleft uint
	overread int
}

// refill loads bytes until the buffer holds at least 57 bits.
func (r *bitReader) refill() {
	for r.bitsleft <= 56 {
		if r.pos < len(r.src) {
			r.bitbuf |= uint64(r.src[r.pos]) << r.bitsleft
			r.pos++
		} else {
			r.overread++
		}
		r.bitsleft += 8
	}
}

func (r *bitReader) bits(n uint) uint32 {
	return uint32(r.bitbuf) & (1<<n - 1)
}

func (r *bitReader) remove(n uint) {
	r.bitbuf >>= n
	r.bitsleft -= n
}

// unconsumed returns the number of whole bytes that have been loaded into
// the buffer but not used, excluding overread bytes. It reports false if
// more bytes were overread than are left in the buffer, which means the
// stream used bits past the end of the input.
func (r *bitReader) unconsumed() (int, bool) {
	buffered := int(r.bitsleft >> 3)
	if r.overread > buffered {
		return 0, false
	}
	return buffered - r.overread, true
}

// alignToByte discards the bits left in the current byte and rewinds
// the input to the next byte boundary.
func (r *bitReader) alignToByte() bool {
	n, ok := r.unconsumed()
	if !ok {
		return false
	}
	r.pos -= n
	r.overread = 0
	r.bitbuf = 0
	r.bitsleft = 0
	return true
}

// A Decompressor decompresses raw DEFLATE, zlib and gzip data held in
// memory. Its decode tables are reused from call to call. A Decompressor
// must not be used by more than one goroutine at a time.
//
// The zero value is ready to use.
type Decompressor struct {
	// Checksums are the checksum functions used to verify zlib and gzip
	// data.
	Checksums Checksums

	precodeLens [numPrecodeSyms]uint8
	lens        [numLitlenSyms + numOffsetSyms]uint8

	precodeTable [precodeEnough]uint32
	litlenTable  [litlenEnough]uint32
	offsetTable  [offsetEnough]uint32
	sortedSyms   [numLitlenSyms]uint16

	// staticLoaded means the tables hold the static codes, so another
	// static block can use them without rebuilding.
	staticLoaded bool
}

func NewDecompressor() *Decompressor {
	return new(Decompressor)
}

// Decompress decompresses the raw DEFLATE stream in src into dst, and
// returns the number of bytes written. The stream must end within src, but
// src may have more data after it. If dst is too small to hold all the
// output, it returns ErrInsufficientSpace.
func (d *Decompressor) Decompress(dst, src []byte) (int, error) {
	n, _, err := d.DecompressN(dst, src)
	return n, err
}

// DecompressN is like Decompress, but it also returns the number of bytes
// of src that the stream occupied.
func (d *Decompressor) DecompressN(dst, src []byte) (nOut, nIn int, err error) {
	return d.decompress(dst, src)
}

// DecompressExact decompresses src into dst, and requires the output to be
// exactly len(dst) bytes long. If there is less, it returns ErrShortInput.
func (d *Decompressor) DecompressExact(dst, src []byte) error {
	n, _, err := d.decompress(dst, src)
	if err != nil {
		return err
	}
	if n != len(dst) {
		return ErrShortInput
	}
	return nil
}

func (d *Decompressor) decompress(dst, src []byte) (nOut, nIn int, err error) {
	r := bitReader{src: src}
	out := 0

	for {
		r.refill()
		final := r.bits(1) == 1
		blockType := r.bits(3) >> 1
		r.remove(3)

		switch blockType {
		case blockTypeStored:
			if !r.alignToByte() {
				return out, 0, ErrBadData
			}
			if len(src)-r.pos < 4 {
				return out, 0, ErrBadData
			}
			length := int(src[r.pos]) | int(src[r.pos+1])<<8
			nlength := int(src[r.pos+2]) | int(src[r.pos+3])<<8
			r.pos += 4
			if length != ^nlength&0xffff {
				return out, 0, ErrBadData
			}
			if length > len(dst)-out {
				return out, 0, ErrInsufficientSpace
			}
			if length > len(src)-r.pos {
				return out, 0, ErrBadData
			}
			out += copy(dst[out:], src[r.pos:r.pos+length])
			r.pos += length

		case blockTypeStatic:
			if !d.staticLoaded {
				d.loadStaticCodes()
			}
			if out, err = d.decodeBlock(&r, dst, out); err != nil {
				return out, 0, err
			}

		case blockTypeDynamic:
			d.staticLoaded = false
			if err = d.readDynamicHeader(&r); err != nil {
				return out, 0, err
			}
			if out, err = d.decodeBlock(&r, dst, out); err != nil {
				return out, 0, err
			}

		default:
			return out, 0, ErrBadData
		}

		if final {
			break
		}
	}

	n, ok := r.unconsumed()
	if !ok {
		return out, 0, ErrBadData
	}
	return out, r.pos - n, nil
}

func (d *Decompressor) loadStaticCodes() {
	lens := d.lens[:]
	for i := range lens {
		switch {
		case i < 144:
			lens[i] = 8
		case i < 256:
			lens[i] = 9
		case i < 280:
			lens[i] = 7
		case i < numLitlenSyms:
			lens[i] = 8
		default:
			lens[i] = 5
		}
	}
	// The static codes are complete, so these can't fail.
	buildDecodeTable(d.offsetTable[:], lens[numLitlenSyms:], offsetDecodeResults[:], offsetTableBits, maxCodewordLen, d.sortedSyms[:])
	buildDecodeTable(d.litlenTable[:], lens[:numLitlenSyms], litlenDecodeResults[:], litlenTableBits, maxCodewordLen, d.sortedSyms[:])
	d.staticLoaded = true
}

// readDynamicHeader reads the code definitions at the start of a dynamic
// Huffman block and builds the decode tables.
func (d *Decompressor) readDynamicHeader(r *bitReader) error {
	r.refill()
	numLitlenSyms := 257 + int(r.bits(5))
	r.remove(5)
	numOffsetSyms := 1 + int(r.bits(5))
	r.remove(5)
	numExplicitPrecodeLens := 4 + int(r.bits(4))
	r.remove(4)

	for i := range precodeLensPermutation {
		if i < numExplicitPrecodeLens {
			if r.bitsleft < 3 {
				r.refill()
			}
			d.precodeLens[precodeLensPermutation[i]] = uint8(r.bits(3))
			r.remove(3)
		} else {
			d.precodeLens[precodeLensPermutation[i]] = 0
		}
	}
	if !buildDecodeTable(d.precodeTable[:], d.precodeLens[:], precodeDecodeResults[:], precodeTableBits, maxPrecodeCodewordLen, d.sortedSyms[:]) {
		return ErrBadData
	}

	total := numLitlenSyms + numOffsetSyms
	lens := d.lens[:total]
	for i := 0; i < total; {
		r.refill()
		if r.overread > maxOverread {
			return ErrBadData
		}

		// The precode table has no subtables.
		entry := d.precodeTable[r.bits(maxPrecodeCodewordLen)]
		r.remove(uint(entry & huffdecLengthMask))
		presym := entry >> huffdecResultShift

		if presym < 16 {
			lens[i] = uint8(presym)
			i++
			continue
		}

		var rep uint8
		var count int
		switch presym {
		case 16:
			// Repeat the previous length 3 to 6 times.
			if i == 0 {
				return ErrBadData
			}
			rep = lens[i-1]
			count = 3 + int(r.bits(2))
			r.remove(2)
		case 17:
			// Repeat zero 3 to 10 times.
			count = 3 + int(r.bits(3))
			r.remove(3)
		default:
			// Repeat zero 11 to 138 times.
			count = 11 + int(r.bits(7))
			r.remove(7)
		}
		if count > total-i {
			return ErrBadData
		}
		for end := i + count; i < end; i++ {
			lens[i] = rep
		}
	}

	if !buildDecodeTable(d.offsetTable[:], lens[numLitlenSyms:], offsetDecodeResults[:], offsetTableBits, maxCodewordLen, d.sortedSyms[:]) {
		return ErrBadData
	}
	if !buildDecodeTable(d.litlenTable[:], lens[:numLitlenSyms], litlenDecodeResults[:], litlenTableBits, maxCodewordLen, d.sortedSyms[:]) {
		return ErrBadData
	}
	return nil
}

// decodeBlock decodes the symbols of a Huffman block, writing the output
// to dst starting at out. It returns the new output position.
func (d *Decompressor) decodeBlock(r *bitReader, dst []byte, out int) (int, error) {
	litlenTable := d.litlenTable[:]
	offsetTable := d.offsetTable[:]

	for {
		// 57 bits is enough for a whole match: a 15-bit litlen
		// codeword, 5 extra length bits, a 15-bit offset codeword and
		// 13 extra offset bits.
		r.refill()
		if r.overread > maxOverread {
			return out, ErrBadData
		}

		entry := litlenTable[r.bits(litlenTableBits)]
		if entry&huffdecSubtablePointer != 0 {
			r.remove(litlenTableBits)
			start := entry >> huffdecResultShift & 0xffff
			entry = litlenTable[start+r.bits(uint(entry&huffdecLengthMask))]
		}
		r.remove(uint(entry & huffdecLengthMask))

		if entry&huffdecLiteral != 0 {
			if out == len(dst) {
				return out, ErrInsufficientSpace
			}
			dst[out] = byte(entry >> huffdecResultShift)
			out++
			continue
		}
		if entry&huffdecInvalid != 0 {
			return out, ErrBadData
		}

		result := entry >> huffdecResultShift
		length := int(result >> huffdecLengthBaseShift)
		if length == huffdecEndOfBlock {
			return out, nil
		}
		extra := uint(result & 0xff)
		length += int(r.bits(extra))
		r.remove(extra)

		if length > len(dst)-out {
			return out, ErrInsufficientSpace
		}

		entry = offsetTable[r.bits(offsetTableBits)]
		if entry&huffdecSubtablePointer != 0 {
			r.remove(offsetTableBits)
			start := entry >> huffdecResultShift & 0xffff
			entry = offsetTable[start+r.bits(uint(entry&huffdecLengthMask))]
		}
		r.remove(uint(entry & huffdecLengthMask))
		if entry&huffdecInvalid != 0 {
			return out, ErrBadData
		}

		result = entry >> huffdecResultShift
		offset := int(result & huffdecOffsetBaseMask)
		extra = uint(result >> huffdecExtraOffsetBitsShift)
		offset += int(r.bits(extra))
		r.remove(extra)

		if offset > out {
			return out, ErrBadData
		}

		src := out - offset
		if offset >= length {
			copy(dst[out:out+length], dst[src:src+length])
		} else {
			// The source overlaps the bytes being written, so a
			// forward byte copy repeats the last offset bytes.
			for i := 0; i < length; i++ {
				dst[out+i] = dst[src+i]
			}
		}
		out += length
	}
}
