package flate

// A bitWriter packs bits, least significant first, into a fixed-size
// buffer. It never writes past the end of the buffer; if the output doesn't
// fit, it sets overflow and discards everything after that.
type bitWriter struct {
	dst      []byte
	n        int
	bitbuf   uint64
	bitcount uint
	overflow bool
}

func (w *bitWriter) reset(dst []byte) {
	*w = bitWriter{dst: dst}
}

// addBits adds bits to the buffer without flushing. The caller must flush
// often enough that bitcount never exceeds 64.
func (w *bitWriter) addBits(b uint32, n uint) {
	w.bitbuf |= uint64(b) << w.bitcount
	w.bitcount += n
}

// flushBits writes all complete bytes in the buffer.
func (w *bitWriter) flushBits() {
	for w.bitcount >= 8 {
		if w.n < len(w.dst) {
			w.dst[w.n] = byte(w.bitbuf)
			w.n++
		} else {
			w.overflow = true
		}
		w.bitbuf >>= 8
		w.bitcount -= 8
	}
}

func (w *bitWriter) writeBits(b uint32, n uint) {
	w.addBits(b, n)
	w.flushBits()
}

// alignToByte pads with zero bits up to the next byte boundary.
func (w *bitWriter) alignToByte() {
	w.bitcount += -w.bitcount & 7
	w.flushBits()
}

// writeBytes writes b at a byte boundary.
func (w *bitWriter) writeBytes(b []byte) {
	if w.overflow || len(b) > len(w.dst)-w.n {
		w.overflow = true
		return
	}
	w.n += copy(w.dst[w.n:], b)
}

// flush writes out any partial byte and returns the total number of bytes
// written, or 0 if the output didn't fit.
func (w *bitWriter) flush() int {
	w.alignToByte()
	if w.overflow {
		return 0
	}
	return w.n
}
