package flate

import "encoding/binary"

const (
	zlibMinOverhead = 6
	zlibFooterSize  = 4

	zlibMethodDeflate = 8
	zlibCINFO32K      = 7

	zlibFastestCompression = 0
	zlibFastCompression    = 1
	zlibDefaultCompression = 2
	zlibSlowestCompression = 3
)

// ZlibCompressBound returns the largest size that compressing n bytes to
// zlib format can produce.
func ZlibCompressBound(n int) int {
	return zlibMinOverhead + CompressBound(n)
}

// CompressZlib is like Compress, but it writes zlib format: a 2-byte
// header, the DEFLATE stream, and the Adler-32 of src.
func (c *Compressor) CompressZlib(dst, src []byte) (int, error) {
	if len(dst) < zlibMinOverhead {
		return 0, ErrInsufficientSpace
	}

	var hint uint16
	switch {
	case c.level < 2:
		hint = zlibFastestCompression
	case c.level < 6:
		hint = zlibFastCompression
	case c.level < 8:
		hint = zlibDefaultCompression
	default:
		hint = zlibSlowestCompression
	}
	hdr := uint16(zlibCINFO32K<<12|zlibMethodDeflate<<8) | hint<<6
	hdr |= 31 - hdr%31
	binary.BigEndian.PutUint16(dst, hdr)

	n, err := c.Compress(dst[2:len(dst)-zlibFooterSize], src)
	if err != nil {
		return 0, err
	}
	binary.BigEndian.PutUint32(dst[2+n:], c.Checksums.adler32(1, src))
	return 2 + n + zlibFooterSize, nil
}

// DecompressZlib is like Decompress, but for zlib format. It checks the
// header and the Adler-32 of the output.
func (d *Decompressor) DecompressZlib(dst, src []byte) (int, error) {
	n, _, err := d.DecompressZlibN(dst, src)
	return n, err
}

// DecompressZlibN is like DecompressZlib, but it also returns the number
// of bytes of src used, trailer included.
func (d *Decompressor) DecompressZlibN(dst, src []byte) (nOut, nIn int, err error) {
	if len(src) < zlibMinOverhead {
		return 0, 0, badData("zlib: input too short")
	}

	hdr := binary.BigEndian.Uint16(src)
	switch {
	case hdr%31 != 0:
		return 0, 0, badData("zlib: header check failed")
	case hdr>>8&0xf != zlibMethodDeflate:
		return 0, 0, badData("zlib: unsupported compression method %d", hdr>>8&0xf)
	case hdr>>12 > zlibCINFO32K:
		return 0, 0, badData("zlib: window size 2^%d too large", hdr>>12+8)
	case hdr>>5&1 != 0:
		return 0, 0, badData("zlib: preset dictionary not supported")
	}

	nOut, n, err := d.decompress(dst, src[2:len(src)-zlibFooterSize])
	if err != nil {
		return nOut, 0, err
	}

	pos := 2 + n
	want := binary.BigEndian.Uint32(src[pos:])
	if got := d.Checksums.adler32(1, dst[:nOut]); got != want {
		return nOut, 0, badData("zlib: Adler-32 is %08x, want %08x", got, want)
	}
	return nOut, pos + zlibFooterSize, nil
}
