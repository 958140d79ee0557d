package flate

import (
	"bytes"
	"encoding/binary"
)

const (
	gzipMinOverhead = 18
	gzipHeaderSize  = 10
	gzipFooterSize  = 8

	gzipID1           = 0x1f
	gzipID2           = 0x8b
	gzipMethodDeflate = 8
	gzipOSUnknown     = 255

	gzipFTEXT     = 0x01
	gzipFHCRC     = 0x02
	gzipFEXTRA    = 0x04
	gzipFNAME     = 0x08
	gzipFCOMMENT  = 0x10
	gzipFRESERVED = 0xe0

	gzipXFLSlowest = 0x02
	gzipXFLFastest = 0x04
)

// GzipCompressBound returns the largest size that compressing n bytes to
// gzip format can produce.
func GzipCompressBound(n int) int {
	return gzipMinOverhead + CompressBound(n)
}

// CompressGzip is like Compress, but it writes a gzip member. The header
// has no file name, and its modification time is 0, so the output depends
// only on src and the level.
func (c *Compressor) CompressGzip(dst, src []byte) (int, error) {
	if len(dst) < gzipMinOverhead {
		return 0, ErrInsufficientSpace
	}

	var xfl byte
	switch {
	case c.level < 2:
		xfl = gzipXFLFastest
	case c.level >= 8:
		xfl = gzipXFLSlowest
	}
	hdr := append(dst[:0],
		gzipID1, gzipID2,
		gzipMethodDeflate,
		0,          // FLG
		0, 0, 0, 0, // MTIME
		xfl,
		gzipOSUnknown,
	)

	n, err := c.Compress(dst[len(hdr):len(dst)-gzipFooterSize], src)
	if err != nil {
		return 0, err
	}
	out := appendUint32(dst[:len(hdr)+n], c.Checksums.crc32(0, src))
	out = appendUint32(out, uint32(len(src)))
	return len(out), nil
}

func appendUint32(dst []byte, n uint32) []byte {
	return append(dst,
		byte(n),
		byte(n>>8),
		byte(n>>16),
		byte(n>>24),
	)
}

// DecompressGzip is like Decompress, but for a gzip member. It checks the
// header, the CRC-32 and the size of the output.
func (d *Decompressor) DecompressGzip(dst, src []byte) (int, error) {
	n, _, err := d.DecompressGzipN(dst, src)
	return n, err
}

// DecompressGzipN is like DecompressGzip, but it also returns the number
// of bytes of src used by the member. If src holds several concatenated
// members, the next one starts at src[nIn:].
func (d *Decompressor) DecompressGzipN(dst, src []byte) (nOut, nIn int, err error) {
	pos, err := gzipHeaderLen(src)
	if err != nil {
		return 0, 0, err
	}

	nOut, n, err := d.decompress(dst, src[pos:len(src)-gzipFooterSize])
	if err != nil {
		return nOut, 0, err
	}
	pos += n

	crc := binary.LittleEndian.Uint32(src[pos:])
	size := binary.LittleEndian.Uint32(src[pos+4:])
	if got := d.Checksums.crc32(0, dst[:nOut]); got != crc {
		return nOut, 0, badData("gzip: CRC-32 is %08x, want %08x", got, crc)
	}
	if uint32(nOut) != size {
		return nOut, 0, badData("gzip: size is %d, want %d", uint32(nOut), size)
	}
	return nOut, pos + gzipFooterSize, nil
}

// gzipHeaderLen checks the gzip header at the start of src, and returns its
// length. It makes sure there is room for the footer after it.
func gzipHeaderLen(src []byte) (int, error) {
	if len(src) < gzipMinOverhead {
		return 0, badData("gzip: input too short")
	}
	if src[0] != gzipID1 || src[1] != gzipID2 {
		return 0, badData("gzip: invalid magic number %02x %02x", src[0], src[1])
	}
	if src[2] != gzipMethodDeflate {
		return 0, badData("gzip: unsupported compression method %d", src[2])
	}
	flg := src[3]
	if flg&gzipFRESERVED != 0 {
		return 0, badData("gzip: reserved flags %02x set", flg&gzipFRESERVED)
	}

	pos := gzipHeaderSize
	if flg&gzipFEXTRA != 0 {
		xlen := int(binary.LittleEndian.Uint16(src[pos:]))
		pos += 2
		if len(src)-pos < xlen+gzipFooterSize {
			return 0, badData("gzip: extra field runs past the end of the input")
		}
		pos += xlen
	}
	if flg&gzipFNAME != 0 {
		i := bytes.IndexByte(src[pos:], 0)
		if i < 0 || len(src)-(pos+i+1) < gzipFooterSize {
			return 0, badData("gzip: unterminated file name")
		}
		pos += i + 1
	}
	if flg&gzipFCOMMENT != 0 {
		i := bytes.IndexByte(src[pos:], 0)
		if i < 0 || len(src)-(pos+i+1) < gzipFooterSize {
			return 0, badData("gzip: unterminated comment")
		}
		pos += i + 1
	}
	if flg&gzipFHCRC != 0 {
		pos += 2
		if len(src)-pos < gzipFooterSize {
			return 0, badData("gzip: header CRC runs past the end of the input")
		}
	}
	return pos, nil
}
