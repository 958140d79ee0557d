package flate

import "hash/crc32"

// Checksums holds the checksum functions used by the zlib and gzip
// wrappers. Each function updates a running checksum with p and returns the
// new value. A nil field means the package default.
type Checksums struct {
	// CRC32 is the CRC-32 (IEEE) used by gzip. The initial value is 0.
	CRC32 func(crc uint32, p []byte) uint32

	// Adler32 is the Adler-32 used by zlib. The initial value is 1.
	Adler32 func(adler uint32, p []byte) uint32
}

func (c Checksums) crc32(crc uint32, p []byte) uint32 {
	if c.CRC32 != nil {
		return c.CRC32(crc, p)
	}
	return crc32.Update(crc, crc32.IEEETable, p)
}

func (c Checksums) adler32(adler uint32, p []byte) uint32 {
	if c.Adler32 != nil {
		return c.Adler32(adler, p)
	}
	return Adler32(adler, p)
}

const (
	adlerMod = 65521
	// adlerNMax is the most bytes that can be summed before s2 might
	// overflow 32 bits.
	adlerNMax = 5552
)

// Adler32 updates the Adler-32 checksum adler with p. Start from 1.
func Adler32(adler uint32, p []byte) uint32 {
	s1, s2 := adler&0xffff, adler>>16
	for len(p) > 0 {
		chunk := p
		if len(chunk) > adlerNMax {
			chunk = chunk[:adlerNMax]
		}
		p = p[len(chunk):]
		for len(chunk) >= 4 {
			s1 += uint32(chunk[0])
			s2 += s1
			s1 += uint32(chunk[1])
			s2 += s1
			s1 += uint32(chunk[2])
			s2 += s1
			s1 += uint32(chunk[3])
			s2 += s1
			chunk = chunk[4:]
		}
		for _, b := range chunk {
			s1 += uint32(b)
			s2 += s1
		}
		s1 %= adlerMod
		s2 %= adlerMod
	}
	return s2<<16 | s1
}
