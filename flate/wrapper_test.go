package flate

import (
	"bytes"
	"compress/zlib"
	"hash/adler32"
	"hash/crc32"
	"io"
	"testing"

	kgzip "github.com/klauspost/compress/gzip"
	kzlib "github.com/klauspost/compress/zlib"
	"github.com/pkg/errors"
)

func compressZlib(t *testing.T, c *Compressor, data []byte) []byte {
	t.Helper()
	dst := make([]byte, ZlibCompressBound(len(data)))
	n, err := c.CompressZlib(dst, data)
	if err != nil {
		t.Fatal(err)
	}
	return dst[:n]
}

func compressGzip(t *testing.T, c *Compressor, data []byte) []byte {
	t.Helper()
	dst := make([]byte, GzipCompressBound(len(data)))
	n, err := c.CompressGzip(dst, data)
	if err != nil {
		t.Fatal(err)
	}
	return dst[:n]
}

func TestZlibRoundTrip(t *testing.T) {
	d := NewDecompressor()
	for _, in := range testInputs() {
		for _, level := range []int{0, 1, 5, 7, 9, 12} {
			c, _ := NewCompressor(level)
			compressed := compressZlib(t, c, in.data)

			out := make([]byte, len(in.data))
			n, err := d.DecompressZlib(out, compressed)
			if err != nil || n != len(in.data) || !bytes.Equal(out, in.data) {
				t.Fatalf("%s, level %d: DecompressZlib = %d, %v", in.name, level, n, err)
			}

			r, err := zlib.NewReader(bytes.NewReader(compressed))
			if err != nil {
				t.Fatalf("%s, level %d: compress/zlib: %v", in.name, level, err)
			}
			std, err := io.ReadAll(r)
			if err != nil || !bytes.Equal(std, in.data) {
				t.Fatalf("%s, level %d: compress/zlib: %v", in.name, level, err)
			}
		}
	}
}

func TestZlibHeaderLevel(t *testing.T) {
	for level, want := range []byte{0, 0, 1, 1, 1, 1, 2, 2, 3, 3, 3, 3, 3} {
		c, _ := NewCompressor(level)
		compressed := compressZlib(t, c, []byte("hello"))
		if compressed[0] != 0x78 {
			t.Errorf("level %d: CMF is %#x", level, compressed[0])
		}
		if got := compressed[1] >> 6; got != want {
			t.Errorf("level %d: FLEVEL is %d, want %d", level, got, want)
		}
		if (uint(compressed[0])<<8|uint(compressed[1]))%31 != 0 {
			t.Errorf("level %d: bad FCHECK", level)
		}
	}
}

func TestGzipRoundTrip(t *testing.T) {
	d := NewDecompressor()
	for _, in := range testInputs() {
		for _, level := range []int{0, 1, 4, 6, 8, 10} {
			c, _ := NewCompressor(level)
			compressed := compressGzip(t, c, in.data)

			out := make([]byte, len(in.data))
			nOut, nIn, err := d.DecompressGzipN(out, compressed)
			if err != nil || nOut != len(in.data) || nIn != len(compressed) || !bytes.Equal(out, in.data) {
				t.Fatalf("%s, level %d: DecompressGzipN = %d, %d, %v", in.name, level, nOut, nIn, err)
			}

			r, err := kgzip.NewReader(bytes.NewReader(compressed))
			if err != nil {
				t.Fatalf("%s, level %d: klauspost gzip: %v", in.name, level, err)
			}
			k, err := io.ReadAll(r)
			if err != nil || !bytes.Equal(k, in.data) {
				t.Fatalf("%s, level %d: klauspost gzip: %v", in.name, level, err)
			}
		}
	}
}

func TestGzipHeader(t *testing.T) {
	for _, tt := range []struct {
		level int
		xfl   byte
	}{{0, 4}, {1, 4}, {2, 0}, {7, 0}, {8, 2}, {12, 2}} {
		c, _ := NewCompressor(tt.level)
		compressed := compressGzip(t, c, []byte("hello, hello"))
		want := []byte{0x1f, 0x8b, 8, 0, 0, 0, 0, 0, tt.xfl, 255}
		if !bytes.Equal(compressed[:10], want) {
			t.Errorf("level %d: header is % x, want % x", tt.level, compressed[:10], want)
		}
	}
}

func TestDecompressKlauspostWrappers(t *testing.T) {
	data := text(60000, 20)
	d := NewDecompressor()

	var zbuf bytes.Buffer
	zw, _ := kzlib.NewWriterLevel(&zbuf, kzlib.BestCompression)
	zw.Write(data)
	zw.Close()
	out := make([]byte, len(data))
	if n, err := d.DecompressZlib(out, zbuf.Bytes()); err != nil || !bytes.Equal(out[:n], data) {
		t.Errorf("zlib: %d, %v", n, err)
	}

	// A header with every optional field.
	var gbuf bytes.Buffer
	gw := kgzip.NewWriter(&gbuf)
	gw.Name = "opticks.txt"
	gw.Comment = "a comment"
	gw.Extra = []byte("extra field")
	gw.Write(data)
	gw.Close()
	if n, err := d.DecompressGzip(out, gbuf.Bytes()); err != nil || !bytes.Equal(out[:n], data) {
		t.Errorf("gzip: %d, %v", n, err)
	}
}

func TestGzipMultiMember(t *testing.T) {
	parts := [][]byte{text(5000, 21), nil, noise(3000, 22), text(40000, 23)}
	var members []byte
	for i, p := range parts {
		c, _ := NewCompressor(3 * i)
		members = append(members, compressGzip(t, c, p)...)
	}

	d := NewDecompressor()
	for i, p := range parts {
		out := make([]byte, len(p))
		nOut, nIn, err := d.DecompressGzipN(out, members)
		if err != nil {
			t.Fatalf("member %d: %v", i, err)
		}
		if nOut != len(p) || !bytes.Equal(out, p) {
			t.Fatalf("member %d: output doesn't match", i)
		}
		members = members[nIn:]
	}
	if len(members) != 0 {
		t.Errorf("%d bytes left over", len(members))
	}
}

func TestWrapperCorruption(t *testing.T) {
	data := text(10000, 24)
	c, _ := NewCompressor(DefaultLevel)
	z := compressZlib(t, c, data)
	g := compressGzip(t, c, data)

	flip := func(b []byte, i int, mask byte) []byte {
		b = append([]byte{}, b...)
		b[i] ^= mask
		return b
	}

	tests := []struct {
		name string
		fn   func(dst, src []byte) (int, error)
		src  []byte
	}{
		{"zlib FCHECK", NewDecompressor().DecompressZlib, flip(z, 1, 0x01)},
		{"zlib method", NewDecompressor().DecompressZlib, flip(z, 0, 0x01)},
		{"zlib FDICT", NewDecompressor().DecompressZlib, flip(z, 1, 0x20)},
		{"zlib Adler-32", NewDecompressor().DecompressZlib, flip(z, len(z)-1, 0x01)},
		{"zlib too short", NewDecompressor().DecompressZlib, z[:5]},
		{"gzip magic", NewDecompressor().DecompressGzip, flip(g, 1, 0x01)},
		{"gzip method", NewDecompressor().DecompressGzip, flip(g, 2, 0x01)},
		{"gzip reserved flag", NewDecompressor().DecompressGzip, flip(g, 3, 0x80)},
		{"gzip name unterminated", NewDecompressor().DecompressGzip,
			append([]byte{0x1f, 0x8b, 8, gzipFNAME, 0, 0, 0, 0, 0, 255}, bytes.Repeat([]byte{'a'}, 20)...)},
		{"gzip CRC-32", NewDecompressor().DecompressGzip, flip(g, len(g)-8, 0x01)},
		{"gzip size", NewDecompressor().DecompressGzip, flip(g, len(g)-4, 0x01)},
		{"gzip too short", NewDecompressor().DecompressGzip, g[:17]},
	}
	for _, tt := range tests {
		_, err := tt.fn(make([]byte, len(data)), tt.src)
		if !errors.Is(err, ErrBadData) {
			t.Errorf("%s: got %v, want ErrBadData", tt.name, err)
		}
	}
}

func TestWrapperInsufficientSpace(t *testing.T) {
	data := text(10000, 25)
	c, _ := NewCompressor(DefaultLevel)
	z := compressZlib(t, c, data)
	g := compressGzip(t, c, data)

	if n, err := c.CompressZlib(make([]byte, len(z)-1), data); n != 0 || !errors.Is(err, ErrInsufficientSpace) {
		t.Errorf("zlib: %d, %v", n, err)
	}
	if n, err := c.CompressGzip(make([]byte, len(g)-1), data); n != 0 || !errors.Is(err, ErrInsufficientSpace) {
		t.Errorf("gzip: %d, %v", n, err)
	}
	if n, err := c.CompressGzip(make([]byte, 17), nil); n != 0 || !errors.Is(err, ErrInsufficientSpace) {
		t.Errorf("gzip into 17 bytes: %d, %v", n, err)
	}
}

func TestCustomChecksums(t *testing.T) {
	var crcCalls, adlerCalls int
	sums := Checksums{
		CRC32: func(crc uint32, p []byte) uint32 {
			crcCalls++
			return crc32.Update(crc, crc32.IEEETable, p)
		},
		Adler32: func(adler uint32, p []byte) uint32 {
			adlerCalls++
			return Adler32(adler, p)
		},
	}

	data := text(3000, 26)
	c, _ := NewCompressor(DefaultLevel)
	c.Checksums = sums
	d := NewDecompressor()
	d.Checksums = sums

	out := make([]byte, len(data))
	if _, err := d.DecompressZlib(out, compressZlib(t, c, data)); err != nil {
		t.Fatal(err)
	}
	if _, err := d.DecompressGzip(out, compressGzip(t, c, data)); err != nil {
		t.Fatal(err)
	}
	if crcCalls != 2 || adlerCalls != 2 {
		t.Errorf("checksum functions called %d and %d times, want 2 each", crcCalls, adlerCalls)
	}
}

func TestAdler32(t *testing.T) {
	data := noise(3*adlerNMax+17, 27)
	for _, n := range []int{0, 1, 3, 4, 100, adlerNMax, adlerNMax + 1, len(data)} {
		if got, want := Adler32(1, data[:n]), adler32.Checksum(data[:n]); got != want {
			t.Errorf("Adler32 of %d bytes = %08x, want %08x", n, got, want)
		}
	}

	// Updating in pieces gives the same result.
	sum := uint32(1)
	for p := data; len(p) > 0; {
		k := min(len(p), 1000)
		sum = Adler32(sum, p[:k])
		p = p[k:]
	}
	if want := adler32.Checksum(data); sum != want {
		t.Errorf("incremental Adler32 = %08x, want %08x", sum, want)
	}

	// All 0xff bytes make the sums grow fastest.
	ff := bytes.Repeat([]byte{0xff}, 5*adlerNMax)
	if got, want := Adler32(1, ff), adler32.Checksum(ff); got != want {
		t.Errorf("Adler32 of 0xff bytes = %08x, want %08x", got, want)
	}
}
