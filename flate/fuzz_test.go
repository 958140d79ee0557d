package flate

import (
	"bytes"
	stdflate "compress/flate"
	"io"
	"testing"
)

func FuzzRoundTrip(f *testing.F) {
	f.Add([]byte(""), uint8(0))
	f.Add([]byte("hello world"), uint8(1))
	f.Add(bytes.Repeat([]byte{0x00}, 1024), uint8(9))
	f.Add(bytes.Repeat([]byte("abc"), 500), uint8(7))
	f.Add(text(5000, 1), uint8(12))

	f.Fuzz(func(t *testing.T, data []byte, level uint8) {
		if len(data) > 1<<16 {
			data = data[:1<<16]
		}
		c, err := NewCompressor(int(level) % (MaxLevel + 1))
		if err != nil {
			t.Fatal(err)
		}
		compressed := make([]byte, CompressBound(len(data)))
		n, err := c.Compress(compressed, data)
		if err != nil {
			t.Fatalf("Compress: %v", err)
		}
		compressed = compressed[:n]

		out := make([]byte, len(data))
		if err := NewDecompressor().DecompressExact(out, compressed); err != nil {
			t.Fatalf("DecompressExact: %v", err)
		}
		if !bytes.Equal(out, data) {
			t.Fatal("round-trip mismatch")
		}
	})
}

// FuzzDecompress checks that arbitrary input never makes the decompressor
// fail in any way but an error, and that it agrees with compress/flate.
func FuzzDecompress(f *testing.F) {
	c, _ := NewCompressor(DefaultLevel)
	for _, in := range [][]byte{nil, []byte("hello, hello, hello"), text(3000, 2)} {
		dst := make([]byte, CompressBound(len(in)))
		n, _ := c.Compress(dst, in)
		f.Add(dst[:n])
	}
	f.Add([]byte{0x03, 0x00})
	f.Add([]byte{0x01, 0x00, 0x00, 0xff, 0xff})

	f.Fuzz(func(t *testing.T, src []byte) {
		out := make([]byte, 1<<16)
		n, nIn, err := NewDecompressor().DecompressN(out, src)
		if err != nil {
			return
		}
		if nIn > len(src) {
			t.Fatalf("consumed %d bytes of %d", nIn, len(src))
		}
		// Some incomplete codes are accepted here but not by
		// compress/flate.
		std, err := io.ReadAll(stdflate.NewReader(bytes.NewReader(src[:nIn])))
		if err == nil && !bytes.Equal(std, out[:n]) {
			t.Fatal("output differs from compress/flate")
		}
	})
}
