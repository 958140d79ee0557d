package flate

import (
	"bytes"
	stdflate "compress/flate"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"testing"

	"github.com/andybalholm/press/internal/guard"
	kflate "github.com/klauspost/compress/flate"
	"github.com/pkg/errors"
)

var vocabulary = strings.Fields(`
	the of and to in is that for it as was with be by on not he this are or
	his from at which but have an they you were her she there one all we
	their light rays colours refraction glass prism experiment white red
	violet reflected surface bodies motion degrees angle observed
	similar manner whereby appear`)

// text returns n bytes of English-like text.
func text(n int, seed int64) []byte {
	r := rand.New(rand.NewSource(seed))
	var b bytes.Buffer
	for b.Len() < n {
		b.WriteString(vocabulary[r.Intn(len(vocabulary))])
		switch r.Intn(16) {
		case 0:
			b.WriteString(".\n")
		case 1:
			b.WriteString(", ")
		default:
			b.WriteByte(' ')
		}
	}
	return b.Bytes()[:n]
}

func noise(n int, seed int64) []byte {
	b := make([]byte, n)
	rand.New(rand.NewSource(seed)).Read(b)
	return b
}

// skewed returns n bytes drawn from a small alphabet, mostly without
// repeated strings.
func skewed(n int, seed int64) []byte {
	r := rand.New(rand.NewSource(seed))
	b := make([]byte, n)
	for i := range b {
		b[i] = "aaaabbbcdde\x00"[r.Intn(12)]
	}
	return b
}

type testInput struct {
	name string
	data []byte
}

func testInputs() []testInput {
	var mixed []byte
	mixed = append(mixed, text(120000, 1)...)
	mixed = append(mixed, noise(60000, 2)...)
	mixed = append(mixed, skewed(150000, 3)...)
	mixed = append(mixed, text(100000, 4)...)

	return []testInput{
		{"empty", nil},
		{"one byte", []byte{'x'}},
		{"short", []byte("HelloHelloHelloHelloHelloHelloHelloHelloHelloHello, world")},
		{"text", text(100000, 5)},
		{"noise", noise(70000, 6)},
		{"run", bytes.Repeat([]byte{'A'}, 100000)},
		{"skewed", skewed(40000, 7)},
		{"mixed", mixed},
	}
}

func compress(t testing.TB, c *Compressor, data []byte) []byte {
	t.Helper()
	dst := make([]byte, CompressBound(len(data)))
	n, err := c.Compress(dst, data)
	if err != nil {
		t.Fatalf("level %d: %v", c.Level(), err)
	}
	return dst[:n]
}

func TestRoundTrip(t *testing.T) {
	d := NewDecompressor()
	for _, in := range testInputs() {
		for level := MinLevel; level <= MaxLevel; level++ {
			t.Run(fmt.Sprintf("%s/%d", in.name, level), func(t *testing.T) {
				c, err := NewCompressor(level)
				if err != nil {
					t.Fatal(err)
				}
				compressed := compress(t, c, in.data)
				if len(compressed) > CompressBound(len(in.data)) {
					t.Fatalf("compressed size %d is over the bound %d", len(compressed), CompressBound(len(in.data)))
				}

				out := make([]byte, len(in.data))
				if err := d.DecompressExact(out, compressed); err != nil {
					t.Fatal(err)
				}
				if !bytes.Equal(out, in.data) {
					t.Fatal("decompressed output doesn't match")
				}

				std, err := io.ReadAll(stdflate.NewReader(bytes.NewReader(compressed)))
				if err != nil {
					t.Fatalf("compress/flate: %v", err)
				}
				if !bytes.Equal(std, in.data) {
					t.Fatal("compress/flate output doesn't match")
				}

				k, err := io.ReadAll(kflate.NewReader(bytes.NewReader(compressed)))
				if err != nil {
					t.Fatalf("klauspost flate: %v", err)
				}
				if !bytes.Equal(k, in.data) {
					t.Fatal("klauspost flate output doesn't match")
				}
			})
		}
	}
}

func TestCompressionRatio(t *testing.T) {
	data := text(200000, 8)
	prev := len(data)
	for _, level := range []int{1, 6, 12} {
		c, _ := NewCompressor(level)
		n := len(compress(t, c, data))
		if n >= prev {
			t.Errorf("level %d: %d bytes, no smaller than %d", level, n, prev)
		}
		prev = n
	}

	c, _ := NewCompressor(DefaultLevel)
	if n := len(compress(t, c, bytes.Repeat([]byte{'A'}, 100000))); n > 1000 {
		t.Errorf("100000 repeated bytes compressed to %d bytes", n)
	}
}

func TestNearOptimalBeatsLazy(t *testing.T) {
	for _, in := range testInputs() {
		if in.name != "text" && in.name != "mixed" {
			continue
		}
		c, _ := NewCompressor(9)
		lazy := len(compress(t, c, in.data))
		for level := 10; level <= MaxLevel; level++ {
			c, _ := NewCompressor(level)
			if n := len(compress(t, c, in.data)); n > lazy {
				t.Errorf("%s, level %d: %d bytes, more than level 9's %d", in.name, level, n, lazy)
			}
		}
	}
}

func TestIncompressible(t *testing.T) {
	data := noise(200000, 9)
	for level := MinLevel; level <= MaxLevel; level++ {
		c, _ := NewCompressor(level)
		n := len(compress(t, c, data))
		if n > len(data)+len(data)/100 {
			t.Errorf("level %d: %d bytes of noise compressed to %d", level, len(data), n)
		}
	}
}

func TestEmptyInput(t *testing.T) {
	for level := MinLevel; level <= MaxLevel; level++ {
		c, _ := NewCompressor(level)
		got := compress(t, c, nil)
		if !bytes.Equal(got, []byte{0x03, 0x00}) {
			t.Errorf("level %d: got % x, want 03 00", level, got)
		}
	}

	n, err := NewDecompressor().Decompress(nil, []byte{0x03, 0x00})
	if n != 0 || err != nil {
		t.Errorf("Decompress(03 00) = %d, %v", n, err)
	}
}

func TestInsufficientSpace(t *testing.T) {
	data := text(50000, 10)
	for level := MinLevel; level <= MaxLevel; level++ {
		c, _ := NewCompressor(level)
		want := compress(t, c, data)

		dst := make([]byte, len(want)+100)
		for i := range dst {
			dst[i] = 0xaa
		}
		n, err := c.Compress(dst[:len(want)-1], data)
		if n != 0 || !errors.Is(err, ErrInsufficientSpace) {
			t.Errorf("level %d: Compress into %d bytes = %d, %v", level, len(want)-1, n, err)
		}
		for i, b := range dst[len(want)-1:] {
			if b != 0xaa {
				t.Fatalf("level %d: byte %d past the end of dst was overwritten", level, len(want)-1+i)
			}
		}

		n, err = c.Compress(dst[:len(want)], data)
		if err != nil || !bytes.Equal(dst[:n], want) {
			t.Errorf("level %d: Compress into exactly %d bytes = %d, %v", level, len(want), n, err)
		}
	}
}

func TestCompressorReuse(t *testing.T) {
	a := text(80000, 11)
	b := append(noise(20000, 12), skewed(30000, 13)...)
	for level := MinLevel; level <= MaxLevel; level++ {
		c, _ := NewCompressor(level)
		first := compress(t, c, a)
		compress(t, c, b)
		again := compress(t, c, a)
		if !bytes.Equal(first, again) {
			t.Errorf("level %d: output changed after reusing the Compressor", level)
		}

		fresh, _ := NewCompressor(level)
		if !bytes.Equal(compress(t, fresh, b), compress(t, c, b)) {
			t.Errorf("level %d: reused Compressor differs from a new one", level)
		}
	}
}

func TestSlidingSameOutput(t *testing.T) {
	data := append(text(90000, 14), text(90000, 14)...)
	for _, level := range []int{1, 4, 7, 9, 11} {
		c, _ := NewCompressor(level)
		want := compress(t, c, data)
		c.SetSliding(true)
		if got := compress(t, c, data); !bytes.Equal(got, want) {
			t.Errorf("level %d: sliding window output differs", level)
		}
	}
}

func TestInvalidLevel(t *testing.T) {
	for _, level := range []int{-1, 13, 100} {
		c, err := NewCompressor(level)
		if c != nil || !errors.Is(err, ErrInvalidLevel) {
			t.Errorf("NewCompressor(%d) = %v, %v", level, c, err)
		}
	}
}

func TestDecompressKlauspost(t *testing.T) {
	d := NewDecompressor()
	for _, in := range testInputs() {
		for level := kflate.HuffmanOnly; level <= kflate.BestCompression; level++ {
			var buf bytes.Buffer
			w, err := kflate.NewWriter(&buf, level)
			if err != nil {
				t.Fatal(err)
			}
			w.Write(in.data)
			w.Close()

			out := make([]byte, len(in.data))
			if err := d.DecompressExact(out, buf.Bytes()); err != nil {
				t.Fatalf("%s, level %d: %v", in.name, level, err)
			}
			if !bytes.Equal(out, in.data) {
				t.Fatalf("%s, level %d: output doesn't match", in.name, level)
			}
		}
	}
}

func TestDecompressN(t *testing.T) {
	data := text(30000, 15)
	c, _ := NewCompressor(DefaultLevel)
	compressed := compress(t, c, data)
	src := append(append([]byte{}, compressed...), "trailing garbage"...)

	out := make([]byte, len(data)+10)
	nOut, nIn, err := NewDecompressor().DecompressN(out, src)
	if err != nil {
		t.Fatal(err)
	}
	if nOut != len(data) || nIn != len(compressed) {
		t.Errorf("DecompressN = %d, %d; want %d, %d", nOut, nIn, len(data), len(compressed))
	}
}

func TestDecompressShortOutput(t *testing.T) {
	data := text(10000, 16)
	c, _ := NewCompressor(DefaultLevel)
	compressed := compress(t, c, data)
	d := NewDecompressor()

	if err := d.DecompressExact(make([]byte, len(data)+1), compressed); !errors.Is(err, ErrShortInput) {
		t.Errorf("too big a buffer: got %v, want ErrShortInput", err)
	}
	if _, err := d.Decompress(make([]byte, len(data)-1), compressed); !errors.Is(err, ErrInsufficientSpace) {
		t.Errorf("too small a buffer: got %v, want ErrInsufficientSpace", err)
	}
	// The Decompressor is still usable after errors.
	if err := d.DecompressExact(make([]byte, len(data)), compressed); err != nil {
		t.Error(err)
	}
}

func TestTruncatedInput(t *testing.T) {
	data := text(20000, 17)
	d := NewDecompressor()
	for _, level := range []int{0, 1, 6, 12} {
		c, _ := NewCompressor(level)
		compressed := compress(t, c, data)
		for _, n := range []int{0, 1, len(compressed) / 2, len(compressed) - 1} {
			// Leave room for whatever the missing bits decode to, so
			// that running out of output space can't hide the error.
			_, err := d.Decompress(make([]byte, len(data)+1<<16), compressed[:n])
			if !errors.Is(err, ErrBadData) {
				t.Errorf("level %d, %d of %d bytes: got %v, want ErrBadData", level, n, len(compressed), err)
			}
		}
	}
}

// guarded returns a copy of data that ends right before an inaccessible
// page, so that reading past its end crashes the test.
func guarded(t *testing.T, data []byte) []byte {
	t.Helper()
	b, err := guard.Copy(data)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { b.Free() })
	return b.Bytes
}

// stream builds test streams, least significant bit first.
type stream struct {
	w   bitWriter
	buf [1024]byte
}

func newStream() *stream {
	b := new(stream)
	b.w.reset(b.buf[:])
	return b
}

func (b *stream) put(v uint32, n uint) *stream {
	b.w.writeBits(v, n)
	return b
}

func (b *stream) bytes() []byte {
	return b.buf[:b.w.flush()]
}

// dynamicHeaderStart writes a dynamic block header with 257 litlen codes,
// 1 offset code, and a precode in which symbols 1 and 18 have 1-bit
// codewords: symbol 1 is 0, and symbol 18 is 1.
func dynamicHeaderStart(final uint32) *stream {
	b := newStream()
	b.put(final, 1).put(blockTypeDynamic, 2)
	b.put(0, 5).put(0, 5).put(14, 4)
	// Precode lengths in the order 16, 17, 18, 0, 8, ..., 14, 1.
	b.put(0, 3).put(0, 3).put(1, 3)
	for i := 0; i < 14; i++ {
		b.put(0, 3)
	}
	b.put(1, 3)
	return b
}

func TestTooManyCodewordLengths(t *testing.T) {
	b := dynamicHeaderStart(1)
	b.put(1, 1).put(117, 7) // 128 zeroes
	b.put(1, 1).put(116, 7) // 127 zeroes
	b.put(0, 1).put(0, 1)   // two lengths of 1
	b.put(1, 1).put(117, 7) // 128 more zeroes, past the 258 lengths
	b.put(1, 1)

	_, err := NewDecompressor().Decompress(make([]byte, 1000), guarded(t, b.bytes()))
	if !errors.Is(err, ErrBadData) {
		t.Errorf("got %v, want ErrBadData", err)
	}
}

func TestOverread(t *testing.T) {
	// Symbol 0 and end-of-block get 1-bit codes, then the input ends in
	// a non-final block. Decoding the missing bits as zeroes would yield
	// literal zeroes without end.
	b := dynamicHeaderStart(0)
	b.put(0, 1)             // symbol 0
	b.put(1, 1).put(117, 7) // symbols 1 to 128
	b.put(1, 1).put(116, 7) // symbols 129 to 255
	b.put(0, 1)             // end of block
	b.put(0, 1)             // offset symbol 0

	_, err := NewDecompressor().Decompress(make([]byte, 256), guarded(t, b.bytes()))
	if !errors.Is(err, ErrBadData) {
		t.Errorf("got %v, want ErrBadData", err)
	}
}

func TestInvalidStreams(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"reserved block type", newStream().put(1, 1).put(3, 2).bytes()},
		{"over-subscribed precode", newStream().put(1, 1).put(blockTypeDynamic, 2).
			put(0, 5).put(0, 5).put(0, 4).
			put(1, 3).put(1, 3).put(1, 3).put(0, 3).bytes()},
		// Precode symbols 16 and 1 get 1-bit codes; 16 comes first.
		{"repeat with no previous length", newStream().put(1, 1).put(blockTypeDynamic, 2).
			put(0, 5).put(0, 5).put(14, 4).
			put(1, 3).put(0, 16).put(0, 16).put(0, 16).put(1, 3).
			put(1, 1).put(0, 2).bytes()},
		{"stored length mismatch", append(newStream().put(1, 1).put(blockTypeStored, 2).bytes(), 5, 0, 0xfa, 0xfe, 1, 2, 3, 4, 5)},
		{"stored block past end", append(newStream().put(1, 1).put(blockTypeStored, 2).bytes(), 5, 0, 0xfa, 0xff, 1, 2)},
		{"litlen symbol 286", newStream().put(1, 1).put(blockTypeStatic, 2).
			put(staticCodes.litlenCodewords[286], 8).bytes()},
		{"litlen symbol 287", newStream().put(1, 1).put(blockTypeStatic, 2).
			put(staticCodes.litlenCodewords[287], 8).bytes()},
		{"offset symbol 30", newStream().put(1, 1).put(blockTypeStatic, 2).
			put(staticCodes.litlenCodewords['a'], 8).
			put(staticCodes.litlenCodewords[257], 7).
			put(staticCodes.offsetCodewords[30], 5).bytes()},
		{"offset before start", newStream().put(1, 1).put(blockTypeStatic, 2).
			put(staticCodes.litlenCodewords['a'], 8).
			put(staticCodes.litlenCodewords[257], 7).
			put(staticCodes.offsetCodewords[1], 5).
			put(staticCodes.litlenCodewords[endOfBlock], 7).bytes()},
	}

	d := NewDecompressor()
	for _, tt := range tests {
		_, err := d.Decompress(make([]byte, 100), guarded(t, tt.data))
		if !errors.Is(err, ErrBadData) {
			t.Errorf("%s: got %v, want ErrBadData", tt.name, err)
		}
	}
}

func TestValidStaticBlock(t *testing.T) {
	// "aaaa": a literal, then a match of length 3 at offset 1.
	src := newStream().put(1, 1).put(blockTypeStatic, 2).
		put(staticCodes.litlenCodewords['a'], 8).
		put(staticCodes.litlenCodewords[257], 7).
		put(staticCodes.offsetCodewords[0], 5).
		put(staticCodes.litlenCodewords[endOfBlock], 7).bytes()

	out := make([]byte, 4)
	if err := NewDecompressor().DecompressExact(out, src); err != nil {
		t.Fatal(err)
	}
	if string(out) != "aaaa" {
		t.Errorf("got %q, want %q", out, "aaaa")
	}
}

// checkCode builds a decode table for a code and checks that every
// codeword decodes to its own symbol.
func checkCode(t *testing.T, lens []uint8, codewords []uint32, tableBits, maxLen uint) {
	t.Helper()
	results := make([]uint32, len(lens))
	for sym := range results {
		results[sym] = uint32(sym) << huffdecResultShift
	}
	table := make([]uint32, litlenEnough)
	sorted := make([]uint16, len(lens))
	if !buildDecodeTable(table, lens, results, tableBits, maxLen, sorted) {
		t.Fatalf("decode table rejected the code %v", lens)
	}

	var kraft float64
	for sym, l := range lens {
		if l == 0 {
			continue
		}
		if uint(l) > maxLen {
			t.Fatalf("symbol %d has length %d, over the limit of %d", sym, l, maxLen)
		}
		kraft += 1 / float64(uint(1)<<l)

		cw := codewords[sym]
		entry := table[cw&(1<<tableBits-1)]
		n := uint(entry & huffdecLengthMask)
		if entry&huffdecSubtablePointer != 0 {
			start := entry >> huffdecResultShift & 0xffff
			entry = table[start+cw>>tableBits&(1<<n-1)]
			n = tableBits + uint(entry&huffdecLengthMask)
		}
		if got := int(entry >> huffdecResultShift); got != sym || n != uint(l) {
			t.Fatalf("codeword for symbol %d decodes as symbol %d with length %d, want length %d", sym, got, n, l)
		}
	}
	if kraft != 0 && kraft != 1 {
		t.Errorf("code is incomplete: Kraft sum %v", kraft)
	}
}

func TestCanonicalCodes(t *testing.T) {
	checkCode(t, staticCodes.litlenLens[:], staticCodes.litlenCodewords[:], litlenTableBits, maxCodewordLen)
	checkCode(t, staticCodes.offsetLens[:], staticCodes.offsetCodewords[:], offsetTableBits, maxCodewordLen)

	r := rand.New(rand.NewSource(18))
	for i := 0; i < 200; i++ {
		var f symbolFreqs
		used := 1 + r.Intn(numLitlenSyms)
		for j := 0; j < used; j++ {
			f.litlen[r.Intn(numLitlenSyms)] += 1 + uint32(r.Intn(1<<r.Intn(12)))
		}
		for j := 0; j < r.Intn(numOffsetSyms); j++ {
			f.offset[r.Intn(numOffsetSyms)] += uint32(r.Intn(1000))
		}

		var codes huffmanCodes
		codes.build(&f)
		checkCode(t, codes.litlenLens[:], codes.litlenCodewords[:], litlenTableBits, maxLitlenCodewordLen)
		checkCode(t, codes.offsetLens[:], codes.offsetCodewords[:], offsetTableBits, maxOffsetCodewordLen)

		for sym, n := range f.litlen {
			if n != 0 && codes.litlenLens[sym] == 0 {
				t.Fatalf("used symbol %d got no codeword", sym)
			}
		}
	}
}

func TestLengthLimit(t *testing.T) {
	// Fibonacci frequencies make the deepest possible tree.
	var f symbolFreqs
	a, b := uint32(1), uint32(1)
	for i := 0; i < 25; i++ {
		f.litlen[i] = a
		f.offset[i] = a
		a, b = b, a+b
	}
	var codes huffmanCodes
	codes.build(&f)
	checkCode(t, codes.litlenLens[:], codes.litlenCodewords[:], litlenTableBits, maxLitlenCodewordLen)
	checkCode(t, codes.offsetLens[:], codes.offsetCodewords[:], offsetTableBits, maxOffsetCodewordLen)
	if codes.litlenLens[0] != maxLitlenCodewordLen {
		t.Errorf("rarest symbol has length %d, want %d", codes.litlenLens[0], maxLitlenCodewordLen)
	}
}

func TestSingleSymbolCode(t *testing.T) {
	for _, sym := range []int{0, 1, 200} {
		var f symbolFreqs
		f.litlen[sym] = 10
		var codes huffmanCodes
		codes.build(&f)
		checkCode(t, codes.litlenLens[:], codes.litlenCodewords[:], litlenTableBits, maxLitlenCodewordLen)
		if codes.litlenLens[sym] != 1 {
			t.Errorf("symbol %d: length %d, want 1", sym, codes.litlenLens[sym])
		}
	}
}

func TestPrecodeItems(t *testing.T) {
	lens := make([]uint8, 0, 320)
	lens = append(lens, bytes.Repeat([]byte{8}, 14)...) // 8, 16 (6), 16 (6), 8
	lens = append(lens, make([]uint8, 145)...)          // 18 (138), 17 (7)
	lens = append(lens, 5, 0, 0, 0, 7)                  // 5, 17 (3), 7

	var freqs [numPrecodeSyms]uint32
	items := computePrecodeItems(lens, &freqs, nil)

	// Expand the items and compare.
	var got []uint8
	for _, item := range items {
		sym, extra := item&0x1f, int(item>>5)
		switch sym {
		case 16:
			for i := 0; i < 3+extra; i++ {
				got = append(got, got[len(got)-1])
			}
		case 17:
			got = append(got, make([]uint8, 3+extra)...)
		case 18:
			got = append(got, make([]uint8, 11+extra)...)
		default:
			got = append(got, uint8(sym))
		}
	}
	if !bytes.Equal(got, lens) {
		t.Errorf("items expand to %v, want %v", got, lens)
	}
	if freqs[16] != 2 || freqs[17] != 2 || freqs[18] != 1 {
		t.Errorf("frequencies of 16, 17 and 18 are %d, %d and %d; want 2, 2 and 1", freqs[16], freqs[17], freqs[18])
	}
}

func TestCompressBound(t *testing.T) {
	for _, tt := range []struct{ n, want int }{
		{0, 6},
		{1, 7},
		{5000, 5006},
		{5001, 5012},
		{1 << 20, 5*210 + 1<<20 + 1},
	} {
		if got := CompressBound(tt.n); got != tt.want {
			t.Errorf("CompressBound(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}

func TestMinMatchLen(t *testing.T) {
	for _, tt := range []struct{ used, depth, want int }{
		{0, 100, 9},
		{10, 100, 6},
		{30, 100, 5},
		{60, 100, 4},
		{80, 100, 3},
		{0, 4, 4},
		{0, 6, 5},
		{0, 12, 7},
		{100, 4, 3},
	} {
		if got := chooseMinMatchLen(tt.used, tt.depth); got != tt.want {
			t.Errorf("chooseMinMatchLen(%d, %d) = %d, want %d", tt.used, tt.depth, got, tt.want)
		}
	}
}
