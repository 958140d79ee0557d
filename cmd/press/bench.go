package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	kflate "github.com/klauspost/compress/flate"
	kgzip "github.com/klauspost/compress/gzip"
	kzlib "github.com/klauspost/compress/zlib"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/andybalholm/press"
	"github.com/andybalholm/press/cmd/press/config"
	"github.com/andybalholm/press/flate"
	"github.com/andybalholm/press/internal/guard"
)

// An engine is a compressor and decompressor pair to measure.
type engine interface {
	// compress returns flate.ErrInsufficientSpace if the output
	// doesn't fit in dst.
	compress(dst, src []byte) (int, error)

	// decompress fills dst exactly.
	decompress(dst, src []byte) error
}

func newEngine(name, wrapper string, level int) (engine, error) {
	switch name {
	case config.EnginePress:
		c, err := flate.NewCompressor(level)
		if err != nil {
			return nil, err
		}
		return &pressEngine{c: c, d: flate.NewDecompressor(), wrapper: wrapper}, nil
	case config.EngineKlauspost:
		return newKlauspostEngine(wrapper, min(level, kflate.BestCompression))
	}
	return nil, errors.Errorf("unknown engine %s", name)
}

type pressEngine struct {
	c       *flate.Compressor
	d       *flate.Decompressor
	wrapper string
}

func (e *pressEngine) compress(dst, src []byte) (int, error) {
	switch e.wrapper {
	case config.WrapperRaw:
		return e.c.Compress(dst, src)
	case config.WrapperZlib:
		return e.c.CompressZlib(dst, src)
	default:
		return e.c.CompressGzip(dst, src)
	}
}

func (e *pressEngine) decompress(dst, src []byte) error {
	var n int
	var err error
	switch e.wrapper {
	case config.WrapperRaw:
		return e.d.DecompressExact(dst, src)
	case config.WrapperZlib:
		n, err = e.d.DecompressZlib(dst, src)
	default:
		n, err = e.d.DecompressGzip(dst, src)
	}
	if err == nil && n != len(dst) {
		err = flate.ErrShortInput
	}
	return err
}

type resetWriter interface {
	io.WriteCloser
	Reset(w io.Writer)
}

type klauspostEngine struct {
	wrapper string
	w       resetWriter
	out     fixedWriter
}

func newKlauspostEngine(wrapper string, level int) (*klauspostEngine, error) {
	e := &klauspostEngine{wrapper: wrapper}

	var err error
	switch wrapper {
	case config.WrapperRaw:
		e.w, err = kflate.NewWriter(io.Discard, level)
	case config.WrapperZlib:
		e.w, err = kzlib.NewWriterLevel(io.Discard, level)
	default:
		e.w, err = kgzip.NewWriterLevel(io.Discard, level)
	}
	if err != nil {
		return nil, errors.Wrap(err, "error creating klauspost writer")
	}

	return e, nil
}

func (e *klauspostEngine) compress(dst, src []byte) (int, error) {
	e.out = fixedWriter{buf: dst}
	e.w.Reset(&e.out)

	if _, err := e.w.Write(src); err != nil {
		return 0, err
	}
	if err := e.w.Close(); err != nil {
		return 0, err
	}

	return e.out.n, nil
}

func (e *klauspostEngine) decompress(dst, src []byte) error {
	var r io.Reader
	br := bytes.NewReader(src)

	switch e.wrapper {
	case config.WrapperRaw:
		r = kflate.NewReader(br)
	case config.WrapperZlib:
		zr, err := kzlib.NewReader(br)
		if err != nil {
			return err
		}
		r = zr
	default:
		gr, err := kgzip.NewReader(br)
		if err != nil {
			return err
		}
		r = gr
	}

	if _, err := io.ReadFull(r, dst); err != nil {
		return err
	}

	// Reading to the end checks the trailer.
	var extra [1]byte
	n, err := io.ReadFull(r, extra[:])
	if n != 0 {
		return errors.New("decompressed data is longer than expected")
	}
	if err != io.EOF {
		return err
	}

	return nil
}

// A fixedWriter writes into a buffer that never grows.
type fixedWriter struct {
	buf []byte
	n   int
}

func (w *fixedWriter) Write(p []byte) (int, error) {
	if len(p) > len(w.buf)-w.n {
		return 0, flate.ErrInsufficientSpace
	}
	w.n += copy(w.buf[w.n:], p)
	return len(p), nil
}

// benchBuffers holds the input, compressed and decompressed buffers for
// one chunk. Each chunk is placed at the end of its buffer, so that with
// guard pages any access past the end faults.
type benchBuffers struct {
	in         []byte
	compressed []byte
	out        []byte

	guarded []*guard.Buffer
}

func newBenchBuffers(chunkSize int, useGuard bool) (*benchBuffers, error) {
	b := &benchBuffers{}
	if !useGuard {
		b.in = make([]byte, chunkSize)
		b.compressed = make([]byte, chunkSize)
		b.out = make([]byte, chunkSize)
		return b, nil
	}

	if !guard.Enabled {
		logrus.Warn("guard pages are not supported on this system")
	}

	for _, p := range []*[]byte{&b.in, &b.compressed, &b.out} {
		g, err := guard.New(chunkSize)
		if err != nil {
			b.free()
			return nil, errors.Wrap(err, "error allocating guarded buffer")
		}
		b.guarded = append(b.guarded, g)
		*p = g.Bytes
	}

	return b, nil
}

func (b *benchBuffers) free() {
	for _, g := range b.guarded {
		if err := g.Free(); err != nil {
			logrus.Warnf("unable to free guarded buffer: %s", err)
		}
	}
	b.guarded = nil
}

// tail returns the last n bytes of buf.
func tail(buf []byte, n int) []byte {
	return buf[len(buf)-n:]
}

type benchResult struct {
	uncompressed   int64
	compressed     int64
	compressTime   time.Duration
	decompressTime time.Duration
}

func benchFiles(cmd *config.BenchCmd, w io.Writer) error {
	e, err := newEngine(cmd.Engine, cmd.Wrapper, cmd.Level)
	if err != nil {
		return err
	}

	bufs, err := newBenchBuffers(cmd.ChunkSize, cmd.Guard)
	if err != nil {
		return err
	}
	defer bufs.free()

	fmt.Fprintf(w, "Benchmarking %s compression (%s):\n", cmd.Wrapper, cmd.Engine)
	fmt.Fprintf(w, "\tCompression level: %d\n", cmd.Level)
	fmt.Fprintf(w, "\tChunk size: %d\n", cmd.ChunkSize)

	var total benchResult
	for _, path := range cmd.Files {
		data, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrap(err, "error reading input")
		}

		if cmd.Dump {
			dump(w, data[:min(len(data), cmd.ChunkSize)], cmd.Parser)
		}

		r, err := benchData(e, bufs, data, cmd.ChunkSize, cmd.MinTime)
		if err != nil {
			return errors.Wrapf(err, "error benchmarking %s", path)
		}

		fmt.Fprintf(w, "%s:\n", path)
		printResult(w, r)

		total.uncompressed += r.uncompressed
		total.compressed += r.compressed
		total.compressTime += r.compressTime
		total.decompressTime += r.decompressTime
	}

	if len(cmd.Files) > 1 {
		fmt.Fprintln(w, "Total:")
		printResult(w, total)
	}

	return nil
}

// benchData compresses and decompresses data chunk by chunk, checking the
// round trip, until compression has taken at least minTime. Chunks that
// don't compress to fewer bytes than they started with count as stored.
func benchData(e engine, bufs *benchBuffers, data []byte, chunkSize int, minTime time.Duration) (benchResult, error) {
	var r benchResult

	for pass := 0; pass == 0 || r.compressTime < minTime && len(data) > 0; pass++ {
		for pos := 0; pos < len(data); pos += chunkSize {
			n := min(chunkSize, len(data)-pos)
			in := tail(bufs.in, n)
			copy(in, data[pos:pos+n])
			dst := tail(bufs.compressed, n-1)

			start := time.Now()
			csize, err := e.compress(dst, in)
			r.compressTime += time.Since(start)

			if errors.Is(err, flate.ErrInsufficientSpace) {
				r.uncompressed += int64(n)
				r.compressed += int64(n)
				continue
			}
			if err != nil {
				return r, errors.Wrapf(err, "error compressing chunk at offset %d", pos)
			}

			out := tail(bufs.out, n)
			start = time.Now()
			err = e.decompress(out, dst[:csize])
			r.decompressTime += time.Since(start)

			if err != nil {
				return r, errors.Wrapf(err, "error decompressing chunk at offset %d", pos)
			}
			if !bytes.Equal(out, in) {
				return r, errors.Errorf("chunk at offset %d did not round-trip", pos)
			}

			r.uncompressed += int64(n)
			r.compressed += int64(csize)
		}
	}

	return r, nil
}

func printResult(w io.Writer, r benchResult) {
	ratio := 0.0
	if r.uncompressed > 0 {
		ratio = 100 * float64(r.compressed) / float64(r.uncompressed)
	}
	fmt.Fprintf(w, "\tCompressed %d => %d bytes (%.3f%%)\n", r.uncompressed, r.compressed, ratio)
	fmt.Fprintf(w, "\tCompression time: %.3f ms (%.1f MB/s)\n", ms(r.compressTime), mbPerSec(r.uncompressed, r.compressTime))
	fmt.Fprintf(w, "\tDecompression time: %.3f ms (%.1f MB/s)\n", ms(r.decompressTime), mbPerSec(r.uncompressed, r.decompressTime))
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func mbPerSec(n int64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / d.Seconds() / 1e6
}

// dump prints the LZ77 parse of chunk.
func dump(w io.Writer, chunk []byte, parser string) {
	var matches []press.Match
	if parser == config.ParserLazy {
		matches = press.Lazy(nil, new(press.HashChain), chunk, press.MinMatch, 32)
	} else {
		matches = press.Greedy(nil, new(press.HashChain), chunk, press.MinMatch, 32)
	}
	text := press.TextEncoder{MaxLiteralRun: 64}.Encode(nil, chunk, matches)
	fmt.Fprintf(w, "%s\n", text)
}
