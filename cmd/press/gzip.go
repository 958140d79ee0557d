package main

import (
	"encoding/binary"
	"io"
	"math"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/andybalholm/press/cmd/press/config"
	"github.com/andybalholm/press/flate"
)

// maxOutputSize limits how far decompression grows its buffer.
const maxOutputSize = math.MaxInt / 2

func compressFiles(cmd *config.CompressCmd, stdout io.Writer) error {
	c, err := flate.NewCompressor(cmd.Level)
	if err != nil {
		return err
	}

	for _, path := range cmd.Files {
		if err := compressFile(c, cmd, path, stdout); err != nil {
			return errors.Wrapf(err, "error compressing %s", path)
		}
	}

	return nil
}

func compressFile(c *flate.Compressor, cmd *config.CompressCmd, path string, stdout io.Writer) error {
	if strings.HasSuffix(path, cmd.Suffix) {
		return errors.Errorf("already has %s suffix", cmd.Suffix)
	}

	in, info, err := readInput(path)
	if err != nil {
		return err
	}

	out := make([]byte, flate.GzipCompressBound(len(in)))
	n, err := c.CompressGzip(out, in)
	if err != nil {
		return err
	}

	logrus.Debugf("%s: %d => %d bytes", path, len(in), n)

	if cmd.Stdout {
		_, err := stdout.Write(out[:n])
		return errors.Wrap(err, "error writing to standard output")
	}

	return writeOutput(path, path+cmd.Suffix, out[:n], info, cmd.Force, cmd.Keep)
}

func decompressFiles(cmd *config.DecompressCmd, stdout io.Writer) error {
	d := flate.NewDecompressor()

	for _, path := range cmd.Files {
		if err := decompressFile(d, cmd, path, stdout); err != nil {
			return errors.Wrapf(err, "error decompressing %s", path)
		}
	}

	return nil
}

func decompressFile(d *flate.Decompressor, cmd *config.DecompressCmd, path string, stdout io.Writer) error {
	outPath, ok := strings.CutSuffix(path, cmd.Suffix)
	if !ok || outPath == "" {
		return errors.Errorf("unknown suffix, expected %s", cmd.Suffix)
	}

	in, info, err := readInput(path)
	if err != nil {
		return err
	}

	out, err := gunzip(d, in)
	if err != nil {
		return err
	}

	logrus.Debugf("%s: %d => %d bytes", path, len(in), len(out))

	if cmd.Stdout {
		_, err := stdout.Write(out)
		return errors.Wrap(err, "error writing to standard output")
	}

	return writeOutput(path, outPath, out, info, cmd.Force, cmd.Keep)
}

// gunzip decompresses every gzip member in src. The output buffer is
// sized from the ISIZE field of the last member, and grown as needed.
func gunzip(d *flate.Decompressor, src []byte) ([]byte, error) {
	if len(src) == 0 {
		return nil, errors.Wrap(flate.ErrBadData, "empty file")
	}

	size := 1024
	if len(src) >= 4 {
		size = max(size, int(binary.LittleEndian.Uint32(src[len(src)-4:])))
	}
	buf := make([]byte, size)

	var out []byte
	for len(src) > 0 {
		nOut, nIn, err := d.DecompressGzipN(buf, src)
		if errors.Is(err, flate.ErrInsufficientSpace) {
			if len(buf) > maxOutputSize {
				return nil, err
			}
			buf = make([]byte, 2*len(buf))
			continue
		}
		if err != nil {
			return nil, err
		}

		if out == nil && nIn == len(src) {
			return buf[:nOut], nil
		}
		out = append(out, buf[:nOut]...)
		src = src[nIn:]
	}

	return out, nil
}

func readInput(path string) ([]byte, os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "error reading input")
	}

	if !info.Mode().IsRegular() {
		return nil, nil, errors.New("not a regular file")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "error reading input")
	}

	return data, info, nil
}

// writeOutput writes data to outPath with the permissions of the input,
// then removes the input unless keep is set.
func writeOutput(inPath, outPath string, data []byte, info os.FileInfo, force, keep bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}

	f, err := os.OpenFile(outPath, flags, info.Mode().Perm())
	if os.IsExist(err) {
		return errors.Errorf("%s already exists; use -f to overwrite", outPath)
	}
	if err != nil {
		return errors.Wrap(err, "error creating output")
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(outPath)
		return errors.Wrap(err, "error writing output")
	}

	if err := f.Close(); err != nil {
		os.Remove(outPath)
		return errors.Wrap(err, "error writing output")
	}

	if err := os.Chtimes(outPath, info.ModTime(), info.ModTime()); err != nil {
		logrus.Warnf("unable to set modification time of %s: %s", outPath, err)
	}

	if keep {
		return nil
	}

	return errors.Wrap(os.Remove(inPath), "error removing input")
}
