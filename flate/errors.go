package flate

import "github.com/pkg/errors"

var (
	// ErrBadData means the compressed data is invalid: corrupt, truncated,
	// or not DEFLATE (or zlib, or gzip) at all. Errors from the zlib and
	// gzip wrappers wrap it with more detail; test with errors.Is.
	ErrBadData = errors.New("flate: invalid compressed data")

	// ErrInsufficientSpace means the output didn't fit in the destination
	// buffer.
	ErrInsufficientSpace = errors.New("flate: destination buffer too small")

	// ErrShortInput means the data decompressed correctly but produced
	// fewer bytes than the caller required.
	ErrShortInput = errors.New("flate: data decompressed to less than the expected size")

	// ErrInvalidLevel is returned for compression levels outside 0 to 12.
	ErrInvalidLevel = errors.New("flate: invalid compression level")
)

func badData(format string, args ...interface{}) error {
	return errors.Wrapf(ErrBadData, format, args...)
}
