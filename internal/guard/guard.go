// Package guard allocates buffers that end right before an inaccessible
// page of memory, so that a read or write past the end of the buffer
// faults instead of silently touching other memory.
//
// On systems without mmap, buffers are ordinary slices.
package guard

// A Buffer is memory followed by a guard page.
type Buffer struct {
	// Bytes is the usable part of the buffer. Its capacity equals its
	// length, and the byte after the last one is in the guard page.
	Bytes []byte

	mem []byte
}

// Copy returns a new Buffer holding a copy of data.
func Copy(data []byte) (*Buffer, error) {
	b, err := New(len(data))
	if err != nil {
		return nil, err
	}
	copy(b.Bytes, data)
	return b, nil
}
