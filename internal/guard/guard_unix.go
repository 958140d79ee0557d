//go:build unix

package guard

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Enabled reports whether buffers really are followed by a guard page.
const Enabled = true

// New allocates a Buffer of size bytes. The memory is zeroed.
func New(size int) (*Buffer, error) {
	if size < 0 {
		return nil, errors.Errorf("guard: negative size %d", size)
	}
	pageSize := unix.Getpagesize()
	dataPages := (size + pageSize - 1) / pageSize
	total := (dataPages + 1) * pageSize

	mem, err := unix.Mmap(-1, 0, total, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, errors.Wrap(err, "guard: mmap")
	}
	end := dataPages * pageSize
	if err := unix.Mprotect(mem[end:], unix.PROT_NONE); err != nil {
		unix.Munmap(mem)
		return nil, errors.Wrap(err, "guard: mprotect")
	}
	return &Buffer{
		Bytes: mem[end-size : end : end],
		mem:   mem,
	}, nil
}

// Free unmaps the buffer. b.Bytes must not be used afterward.
func (b *Buffer) Free() error {
	if b.mem == nil {
		return nil
	}
	err := unix.Munmap(b.mem)
	b.mem, b.Bytes = nil, nil
	return errors.Wrap(err, "guard: munmap")
}
