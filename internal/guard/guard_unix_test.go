//go:build unix

package guard

import (
	"runtime/debug"
	"testing"
	"unsafe"
)

var sink byte

func TestGuardPageFaults(t *testing.T) {
	b, err := New(10)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Free()

	defer debug.SetPanicOnFault(debug.SetPanicOnFault(true))
	defer func() {
		if recover() == nil {
			t.Error("reading past the end of the buffer did not fault")
		}
	}()
	p := (*byte)(unsafe.Add(unsafe.Pointer(unsafe.SliceData(b.Bytes)), len(b.Bytes)))
	sink = *p
}
