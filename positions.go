package press

import "encoding/binary"

const (
	// nullPos marks an empty table slot. It is never inside the window,
	// whatever the current position.
	nullPos = -WindowSize

	// maxNonSliding is the largest input whose positions are stored
	// without rebasing.
	maxNonSliding = 1 << 30

	hashMul32 = 0x1e35a7bd
)

// positions is the part of a match finder's state that maps between
// indexes into the input and the int32 values stored in its tables.
//
// Stored values are relative to base. In non-sliding mode base stays at 0,
// so a stored value is simply an index into src. In sliding mode, every time
// the current position gets WindowSize bytes past base, the tables are
// rebased: every value is reduced by WindowSize (saturating at nullPos), and
// base moves forward by WindowSize. Either way, a stored node is usable only
// if node > cur-WindowSize.
type positions struct {
	src     []byte
	base    int
	sliding bool
}

func (p *positions) init(src []byte, sliding bool) {
	p.src = src
	p.base = 0
	p.sliding = sliding || len(src) > maxNonSliding
}

// needsSlide reports whether pos is too far past base to be stored.
func (p *positions) needsSlide(pos int) bool {
	return p.sliding && pos-p.base >= WindowSize
}

func fillNull(t []int32) {
	for i := range t {
		t[i] = nullPos
	}
}

// rebase subtracts WindowSize from each entry in t, saturating at nullPos.
func rebase(t []int32) {
	for i, v := range t {
		v -= WindowSize
		if v < nullPos {
			v = nullPos
		}
		t[i] = v
	}
}

func load32(b []byte, i int) uint32 {
	return binary.LittleEndian.Uint32(b[i : i+4 : len(b)])
}

func load24(b []byte, i int) uint32 {
	b = b[i : i+3 : len(b)]
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}

// hash returns the top bits of u multiplied by a large odd constant.
func hash(u uint32, bits uint) uint32 {
	return (u * hashMul32) >> (32 - bits)
}
