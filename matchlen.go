package press

import (
	"encoding/binary"
	"math/bits"
	"runtime"

	"github.com/klauspost/cpuid/v2"
)

// extendMatch returns the largest k such that k <= end and that
// src[i:i+k-j] and src[j:k] have the same contents.
//
// It assumes that:
//
//	0 <= i && i < j && j <= end && end <= len(src)
//
// The implementation is chosen once, when the package is initialized.
var extendMatch = chooseExtendMatch()

func chooseExtendMatch() func(src []byte, i, j, end int) int {
	if wordCompareIsFast() {
		return extendMatchWords
	}
	return extendMatchBytes
}

// wordCompareIsFast reports whether comparing 8 bytes at a time and locating
// the first difference with a trailing-zero count beats a byte loop. That
// needs fast unaligned loads and a hardware trailing-zero count.
func wordCompareIsFast() bool {
	switch runtime.GOARCH {
	case "amd64":
		// BSF works everywhere, but it is slow on some older
		// low-power parts that also lack TZCNT.
		return cpuid.CPU.Supports(cpuid.BMI1) || cpuid.CPU.Supports(cpuid.SSE4)
	case "arm64", "ppc64le":
		return true
	}
	return false
}

func extendMatchWords(src []byte, i, j, end int) int {
	// As long as we are 8 or more bytes before the end, we can load and
	// compare 8 bytes at a time. If those 8 bytes are equal, repeat.
	for j+8 <= end {
		iBytes := binary.LittleEndian.Uint64(src[i:])
		jBytes := binary.LittleEndian.Uint64(src[j:])
		if iBytes != jBytes {
			// XOR the two values, and the lowest set bit is in the first
			// byte that differs.
			return j + bits.TrailingZeros64(iBytes^jBytes)>>3
		}
		i, j = i+8, j+8
	}
	for ; j < end && src[i] == src[j]; i, j = i+1, j+1 {
	}
	return j
}

func extendMatchBytes(src []byte, i, j, end int) int {
	for ; j < end && src[i] == src[j]; i, j = i+1, j+1 {
	}
	return j
}
