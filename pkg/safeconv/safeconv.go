// Package safeconv provides integer conversions that panic instead of wrapping.
package safeconv

import "math"

// MaxUint32 is the maximum value for uint32 type.
const MaxUint32 = uint32(math.MaxUint32)

// MustIntToUint32 converts int to uint32, panics on bounds violation.
// Use for arena indices, which can never be negative.
func MustIntToUint32(v int) uint32 {
	if v < 0 || uint64(v) > uint64(MaxUint32) {
		panic("safeconv: int to uint32 out of bounds")
	}

	return uint32(v)
}

// MustIntToUint64 converts int to uint64, panics if negative.
func MustIntToUint64(v int) uint64 {
	if v < 0 {
		panic("safeconv: negative int to uint64 conversion")
	}

	return uint64(v)
}
