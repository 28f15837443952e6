// Package conv moves counts between Go's int and the fixed-width
// unsigned header fields of the binary file formats, rejecting values
// that would not round-trip. Fields read from disk are untrusted input;
// in-memory sizes can still exceed a narrower field. Conversions safe by
// construction (loop indices, arena offsets) cast directly instead.
package conv

import (
	"fmt"
	"math"
)

// IntToUint32 narrows v into a 32-bit header field.
func IntToUint32(v int) (uint32, error) {
	if v < 0 {
		return 0, fmt.Errorf("value %d is negative", v)
	}
	if uint64(v) > math.MaxUint32 {
		return 0, fmt.Errorf("value %d overflows uint32", v)
	}
	return uint32(v), nil
}

// IntToUint64 widens v into a 64-bit header field.
func IntToUint64(v int) (uint64, error) {
	if v < 0 {
		return 0, fmt.Errorf("value %d is negative", v)
	}
	return uint64(v), nil
}

// Uint64ToInt reads a 64-bit header field back into an int.
func Uint64ToInt(v uint64) (int, error) {
	if v > uint64(math.MaxInt) {
		return 0, fmt.Errorf("value %d overflows int", v)
	}
	return int(v), nil
}

// Uint32ToInt reads a 32-bit header field back into an int. On 64-bit
// platforms it cannot fail; the error return keeps call sites uniform
// with Uint64ToInt.
func Uint32ToInt(v uint32) (int, error) {
	if uint64(v) > uint64(math.MaxInt) {
		return 0, fmt.Errorf("value %d overflows int", v)
	}
	return int(v), nil
}
