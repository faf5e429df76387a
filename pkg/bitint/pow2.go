// SPDX-License-Identifier: MIT
/*
Package bitint provides the power-of-two helpers used to size analysis
frames. Frame sizes must be powers of two so the real FFT runs on its fast
path, and the logspace amplifier table is scaled by log2 of the frame size.

All functions are O(1), allocation free and safe to call from the worker
goroutine.

	size := bitint.NextPowerOfTwo(6000) // 8192
	ok := bitint.IsPowerOfTwo(size)     // true
	bits := bitint.Log2(size)           // 13

NextPowerOfTwo subtracts one before taking the bit length so that exact
powers of two are preserved:

	size = 8: bits.Len(7) = 3, 1 << 3 = 8
	size = 9: bits.Len(8) = 4, 1 << 4 = 16
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of two >= size. Non-positive
// sizes return 1.
func NextPowerOfTwo(size int) int {
	if size <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of two. Powers of two
// have exactly one bit set, so n & (n-1) clears it to zero.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// Log2 returns floor(log2(n)) for n > 0, and -1 otherwise. For powers of
// two this is exact.
func Log2(n int) int {
	if n <= 0 {
		return -1
	}
	return bits.Len(uint(n)) - 1
}
