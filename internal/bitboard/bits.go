package bitboard

import "math/bits"

// PopCount returns the number of set bits.
func PopCount(x uint64) int {
	return bits.OnesCount64(x)
}

// LowestBit isolates the least significant set bit (0 if x is 0).
func LowestBit(x uint64) uint64 {
	return x & -x
}

// HighestBit isolates the most significant set bit (0 if x is 0).
func HighestBit(x uint64) uint64 {
	if x == 0 {
		return 0
	}
	return 1 << uint(63-bits.LeadingZeros64(x))
}

// BitScanForward returns the index of the lowest set bit, or 64 if x is 0.
func BitScanForward(x uint64) int {
	return bits.TrailingZeros64(x)
}

// BitScanReverse returns the index of the highest set bit, or -1 if x is 0.
func BitScanReverse(x uint64) int {
	return 63 - bits.LeadingZeros64(x)
}
