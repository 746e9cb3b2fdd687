package bitboard

import (
	"fmt"
	"math/bits"
)

// Symmetry is one of the eight transforms of the square.
type Symmetry uint8

const (
	Identity Symmetry = iota
	FlipV             // rows reversed: a1 <-> a8
	MirrorH           // columns reversed: a1 <-> h1
	Rot180
	DiagA1H8          // transpose: h1 <-> a8
	DiagA8H1          // anti-transpose: a1 <-> h8
	Rot90CW
	Rot90CCW
	numSymmetries
)

// Symmetries lists all eight transforms, identity first.
var Symmetries = [numSymmetries]Symmetry{
	Identity, FlipV, MirrorH, Rot180, DiagA1H8, DiagA8H1, Rot90CW, Rot90CCW,
}

var symmetryNames = [numSymmetries]string{
	"identity", "flipv", "mirrorh", "rot180", "diag", "antidiag", "rot90cw", "rot90ccw",
}

func (s Symmetry) String() string {
	if s < numSymmetries {
		return symmetryNames[s]
	}
	return fmt.Sprintf("symmetry(%d)", uint8(s))
}

// ParseSymmetry is the inverse of String.
func ParseSymmetry(name string) (Symmetry, error) {
	for i, n := range symmetryNames {
		if n == name {
			return Symmetry(i), nil
		}
	}
	return Identity, fmt.Errorf("unknown symmetry: %q", name)
}

// Apply transforms a mask.
func (s Symmetry) Apply(x uint64) uint64 {
	switch s {
	case FlipV:
		return FlipVertical(x)
	case MirrorH:
		return MirrorHorizontal(x)
	case Rot180:
		return Rotate180(x)
	case DiagA1H8:
		return FlipDiagonal(x)
	case DiagA8H1:
		return FlipAntiDiagonal(x)
	case Rot90CW:
		return Rotate90CW(x)
	case Rot90CCW:
		return Rotate90CCW(x)
	}
	return x
}

// Inverse returns the transform that undoes s.
func (s Symmetry) Inverse() Symmetry {
	switch s {
	case Rot90CW:
		return Rot90CCW
	case Rot90CCW:
		return Rot90CW
	}
	return s
}

// Transform applies s to both masks.
func (b Board) Transform(s Symmetry) Board {
	return Board{Black: s.Apply(b.Black), White: s.Apply(b.White)}
}

// FlipVertical reverses the row order.
func FlipVertical(x uint64) uint64 {
	return bits.ReverseBytes64(x)
}

// MirrorHorizontal reverses the column order within each row.
func MirrorHorizontal(x uint64) uint64 {
	const (
		k1 = 0x5555555555555555
		k2 = 0x3333333333333333
		k4 = 0x0f0f0f0f0f0f0f0f
	)
	x = ((x >> 1) & k1) | ((x & k1) << 1)
	x = ((x >> 2) & k2) | ((x & k2) << 2)
	x = ((x >> 4) & k4) | ((x & k4) << 4)
	return x
}

// FlipDiagonal transposes about the a1-h8 diagonal: (row, col) -> (col, row).
func FlipDiagonal(x uint64) uint64 {
	const (
		k1 = 0x5500550055005500
		k2 = 0x3333000033330000
		k4 = 0x0f0f0f0f00000000
	)
	t := k4 & (x ^ (x << 28))
	x ^= t ^ (t >> 28)
	t = k2 & (x ^ (x << 14))
	x ^= t ^ (t >> 14)
	t = k1 & (x ^ (x << 7))
	x ^= t ^ (t >> 7)
	return x
}

// FlipAntiDiagonal transposes about the a8-h1 diagonal: (row, col) -> (7-col, 7-row).
func FlipAntiDiagonal(x uint64) uint64 {
	const (
		k1 = 0xaa00aa00aa00aa00
		k2 = 0xcccc0000cccc0000
		k4 = 0xf0f0f0f00f0f0f0f
	)
	t := x ^ (x << 36)
	x ^= k4 & (t ^ (x >> 36))
	t = k2 & (x ^ (x << 18))
	x ^= t ^ (t >> 18)
	t = k1 & (x ^ (x << 9))
	x ^= t ^ (t >> 9)
	return x
}

// Rotate180 is FlipVertical composed with MirrorHorizontal.
func Rotate180(x uint64) uint64 {
	return bits.Reverse64(x)
}

// Rotate90CW maps (row, col) -> (7-col, row).
func Rotate90CW(x uint64) uint64 {
	return FlipVertical(FlipDiagonal(x))
}

// Rotate90CCW maps (row, col) -> (col, 7-row).
func Rotate90CCW(x uint64) uint64 {
	return FlipDiagonal(FlipVertical(x))
}
