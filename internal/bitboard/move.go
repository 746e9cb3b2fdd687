package bitboard

import (
	"fmt"
	"strings"
)

// Move is a single-bit cell mask, or Pass (no bits set).
type Move uint64

// Pass is the forced pass move.
const Pass Move = 0

// PassNotation is how a pass is written at textual boundaries.
const PassNotation = "PASSED"

// SquareMask returns the single-bit mask for square index sq (0-63).
func SquareMask(sq int) uint64 {
	return 1 << uint(sq)
}

// MoveAt returns the move for square index sq (0-63).
func MoveAt(sq int) Move {
	return Move(SquareMask(sq))
}

// Square returns the square index (0-63), or -1 for a pass or a malformed mask.
func (m Move) Square() int {
	if m == Pass || PopCount(uint64(m)) != 1 {
		return -1
	}
	return BitScanForward(uint64(m))
}

// IsPass reports whether m is the pass move.
func (m Move) IsPass() bool {
	return m == Pass
}

// String returns algebraic notation ("d3"), or PASSED for a pass.
func (m Move) String() string {
	sq := m.Square()
	if sq < 0 {
		if m == Pass {
			return PassNotation
		}
		return fmt.Sprintf("invalid(%#x)", uint64(m))
	}
	return SquareName(sq)
}

// SquareName converts a square index to notation: 0 -> "a1", 63 -> "h8".
func SquareName(sq int) string {
	file := byte('a' + sq%8)
	rank := byte('1' + sq/8)
	return string([]byte{file, rank})
}

// ParseSquare parses "a1".."h8" (either case) into a square index.
func ParseSquare(s string) (int, error) {
	if len(s) != 2 {
		return -1, fmt.Errorf("invalid square: %q", s)
	}
	file := int(lower(s[0]) - 'a')
	rank := int(s[1] - '1')
	if file < 0 || file > 7 || rank < 0 || rank > 7 {
		return -1, fmt.Errorf("invalid square: %q", s)
	}
	return rank*8 + file, nil
}

// ParseMove parses a square or a pass token ("PASSED", "PASS", "PA", "--").
func ParseMove(s string) (Move, error) {
	s = strings.TrimSpace(s)
	switch strings.ToUpper(s) {
	case PassNotation, "PASS", "PA", "--":
		return Pass, nil
	}
	sq, err := ParseSquare(s)
	if err != nil {
		return Pass, err
	}
	return MoveAt(sq), nil
}

// Moves expands a mask into its single-bit moves, lowest square first.
func Moves(mask uint64) []Move {
	out := make([]Move, 0, PopCount(mask))
	for mask != 0 {
		bit := LowestBit(mask)
		out = append(out, Move(bit))
		mask ^= bit
	}
	return out
}

func lower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + 'a' - 'A'
	}
	return c
}
