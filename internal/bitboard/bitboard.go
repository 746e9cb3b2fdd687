// Package bitboard implements the Othello board as two 64-bit occupancy masks.
//
// Bit layout: index = row*8 + col, bit 0 = a1, bit 63 = h8. The file letter
// names the column and the rank digit is row+1.
package bitboard

import "fmt"

// Side identifies a player colour.
type Side uint8

const (
	Black Side = 0
	White Side = 1
)

// Opponent returns the other colour.
func (s Side) Opponent() Side {
	return s ^ 1
}

func (s Side) String() string {
	if s == White {
		return "white"
	}
	return "black"
}

// ParseSide parses "black"/"b"/"x"/"*" or "white"/"w"/"o".
func ParseSide(s string) (Side, error) {
	switch s {
	case "black", "Black", "BLACK", "b", "B", "x", "X", "*":
		return Black, nil
	case "white", "White", "WHITE", "w", "W", "o", "O":
		return White, nil
	}
	return Black, fmt.Errorf("invalid side: %q", s)
}

// Board holds one occupancy mask per side. The masks never overlap.
type Board struct {
	Black uint64
	White uint64
}

// Start returns the standard opening position.
func Start() Board {
	return Board{
		Black: SquareMask(35) | SquareMask(28), // d5, e4
		White: SquareMask(27) | SquareMask(36), // d4, e5
	}
}

// Mask returns the pieces of side s.
func (b Board) Mask(s Side) uint64 {
	if s == White {
		return b.White
	}
	return b.Black
}

// Occupied returns every cell holding a piece.
func (b Board) Occupied() uint64 {
	return b.Black | b.White
}

// Empty returns every free cell.
func (b Board) Empty() uint64 {
	return ^(b.Black | b.White)
}

// Count returns the number of pieces of side s.
func (b Board) Count(s Side) int {
	return PopCount(b.Mask(s))
}

// Valid reports whether the masks are disjoint.
func (b Board) Valid() bool {
	return b.Black&b.White == 0
}

// Cell content codes shared with the pattern encoder.
const (
	CellEmpty = 0
	CellBlack = 1
	CellWhite = 2
)

// Get returns the content of a single-bit cell mask as an absolute colour code.
func (b Board) Get(cell uint64) int {
	switch {
	case b.Black&cell != 0:
		return CellBlack
	case b.White&cell != 0:
		return CellWhite
	}
	return CellEmpty
}

// Wrap masks: a shift that moves east must not land on file a, and vice versa.
const (
	notFileA uint64 = 0xfefefefefefefefe
	notFileH uint64 = 0x7f7f7f7f7f7f7f7f
)

type shiftFn func(uint64) uint64

// directions lists the eight single-step shifts.
var directions = [8]shiftFn{
	func(x uint64) uint64 { return (x << 1) & notFileA }, // east
	func(x uint64) uint64 { return (x >> 1) & notFileH }, // west
	func(x uint64) uint64 { return x << 8 },              // north
	func(x uint64) uint64 { return x >> 8 },              // south
	func(x uint64) uint64 { return (x << 9) & notFileA }, // north-east
	func(x uint64) uint64 { return (x << 7) & notFileH }, // north-west
	func(x uint64) uint64 { return (x >> 7) & notFileA }, // south-east
	func(x uint64) uint64 { return (x >> 9) & notFileH }, // south-west
}

// LegalMoves returns every empty cell where side s can play.
func (b Board) LegalMoves(s Side) uint64 {
	own := b.Mask(s)
	opp := b.Mask(s.Opponent())
	empty := b.Empty()

	var moves uint64
	for _, shift := range directions {
		run := shift(own) & opp
		// A run of opponent pieces is at most six long on an 8x8 board.
		for i := 0; i < 5; i++ {
			run |= shift(run) & opp
		}
		moves |= shift(run) & empty
	}
	return moves
}

// WouldFlip returns the opponent pieces captured if side s plays move.
// A pass or an occupied cell flips nothing.
func (b Board) WouldFlip(s Side, move Move) uint64 {
	m := uint64(move)
	if m == 0 || b.Occupied()&m != 0 {
		return 0
	}
	own := b.Mask(s)
	opp := b.Mask(s.Opponent())

	var flips uint64
	for _, shift := range directions {
		var run uint64
		x := shift(m)
		for x != 0 && x&opp != 0 {
			run |= x
			x = shift(x)
		}
		if x&own != 0 {
			flips |= run
		}
	}
	return flips
}

// Apply plays move for side s and returns the new board. Passing returns b unchanged.
// Apply does not check legality; callers go through game.State for that.
func (b Board) Apply(s Side, move Move) Board {
	if move == Pass {
		return b
	}
	flips := b.WouldFlip(s, move)
	m := uint64(move)
	if s == Black {
		b.Black |= flips | m
		b.White ^= flips
	} else {
		b.White |= flips | m
		b.Black ^= flips
	}
	return b
}

// IsTerminal reports whether the board is full or neither side can move.
func (b Board) IsTerminal() bool {
	if b.Empty() == 0 {
		return true
	}
	return b.LegalMoves(Black) == 0 && b.LegalMoves(White) == 0
}
