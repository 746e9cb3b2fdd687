// Package pattern defines spatial move features and their learned strengths.
//
// A Shape is an ordered list of cells plus a target cell. Its code on a board
// is the base-3 number formed by the cell contents (empty 0, black 1, white 2),
// first cell most significant. A Mining holds the per-code strength tables for
// one concrete shape; an Index groups minings by target cell so search can
// look up the strength of a candidate move.
package pattern

import (
	"errors"
	"fmt"
	"strings"

	"github.com/freeeve/othello/internal/bitboard"
)

// ErrBadShape is returned for shapes that violate the cell/target contract.
var ErrBadShape = errors.New("bad pattern shape")

// MaxCells bounds shape size so codes fit in a uint32.
const MaxCells = 20

// Shape is a fixed set of cells and one target cell.
type Shape struct {
	Cells  []uint64
	Target uint64
}

// NewShape validates cells and target. Cells must be distinct single bits.
func NewShape(cells []uint64, target uint64) (Shape, error) {
	if len(cells) == 0 || len(cells) > MaxCells {
		return Shape{}, fmt.Errorf("%w: %d cells, want 1..%d", ErrBadShape, len(cells), MaxCells)
	}
	if bitboard.PopCount(target) != 1 {
		return Shape{}, fmt.Errorf("%w: target %#x is not a single cell", ErrBadShape, target)
	}
	var seen uint64
	for _, c := range cells {
		if bitboard.PopCount(c) != 1 {
			return Shape{}, fmt.Errorf("%w: cell %#x is not a single cell", ErrBadShape, c)
		}
		if seen&c != 0 {
			return Shape{}, fmt.Errorf("%w: duplicate cell %s", ErrBadShape, bitboard.Move(c))
		}
		seen |= c
	}
	out := Shape{Cells: make([]uint64, len(cells)), Target: target}
	copy(out.Cells, cells)
	return out, nil
}

// ShapeFromNotation builds a shape from square names such as "a1".
func ShapeFromNotation(cells []string, target string) (Shape, error) {
	masks := make([]uint64, 0, len(cells))
	for _, c := range cells {
		sq, err := bitboard.ParseSquare(c)
		if err != nil {
			return Shape{}, fmt.Errorf("%w: %v", ErrBadShape, err)
		}
		masks = append(masks, bitboard.SquareMask(sq))
	}
	sq, err := bitboard.ParseSquare(target)
	if err != nil {
		return Shape{}, fmt.Errorf("%w: %v", ErrBadShape, err)
	}
	return NewShape(masks, bitboard.SquareMask(sq))
}

// Code encodes the contents of the shape's cells on b.
// Colours are absolute; the side to move is a separate table axis.
func (s Shape) Code(b bitboard.Board) uint32 {
	var code uint32
	for _, c := range s.Cells {
		code = code*3 + uint32(b.Get(c))
	}
	return code
}

// NumCodes returns 3^len(Cells).
func (s Shape) NumCodes() uint64 {
	n := uint64(1)
	for range s.Cells {
		n *= 3
	}
	return n
}

// IndexOfCell returns the position of cell within Cells, or -1.
func (s Shape) IndexOfCell(cell uint64) int {
	for i, c := range s.Cells {
		if c == cell {
			return i
		}
	}
	return -1
}

// Transform maps every cell and the target through sym, keeping cell order.
func (s Shape) Transform(sym bitboard.Symmetry) Shape {
	out := Shape{Cells: make([]uint64, len(s.Cells)), Target: sym.Apply(s.Target)}
	for i, c := range s.Cells {
		out.Cells[i] = sym.Apply(c)
	}
	return out
}

// Variant is a shape produced by one of the eight symmetries.
type Variant struct {
	Shape    Shape
	Symmetry bitboard.Symmetry
}

// Sym8 returns the eight symmetric variants of s, identity first.
// Variants are independent even when a symmetric shape maps onto itself.
func (s Shape) Sym8() []Variant {
	out := make([]Variant, 0, len(bitboard.Symmetries))
	for _, sym := range bitboard.Symmetries {
		out = append(out, Variant{Shape: s.Transform(sym), Symmetry: sym})
	}
	return out
}

// CellSet returns the union of all cells.
func (s Shape) CellSet() uint64 {
	var set uint64
	for _, c := range s.Cells {
		set |= c
	}
	return set
}

// String lists the target and cells in notation, e.g. "d3<c2,d2,...>".
func (s Shape) String() string {
	names := make([]string, len(s.Cells))
	for i, c := range s.Cells {
		names[i] = bitboard.Move(c).String()
	}
	return fmt.Sprintf("%s<%s>", bitboard.Move(s.Target), strings.Join(names, ","))
}

// ParseShape reads the String form back into a shape.
func ParseShape(s string) (Shape, error) {
	open := strings.IndexByte(s, '<')
	if open < 0 || !strings.HasSuffix(s, ">") {
		return Shape{}, fmt.Errorf("%w: %q", ErrBadShape, s)
	}
	inner := s[open+1 : len(s)-1]
	if inner == "" {
		return Shape{}, fmt.Errorf("%w: %q has no cells", ErrBadShape, s)
	}
	return ShapeFromNotation(strings.Split(inner, ","), s[:open])
}
