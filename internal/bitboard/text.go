package bitboard

import (
	"fmt"
	"strings"
)

// ParseBoard reads 64 cells in square order (a1, b1, ... h8).
// Black is X, *, or B; white is O or W; empty is - or . ; whitespace is ignored.
func ParseBoard(s string) (Board, error) {
	var b Board
	sq := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case ' ', '\t', '\n', '\r':
			continue
		}
		if sq >= 64 {
			return Board{}, fmt.Errorf("board has more than 64 cells")
		}
		switch c {
		case 'X', 'x', '*', 'B', 'b':
			b.Black |= SquareMask(sq)
		case 'O', 'o', 'W', 'w':
			b.White |= SquareMask(sq)
		case '-', '.':
		default:
			return Board{}, fmt.Errorf("invalid cell %q at %s", c, SquareName(sq))
		}
		sq++
	}
	if sq != 64 {
		return Board{}, fmt.Errorf("board has %d cells, want 64", sq)
	}
	return b, nil
}

// Compact renders the 64-cell form accepted by ParseBoard.
func (b Board) Compact() string {
	var sb strings.Builder
	sb.Grow(64)
	for sq := 0; sq < 64; sq++ {
		sb.WriteByte(cellChar(b.Get(SquareMask(sq))))
	}
	return sb.String()
}

// String renders the board as a diagram with rank 1 on top.
func (b Board) String() string {
	var sb strings.Builder
	sb.WriteString("  a b c d e f g h\n")
	for row := 0; row < 8; row++ {
		sb.WriteByte(byte('1' + row))
		for col := 0; col < 8; col++ {
			sb.WriteByte(' ')
			sb.WriteByte(cellChar(b.Get(SquareMask(row*8 + col))))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func cellChar(v int) byte {
	switch v {
	case CellBlack:
		return 'X'
	case CellWhite:
		return 'O'
	}
	return '-'
}
