package pattern

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/freeeve/othello/internal/bitboard"
)

// ParseShapes reads shape grids. Each grid is eight lines of eight cells with
// rank 1 first: '#' marks a cell, 'T' the target (also a cell), '-' or '.' an
// unused square. Grids are separated by blank lines; lines starting with ';'
// are comments. Cells are ordered a1, b1, ... h8.
func ParseShapes(r io.Reader) ([]Shape, error) {
	var shapes []Shape
	var rows []string
	lineNum := 0

	flush := func() error {
		if len(rows) == 0 {
			return nil
		}
		if len(rows) != 8 {
			return fmt.Errorf("%w: grid ending at line %d has %d rows, want 8", ErrBadShape, lineNum, len(rows))
		}
		s, err := parseGrid(rows)
		if err != nil {
			return fmt.Errorf("grid ending at line %d: %w", lineNum, err)
		}
		shapes = append(shapes, s)
		rows = rows[:0]
		return nil
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, ";") {
			continue
		}
		if line == "" {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		rows = append(rows, strings.ReplaceAll(line, " ", ""))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return shapes, nil
}

func parseGrid(rows []string) (Shape, error) {
	var cells []uint64
	var target uint64
	for row, line := range rows {
		if len(line) != 8 {
			return Shape{}, fmt.Errorf("%w: row %d has %d cells", ErrBadShape, row+1, len(line))
		}
		for col := 0; col < 8; col++ {
			mask := bitboard.SquareMask(row*8 + col)
			switch line[col] {
			case '#':
				cells = append(cells, mask)
			case 'T', 't':
				if target != 0 {
					return Shape{}, fmt.Errorf("%w: more than one target", ErrBadShape)
				}
				target = mask
				cells = append(cells, mask)
			case '-', '.':
			default:
				return Shape{}, fmt.Errorf("%w: unexpected %q", ErrBadShape, line[col])
			}
		}
	}
	if target == 0 {
		return Shape{}, fmt.Errorf("%w: no target", ErrBadShape)
	}
	return NewShape(cells, target)
}

// octantTargets covers every square once the eight symmetries are applied.
var octantTargets = []string{"a1", "b1", "c1", "d1", "b2", "c2", "d2", "c3", "d3", "d4"}

// DefaultShapes returns one 3x3 neighbourhood shape per octant target.
func DefaultShapes() []Shape {
	shapes := make([]Shape, 0, len(octantTargets))
	for _, name := range octantTargets {
		sq, _ := bitboard.ParseSquare(name)
		row, col := sq/8, sq%8
		var cells []uint64
		for r := row - 1; r <= row+1; r++ {
			for c := col - 1; c <= col+1; c++ {
				if r < 0 || r > 7 || c < 0 || c > 7 {
					continue
				}
				cells = append(cells, bitboard.SquareMask(r*8+c))
			}
		}
		s, err := NewShape(cells, bitboard.SquareMask(sq))
		if err != nil {
			panic(err)
		}
		shapes = append(shapes, s)
	}
	return shapes
}
