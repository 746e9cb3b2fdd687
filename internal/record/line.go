package record

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/freeeve/othello/internal/bitboard"
)

// ParseLine parses "black|white|moves[|board]". Moves are concatenated
// two-character squares ("f5d6c3"), "PA" for a pass. The optional board is
// 64 cells as accepted by bitboard.ParseBoard, optionally followed by the
// side to move (X or O, default black).
func ParseLine(line string) (*Game, error) {
	fields := strings.Split(strings.TrimSpace(line), "|")
	if len(fields) != 3 && len(fields) != 4 {
		return nil, fmt.Errorf("%w: %d fields", ErrMalformedRecord, len(fields))
	}
	black, err1 := strconv.Atoi(strings.TrimSpace(fields[0]))
	white, err2 := strconv.Atoi(strings.TrimSpace(fields[1]))
	if err1 != nil || err2 != nil || black < 0 || white < 0 || black+white > 64 {
		return nil, fmt.Errorf("%w: bad score %q|%q", ErrMalformedRecord, fields[0], fields[1])
	}

	start, side := bitboard.Start(), bitboard.Black
	if len(fields) == 4 {
		start, side, err1 = parseStart(fields[3])
		if err1 != nil {
			return nil, err1
		}
	}

	moves, err := parsePairs(strings.TrimSpace(fields[2]))
	if err != nil {
		return nil, err
	}
	g, err := Replay(start, side, moves)
	if err != nil {
		return nil, err
	}
	g.BlackScore, g.WhiteScore = black, white
	return g, nil
}

func parsePairs(s string) ([]bitboard.Move, error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("%w: odd move string length %d", ErrMalformedRecord, len(s))
	}
	moves := make([]bitboard.Move, 0, len(s)/2)
	for i := 0; i < len(s); i += 2 {
		m, err := bitboard.ParseMove(s[i : i+2])
		if err != nil {
			return nil, fmt.Errorf("%w: move %d: %v", ErrMalformedRecord, i/2+1, err)
		}
		moves = append(moves, m)
	}
	return moves, nil
}

func parseStart(s string) (bitboard.Board, bitboard.Side, error) {
	s = strings.Join(strings.Fields(s), "")
	side := bitboard.Black
	if len(s) == 65 {
		switch s[64] {
		case 'X', 'x', '*', 'B', 'b':
		case 'O', 'o', 'W', 'w':
			side = bitboard.White
		default:
			return bitboard.Board{}, side, fmt.Errorf("%w: bad side %q", ErrMalformedRecord, s[64])
		}
		s = s[:64]
	}
	b, err := bitboard.ParseBoard(s)
	if err != nil {
		return bitboard.Board{}, side, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return b, side, nil
}

// FormatLine renders g in the form read by ParseLine. The board field is
// written only for games that do not start from the standard opening.
func FormatLine(g *Game) string {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(g.BlackScore))
	sb.WriteByte('|')
	sb.WriteString(strconv.Itoa(g.WhiteScore))
	sb.WriteByte('|')
	for _, m := range g.Moves {
		if m == bitboard.Pass {
			sb.WriteString("PA")
			continue
		}
		sb.WriteString(m.String())
	}
	if g.Start != bitboard.Start() || g.StartSide != bitboard.Black {
		sb.WriteByte('|')
		sb.WriteString(g.Start.Compact())
		if g.StartSide == bitboard.White {
			sb.WriteByte('O')
		} else {
			sb.WriteByte('X')
		}
	}
	return sb.String()
}
