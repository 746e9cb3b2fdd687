// Package record parses Othello game records into replayed move lists.
//
// Two text formats are read: a pipe-delimited line format
// (black score | white score | move pairs [| start board]) and GGF
// "(;...;)" blocks. Both produce a Game whose Moves and Legal slices are
// index-aligned, with explicit passes inserted wherever the side to move
// had no legal move.
package record

import (
	"errors"
	"fmt"

	"github.com/freeeve/othello/internal/bitboard"
	"github.com/freeeve/othello/internal/game"
)

var (
	// ErrMalformedRecord is returned for a record that cannot be replayed.
	// Loaders count and skip these.
	ErrMalformedRecord = errors.New("malformed record")
	// ErrCorpusIO is returned when a record source is missing or unreadable.
	ErrCorpusIO = errors.New("corpus io")
)

// Game is one replayed record.
type Game struct {
	Start     bitboard.Board
	StartSide bitboard.Side
	Moves     []bitboard.Move // Pass for a forced pass
	Legal     []uint64        // legal mask before each move

	BlackScore int
	WhiteScore int
	Source     string // file:line or file:#n, informational
}

// Plies returns the number of moves including passes.
func (g *Game) Plies() int {
	return len(g.Moves)
}

// Final replays the game and returns the last position.
func (g *Game) Final() *game.State {
	st := game.New(g.Start, g.StartSide)
	for _, m := range g.Moves {
		next, err := st.Transition(m)
		if err != nil {
			break
		}
		st = next
	}
	return st
}

// Replay plays moves from start and fills Legal. A real move met while the
// side to move has none gets an explicit pass inserted before it. A pass
// while moves exist, or an illegal move, is ErrMalformedRecord.
func Replay(start bitboard.Board, side bitboard.Side, moves []bitboard.Move) (*Game, error) {
	if !start.Valid() {
		return nil, fmt.Errorf("%w: overlapping start board", ErrMalformedRecord)
	}
	g := &Game{
		Start:     start,
		StartSide: side,
		Moves:     make([]bitboard.Move, 0, len(moves)+2),
		Legal:     make([]uint64, 0, len(moves)+2),
	}
	st := game.New(start, side)
	for i, m := range moves {
		if m != bitboard.Pass && st.MustPass() {
			g.Moves = append(g.Moves, bitboard.Pass)
			g.Legal = append(g.Legal, 0)
			st, _ = st.Transition(bitboard.Pass)
		}
		next, err := st.Transition(m)
		if err != nil {
			return nil, fmt.Errorf("%w: ply %d: %v", ErrMalformedRecord, i+1, err)
		}
		g.Moves = append(g.Moves, m)
		g.Legal = append(g.Legal, st.Legal)
		st = next
	}
	g.BlackScore, g.WhiteScore = st.Score()
	return g, nil
}

// Validate checks the Moves/Legal contract: equal lengths, and every move
// is a pass exactly when its legal mask is empty, otherwise a member of it.
func (g *Game) Validate() error {
	if len(g.Moves) != len(g.Legal) {
		return fmt.Errorf("%w: %d moves but %d legal sets", ErrMalformedRecord, len(g.Moves), len(g.Legal))
	}
	st := game.New(g.Start, g.StartSide)
	for i, m := range g.Moves {
		if st.Legal != g.Legal[i] {
			return fmt.Errorf("%w: ply %d: legal set mismatch", ErrMalformedRecord, i+1)
		}
		next, err := st.Transition(m)
		if err != nil {
			return fmt.Errorf("%w: ply %d: %v", ErrMalformedRecord, i+1, err)
		}
		st = next
	}
	return nil
}
