// Package game wraps a board with the side to move and its legal moves.
package game

import (
	"errors"
	"fmt"

	"github.com/freeeve/othello/internal/bitboard"
)

// ErrInvalidMove is returned when a move outside the legal set is applied.
var ErrInvalidMove = errors.New("invalid move")

// Outcome is the result of a finished game.
type Outcome uint8

const (
	Draw Outcome = iota
	BlackWins
	WhiteWins
)

func (o Outcome) String() string {
	switch o {
	case BlackWins:
		return "black"
	case WhiteWins:
		return "white"
	}
	return "draw"
}

// Rewards used by search backpropagation.
const (
	RewardWin  = 2.0
	RewardDraw = 1.0
	RewardLoss = 0.0
)

// RewardFor scores the outcome from side s's point of view.
func (o Outcome) RewardFor(s bitboard.Side) float64 {
	switch {
	case o == Draw:
		return RewardDraw
	case (o == BlackWins) == (s == bitboard.Black):
		return RewardWin
	}
	return RewardLoss
}

// OutcomeOf compares piece counts.
func OutcomeOf(b bitboard.Board) Outcome {
	black, white := b.Count(bitboard.Black), b.Count(bitboard.White)
	switch {
	case black > white:
		return BlackWins
	case white > black:
		return WhiteWins
	}
	return Draw
}

// State is an immutable position. Legal is computed once in New.
type State struct {
	Board bitboard.Board
	Side  bitboard.Side
	Legal uint64
}

// New builds a state for side to move on board.
func New(board bitboard.Board, side bitboard.Side) *State {
	return &State{
		Board: board,
		Side:  side,
		Legal: board.LegalMoves(side),
	}
}

// Start returns the opening position with black to move.
func Start() *State {
	return New(bitboard.Start(), bitboard.Black)
}

// Transition plays move and returns the successor with the opponent to move.
// Pass is accepted only when there are no legal moves; the caller decides to pass.
func (s *State) Transition(move bitboard.Move) (*State, error) {
	if err := s.Check(move); err != nil {
		return nil, err
	}
	return New(s.Board.Apply(s.Side, move), s.Side.Opponent()), nil
}

// Check validates move against the legal set without applying it.
func (s *State) Check(move bitboard.Move) error {
	if move == bitboard.Pass {
		if s.Legal != 0 {
			return fmt.Errorf("%w: pass with %d legal moves", ErrInvalidMove, bitboard.PopCount(s.Legal))
		}
		if s.Board.IsTerminal() {
			return fmt.Errorf("%w: pass after the game is over", ErrInvalidMove)
		}
		return nil
	}
	if bitboard.PopCount(uint64(move)) != 1 {
		return fmt.Errorf("%w: %#x is not a single cell", ErrInvalidMove, uint64(move))
	}
	if s.Legal&uint64(move) == 0 {
		return fmt.Errorf("%w: %s is not legal for %s", ErrInvalidMove, move, s.Side)
	}
	return nil
}

// Terminal reports whether the game is over.
func (s *State) Terminal() bool {
	if s.Legal != 0 {
		return false
	}
	return s.Board.IsTerminal()
}

// MustPass reports whether the side to move has to pass.
func (s *State) MustPass() bool {
	return s.Legal == 0 && !s.Board.IsTerminal()
}

// Moves returns the legal moves, or a lone pass when the side to move must pass.
// A terminal state has no moves.
func (s *State) Moves() []bitboard.Move {
	if s.Legal != 0 {
		return bitboard.Moves(s.Legal)
	}
	if s.Terminal() {
		return nil
	}
	return []bitboard.Move{bitboard.Pass}
}

// Winner compares piece counts. Only meaningful once Terminal is true.
func (s *State) Winner() Outcome {
	return OutcomeOf(s.Board)
}

// Score returns the piece counts.
func (s *State) Score() (black, white int) {
	return s.Board.Count(bitboard.Black), s.Board.Count(bitboard.White)
}

func (s *State) String() string {
	black, white := s.Score()
	return fmt.Sprintf("%s%s to move (black %d, white %d)", s.Board, s.Side, black, white)
}
