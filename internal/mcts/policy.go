package mcts

import (
	"fmt"
	"math"

	"github.com/freeeve/othello/internal/bitboard"
	"github.com/freeeve/othello/internal/pattern"
	"github.com/freeeve/othello/internal/xrand"
)

// Kind names a selection/simulation pairing.
type Kind uint8

const (
	// Plain uses UCB1 selection and uniform rollouts.
	Plain Kind = iota
	// PatternBiased uses pattern priors in selection and weighted rollouts.
	PatternBiased
)

func (k Kind) String() string {
	if k == PatternBiased {
		return "biased"
	}
	return "plain"
}

// ParseKind accepts "plain" or "biased".
func ParseKind(s string) (Kind, error) {
	switch s {
	case "", "plain":
		return Plain, nil
	case "biased", "pattern":
		return PatternBiased, nil
	}
	return Plain, fmt.Errorf("unknown policy %q", s)
}

// SelectionPolicy scores a child during the selection phase.
type SelectionPolicy interface {
	Score(t *Tree, child NodeID) float64
}

// SimulationPolicy picks rollout moves from a non-empty legal mask.
type SimulationPolicy interface {
	Pick(board bitboard.Board, side bitboard.Side, legal uint64, rng xrand.Source) bitboard.Move
}

// UCB1 is mean reward plus C*sqrt(ln(parentVisits)/visits).
type UCB1 struct {
	C float64
}

func (p UCB1) Score(t *Tree, child NodeID) float64 {
	c := t.Node(child)
	if c.Visits == 0 {
		return math.Inf(1)
	}
	parent := t.Node(c.Parent)
	return t.Value(child) + p.C*math.Sqrt(math.Log(float64(parent.Visits))/float64(c.Visits))
}

// PUCT adds a prior term Cbt*P*sqrt(K/(parentVisits+K)) to UCB1, where P is
// the child's share of its siblings' pattern strength.
type PUCT struct {
	C   float64
	Cbt float64
	K   float64
}

func (p PUCT) Score(t *Tree, child NodeID) float64 {
	c := t.Node(child)
	if c.Visits == 0 {
		return math.Inf(1)
	}
	parent := t.Node(c.Parent)
	np := float64(parent.Visits)
	score := t.Value(child) + p.C*math.Sqrt(math.Log(np)/float64(c.Visits))
	if parent.StrengthSum > 0 {
		prior := c.Strength / parent.StrengthSum
		score += p.Cbt * prior * math.Sqrt(p.K/(np+p.K))
	}
	return score
}

// UniformRollout picks any legal move with equal probability.
type UniformRollout struct{}

func (UniformRollout) Pick(_ bitboard.Board, _ bitboard.Side, legal uint64, rng xrand.Source) bitboard.Move {
	n := rng.Intn(bitboard.PopCount(legal))
	for ; n > 0; n-- {
		legal &= legal - 1
	}
	return bitboard.Move(bitboard.LowestBit(legal))
}

// RouletteRollout samples moves in proportion to their pattern strength.
type RouletteRollout struct {
	Index *pattern.Index
}

func (p RouletteRollout) Pick(board bitboard.Board, side bitboard.Side, legal uint64, rng xrand.Source) bitboard.Move {
	var moves [64]bitboard.Move
	var weights [64]float64
	n := 0
	for legal != 0 && n < len(moves) {
		bit := bitboard.LowestBit(legal)
		legal ^= bit
		moves[n] = bitboard.Move(bit)
		weights[n] = p.Index.Strength(board, side, moves[n])
		n++
	}
	return moves[Roulette(weights[:n], rng)]
}

// Roulette returns the first index whose cumulative weight reaches a uniform
// point in [0, total). All-zero weights fall back to a uniform pick.
func Roulette(weights []float64, rng xrand.Source) int {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return rng.Intn(len(weights))
	}
	r := rng.Float64() * total
	cum := 0.0
	for i, w := range weights {
		cum += w
		if cum >= r {
			return i
		}
	}
	return len(weights) - 1
}
