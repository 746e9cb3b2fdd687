// Package mcts implements a time-boxed Monte-Carlo tree search for Othello.
//
// Each iteration runs selection, expansion, simulation and backpropagation.
// The deadline is checked once per iteration, so a search always completes
// at least one playout. Selection and simulation are pluggable strategies;
// Plain uses UCB1 with uniform rollouts and PatternBiased blends learned
// pattern strengths into both phases.
package mcts

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/freeeve/othello/internal/bitboard"
	"github.com/freeeve/othello/internal/game"
	"github.com/freeeve/othello/internal/pattern"
	"github.com/freeeve/othello/internal/xrand"
)

// ErrGameOver is returned when searching a terminal position.
var ErrGameOver = errors.New("game is over")

// Config configures a Searcher. Zero values take defaults.
type Config struct {
	Policy Kind
	Select Selection
	C      float64 // exploration constant, default sqrt(2)
	Cbt    float64 // prior weight for PatternBiased, default 1
	K      float64 // prior decay constant for PatternBiased, default 1000
	Model  *pattern.Model
	Rand   xrand.Source
	Logger zerolog.Logger
}

// Stats describes the last completed search.
type Stats struct {
	Policy     Kind
	Playouts   int
	WinPercent float64 // root player's expected score, 0-100
	Nodes      int
	Elapsed    time.Duration
	Children   []ChildStat
}

// Searcher runs searches. It is not safe for concurrent use.
type Searcher struct {
	cfg  Config
	log  zerolog.Logger
	rng  xrand.Source
	last Stats
	tree *Tree
}

// New creates a Searcher.
func New(cfg Config) (*Searcher, error) {
	if cfg.C == 0 {
		cfg.C = math.Sqrt2
	}
	if cfg.Cbt == 0 {
		cfg.Cbt = 1.0
	}
	if cfg.K == 0 {
		cfg.K = 1000
	}
	if cfg.Rand == nil {
		cfg.Rand = xrand.NewEntropy()
	}
	if cfg.Policy == PatternBiased && cfg.Model == nil {
		return nil, fmt.Errorf("pattern-biased search needs a model")
	}
	return &Searcher{
		cfg: cfg,
		log: cfg.Logger,
		rng: cfg.Rand,
	}, nil
}

// LastStats returns statistics of the most recent search.
func (s *Searcher) LastStats() Stats {
	return s.last
}

// LastTree returns the tree of the most recent search, or nil.
func (s *Searcher) LastTree() *Tree {
	return s.tree
}

// RunSearch searches state for timeoutMs milliseconds with the given policy.
func (s *Searcher) RunSearch(ctx context.Context, state *game.State, timeoutMs int, policy Kind) (bitboard.Move, error) {
	if policy == PatternBiased && s.cfg.Model == nil {
		return bitboard.Pass, fmt.Errorf("pattern-biased search needs a model")
	}
	return s.search(ctx, state, time.Duration(timeoutMs)*time.Millisecond, policy)
}

// Search searches state until budget elapses using the configured policy.
func (s *Searcher) Search(ctx context.Context, state *game.State, budget time.Duration) (bitboard.Move, error) {
	return s.search(ctx, state, budget, s.cfg.Policy)
}

func (s *Searcher) search(ctx context.Context, state *game.State, budget time.Duration, kind Kind) (bitboard.Move, error) {
	start := time.Now()
	s.last = Stats{Policy: kind}
	s.tree = nil

	moves := state.Moves()
	switch len(moves) {
	case 0:
		return bitboard.Pass, ErrGameOver
	case 1:
		// A single legal move or a forced pass needs no search.
		s.last.Elapsed = time.Since(start)
		return moves[0], nil
	}

	sel, sim := s.policies(kind)
	tree := NewTree(state)
	deadline := start.Add(budget)
	for {
		s.iterate(tree, sel, sim, kind)
		s.last.Playouts++
		if !time.Now().Before(deadline) || ctx.Err() != nil {
			break
		}
	}

	root := tree.Node(tree.Root())
	s.tree = tree
	s.last.Nodes = tree.Len()
	s.last.Elapsed = time.Since(start)
	s.last.WinPercent = 100 * root.Reward / (game.RewardWin * float64(root.Visits))
	s.last.Children = tree.RootChildren()

	move, err := tree.BestMove(s.cfg.Select)
	s.log.Debug().
		Str("policy", kind.String()).
		Int("playouts", s.last.Playouts).
		Int("nodes", s.last.Nodes).
		Float64("win_pct", s.last.WinPercent).
		Dur("elapsed", s.last.Elapsed).
		Str("move", move.String()).
		Msg("search complete")
	if err != nil {
		return bitboard.Pass, err
	}
	return move, nil
}

func (s *Searcher) policies(kind Kind) (SelectionPolicy, SimulationPolicy) {
	if kind == PatternBiased {
		return PUCT{C: s.cfg.C, Cbt: s.cfg.Cbt, K: s.cfg.K}, RouletteRollout{Index: s.cfg.Model.Index()}
	}
	return UCB1{C: s.cfg.C}, UniformRollout{}
}

// iterate runs one selection, expansion, simulation and backpropagation pass.
func (s *Searcher) iterate(t *Tree, sel SelectionPolicy, sim SimulationPolicy, kind Kind) {
	leaf := s.selectLeaf(t, sel)
	if kind == PatternBiased {
		leaf = s.expandBiased(t, leaf)
	} else {
		leaf = s.expand(t, leaf)
	}
	st := t.Node(leaf).State
	outcome := Simulate(st.Board, st.Side, sim, s.rng)
	t.Backpropagate(leaf, outcome.RewardFor(t.RootSide()))
}

// selectLeaf descends while the node is fully expanded and has children.
func (s *Searcher) selectLeaf(t *Tree, sel SelectionPolicy) NodeID {
	id := t.Root()
	for {
		n := t.Node(id)
		if !n.FullyExpanded() || len(n.Children) == 0 {
			return id
		}
		best := n.Children[0]
		bestScore := sel.Score(t, best)
		for _, c := range n.Children[1:] {
			if sc := sel.Score(t, c); sc > bestScore {
				best, bestScore = c, sc
			}
		}
		id = best
	}
}

// expand adds a child for a uniformly chosen untried move. Terminal leaves
// are returned unchanged.
func (s *Searcher) expand(t *Tree, id NodeID) NodeID {
	n := t.Node(id)
	if len(n.Untried) == 0 {
		return id
	}
	move := n.Untried[s.rng.Intn(len(n.Untried))]
	return s.addChild(t, id, move)
}

// expandBiased primes the node's move strengths on first expansion and then
// expands a uniformly chosen untried move with its cached strength.
func (s *Searcher) expandBiased(t *Tree, id NodeID) NodeID {
	n := t.Node(id)
	if len(n.Untried) == 0 {
		return id
	}
	if !n.primed {
		ix := s.cfg.Model.Index()
		n.priors = make([]float64, len(n.Untried))
		n.StrengthSum = 0
		for i, m := range n.Untried {
			n.priors[i] = ix.Strength(n.State.Board, n.State.Side, m)
			n.StrengthSum += n.priors[i]
		}
		n.primed = true
	}
	i := s.rng.Intn(len(n.Untried))
	move, strength := n.Untried[i], n.priors[i]
	child := s.addChild(t, id, move)
	t.Node(child).Strength = strength
	return child
}

func (s *Searcher) addChild(t *Tree, id NodeID, move bitboard.Move) NodeID {
	next, err := t.Node(id).State.Transition(move)
	if err != nil {
		// Untried moves come from the state's own legal set.
		panic(fmt.Sprintf("mcts: expanding %s: %v", move, err))
	}
	return t.AddChild(id, move, next)
}

// Simulate plays the position out with sim and returns the result.
// Passes are made automatically when the side to move has no move.
func Simulate(board bitboard.Board, side bitboard.Side, sim SimulationPolicy, rng xrand.Source) game.Outcome {
	for {
		legal := board.LegalMoves(side)
		if legal == 0 {
			if board.LegalMoves(side.Opponent()) == 0 {
				break
			}
			side = side.Opponent()
			continue
		}
		board = board.Apply(side, sim.Pick(board, side, legal, rng))
		side = side.Opponent()
	}
	return game.OutcomeOf(board)
}
