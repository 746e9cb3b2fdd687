package pattern

import (
	"sync"

	"github.com/freeeve/othello/internal/bitboard"
)

// Index groups minings by target square. It is a cache over a mining set and
// must be rebuilt when that set changes.
type Index struct {
	byTarget [64][]*Mining
}

// NewIndex builds the target lookup for ms.
func NewIndex(ms []*Mining) *Index {
	ix := &Index{}
	for _, m := range ms {
		sq := bitboard.BitScanForward(m.Target())
		ix.byTarget[sq] = append(ix.byTarget[sq], m)
	}
	return ix
}

// For returns the minings whose target is move. A pass has none.
func (ix *Index) For(move bitboard.Move) []*Mining {
	sq := move.Square()
	if sq < 0 {
		return nil
	}
	return ix.byTarget[sq]
}

// Strength is the product of Gamma over every mining targeting move,
// evaluated on board with side to move. Moves without minings score 1.
func (ix *Index) Strength(board bitboard.Board, side bitboard.Side, move bitboard.Move) float64 {
	s := 1.0
	for _, m := range ix.For(move) {
		s *= m.Gamma(m.KeyFor(board, side))
	}
	return s
}

// Model is the active mining set plus its lazily built index.
type Model struct {
	Minings []*Mining

	mu    sync.Mutex
	index *Index
}

// NewModel creates one mining per shape, or per symmetric variant when expand is set.
func NewModel(shapes []Shape, expand bool) *Model {
	m := &Model{}
	for _, s := range shapes {
		if !expand {
			m.Minings = append(m.Minings, NewMining(s, bitboard.Identity))
			continue
		}
		for _, v := range s.Sym8() {
			m.Minings = append(m.Minings, NewMining(v.Shape, v.Symmetry))
		}
	}
	return m
}

// Add appends minings and invalidates the index.
func (m *Model) Add(ms ...*Mining) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Minings = append(m.Minings, ms...)
	m.index = nil
}

// Index returns the target index, building it on first use.
func (m *Model) Index() *Index {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.index == nil {
		m.index = NewIndex(m.Minings)
	}
	return m.index
}

// Strength is Index().Strength.
func (m *Model) Strength(board bitboard.Board, side bitboard.Side, move bitboard.Move) float64 {
	return m.Index().Strength(board, side, move)
}

// Find returns the mining with the given ID, or nil.
func (m *Model) Find(id string) *Mining {
	for _, mn := range m.Minings {
		if mn.ID() == id {
			return mn
		}
	}
	return nil
}

// Entries counts populated table entries across all minings.
func (m *Model) Entries() int {
	n := 0
	for _, mn := range m.Minings {
		n += mn.Len()
	}
	return n
}

// ResetTraining clears the transient training tables of every mining.
func (m *Model) ResetTraining() {
	for _, mn := range m.Minings {
		mn.ResetTraining()
	}
}
