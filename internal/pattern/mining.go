package pattern

import (
	"fmt"
	"sort"
	"strings"

	"github.com/freeeve/othello/internal/bitboard"
)

// Gamma bounds and the neutral starting value.
const (
	GammaMin     = 0.01
	GammaMax     = 100.0
	GammaDefault = 1.0
)

// Key addresses one entry of a mining's tables.
type Key struct {
	Code uint32
	Cell uint8
	Side bitboard.Side
}

// Stat is one table entry. Win, Candidate and Denominator are training state;
// only Gamma is persisted and used by search.
type Stat struct {
	Gamma       float64
	Win         uint16
	Candidate   uint16
	Denominator float64
}

// Mining holds the strength tables for one concrete shape variant.
type Mining struct {
	Shape    Shape
	Symmetry bitboard.Symmetry

	cell  uint8
	stats map[Key]*Stat
}

// NewMining creates a mining with every Gamma at GammaDefault.
func NewMining(shape Shape, sym bitboard.Symmetry) *Mining {
	idx := shape.IndexOfCell(shape.Target)
	if idx < 0 {
		// Target outside the cell list gets its own slot past the last cell.
		idx = len(shape.Cells)
	}
	return &Mining{
		Shape:    shape,
		Symmetry: sym,
		cell:     uint8(idx),
		stats:    make(map[Key]*Stat),
	}
}

// ID identifies the mining by symmetry, target and cells. Persistence keys on it.
func (m *Mining) ID() string {
	return fmt.Sprintf("%s/%s", m.Symmetry, m.Shape)
}

// Target returns the target cell.
func (m *Mining) Target() uint64 {
	return m.Shape.Target
}

// KeyFor returns the table key for the target on board b with side to move.
func (m *Mining) KeyFor(b bitboard.Board, side bitboard.Side) Key {
	return Key{Code: m.Shape.Code(b), Cell: m.cell, Side: side}
}

// Gamma returns the learned strength for k, GammaDefault when unseen.
func (m *Mining) Gamma(k Key) float64 {
	if st, ok := m.stats[k]; ok {
		return st.Gamma
	}
	return GammaDefault
}

// SetGamma stores g clamped to [GammaMin, GammaMax].
func (m *Mining) SetGamma(k Key, g float64) {
	m.Entry(k).Gamma = Clamp(g)
}

// Entry returns the entry for k, creating it with default Gamma.
func (m *Mining) Entry(k Key) *Stat {
	st, ok := m.stats[k]
	if !ok {
		st = &Stat{Gamma: GammaDefault}
		m.stats[k] = st
	}
	return st
}

// Lookup returns a copy of the entry for k without creating it.
func (m *Mining) Lookup(k Key) (Stat, bool) {
	st, ok := m.stats[k]
	if !ok {
		return Stat{Gamma: GammaDefault}, false
	}
	return *st, true
}

// Len returns the number of populated entries.
func (m *Mining) Len() int {
	return len(m.stats)
}

// Range calls fn for every populated entry in key order.
func (m *Mining) Range(fn func(Key, *Stat)) {
	keys := make([]Key, 0, len(m.stats))
	for k := range m.stats {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		if a.Cell != b.Cell {
			return a.Cell < b.Cell
		}
		return a.Side < b.Side
	})
	for _, k := range keys {
		fn(k, m.stats[k])
	}
}

// ResetTraining clears Win, Candidate and Denominator, keeping Gamma.
func (m *Mining) ResetTraining() {
	for _, st := range m.stats {
		st.Win = 0
		st.Candidate = 0
		st.Denominator = 0
	}
}

// Clamp limits g to [GammaMin, GammaMax].
func Clamp(g float64) float64 {
	if g < GammaMin || g != g {
		return GammaMin
	}
	if g > GammaMax {
		return GammaMax
	}
	return g
}

// ParseMiningID rebuilds an empty mining from its ID.
func ParseMiningID(id string) (*Mining, error) {
	sym, shape, ok := strings.Cut(id, "/")
	if !ok {
		return nil, fmt.Errorf("%w: mining id %q", ErrBadShape, id)
	}
	s, err := bitboard.ParseSymmetry(sym)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadShape, err)
	}
	sh, err := ParseShape(shape)
	if err != nil {
		return nil, err
	}
	return NewMining(sh, s), nil
}
