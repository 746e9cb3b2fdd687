package pattern

import (
	"errors"
	"strings"
	"testing"

	"github.com/freeeve/othello/internal/bitboard"
)

func mustShape(t *testing.T, cells []string, target string) Shape {
	t.Helper()
	s, err := ShapeFromNotation(cells, target)
	if err != nil {
		t.Fatalf("ShapeFromNotation: %v", err)
	}
	return s
}

func TestNewShape_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		cells  []uint64
		target uint64
	}{
		{"empty", nil, 1},
		{"multi-bit target", []uint64{1}, 3},
		{"multi-bit cell", []uint64{6}, 1},
		{"duplicate", []uint64{1, 1}, 1},
		{"too many", make([]uint64, MaxCells+1), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewShape(tt.cells, tt.target); !errors.Is(err, ErrBadShape) {
				t.Errorf("NewShape error = %v, want ErrBadShape", err)
			}
		})
	}
}

func TestCode(t *testing.T) {
	// Opening: d4 white, e4 black, d3 empty.
	s := mustShape(t, []string{"d4", "e4", "d3"}, "d3")
	b := bitboard.Start()
	// white=2, black=1, empty=0 -> 2*9 + 1*3 + 0
	if got := s.Code(b); got != 21 {
		t.Errorf("Code() = %d, want 21", got)
	}
	if got := s.NumCodes(); got != 27 {
		t.Errorf("NumCodes() = %d, want 27", got)
	}
	// Colours are absolute: swapping colours changes the code.
	swapped := bitboard.Board{Black: b.White, White: b.Black}
	if got := s.Code(swapped); got != 1*9+2*3 {
		t.Errorf("Code(swapped) = %d, want 15", got)
	}
}

func TestCode_Range(t *testing.T) {
	s := DefaultShapes()[4]
	max := uint32(s.NumCodes())
	full := bitboard.Board{Black: 0xffffffffffffffff}
	if got := s.Code(full); got >= max {
		t.Errorf("Code(all black) = %d, want < %d", got, max)
	}
	white := bitboard.Board{White: 0xffffffffffffffff}
	if got := s.Code(white); got != max-1 {
		t.Errorf("Code(all white) = %d, want %d", got, max-1)
	}
}

func TestIndexOfCell(t *testing.T) {
	s := mustShape(t, []string{"a1", "b1", "c1"}, "b1")
	if got := s.IndexOfCell(s.Target); got != 1 {
		t.Errorf("IndexOfCell(target) = %d, want 1", got)
	}
	if got := s.IndexOfCell(bitboard.SquareMask(63)); got != -1 {
		t.Errorf("IndexOfCell(h8) = %d, want -1", got)
	}
}

func TestSym8(t *testing.T) {
	s := mustShape(t, []string{"a1", "b1", "c1", "b2"}, "c1")
	vs := s.Sym8()
	if len(vs) != 8 {
		t.Fatalf("Sym8() returned %d shapes, want 8", len(vs))
	}
	if vs[0].Symmetry != bitboard.Identity || vs[0].Shape.String() != s.String() {
		t.Errorf("first variant = %s %s, want identity", vs[0].Symmetry, vs[0].Shape)
	}
	targets := make(map[uint64]bool)
	for _, v := range vs {
		if v.Shape.IndexOfCell(v.Shape.Target) != 2 {
			t.Errorf("%s: target moved within cell order", v.Symmetry)
		}
		targets[v.Shape.Target] = true
	}
	// c1 is off-diagonal, so all eight images are distinct.
	if len(targets) != 8 {
		t.Errorf("distinct targets = %d, want 8", len(targets))
	}
	for _, sym := range []bitboard.Symmetry{bitboard.FlipV, bitboard.MirrorH} {
		back := s.Transform(sym).Transform(sym)
		if back.CellSet() != s.CellSet() || back.Target != s.Target {
			t.Errorf("%s twice did not restore the shape", sym)
		}
	}
}

func TestSym8_CodesFollowBoard(t *testing.T) {
	s := DefaultShapes()[8] // d3 neighbourhood
	b := bitboard.Start()
	for _, v := range s.Sym8() {
		if got, want := v.Shape.Code(b.Transform(v.Symmetry)), s.Code(b); got != want {
			t.Errorf("%s: code on transformed board = %d, want %d", v.Symmetry, got, want)
		}
	}
}

func TestMining_Gamma(t *testing.T) {
	s := mustShape(t, []string{"d3", "d4"}, "d3")
	m := NewMining(s, bitboard.Identity)
	k := m.KeyFor(bitboard.Start(), bitboard.Black)
	if k.Cell != 0 {
		t.Errorf("KeyFor cell = %d, want 0", k.Cell)
	}
	if got := m.Gamma(k); got != GammaDefault {
		t.Errorf("unseen Gamma = %v, want %v", got, GammaDefault)
	}
	m.SetGamma(k, 1e6)
	if got := m.Gamma(k); got != GammaMax {
		t.Errorf("Gamma after clamp = %v, want %v", got, GammaMax)
	}
	m.SetGamma(k, 0)
	if got := m.Gamma(k); got != GammaMin {
		t.Errorf("Gamma after clamp = %v, want %v", got, GammaMin)
	}
	m.Entry(k).Win = 3
	m.Entry(k).Candidate = 5
	m.ResetTraining()
	if st, _ := m.Lookup(k); st.Win != 0 || st.Candidate != 0 || st.Gamma != GammaMin {
		t.Errorf("after ResetTraining = %+v", st)
	}
}

func TestIndex_Strength(t *testing.T) {
	d3 := mustShape(t, []string{"d3", "d4"}, "d3")
	m1 := NewMining(d3, bitboard.Identity)
	m2 := NewMining(mustShape(t, []string{"d3"}, "d3"), bitboard.Identity)
	model := &Model{}
	model.Add(m1, m2)

	b := bitboard.Start()
	mv, _ := bitboard.ParseMove("d3")
	m1.SetGamma(m1.KeyFor(b, bitboard.Black), 2)
	m2.SetGamma(m2.KeyFor(b, bitboard.Black), 3)

	if got := model.Strength(b, bitboard.Black, mv); got != 6 {
		t.Errorf("Strength(d3) = %v, want 6", got)
	}
	// The same pattern with white to move is a different entry.
	if got := model.Strength(b, bitboard.White, mv); got != 1 {
		t.Errorf("Strength(d3, white) = %v, want 1", got)
	}
	c4, _ := bitboard.ParseMove("c4")
	if got := model.Strength(b, bitboard.Black, c4); got != 1 {
		t.Errorf("Strength(c4) = %v, want 1", got)
	}
	if got := model.Strength(b, bitboard.Black, bitboard.Pass); got != 1 {
		t.Errorf("Strength(pass) = %v, want 1", got)
	}

	// Adding a mining invalidates the cached index.
	m3 := NewMining(mustShape(t, []string{"c4"}, "c4"), bitboard.Identity)
	m3.SetGamma(m3.KeyFor(b, bitboard.Black), 5)
	model.Add(m3)
	if got := model.Strength(b, bitboard.Black, c4); got != 5 {
		t.Errorf("Strength(c4) after Add = %v, want 5", got)
	}
}

func TestNewModel_Expand(t *testing.T) {
	shapes := DefaultShapes()
	m := NewModel(shapes, true)
	if got, want := len(m.Minings), 8*len(shapes); got != want {
		t.Fatalf("minings = %d, want %d", got, want)
	}
	ix := m.Index()
	for sq := 0; sq < 64; sq++ {
		if len(ix.For(bitboard.MoveAt(sq))) == 0 {
			t.Errorf("no mining targets %s", bitboard.SquareName(sq))
		}
	}
	id := m.Minings[3].ID()
	if m.Find(id) != m.Minings[3] {
		t.Errorf("Find(%q) did not return the mining", id)
	}
}

func TestParseShapes(t *testing.T) {
	text := `; corner shape
##------
#T------
--------
--------
--------
--------
--------
--------

--------
--------
--------
---#----
---T#---
--------
--------
--------
`
	shapes, err := ParseShapes(strings.NewReader(text))
	if err != nil {
		t.Fatalf("ParseShapes: %v", err)
	}
	if len(shapes) != 2 {
		t.Fatalf("got %d shapes, want 2", len(shapes))
	}
	if got := shapes[0].String(); got != "b2<a1,b1,a2,b2>" {
		t.Errorf("shape 0 = %s", got)
	}
	if got := shapes[1].String(); got != "d5<d4,d5,e5>" {
		t.Errorf("shape 1 = %s", got)
	}

	bad := []string{
		"########\n",
		strings.Repeat("--------\n", 8),
		strings.Repeat("-------?\n", 8),
	}
	for i, b := range bad {
		if _, err := ParseShapes(strings.NewReader(b)); !errors.Is(err, ErrBadShape) {
			t.Errorf("bad grid %d: error = %v, want ErrBadShape", i, err)
		}
	}
}

func TestParseMiningID(t *testing.T) {
	for _, v := range DefaultShapes()[8].Sym8() {
		m := NewMining(v.Shape, v.Symmetry)
		got, err := ParseMiningID(m.ID())
		if err != nil {
			t.Fatalf("ParseMiningID(%q): %v", m.ID(), err)
		}
		if got.ID() != m.ID() || got.Symmetry != m.Symmetry {
			t.Errorf("ParseMiningID(%q) = %q", m.ID(), got.ID())
		}
	}
	for _, bad := range []string{"d3<d3>", "spin/d3<d3>", "identity/d3", "identity/d3<>", "identity/z9<d3>"} {
		if _, err := ParseMiningID(bad); !errors.Is(err, ErrBadShape) {
			t.Errorf("ParseMiningID(%q) error = %v, want ErrBadShape", bad, err)
		}
	}
}
