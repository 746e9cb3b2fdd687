package bitboard

import (
	"sort"
	"testing"

	"github.com/freeeve/othello/internal/xrand"
)

// randomBoards plays uniformly random games and returns every position reached,
// together with the side to move.
func randomBoards(t *testing.T, games int, seed uint64) ([]Board, []Side) {
	t.Helper()
	rng := xrand.New(seed)
	var boards []Board
	var sides []Side
	for g := 0; g < games; g++ {
		b := Start()
		side := Black
		for !b.IsTerminal() {
			boards = append(boards, b)
			sides = append(sides, side)
			legal := b.LegalMoves(side)
			if legal == 0 {
				side = side.Opponent()
				continue
			}
			moves := Moves(legal)
			b = b.Apply(side, moves[rng.Intn(len(moves))])
			if !b.Valid() {
				t.Fatalf("masks overlap after move:\n%s", b)
			}
			side = side.Opponent()
		}
		boards = append(boards, b)
		sides = append(sides, side)
	}
	return boards, sides
}

func TestStart_LegalMoves(t *testing.T) {
	b := Start()
	legal := b.LegalMoves(Black)

	var got []string
	for _, m := range Moves(legal) {
		got = append(got, m.String())
	}
	sort.Strings(got)
	want := []string{"c4", "d3", "e6", "f5"}
	if len(got) != len(want) {
		t.Fatalf("LegalMoves(Black) = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("LegalMoves(Black) = %v, want %v", got, want)
			break
		}
	}

	if n := PopCount(b.LegalMoves(White)); n != 4 {
		t.Errorf("white has %d opening moves, want 4", n)
	}
}

func TestLegalMoves_NeverOccupied(t *testing.T) {
	boards, _ := randomBoards(t, 30, 1)
	for _, b := range boards {
		for _, s := range []Side{Black, White} {
			if b.LegalMoves(s)&b.Occupied() != 0 {
				t.Fatalf("legal moves for %s land on occupied cells:\n%s", s, b)
			}
		}
	}
}

func TestApply_PieceConservation(t *testing.T) {
	boards, sides := randomBoards(t, 30, 2)
	for i, b := range boards {
		side := sides[i]
		for _, m := range Moves(b.LegalMoves(side)) {
			flips := b.WouldFlip(side, m)
			if flips == 0 {
				t.Fatalf("legal move %s flips nothing:\n%s", m, b)
			}
			after := b.Apply(side, m)
			before := PopCount(b.Occupied())
			if got, want := PopCount(after.Occupied()), before+1; got != want {
				t.Fatalf("Apply(%s) total pieces = %d, want %d", m, got, want)
			}
			if got, want := after.Count(side), b.Count(side)+1+PopCount(flips); got != want {
				t.Fatalf("Apply(%s) own pieces = %d, want %d", m, got, want)
			}
			if after.Mask(side.Opponent())&flips != 0 {
				t.Fatalf("Apply(%s) left flipped pieces with the opponent", m)
			}
		}
	}
}

func TestApply_Pass(t *testing.T) {
	b := Start()
	if got := b.Apply(Black, Pass); got != b {
		t.Errorf("Apply(Pass) changed the board:\n%s", got)
	}
	if got := b.WouldFlip(Black, Pass); got != 0 {
		t.Errorf("WouldFlip(Pass) = %#x, want 0", got)
	}
}

func TestWouldFlip_Opening(t *testing.T) {
	b := Start()
	m, _ := ParseMove("d3")
	flips := b.WouldFlip(Black, m)
	want := SquareMask(27) // d4
	if flips != want {
		t.Errorf("WouldFlip(d3) = %#x, want %#x", flips, want)
	}
}

func TestWouldFlip_NoWrap(t *testing.T) {
	// Black h1, white a2..g2 would connect only through a wrap from h1 east to a2.
	b, err := ParseBoard(
		"-------X" +
			"OOOOOOO-" +
			"--------" +
			"--------" +
			"--------" +
			"--------" +
			"--------" +
			"--------")
	if err != nil {
		t.Fatalf("ParseBoard: %v", err)
	}
	h2 := MoveAt(15)
	if flips := b.WouldFlip(Black, h2); flips != 0 {
		t.Errorf("WouldFlip(h2) = %#x, want 0", flips)
	}
	if b.LegalMoves(Black)&uint64(h2) != 0 {
		t.Errorf("h2 should not be legal")
	}
}

func TestIsTerminal(t *testing.T) {
	if Start().IsTerminal() {
		t.Error("opening position reported terminal")
	}
	full := Board{Black: 0xffffffff, White: 0xffffffff00000000}
	if !full.IsTerminal() {
		t.Error("full board not terminal")
	}
	// Only black pieces: nobody can move.
	lone := Board{Black: SquareMask(0) | SquareMask(9)}
	if !lone.IsTerminal() {
		t.Error("board without opponent pieces not terminal")
	}
}

func TestBitUtilities(t *testing.T) {
	x := SquareMask(3) | SquareMask(17) | SquareMask(60)
	if got := PopCount(x); got != 3 {
		t.Errorf("PopCount = %d, want 3", got)
	}
	if got := LowestBit(x); got != SquareMask(3) {
		t.Errorf("LowestBit = %#x, want %#x", got, SquareMask(3))
	}
	if got := HighestBit(x); got != SquareMask(60) {
		t.Errorf("HighestBit = %#x, want %#x", got, SquareMask(60))
	}
	if got := BitScanForward(x); got != 3 {
		t.Errorf("BitScanForward = %d, want 3", got)
	}
	if got := BitScanReverse(x); got != 60 {
		t.Errorf("BitScanReverse = %d, want 60", got)
	}
	if got := HighestBit(0); got != 0 {
		t.Errorf("HighestBit(0) = %#x, want 0", got)
	}
}

func TestParseBoard_RoundTrip(t *testing.T) {
	boards, _ := randomBoards(t, 3, 3)
	for _, b := range boards {
		got, err := ParseBoard(b.Compact())
		if err != nil {
			t.Fatalf("ParseBoard: %v", err)
		}
		if got != b {
			t.Fatalf("round trip mismatch:\n%s\nvs\n%s", got, b)
		}
	}
	if _, err := ParseBoard("XO-"); err == nil {
		t.Error("short board accepted")
	}
	if _, err := ParseBoard(string(make([]byte, 64))); err == nil {
		t.Error("garbage board accepted")
	}
}
