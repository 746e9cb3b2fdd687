package record

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"

	"github.com/freeeve/othello/internal/bitboard"
	"github.com/freeeve/othello/internal/logx"
)

// passBoard has black a1, white b1 and a2. After black c1 white must pass.
const passBoard = "XO------" + "O-------" + "--------" + "--------" +
	"--------" + "--------" + "--------" + "--------"

const tigerGGF = "(;GM[Othello]PC[test]PB[a]PW[b]TY[8]RE[+0.000]" +
	"BO[8 -------- -------- -------- ---O*--- ---*O--- -------- -------- -------- *]" +
	"B[f5//0.01]W[d6/1.5/]B[c3];)"

func moveNames(g *Game) string {
	names := make([]string, len(g.Moves))
	for i, m := range g.Moves {
		names[i] = m.String()
	}
	return strings.Join(names, " ")
}

func TestParseLine(t *testing.T) {
	g, err := ParseLine("33|31|f5d6c3")
	if err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	if got := moveNames(g); got != "f5 d6 c3" {
		t.Errorf("moves = %s, want f5 d6 c3", got)
	}
	if len(g.Legal) != 3 || bitboard.PopCount(g.Legal[0]) != 4 {
		t.Errorf("Legal = %v, want 3 entries starting with 4 moves", g.Legal)
	}
	if g.BlackScore != 33 || g.WhiteScore != 31 {
		t.Errorf("scores = %d-%d, want 33-31", g.BlackScore, g.WhiteScore)
	}
	if err := g.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestParseLine_InsertsPass(t *testing.T) {
	g, err := ParseLine("4|0|c1a3|" + passBoard + "X")
	if err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	if got := moveNames(g); got != "c1 PASSED a3" {
		t.Errorf("moves = %s, want c1 PASSED a3", got)
	}
	if g.Legal[1] != 0 {
		t.Errorf("Legal[1] = %#x, want 0 at the pass", g.Legal[1])
	}
	if err := g.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	if b, w := g.Final().Score(); b != 5 || w != 0 {
		t.Errorf("final score = %d-%d, want 5-0", b, w)
	}
}

func TestParseLine_Malformed(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"fields", "33|31"},
		{"score", "x|31|f5"},
		{"odd moves", "2|2|f5d"},
		{"bad square", "2|2|z9"},
		{"illegal", "2|2|a1"},
		{"pass with moves", "2|2|PA"},
		{"bad board", "2|2|f5|XO"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseLine(tt.line); !errors.Is(err, ErrMalformedRecord) {
				t.Errorf("ParseLine(%q) error = %v, want ErrMalformedRecord", tt.line, err)
			}
		})
	}
}

func TestFormatLine_RoundTrip(t *testing.T) {
	for _, line := range []string{
		"33|31|f5d6c3",
		"4|0|c1PAa3|" + passBoard + "X",
	} {
		g, err := ParseLine(line)
		if err != nil {
			t.Fatalf("ParseLine(%q): %v", line, err)
		}
		if got := FormatLine(g); got != line {
			t.Errorf("FormatLine = %q, want %q", got, line)
		}
	}
}

func TestParseGGF(t *testing.T) {
	g, err := ParseGGF(tigerGGF)
	if err != nil {
		t.Fatalf("ParseGGF: %v", err)
	}
	if got := moveNames(g); got != "f5 d6 c3" {
		t.Errorf("moves = %s, want f5 d6 c3", got)
	}
	if g.Start != bitboard.Start() || g.StartSide != bitboard.Black {
		t.Error("BO did not produce the standard start")
	}
	line, _ := ParseLine("0|0|f5d6c3")
	for i := range g.Legal {
		if g.Legal[i] != line.Legal[i] {
			t.Errorf("Legal[%d] differs between GGF and line formats", i)
		}
	}
}

func TestParseGGF_ImpliedPass(t *testing.T) {
	block := "(;GM[Othello]TY[8r]BO[8 " + strings.ReplaceAll(passBoard, "X", "*") + " *]B[c1]B[a3];)"
	g, err := ParseGGF(block)
	if err != nil {
		t.Fatalf("ParseGGF: %v", err)
	}
	if got := moveNames(g); got != "c1 PASSED a3" {
		t.Errorf("moves = %s, want c1 PASSED a3", got)
	}
	if g.BlackScore != 5 || g.WhiteScore != 0 {
		t.Errorf("scores = %d-%d, want 5-0", g.BlackScore, g.WhiteScore)
	}
}

func TestParseGGF_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		block string
	}{
		{"not a block", "GM[Othello]"},
		{"board size", "(;GM[Othello]TY[10]B[f5];)"},
		{"anti", "(;GM[Othello]TY[8a]B[f5];)"},
		{"synchro", "(;GM[Othello]TY[8s]B[f5];)"},
		{"komi variant", "(;GM[Othello]TY[8k]B[f5];)"},
		{"game", "(;GM[Chess]B[e4];)"},
		{"unterminated", "(;GM[Othello;)"},
		{"illegal", "(;GM[Othello]B[a1];)"},
		{"wrong colour", "(;GM[Othello]W[f5];)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseGGF(tt.block); !errors.Is(err, ErrMalformedRecord) {
				t.Errorf("ParseGGF error = %v, want ErrMalformedRecord", err)
			}
		})
	}
}

func TestSplitGGF(t *testing.T) {
	text := "junk " + tigerGGF + "\n\n" + tigerGGF + " trailing (;"
	blocks := SplitGGF(text)
	if len(blocks) != 2 {
		t.Fatalf("SplitGGF returned %d blocks, want 2", len(blocks))
	}
	for i, b := range blocks {
		if b != tigerGGF {
			t.Errorf("block %d = %q", i, b)
		}
	}
}

func writeZstd(t *testing.T, path, text string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw, err := zstd.NewWriter(f)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := zw.Write([]byte(text)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	lines := "# comment\n33|31|f5d6c3\n\n2|2|a1\n40|24|f5f6\n"
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte(lines), 0o644); err != nil {
		t.Fatal(err)
	}
	writeZstd(t, filepath.Join(dir, "b.ggf.zst"), tigerGGF+"\n"+tigerGGF+"\n(;GM[Othello]B[a1];)\n")
	if err := os.WriteFile(filepath.Join(dir, "notes.md"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}

	l := NewLoader(LoaderConfig{Workers: 2, Logger: logx.Nop()})
	res, err := l.LoadDir(context.Background(), dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if res.Files != 2 {
		t.Errorf("Files = %d, want 2", res.Files)
	}
	if len(res.Games) != 4 {
		t.Errorf("Games = %d, want 4", len(res.Games))
	}
	if res.Misses != 2 {
		t.Errorf("Misses = %d, want 2", res.Misses)
	}
	if got := res.Games[0].Source; got != "a.txt:2" {
		t.Errorf("first game source = %q, want a.txt:2", got)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(context.Background(), filepath.Join(t.TempDir(), "missing.txt")); !errors.Is(err, ErrCorpusIO) {
		t.Errorf("Load(missing) error = %v, want ErrCorpusIO", err)
	}
	if _, err := LoadDir(context.Background(), t.TempDir()); !errors.Is(err, ErrCorpusIO) {
		t.Errorf("LoadDir(empty) error = %v, want ErrCorpusIO", err)
	}
}

func TestWriter_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "selfplay.txt.zst")
	w, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	var want []string
	for _, line := range []string{"33|31|f5d6c3", "4|0|c1PAa3|" + passBoard + "X"} {
		g, err := ParseLine(line)
		if err != nil {
			t.Fatalf("ParseLine: %v", err)
		}
		if err := w.Write(g); err != nil {
			t.Fatalf("Write: %v", err)
		}
		want = append(want, line)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if w.Count() != 2 {
		t.Errorf("Count = %d, want 2", w.Count())
	}

	res, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(res.Games) != len(want) {
		t.Fatalf("loaded %d games, want %d", len(res.Games), len(want))
	}
	for i, g := range res.Games {
		if got := FormatLine(g); got != want[i] {
			t.Errorf("game %d = %q, want %q", i, got, want[i])
		}
	}
}
