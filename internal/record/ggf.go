package record

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	"github.com/freeeve/othello/internal/bitboard"
)

var (
	ggfOpen  = []byte("(;")
	ggfClose = []byte(";)")
)

// ScanGGF is a bufio.SplitFunc that yields one "(;...;)" block per token.
// Text between blocks is discarded.
func ScanGGF(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := bytes.Index(data, ggfOpen)
	if start < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		// Keep a trailing '(' that may start the next block.
		if n := len(data); n > 0 && data[n-1] == '(' {
			return n - 1, nil, nil
		}
		return len(data), nil, nil
	}
	end := bytes.Index(data[start+len(ggfOpen):], ggfClose)
	if end < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		return start, nil, nil
	}
	stop := start + len(ggfOpen) + end + len(ggfClose)
	return stop, data[start:stop], nil
}

// SplitGGF returns every "(;...;)" block in s.
func SplitGGF(s string) []string {
	var out []string
	sc := bufio.NewScanner(strings.NewReader(s))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	sc.Split(ScanGGF)
	for sc.Scan() {
		out = append(out, sc.Text())
	}
	return out
}

type ggfTag struct {
	key, val string
}

// ggfTags reads KEY[value] pairs from the body of a block. A backslash
// escapes the following character inside a value.
func ggfTags(body string) ([]ggfTag, error) {
	var tags []ggfTag
	i := 0
	for i < len(body) {
		c := body[i]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == ';' {
			i++
			continue
		}
		k := i
		for i < len(body) && body[i] >= 'A' && body[i] <= 'Z' {
			i++
		}
		if i == k || i >= len(body) || body[i] != '[' {
			return nil, fmt.Errorf("%w: unexpected %q at offset %d", ErrMalformedRecord, body[k], k)
		}
		key := body[k:i]
		i++
		var val strings.Builder
		closed := false
		for i < len(body) {
			c := body[i]
			i++
			if c == '\\' && i < len(body) {
				val.WriteByte(body[i])
				i++
				continue
			}
			if c == ']' {
				closed = true
				break
			}
			val.WriteByte(c)
		}
		if !closed {
			return nil, fmt.Errorf("%w: unterminated %s tag", ErrMalformedRecord, key)
		}
		tags = append(tags, ggfTag{key: key, val: val.String()})
	}
	return tags, nil
}

// ParseGGF parses one "(;...;)" block. Only standard 8x8 games (TY[8] or
// TY[8r]) are accepted. BO[8 <64 cells> <side>] sets the start position; B[] and W[]
// carry moves with optional "/eval/time" suffixes and "PA" for a pass.
// Two moves in a row by the same colour imply a pass by the other.
func ParseGGF(block string) (*Game, error) {
	block = strings.TrimSpace(block)
	if !strings.HasPrefix(block, "(;") || !strings.HasSuffix(block, ";)") {
		return nil, fmt.Errorf("%w: not a GGF block", ErrMalformedRecord)
	}
	tags, err := ggfTags(block[2 : len(block)-2])
	if err != nil {
		return nil, err
	}

	start, side := bitboard.Start(), bitboard.Black
	var moves []bitboard.Move
	var colours []bitboard.Side
	for _, t := range tags {
		switch t.key {
		case "GM":
			if !strings.EqualFold(strings.TrimSpace(t.val), "othello") {
				return nil, fmt.Errorf("%w: game %q", ErrMalformedRecord, t.val)
			}
		case "TY":
			if !isEightByEight(t.val) {
				return nil, fmt.Errorf("%w: unsupported board type %q", ErrMalformedRecord, t.val)
			}
		case "BO":
			start, side, err = parseGGFBoard(t.val)
			if err != nil {
				return nil, err
			}
		case "B", "W":
			v := t.val
			if j := strings.IndexByte(v, '/'); j >= 0 {
				v = v[:j]
			}
			m, err := bitboard.ParseMove(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("%w: move %d: %v", ErrMalformedRecord, len(moves)+1, err)
			}
			c := bitboard.Black
			if t.key == "W" {
				c = bitboard.White
			}
			moves = append(moves, m)
			colours = append(colours, c)
		}
	}

	// Expand implied passes from the colour sequence.
	seq := make([]bitboard.Move, 0, len(moves)+4)
	expect := side
	for i, m := range moves {
		if colours[i] != expect {
			seq = append(seq, bitboard.Pass)
			expect = expect.Opponent()
		}
		seq = append(seq, m)
		expect = expect.Opponent()
	}
	return Replay(start, side, seq)
}

// isEightByEight accepts standard 8x8 games and random starts ("8r", which
// carry their own BO). Anti, synchro and other variants are rejected.
func isEightByEight(ty string) bool {
	switch strings.TrimSpace(ty) {
	case "8", "8r":
		return true
	}
	return false
}

// parseGGFBoard reads "8 <64 cells> <side>" with rank 1 first.
func parseGGFBoard(v string) (bitboard.Board, bitboard.Side, error) {
	f := strings.Fields(v)
	if len(f) < 3 || f[0] != "8" {
		return bitboard.Board{}, bitboard.Black, fmt.Errorf("%w: BO[%s]", ErrMalformedRecord, v)
	}
	cells := strings.Join(f[1:len(f)-1], "")
	b, err := bitboard.ParseBoard(cells)
	if err != nil {
		return bitboard.Board{}, bitboard.Black, fmt.Errorf("%w: BO: %v", ErrMalformedRecord, err)
	}
	switch f[len(f)-1] {
	case "*", "X", "x", "B", "b":
		return b, bitboard.Black, nil
	case "O", "o", "W", "w":
		return b, bitboard.White, nil
	}
	return bitboard.Board{}, bitboard.Black, fmt.Errorf("%w: BO side %q", ErrMalformedRecord, f[len(f)-1])
}
