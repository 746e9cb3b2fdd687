package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/freeeve/othello/internal/bitboard"
	"github.com/freeeve/othello/internal/game"
	"github.com/freeeve/othello/internal/mcts"
)

// PositionRequest names a position. An empty board means the standard start.
type PositionRequest struct {
	Board string `json:"board,omitempty"` // 64 cells, a1..h8
	Side  string `json:"side,omitempty"`  // "black" (default) or "white"
}

// SearchRequest asks the engine for a move.
type SearchRequest struct {
	PositionRequest
	TimeoutMs int    `json:"timeout_ms,omitempty"`
	Policy    string `json:"policy,omitempty"` // plain or biased
	Select    string `json:"select,omitempty"` // robust or max
}

// StateResponse is the JSON form of a game state.
type StateResponse struct {
	Board    string   `json:"board"`
	Diagram  string   `json:"diagram,omitempty"`
	Side     string   `json:"side"`
	Legal    []string `json:"legal"`
	Black    int      `json:"black"`
	White    int      `json:"white"`
	MustPass bool     `json:"must_pass,omitempty"`
	Terminal bool     `json:"terminal,omitempty"`
	Winner   string   `json:"winner,omitempty"` // set once terminal
}

// ChildResponse summarises one root move of a search.
type ChildResponse struct {
	Move   string  `json:"move"`
	Visits uint32  `json:"visits"`
	WinPct float64 `json:"win_pct"`
	Prior  float64 `json:"prior,omitempty"`
}

// SearchResponse reports the chosen move and search statistics.
type SearchResponse struct {
	Move      string          `json:"move"`
	Policy    string          `json:"policy"`
	Playouts  int             `json:"playouts"`
	WinPct    float64         `json:"win_pct"`
	Nodes     int             `json:"nodes"`
	ElapsedMs int64           `json:"elapsed_ms"`
	Children  []ChildResponse `json:"children,omitempty"`
}

// ModelResponse describes the loaded pattern model.
type ModelResponse struct {
	Loaded  bool   `json:"loaded"`
	Name    string `json:"name,omitempty"`
	Version uint32 `json:"version,omitempty"`
	Minings int    `json:"minings"`
	Entries int    `json:"entries"`
}

// ToStateResponse converts a state for the wire.
func ToStateResponse(st *game.State) *StateResponse {
	black, white := st.Score()
	resp := &StateResponse{
		Board:    st.Board.Compact(),
		Diagram:  st.Board.String(),
		Side:     st.Side.String(),
		Legal:    make([]string, 0, bitboard.PopCount(st.Legal)),
		Black:    black,
		White:    white,
		MustPass: st.MustPass(),
		Terminal: st.Terminal(),
	}
	for _, m := range bitboard.Moves(st.Legal) {
		resp.Legal = append(resp.Legal, m.String())
	}
	if resp.Terminal {
		resp.Winner = st.Winner().String()
	}
	return resp
}

// ToSearchResponse converts a move and its search statistics.
func ToSearchResponse(move bitboard.Move, stats mcts.Stats) *SearchResponse {
	resp := &SearchResponse{
		Move:      move.String(),
		Policy:    stats.Policy.String(),
		Playouts:  stats.Playouts,
		WinPct:    stats.WinPercent,
		Nodes:     stats.Nodes,
		ElapsedMs: stats.Elapsed.Milliseconds(),
		Children:  make([]ChildResponse, 0, len(stats.Children)),
	}
	for _, c := range stats.Children {
		resp.Children = append(resp.Children, ChildResponse{
			Move:   c.Move.String(),
			Visits: c.Visits,
			WinPct: c.WinPercent,
			Prior:  c.Prior,
		})
	}
	return resp
}

// ParseState builds a game state from a request.
func (p PositionRequest) ParseState() (*game.State, error) {
	side := bitboard.Black
	if p.Side != "" {
		s, err := bitboard.ParseSide(p.Side)
		if err != nil {
			return nil, err
		}
		side = s
	}
	if p.Board == "" {
		return game.New(bitboard.Start(), side), nil
	}
	b, err := bitboard.ParseBoard(p.Board)
	if err != nil {
		return nil, err
	}
	return game.New(b, side), nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
