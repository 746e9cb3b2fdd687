package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/freeeve/othello/internal/bitboard"
	"github.com/freeeve/othello/internal/game"
	"github.com/freeeve/othello/internal/mcts"
)

const wsIdlePingInterval = 30 * time.Second

// wsMessage is used in both directions. Clients send "new" and "move";
// the server sends "state", "error" and "ping".
type wsMessage struct {
	Type string `json:"type"`

	// new
	Human     string `json:"human,omitempty"`
	Policy    string `json:"policy,omitempty"`
	Select    string `json:"select,omitempty"`
	TimeoutMs int    `json:"timeout_ms,omitempty"`

	// move, and the move that produced a state
	Move string `json:"move,omitempty"`
	By   string `json:"by,omitempty"` // human or engine

	State  *StateResponse  `json:"state,omitempty"`
	Search *SearchResponse `json:"search,omitempty"`
	Error  string          `json:"error,omitempty"`
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

func writeWSWithHeartbeat(conn *websocket.Conn, send <-chan []byte) error {
	ticker := time.NewTicker(wsIdlePingInterval)
	defer ticker.Stop()
	lastWrite := time.Now()
	pingPayload := mustMarshal(wsMessage{Type: "ping"})

	for {
		select {
		case msg, ok := <-send:
			if !ok {
				return nil
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return err
			}
			lastWrite = time.Now()
		case <-ticker.C:
			if time.Since(lastWrite) < wsIdlePingInterval {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, pingPayload); err != nil {
				return err
			}
			lastWrite = time.Now()
		}
	}
}

// session is one human-versus-engine game on a connection.
type session struct {
	h        *Handler
	log      zerolog.Logger
	send     chan []byte
	st       *game.State
	human    bitboard.Side
	searcher *mcts.Searcher
	budget   time.Duration
}

func (s *session) sendJSON(msg wsMessage) {
	select {
	case s.send <- mustMarshal(msg):
	default:
		s.log.Warn().Str("type", msg.Type).Msg("websocket send buffer full, dropping message")
	}
}

func (s *session) sendError(msg string) {
	s.sendJSON(wsMessage{Type: "error", Error: msg})
}

func (s *session) sendState(by string, move bitboard.Move, search *SearchResponse) {
	msg := wsMessage{Type: "state", By: by, State: ToStateResponse(s.st), Search: search}
	if by != "" {
		msg.Move = move.String()
	}
	s.sendJSON(msg)
}

func (h *Handler) play(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	sess := &session{
		h:    h,
		log:  h.log.With().Str("rid", GetRequestID(r.Context())).Logger(),
		send: make(chan []byte, 64),
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := writeWSWithHeartbeat(conn, sess.send); err != nil {
			sess.log.Debug().Err(err).Msg("websocket write ended")
		}
	}()
	defer func() {
		close(sess.send)
		<-done
		conn.Close()
	}()

	ctx := r.Context()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			sess.sendError("invalid JSON: " + err.Error())
			continue
		}
		sess.handle(ctx, msg)
	}
}

func (s *session) handle(ctx context.Context, msg wsMessage) {
	switch msg.Type {
	case "new":
		human := bitboard.Black
		if msg.Human != "" {
			side, err := bitboard.ParseSide(msg.Human)
			if err != nil {
				s.sendError(err.Error())
				return
			}
			human = side
		}
		searcher, budget, err := s.h.newSearcher(msg.Policy, msg.Select, msg.TimeoutMs)
		if err != nil {
			s.sendError(err.Error())
			return
		}
		s.st, s.human, s.searcher, s.budget = game.Start(), human, searcher, budget
		s.log.Info().Str("human", human.String()).Dur("budget", budget).Msg("game started")
		s.sendState("", bitboard.Pass, nil)
		s.advance(ctx)

	case "move":
		if s.st == nil {
			s.sendError("no game in progress")
			return
		}
		if s.st.Side != s.human || s.st.Terminal() {
			s.sendError("not your turn")
			return
		}
		move, err := bitboard.ParseMove(msg.Move)
		if err != nil {
			s.sendError(err.Error())
			return
		}
		next, err := s.st.Transition(move)
		if err != nil {
			s.sendError(err.Error())
			return
		}
		s.st = next
		s.sendState("human", move, nil)
		s.advance(ctx)

	case "ping":
	default:
		s.sendError("unknown message type " + msg.Type)
	}
}

// advance plays engine moves, and forced human passes, until the human has a
// real move or the game ends.
func (s *session) advance(ctx context.Context) {
	for !s.st.Terminal() {
		if s.st.Side == s.human {
			if !s.st.MustPass() {
				return
			}
			s.st, _ = s.st.Transition(bitboard.Pass)
			s.sendState("human", bitboard.Pass, nil)
			continue
		}
		move, next, err := engineMove(ctx, s.searcher, s.st, s.budget)
		if err != nil {
			s.sendError(err.Error())
			return
		}
		s.st = next
		s.sendState("engine", move, ToSearchResponse(move, s.searcher.LastStats()))
	}
	black, white := s.st.Score()
	s.log.Info().Int("black", black).Int("white", white).Str("winner", s.st.Winner().String()).Msg("game over")
}
