package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/freeeve/othello/internal/logx"
	"github.com/freeeve/othello/internal/pattern"
	"github.com/freeeve/othello/internal/store"
	"github.com/freeeve/othello/internal/xrand"
)

func newTestRouter(model *pattern.Model) http.Handler {
	seed := uint64(0)
	return NewRouter(Config{
		Model:          model,
		Logger:         logx.Nop(),
		DefaultTimeout: 20 * time.Millisecond,
		MaxTimeout:     200 * time.Millisecond,
		NewRand: func() xrand.Source {
			seed++
			return xrand.New(seed)
		},
	})
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := doJSON(t, newTestRouter(nil), http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rid := rec.Header().Get("X-Request-ID"); len(rid) != requestIDLen {
		t.Errorf("X-Request-ID = %q", rid)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("CORS header = %q", got)
	}
}

func TestPreflight(t *testing.T) {
	rec := doJSON(t, newTestRouter(nil), http.MethodOptions, "/api/search", nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
}

func TestLegal_Start(t *testing.T) {
	rec := doJSON(t, newTestRouter(nil), http.MethodPost, "/api/legal", PositionRequest{})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var resp StateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	want := []string{"d3", "c4", "f5", "e6"}
	if len(resp.Legal) != len(want) {
		t.Fatalf("legal = %v, want %v", resp.Legal, want)
	}
	seen := map[string]bool{}
	for _, m := range resp.Legal {
		seen[m] = true
	}
	for _, m := range want {
		if !seen[m] {
			t.Errorf("missing legal move %s in %v", m, resp.Legal)
		}
	}
	if resp.Side != "black" || resp.Black != 2 || resp.White != 2 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestLegal_BadInput(t *testing.T) {
	h := newTestRouter(nil)
	tests := []struct {
		name string
		body any
	}{
		{"short board", PositionRequest{Board: "XO"}},
		{"bad side", PositionRequest{Side: "green"}},
		{"not json", "{"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, h, http.MethodPost, "/api/legal", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestSearch_Plain(t *testing.T) {
	rec := doJSON(t, newTestRouter(nil), http.MethodPost, "/api/search", SearchRequest{TimeoutMs: 30})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var resp SearchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	switch resp.Move {
	case "d3", "c4", "f5", "e6":
	default:
		t.Errorf("move = %q, not legal at the start", resp.Move)
	}
	if resp.Policy != "plain" || resp.Playouts == 0 || len(resp.Children) != 4 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestSearch_Biased(t *testing.T) {
	t.Run("without model", func(t *testing.T) {
		rec := doJSON(t, newTestRouter(nil), http.MethodPost, "/api/search", SearchRequest{Policy: "biased"})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
	t.Run("with model", func(t *testing.T) {
		h := newTestRouter(pattern.NewModel(pattern.DefaultShapes(), true))
		rec := doJSON(t, h, http.MethodPost, "/api/search", SearchRequest{Policy: "biased", TimeoutMs: 30})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body)
		}
		var resp SearchResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp.Policy != "biased" {
			t.Errorf("policy = %q", resp.Policy)
		}
	})
}

func TestSearch_Errors(t *testing.T) {
	h := newTestRouter(nil)
	full := strings.Repeat("X", 64)
	tests := []struct {
		name string
		req  SearchRequest
		want int
	}{
		{"game over", SearchRequest{PositionRequest: PositionRequest{Board: full}}, http.StatusConflict},
		{"bad policy", SearchRequest{Policy: "random"}, http.StatusBadRequest},
		{"bad select", SearchRequest{Select: "best"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, h, http.MethodPost, "/api/search", tt.req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body)
			}
		})
	}
}

func TestModelInfo(t *testing.T) {
	rec := doJSON(t, newTestRouter(nil), http.MethodGet, "/api/model", nil)
	var resp ModelResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Loaded {
		t.Errorf("Loaded = true without a model")
	}

	model := pattern.NewModel(pattern.DefaultShapes(), false)
	h := NewRouter(Config{
		Model:       model,
		ModelHeader: &store.ModelHeader{Name: "test", Version: 3},
		Logger:      logx.Nop(),
	})
	rec = doJSON(t, h, http.MethodGet, "/api/model", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Loaded || resp.Name != "test" || resp.Version != 3 || resp.Minings != len(model.Minings) {
		t.Errorf("resp = %+v", resp)
	}
}

func dialPlay(t *testing.T) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(newTestRouter(nil))
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/play"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMsg(t *testing.T, conn *websocket.Conn) wsMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg wsMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestPlay_HumanBlack(t *testing.T) {
	conn := dialPlay(t)
	if err := conn.WriteJSON(wsMessage{Type: "new", Human: "black", TimeoutMs: 20}); err != nil {
		t.Fatal(err)
	}
	msg := readMsg(t, conn)
	if msg.Type != "state" || msg.By != "" || msg.State == nil || msg.State.Side != "black" {
		t.Fatalf("first message = %+v", msg)
	}

	if err := conn.WriteJSON(wsMessage{Type: "move", Move: "a1"}); err != nil {
		t.Fatal(err)
	}
	if msg = readMsg(t, conn); msg.Type != "error" {
		t.Fatalf("illegal move reply = %+v", msg)
	}

	if err := conn.WriteJSON(wsMessage{Type: "move", Move: "d3"}); err != nil {
		t.Fatal(err)
	}
	msg = readMsg(t, conn)
	if msg.Type != "state" || msg.By != "human" || msg.Move != "d3" {
		t.Fatalf("human reply = %+v", msg)
	}
	msg = readMsg(t, conn)
	if msg.Type != "state" || msg.By != "engine" || msg.Search == nil {
		t.Fatalf("engine reply = %+v", msg)
	}
	if msg.State.Side != "black" {
		t.Errorf("side to move after engine = %s", msg.State.Side)
	}
	if msg.Search.Move != msg.Move {
		t.Errorf("search move %s != played %s", msg.Search.Move, msg.Move)
	}
}

func TestPlay_HumanWhite(t *testing.T) {
	conn := dialPlay(t)
	if err := conn.WriteJSON(wsMessage{Type: "new", Human: "white", TimeoutMs: 20}); err != nil {
		t.Fatal(err)
	}
	if msg := readMsg(t, conn); msg.Type != "state" || msg.By != "" {
		t.Fatalf("first message = %+v", msg)
	}
	msg := readMsg(t, conn)
	if msg.By != "engine" || msg.State.Side != "white" {
		t.Fatalf("engine opening = %+v", msg)
	}
}

func TestPlay_Errors(t *testing.T) {
	conn := dialPlay(t)
	for _, m := range []wsMessage{
		{Type: "move", Move: "d3"},
		{Type: "dance"},
		{Type: "new", Policy: "biased"},
	} {
		if err := conn.WriteJSON(m); err != nil {
			t.Fatal(err)
		}
		if msg := readMsg(t, conn); msg.Type != "error" || msg.Error == "" {
			t.Errorf("reply to %+v = %+v", m, msg)
		}
	}
}
