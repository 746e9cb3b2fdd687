// Package httpapi serves the engine over HTTP and WebSocket.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/freeeve/othello/internal/bitboard"
	"github.com/freeeve/othello/internal/game"
	"github.com/freeeve/othello/internal/mcts"
	"github.com/freeeve/othello/internal/pattern"
	"github.com/freeeve/othello/internal/store"
	"github.com/freeeve/othello/internal/xrand"
)

// Config configures the router.
type Config struct {
	Model       *pattern.Model     // optional; required for biased searches
	ModelHeader *store.ModelHeader // optional, reported by /api/model
	Logger      zerolog.Logger

	DefaultTimeout time.Duration // default 1s
	MaxTimeout     time.Duration // default 10s

	// NewRand supplies a random source per search. Defaults to entropy.
	NewRand func() xrand.Source
}

// Handler holds the shared engine state. Searchers are created per request.
type Handler struct {
	cfg Config
	log zerolog.Logger
}

// NewRouter creates the HTTP router.
func NewRouter(cfg Config) http.Handler {
	if cfg.DefaultTimeout == 0 {
		cfg.DefaultTimeout = time.Second
	}
	if cfg.MaxTimeout == 0 {
		cfg.MaxTimeout = 10 * time.Second
	}
	if cfg.NewRand == nil {
		cfg.NewRand = xrand.NewEntropy
	}
	h := &Handler{cfg: cfg, log: cfg.Logger}

	if cfg.Model != nil {
		h.log.Info().Int("minings", len(cfg.Model.Minings)).Msg("biased search enabled")
	} else {
		h.log.Info().Msg("no model loaded - biased search disabled")
	}

	r := chi.NewRouter()
	r.Use(CORS)
	r.Use(RequestID)
	r.Use(AccessLog(h.log))
	r.Use(middleware.Recoverer)

	r.Get("/api/health", h.health)
	r.Post("/api/legal", h.legal)
	r.Post("/api/search", h.search)
	r.Get("/api/model", h.model)
	r.Get("/ws/play", h.play)
	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"status": "ok"})
}

func (h *Handler) model(w http.ResponseWriter, r *http.Request) {
	resp := ModelResponse{}
	if m := h.cfg.Model; m != nil {
		resp.Loaded = true
		resp.Minings = len(m.Minings)
		resp.Entries = m.Entries()
	}
	if hdr := h.cfg.ModelHeader; hdr != nil {
		resp.Name = hdr.Name
		resp.Version = hdr.Version
	}
	writeJSON(w, resp)
}

func (h *Handler) legal(w http.ResponseWriter, r *http.Request) {
	var req PositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	st, err := req.ParseState()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, ToStateResponse(st))
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	st, err := req.ParseState()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	searcher, budget, err := h.newSearcher(req.Policy, req.Select, req.TimeoutMs)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	move, err := searcher.Search(r.Context(), st, budget)
	switch {
	case errors.Is(err, mcts.ErrGameOver):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	h.log.Debug().
		Str("rid", GetRequestID(r.Context())).
		Str("move", move.String()).
		Int("playouts", searcher.LastStats().Playouts).
		Msg("search served")
	writeJSON(w, ToSearchResponse(move, searcher.LastStats()))
}

// newSearcher validates the policy, selection and budget of a request.
func (h *Handler) newSearcher(policy, sel string, timeoutMs int) (*mcts.Searcher, time.Duration, error) {
	kind, err := mcts.ParseKind(policy)
	if err != nil {
		return nil, 0, err
	}
	if kind == mcts.PatternBiased && h.cfg.Model == nil {
		return nil, 0, errors.New("biased search needs a loaded model")
	}
	selection, err := mcts.ParseSelection(sel)
	if err != nil {
		return nil, 0, err
	}
	budget := h.cfg.DefaultTimeout
	if timeoutMs > 0 {
		budget = time.Duration(timeoutMs) * time.Millisecond
	}
	if budget > h.cfg.MaxTimeout {
		budget = h.cfg.MaxTimeout
	}
	s, err := mcts.New(mcts.Config{
		Policy: kind,
		Select: selection,
		Model:  h.cfg.Model,
		Rand:   h.cfg.NewRand(),
		Logger: h.log,
	})
	if err != nil {
		return nil, 0, err
	}
	return s, budget, nil
}

// engineMove searches st and returns the successor state.
func engineMove(ctx context.Context, s *mcts.Searcher, st *game.State, budget time.Duration) (bitboard.Move, *game.State, error) {
	move, err := s.Search(ctx, st, budget)
	if err != nil {
		return bitboard.Pass, nil, err
	}
	next, err := st.Transition(move)
	if err != nil {
		return bitboard.Pass, nil, err
	}
	return move, next, nil
}
