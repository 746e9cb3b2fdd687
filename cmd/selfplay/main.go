package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/freeeve/othello/internal/bitboard"
	"github.com/freeeve/othello/internal/game"
	"github.com/freeeve/othello/internal/logx"
	"github.com/freeeve/othello/internal/mcts"
	"github.com/freeeve/othello/internal/pattern"
	"github.com/freeeve/othello/internal/record"
	"github.com/freeeve/othello/internal/store"
	"github.com/freeeve/othello/internal/xrand"
)

// player is the search setup for one colour.
type player struct {
	kind mcts.Kind
	sel  mcts.Selection
}

func main() {
	var (
		out         = flag.String("out", "", "record file to write (.txt or .txt.zst)")
		games       = flag.Int("games", 100, "games to play")
		timeout     = flag.Duration("timeout", 200*time.Millisecond, "search budget per move")
		blackPolicy = flag.String("black", "plain", "black policy: plain or biased")
		whitePolicy = flag.String("white", "plain", "white policy: plain or biased")
		selection   = flag.String("select", "robust", "move selection: robust or max")
		modelPath   = flag.String("model", os.Getenv("OTHELLO_MODEL"), "pattern model for biased players")
		randomPlies = flag.Int("random-plies", 4, "uniformly random opening plies before searching")
		workers     = flag.Int("workers", runtime.GOMAXPROCS(0), "games played in parallel")
		seed        = flag.Uint64("seed", 0, "random seed (0 = entropy)")
	)
	flag.Parse()

	if *out == "" {
		fmt.Fprintln(os.Stderr, "Usage: selfplay --out <games.txt[.zst]> [options]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	logger := logx.NewLoggerLevel(os.Getenv("OTHELLO_LOG_LEVEL"))

	sel, err := mcts.ParseSelection(*selection)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse selection")
	}
	var players [2]player
	for i, name := range []string{*blackPolicy, *whitePolicy} {
		kind, err := mcts.ParseKind(name)
		if err != nil {
			logger.Fatal().Err(err).Msg("parse policy")
		}
		players[i] = player{kind: kind, sel: sel}
	}

	var model *pattern.Model
	if *modelPath != "" {
		var hdr *store.ModelHeader
		model, hdr, err = store.ReadModel(*modelPath)
		if err != nil {
			logger.Fatal().Err(err).Str("model", *modelPath).Msg("load model")
		}
		logger.Info().Str("name", hdr.Name).Uint32("version", hdr.Version).Msg("model loaded")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w, err := record.Create(*out)
	if err != nil {
		logger.Fatal().Err(err).Str("out", *out).Msg("create output")
	}

	var (
		mu      sync.Mutex
		results [3]int // indexed by game.Outcome
	)
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(*workers)
	for i := 0; i < *games; i++ {
		var rng xrand.Source
		if *seed != 0 {
			rng = xrand.New(*seed + uint64(i))
		} else {
			rng = xrand.NewEntropy()
		}
		g.Go(func() error {
			rec, err := playGame(gctx, players, model, *timeout, *randomPlies, rng)
			if err != nil {
				return err
			}
			outcome := rec.Final().Winner()

			mu.Lock()
			defer mu.Unlock()
			if err := w.Write(rec); err != nil {
				return err
			}
			results[outcome]++
			logger.Info().
				Int("game", w.Count()).
				Int("black", rec.BlackScore).
				Int("white", rec.WhiteScore).
				Int("plies", rec.Plies()).
				Msg("game finished")
			return nil
		})
	}
	runErr := g.Wait()
	if err := w.Close(); err != nil {
		logger.Error().Err(err).Msg("close output")
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Fatal().Err(runErr).Msg("selfplay")
	}

	logger.Info().
		Int("games", w.Count()).
		Int("black_wins", results[game.BlackWins]).
		Int("white_wins", results[game.WhiteWins]).
		Int("draws", results[game.Draw]).
		Dur("elapsed", time.Since(start)).
		Msg("selfplay complete")
}

// playGame plays one engine-versus-engine game from the standard start.
func playGame(ctx context.Context, players [2]player, model *pattern.Model, budget time.Duration, randomPlies int, rng xrand.Source) (*record.Game, error) {
	var searchers [2]*mcts.Searcher
	for i, p := range players {
		s, err := mcts.New(mcts.Config{Policy: p.kind, Select: p.sel, Model: model, Rand: rng})
		if err != nil {
			return nil, err
		}
		searchers[i] = s
	}

	st := game.Start()
	var moves []bitboard.Move
	for ply := 0; !st.Terminal(); ply++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var move bitboard.Move
		switch {
		case st.MustPass():
			move = bitboard.Pass
		case ply < randomPlies:
			legal := st.Moves()
			move = legal[rng.Intn(len(legal))]
		default:
			var err error
			move, err = searchers[st.Side].Search(ctx, st, budget)
			if err != nil {
				return nil, err
			}
		}
		next, err := st.Transition(move)
		if err != nil {
			return nil, err
		}
		moves = append(moves, move)
		st = next
	}
	return record.Replay(bitboard.Start(), bitboard.Black, moves)
}
