package main

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/rs/zerolog"

	"github.com/freeeve/othello/internal/btmm"
	"github.com/freeeve/othello/internal/ingest"
	"github.com/freeeve/othello/internal/record"
	"github.com/freeeve/othello/internal/store"
)

// trainConfig validates the numeric training flags. A zero test percent or
// minimum support turns the feature off.
func trainConfig(epochs int, testPct float64, minSupport int) (btmm.Config, error) {
	var cfg btmm.Config
	if epochs <= 0 {
		return cfg, fmt.Errorf("epochs must be positive, got %d", epochs)
	}
	if testPct < 0 || testPct >= 100 {
		return cfg, fmt.Errorf("test-percent must be in [0, 100), got %g", testPct)
	}
	if minSupport < 0 || minSupport > math.MaxUint16 {
		return cfg, fmt.Errorf("min-support must be in [0, %d], got %d", math.MaxUint16, minSupport)
	}
	cfg.Epochs = epochs
	cfg.TestPercent = testPct
	if testPct == 0 {
		cfg.TestPercent = btmm.Disabled
	}
	cfg.MinSupport = minSupport
	if minSupport == 0 {
		cfg.MinSupport = btmm.Disabled
	}
	return cfg, nil
}

// retrainer holds the games trained on so far and writes a new model version
// after every successful run.
type retrainer struct {
	trainer *btmm.Trainer
	out     string
	name    string
	version uint32 // version of the last model written, or of the first one
	written bool
	games   []*record.Game
	log     zerolog.Logger
}

// trainInitial trains on the starting corpus.
func (r *retrainer) trainInitial(ctx context.Context, games []*record.Game) error {
	if err := r.train(ctx, games, r.version); err != nil {
		return err
	}
	r.games, r.written = games, true
	return nil
}

// handleBatch retrains on the corpus plus the batch's games. The corpus and
// version only advance once the model is written, so a batch that fails and
// is picked up again is counted once.
func (r *retrainer) handleBatch(ctx context.Context, b *ingest.Batch) error {
	if len(b.Games) == 0 {
		return nil
	}
	version := r.version
	if r.written {
		version++
	}
	next := append(slices.Clip(r.games), b.Games...)
	if err := r.train(ctx, next, version); err != nil {
		return err
	}
	r.games, r.version, r.written = next, version, true
	return nil
}

func (r *retrainer) train(ctx context.Context, games []*record.Game, version uint32) error {
	if _, err := r.trainer.Run(ctx, games); err != nil {
		return fmt.Errorf("train: %w", err)
	}
	if err := store.WriteModel(r.out, r.name, version, r.trainer.Model()); err != nil {
		return fmt.Errorf("write model: %w", err)
	}
	r.log.Info().
		Str("out", r.out).
		Uint32("version", version).
		Int("games", len(games)).
		Int("entries", r.trainer.Model().Entries()).
		Msg("model written")
	return nil
}
