// Package btmm trains pattern strengths with minorization-maximization for a
// Bradley-Terry choice model.
//
// Each played move is a competition between the legal moves of its position;
// a move's strength is the product of the Gamma values of the patterns
// targeting it. Win and Candidate counts are tallied once from the training
// set. Each epoch then accumulates denominators under the current Gammas and
// applies a damped update. Held-out games are only evaluated.
package btmm

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/freeeve/othello/internal/bitboard"
	"github.com/freeeve/othello/internal/pattern"
	"github.com/freeeve/othello/internal/record"
	"github.com/freeeve/othello/internal/xrand"
)

// Sample is one decision: a position, its legal moves and the move played.
type Sample struct {
	Board  bitboard.Board
	Side   bitboard.Side
	Legal  uint64
	Played bitboard.Move
}

// Samples replays games and returns every ply with more than one legal move.
func Samples(games []*record.Game) []Sample {
	var out []Sample
	for _, g := range games {
		board, side := g.Start, g.StartSide
		for i, m := range g.Moves {
			if bitboard.PopCount(g.Legal[i]) > 1 {
				out = append(out, Sample{Board: board, Side: side, Legal: g.Legal[i], Played: m})
			}
			board = board.Apply(side, m)
			side = side.Opponent()
		}
	}
	return out
}

// Split moves percent of games, chosen by rng, into the test set. Both sets
// keep the input order.
func Split(games []*record.Game, percent float64, rng xrand.Source) (train, test []*record.Game) {
	n := int(float64(len(games)) * percent / 100)
	if n <= 0 {
		return games, nil
	}
	if n >= len(games) {
		n = len(games) - 1
	}
	held := rng.Perm(len(games))[:n]
	sort.Ints(held)
	train = make([]*record.Game, 0, len(games)-n)
	test = make([]*record.Game, 0, n)
	j := 0
	for i, g := range games {
		if j < len(held) && held[j] == i {
			test = append(test, g)
			j++
			continue
		}
		train = append(train, g)
	}
	return train, test
}

// Disabled turns off TestPercent or MinSupport, whose zero values mean the
// default.
const Disabled = -1

// Config configures a Trainer. Zero values take defaults.
type Config struct {
	Epochs      int     // default 10
	TestPercent float64 // share of games held out, default 5; Disabled holds none out
	MinSupport  int     // entries need more candidates than this, default 10; Disabled for none
	OldWeight   float64 // exponent on the previous Gamma, default 0.75
	NewWeight   float64 // exponent on Win/Denominator, default 0.25
	Rand        xrand.Source
	Logger      zerolog.Logger
	OnEpoch     func(EpochReport)
}

// Eval summarises how well the model predicts played moves.
type Eval struct {
	LogLikelihood float64 // sum of ln P(played)
	MeanProb      float64 // mean P(played)
	Accuracy      float64 // share of samples whose played move is strongest
	Samples       int
}

// EpochReport is produced after each epoch. Epoch 0 is the model before any
// update.
type EpochReport struct {
	Epoch   int
	Updated int // entries whose Gamma was recomputed
	Train   Eval
	Test    Eval
	Elapsed time.Duration
}

// Trainer runs BTMM over a pattern model.
type Trainer struct {
	cfg   Config
	model *pattern.Model
	log   zerolog.Logger
}

// New creates a Trainer for model.
func New(model *pattern.Model, cfg Config) *Trainer {
	if cfg.Epochs == 0 {
		cfg.Epochs = 10
	}
	switch {
	case cfg.TestPercent == 0:
		cfg.TestPercent = 5
	case cfg.TestPercent < 0:
		cfg.TestPercent = 0
	}
	switch {
	case cfg.MinSupport == 0:
		cfg.MinSupport = 10
	case cfg.MinSupport < 0:
		cfg.MinSupport = 0
	case cfg.MinSupport > math.MaxUint16:
		cfg.MinSupport = math.MaxUint16
	}
	if cfg.OldWeight == 0 && cfg.NewWeight == 0 {
		cfg.OldWeight, cfg.NewWeight = 0.75, 0.25
	}
	if cfg.Rand == nil {
		cfg.Rand = xrand.NewEntropy()
	}
	return &Trainer{
		cfg:   cfg,
		model: model,
		log:   cfg.Logger.With().Str("component", "btmm").Logger(),
	}
}

// Model returns the model being trained.
func (t *Trainer) Model() *pattern.Model {
	return t.model
}

// Tally counts, for every legal move of every sample, a Candidate on each
// pattern entry targeting it, and a Win when the move was played. Counts are
// uint16: once an entry reaches math.MaxUint16 candidates its later
// occurrences are ignored, so Win and Candidate describe the same leading
// subsample of the corpus. Denominators applies the same cut.
func (t *Trainer) Tally(train []Sample) {
	ix := t.model.Index()
	saturated := 0
	for _, s := range train {
		for legal := s.Legal; legal != 0; legal &= legal - 1 {
			m := bitboard.Move(bitboard.LowestBit(legal))
			for _, mn := range ix.For(m) {
				st := mn.Entry(mn.KeyFor(s.Board, s.Side))
				if st.Candidate == math.MaxUint16 {
					continue
				}
				st.Candidate++
				if m == s.Played {
					st.Win++
				}
				if st.Candidate == math.MaxUint16 {
					saturated++
				}
			}
		}
	}
	if saturated > 0 {
		t.log.Warn().
			Int("entries", saturated).
			Msg("pattern counts saturated, later occurrences ignored")
	}
}

// Denominators adds strength(m)/gamma/E to every supported entry, where E is
// the total strength of the sample's legal moves. A saturated entry only
// takes the occurrences Tally counted.
func (t *Trainer) Denominators(train []Sample) {
	ix := t.model.Index()
	var moves [64]bitboard.Move
	var strength [64]float64
	seen := make(map[*pattern.Stat]int)
	for _, s := range train {
		n := 0
		total := 0.0
		for legal := s.Legal; legal != 0 && n < len(moves); legal &= legal - 1 {
			moves[n] = bitboard.Move(bitboard.LowestBit(legal))
			strength[n] = ix.Strength(s.Board, s.Side, moves[n])
			total += strength[n]
			n++
		}
		if total <= 0 {
			continue
		}
		for i := 0; i < n; i++ {
			for _, mn := range ix.For(moves[i]) {
				st := mn.Entry(mn.KeyFor(s.Board, s.Side))
				if int(st.Candidate) <= t.cfg.MinSupport {
					continue
				}
				if st.Candidate == math.MaxUint16 {
					seen[st]++
					if seen[st] > math.MaxUint16 {
						continue
					}
				}
				st.Denominator += strength[i] / st.Gamma / total
			}
		}
	}
}

// Update applies gamma = gamma^OldWeight * (Win/Denominator)^NewWeight to
// every entry with a denominator, clamps it, and clears the denominator.
// It returns the number of entries updated.
func (t *Trainer) Update() int {
	updated := 0
	for _, mn := range t.model.Minings {
		mn.Range(func(_ pattern.Key, st *pattern.Stat) {
			if st.Denominator <= 0 {
				return
			}
			ratio := float64(st.Win) / st.Denominator
			st.Gamma = pattern.Clamp(math.Pow(st.Gamma, t.cfg.OldWeight) * math.Pow(ratio, t.cfg.NewWeight))
			st.Denominator = 0
			updated++
		})
	}
	return updated
}

// Evaluate scores samples under the current Gammas.
func (t *Trainer) Evaluate(samples []Sample) Eval {
	ix := t.model.Index()
	var ev Eval
	probSum := 0.0
	hits := 0
	for _, s := range samples {
		total, played, best := 0.0, 0.0, 0.0
		for legal := s.Legal; legal != 0; legal &= legal - 1 {
			m := bitboard.Move(bitboard.LowestBit(legal))
			st := ix.Strength(s.Board, s.Side, m)
			total += st
			if st > best {
				best = st
			}
			if m == s.Played {
				played = st
			}
		}
		if total <= 0 || played <= 0 {
			continue
		}
		p := played / total
		ev.LogLikelihood += math.Log(p)
		probSum += p
		if played >= best {
			hits++
		}
		ev.Samples++
	}
	if ev.Samples > 0 {
		ev.MeanProb = probSum / float64(ev.Samples)
		ev.Accuracy = float64(hits) / float64(ev.Samples)
	}
	return ev
}

// Run splits games into train and test sets and calls Fit.
func (t *Trainer) Run(ctx context.Context, games []*record.Game) ([]EpochReport, error) {
	trainGames, testGames := Split(games, t.cfg.TestPercent, t.cfg.Rand)
	train, test := Samples(trainGames), Samples(testGames)
	t.log.Info().
		Int("train_games", len(trainGames)).
		Int("test_games", len(testGames)).
		Int("train_samples", len(train)).
		Int("test_samples", len(test)).
		Int("minings", len(t.model.Minings)).
		Msg("training started")
	return t.Fit(ctx, train, test)
}

// Fit tallies train once and runs cfg.Epochs epochs. Cancellation is
// honoured between epochs; the reports so far are returned with the error.
func (t *Trainer) Fit(ctx context.Context, train, test []Sample) ([]EpochReport, error) {
	if len(train) == 0 {
		return nil, fmt.Errorf("no training samples")
	}
	start := time.Now()
	t.model.ResetTraining()
	t.Tally(train)

	reports := make([]EpochReport, 0, t.cfg.Epochs+1)
	reports = append(reports, t.report(0, 0, train, test, start))

	for epoch := 1; epoch <= t.cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return reports, fmt.Errorf("training stopped before epoch %d: %w", epoch, err)
		}
		epochStart := time.Now()
		t.Denominators(train)
		updated := t.Update()
		reports = append(reports, t.report(epoch, updated, train, test, epochStart))
	}

	t.log.Info().
		Int("epochs", t.cfg.Epochs).
		Int("entries", t.model.Entries()).
		Dur("elapsed", time.Since(start)).
		Msg("training complete")
	return reports, nil
}

func (t *Trainer) report(epoch, updated int, train, test []Sample, start time.Time) EpochReport {
	r := EpochReport{
		Epoch:   epoch,
		Updated: updated,
		Train:   t.Evaluate(train),
		Test:    t.Evaluate(test),
		Elapsed: time.Since(start),
	}
	t.log.Info().
		Int("epoch", epoch).
		Int("updated", updated).
		Float64("train_ll", r.Train.LogLikelihood).
		Float64("test_ll", r.Test.LogLikelihood).
		Float64("test_mean_prob", r.Test.MeanProb).
		Float64("test_accuracy", r.Test.Accuracy).
		Dur("elapsed", r.Elapsed).
		Msg("epoch complete")
	if t.cfg.OnEpoch != nil {
		t.cfg.OnEpoch(r)
	}
	return r
}
