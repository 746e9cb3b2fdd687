package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/freeeve/othello/internal/btmm"
	"github.com/freeeve/othello/internal/ingest"
	"github.com/freeeve/othello/internal/logx"
	"github.com/freeeve/othello/internal/pattern"
	"github.com/freeeve/othello/internal/record"
	"github.com/freeeve/othello/internal/store"
	"github.com/freeeve/othello/internal/xrand"
)

func main() {
	defaultModel := "./data/model.ogm"
	if env := os.Getenv("OTHELLO_MODEL"); env != "" {
		defaultModel = env
	}
	defaultEpochs := 10
	if env := os.Getenv("OTHELLO_EPOCHS"); env != "" {
		if n, err := strconv.Atoi(env); err == nil {
			defaultEpochs = n
		}
	}

	var (
		corpus     = flag.String("corpus", "", "record file or directory (.txt, .ggf, .rec, optionally .zst)")
		out        = flag.String("out", defaultModel, "model file to write")
		initModel  = flag.String("init", "", "existing model to continue training from")
		shapesPath = flag.String("shapes", "", "shape grid file (empty = built-in shapes)")
		noSym      = flag.Bool("no-sym", false, "do not expand shapes to their symmetric variants")
		name       = flag.String("name", "othello", "model name stored in the header")
		version    = flag.Uint("version", 1, "model version stored in the header")
		epochs     = flag.Int("epochs", defaultEpochs, "training epochs")
		testPct    = flag.Float64("test-percent", 5, "percentage of games held out for evaluation (0 = none)")
		minSupport = flag.Int("min-support", 10, "candidate count an entry needs before its gamma moves (0 = none)")
		seed       = flag.Uint64("seed", 0, "random seed for the train/test split (0 = entropy)")
		workers    = flag.Int("workers", 0, "files read in parallel (0 = GOMAXPROCS)")
		watchDir   = flag.String("watch", "", "after training, watch this directory and retrain on new record files")
		poll       = flag.Duration("poll", 10*time.Second, "watch poll interval")
	)
	flag.Parse()

	if *corpus == "" && *watchDir == "" {
		fmt.Fprintln(os.Stderr, "Usage: train --corpus <file|dir> [--out model.ogm] [options]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	logger := logx.NewLoggerLevel(os.Getenv("OTHELLO_LOG_LEVEL"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	model, err := buildModel(*shapesPath, !*noSym, *initModel, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("build model")
	}

	cfg, err := trainConfig(*epochs, *testPct, *minSupport)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	cfg.Rand = xrand.NewEntropy()
	if *seed != 0 {
		cfg.Rand = xrand.New(*seed)
	}
	cfg.Logger = logger
	loader := record.NewLoader(record.LoaderConfig{Workers: *workers, Logger: logger})
	rt := &retrainer{
		trainer: btmm.New(model, cfg),
		out:     *out,
		name:    *name,
		version: uint32(*version),
		log:     logger,
	}

	if *corpus != "" {
		res, err := loadCorpus(ctx, loader, *corpus)
		if err != nil {
			logger.Fatal().Err(err).Str("corpus", *corpus).Msg("load corpus")
		}
		if err := rt.trainInitial(ctx, res.Games); err != nil {
			logger.Fatal().Err(err).Msg("train")
		}
	}

	worker, err := ingest.NewWorker(ingest.Config{
		WatchDir:     *watchDir,
		PollInterval: *poll,
		Workers:      *workers,
		Logger:       logger,
	}, rt.handleBatch)
	if err != nil {
		logger.Fatal().Err(err).Msg("create ingest worker")
	}
	if worker == nil {
		return
	}
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("ingest worker stopped")
	}
	logger.Info().Msg("shutdown complete")
}

// buildModel creates the mining set, warm-starting gammas from initPath when given.
func buildModel(shapesPath string, sym bool, initPath string, logger zerolog.Logger) (*pattern.Model, error) {
	shapes := pattern.DefaultShapes()
	if shapesPath != "" {
		f, err := os.Open(shapesPath)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		if shapes, err = pattern.ParseShapes(f); err != nil {
			return nil, err
		}
	}
	fresh := pattern.NewModel(shapes, sym)
	if initPath == "" {
		logger.Info().Int("shapes", len(shapes)).Int("minings", len(fresh.Minings)).Msg("model created")
		return fresh, nil
	}

	model, hdr, err := store.ReadModel(initPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", initPath, err)
	}
	// Minings with only default gammas are not stored.
	var missing []*pattern.Mining
	for _, m := range fresh.Minings {
		if model.Find(m.ID()) == nil {
			missing = append(missing, m)
		}
	}
	model.Add(missing...)
	logger.Info().
		Str("init", initPath).
		Str("name", hdr.Name).
		Uint32("version", hdr.Version).
		Int("minings", len(model.Minings)).
		Msg("model loaded")
	return model, nil
}

func loadCorpus(ctx context.Context, loader *record.Loader, path string) (*record.Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", record.ErrCorpusIO, err)
	}
	if info.IsDir() {
		return loader.LoadDir(ctx, path)
	}
	return loader.Load(ctx, path)
}
