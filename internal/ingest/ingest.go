// Package ingest watches a folder for new game-record files and hands each
// batch to a callback, typically a retraining step.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/freeeve/othello/internal/record"
)

// Batch is the set of games read in one poll.
type Batch struct {
	Files  []string
	Games  []*record.Game
	Misses int
}

// HandlerFunc consumes a batch. Files are moved to the processed folder only
// when it returns nil.
type HandlerFunc func(ctx context.Context, b *Batch) error

// Config configures the ingest worker.
type Config struct {
	WatchDir     string         // Directory to watch for record files
	ProcessedDir string         // Directory to move processed files to, default WatchDir/processed
	PollInterval time.Duration  // How often to check for new files, default 10s
	Workers      int            // files read in parallel, default GOMAXPROCS
	Logger       zerolog.Logger // Logger
}

// Worker watches a folder and ingests record files.
type Worker struct {
	cfg    Config
	loader *record.Loader
	handle HandlerFunc
	log    zerolog.Logger
}

// NewWorker creates a new ingest worker. It returns nil when WatchDir is empty.
func NewWorker(cfg Config, handle HandlerFunc) (*Worker, error) {
	if cfg.WatchDir == "" {
		return nil, nil // Disabled
	}
	if handle == nil {
		return nil, errors.New("ingest: nil handler")
	}
	if cfg.ProcessedDir == "" {
		cfg.ProcessedDir = filepath.Join(cfg.WatchDir, "processed")
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 10 * time.Second
	}

	// Ensure directories exist
	if err := os.MkdirAll(cfg.WatchDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: %v", record.ErrCorpusIO, err)
	}
	if err := os.MkdirAll(cfg.ProcessedDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: %v", record.ErrCorpusIO, err)
	}

	log := cfg.Logger.With().Str("component", "ingest").Logger()
	return &Worker{
		cfg:    cfg,
		loader: record.NewLoader(record.LoaderConfig{Workers: cfg.Workers, Logger: cfg.Logger}),
		handle: handle,
		log:    log,
	}, nil
}

// Run polls the watch folder until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info().
		Str("watch_dir", w.cfg.WatchDir).
		Str("processed_dir", w.cfg.ProcessedDir).
		Dur("poll", w.cfg.PollInterval).
		Msg("ingest worker started")

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.Poll(ctx); err != nil {
				w.log.Warn().Err(err).Msg("process files failed")
			}
		}
	}
}

// Poll processes the record files currently in the watch folder as one batch
// and returns how many files were moved to the processed folder.
func (w *Worker) Poll(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	files, err := record.Files(w.cfg.WatchDir)
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		return 0, nil
	}
	w.log.Info().Int("files", len(files)).Msg("found record files to process")

	res, err := w.loader.LoadFiles(ctx, files)
	if err != nil {
		return 0, err
	}
	batch := &Batch{Files: files, Games: res.Games, Misses: res.Misses}
	if err := w.handle(ctx, batch); err != nil {
		return 0, fmt.Errorf("handle batch: %w", err)
	}

	// Move to processed folder
	processed := 0
	for _, src := range files {
		dest := filepath.Join(w.cfg.ProcessedDir, filepath.Base(src))
		if err := os.Rename(src, dest); err != nil {
			w.log.Warn().Err(err).Str("file", src).Msg("move to processed failed")
			continue
		}
		processed++
	}
	w.log.Info().
		Int("processed", processed).
		Int("games", len(batch.Games)).
		Int("misses", batch.Misses).
		Msg("batch complete")
	return processed, nil
}
