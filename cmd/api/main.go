package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/freeeve/othello/internal/httpapi"
	"github.com/freeeve/othello/internal/logx"
	"github.com/freeeve/othello/internal/pattern"
	"github.com/freeeve/othello/internal/store"
)

func main() {
	defaultAddr := ":8007"
	if env := os.Getenv("OTHELLO_ADDR"); env != "" {
		defaultAddr = env
	}
	defaultModel := os.Getenv("OTHELLO_MODEL")

	var (
		// Server
		addr = flag.String("addr", defaultAddr, "listen address")

		// Engine
		modelPath      = flag.String("model", defaultModel, "pattern model file (empty = plain search only)")
		defaultTimeout = flag.Duration("default-timeout", time.Second, "search budget when a request names none")
		maxTimeout     = flag.Duration("max-timeout", 10*time.Second, "largest search budget a request may ask for")
	)
	flag.Parse()

	logger := logx.NewLoggerLevel(os.Getenv("OTHELLO_LOG_LEVEL"))

	var (
		model *pattern.Model
		hdr   *store.ModelHeader
	)
	if *modelPath != "" {
		var err error
		model, hdr, err = store.ReadModel(*modelPath)
		if err != nil {
			logger.Fatal().Err(err).Str("model", *modelPath).Msg("load model")
		}
		logger.Info().
			Str("model", *modelPath).
			Str("name", hdr.Name).
			Uint32("version", hdr.Version).
			Uint32("entries", hdr.EntryCount).
			Msg("model loaded")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr: *addr,
		Handler: httpapi.NewRouter(httpapi.Config{
			Model:          model,
			ModelHeader:    hdr,
			Logger:         logger,
			DefaultTimeout: *defaultTimeout,
			MaxTimeout:     *maxTimeout,
		}),
		ReadTimeout: 30 * time.Second,
		// Searches run up to maxTimeout before the response is written.
		WriteTimeout: *maxTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", srv.Addr).Msg("api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("api server")
	}
	logger.Info().Msg("shutdown complete")
}
