package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"pubsubfn/internal/api/v1/router"
	"pubsubfn/internal/config"
	"pubsubfn/internal/logger"
	"pubsubfn/internal/metrics"
	"pubsubfn/internal/pubsub"
	"pubsubfn/internal/tracing"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	// 1. Load configuration
	envErr := godotenv.Load()
	logger := logger.New()
	if envErr != nil {
		logger.Warn().Msg("Warning: no .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Msgf("Error loading config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Tracing and metrics
	shutdownTracing, err := tracing.Setup(ctx, cfg)
	if err != nil {
		logger.Fatal().Msgf("Failed to set up tracing: %v", err)
	}
	reg := metrics.NewRegistry()

	// 3. Pub/Sub publisher
	publisher, err := pubsub.NewPublisher(context.Background(), cfg)
	if err != nil {
		logger.Fatal().Msgf("Failed to create Pub/Sub publisher: %v", err)
	}

	// 4. Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.New(cfg, logger, publisher, reg),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 5. Serve until a shutdown signal arrives
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Msgf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutdown signal received, exiting...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return errors.Join(
			srv.Shutdown(shutdownCtx),
			publisher.Close(),
			shutdownTracing(shutdownCtx),
		)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().Msgf("Server stopped with error: %v", err)
	}
	logger.Info().Msg("Server shut down gracefully")
}
