package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"example.com/menta/internal/config"
	"example.com/menta/internal/logging"
	"example.com/menta/internal/outbox"
	httptransport "example.com/menta/internal/transport/http"
)

const defaultDLQBatchSize = 50

func main() {
	cfg := config.MustLoad()
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	logger := logging.Component("dlqmanager")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()

	manager := outbox.NewDLQManager(pool, cfg.DLQMaxRetries, cfg.DLQBaseDelay)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httptransport.Run(gctx, httptransport.NewMetricsServer(cfg.MetricsAddress), 10*time.Second, logger)
	})
	g.Go(func() error {
		logger.Info().
			Dur("interval", cfg.DLQPollInterval).
			Int("max_retries", cfg.DLQMaxRetries).
			Msg("dlq manager started")
		if err := manager.Run(gctx, cfg.DLQPollInterval, defaultDLQBatchSize); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("dlq manager stopped with error")
		os.Exit(1)
	}
	logger.Info().Msg("dlq manager stopped")
}
