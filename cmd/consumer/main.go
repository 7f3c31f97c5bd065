package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"

	"example.com/menta/internal/config"
	"example.com/menta/internal/consumer"
	"example.com/menta/internal/logging"
	httptransport "example.com/menta/internal/transport/http"
)

func main() {
	cfg := config.MustLoad()
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	logger := logging.Component("consumer")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()

	handler := consumer.NewPersistenceHandler(pool)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httptransport.Run(gctx, httptransport.NewMetricsServer(cfg.MetricsAddress), 10*time.Second, logger)
	})

	for _, topic := range cfg.ConsumerTopics {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:         cfg.KafkaBrokers,
			GroupID:         cfg.ConsumerGroupID,
			Topic:           topic,
			MinBytes:        1e3,
			MaxBytes:        10e6,
			CommitInterval:  time.Second,
			RetentionTime:   24 * time.Hour,
			ReadLagInterval: -1,
		})
		topicLogger := logger.With().Str("topic", topic).Logger()
		proc := consumer.NewProcessor(reader, handler, consumer.WithLogger(topicLogger))

		g.Go(func() error {
			defer reader.Close()

			topicLogger.Info().Str("group", cfg.ConsumerGroupID).Msg("consumer started")
			if err := proc.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("consumer stopped with error")
		os.Exit(1)
	}
	logger.Info().Msg("consumer stopped")
}
