package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"example.com/menta/internal/api"
	"example.com/menta/internal/auth"
	"example.com/menta/internal/config"
	"example.com/menta/internal/domain"
	"example.com/menta/internal/logging"
	"example.com/menta/internal/outbox"
	"example.com/menta/internal/persistence/memory"
	"example.com/menta/internal/persistence/postgres"
	httptransport "example.com/menta/internal/transport/http"
)

type stores struct {
	users      domain.UserRepository
	activities domain.ActivityRepository
	progress   domain.ProgressRepository
	pool       *pgxpool.Pool
}

func main() {
	cfg := config.MustLoad()
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	logger := logging.Component("api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("store", cfg.StoreDriver).Msg("failed to open stores")
	}
	if st.pool != nil {
		defer st.pool.Close()
	}

	strategy, err := domain.ParseRecorderStrategy(cfg.ProgressStrategy)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid progress strategy")
	}
	recorder := domain.NewProgressRecorder(st.progress, domain.WithStrategy(strategy))

	handler := api.NewHandler(
		domain.NewActivityService(st.activities, recorder),
		domain.NewProgressAggregator(st.progress, cfg.ProgressFetchLimit),
		domain.NewUserService(st.users),
	)
	router := api.NewRouter(api.RouterConfig{
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitRequests:  cfg.RateLimitRequests,
		RateLimitWindow:    cfg.RateLimitWindow,
	}, handler, auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}))

	serverCfg := httptransport.DefaultServerConfig(cfg.HTTPAddress)
	server := httptransport.NewServer(serverCfg, router)

	g, gctx := errgroup.WithContext(ctx)

	if st.pool != nil {
		producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
		defer producer.Close()

		dispatcher := outbox.NewDispatcher(st.pool, producer,
			outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL),
			cfg.OutboxPollInterval, cfg.OutboxBatchSize,
			outbox.WithBreakerSettings(outbox.BreakerSettings{
				ConsecutiveFailures: cfg.BreakerFailures,
				OpenTimeout:         cfg.BreakerOpenTimeout,
			}),
		)
		g.Go(func() error {
			dispatcher.Start(gctx)
			return nil
		})
	} else {
		logger.Warn().Msg("memory store selected; outbox dispatcher disabled")
	}

	g.Go(func() error {
		return httptransport.Run(gctx, server, serverCfg.ShutdownTimeout, logger)
	})

	logger.Info().
		Str("addr", cfg.HTTPAddress).
		Str("store", cfg.StoreDriver).
		Str("progress_strategy", string(strategy)).
		Msg("menta api started")

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("api stopped with error")
		os.Exit(1)
	}
	logger.Info().Msg("api stopped")
}

func openStores(ctx context.Context, cfg config.Config) (stores, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		return stores{
			users:      memory.NewUserRepository(),
			activities: memory.NewActivityRepository(),
			progress:   memory.NewProgressRepository(),
		}, nil
	}

	if cfg.MigrateOnStart {
		if err := postgres.Migrate(cfg.PostgresURL); err != nil {
			return stores{}, err
		}
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		return stores{}, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return stores{}, err
	}
	return stores{
		users:      postgres.NewUserRepository(pool),
		activities: postgres.NewActivityRepository(pool),
		progress:   postgres.NewProgressRepository(pool),
		pool:       pool,
	}, nil
}
