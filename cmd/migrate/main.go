package main

import (
	"errors"
	"flag"
	"os"

	"github.com/golang-migrate/migrate/v4"

	"example.com/menta/internal/config"
	"example.com/menta/internal/logging"
	"example.com/menta/internal/persistence/postgres"
)

func main() {
	down := flag.Bool("down", false, "roll back every migration instead of applying them")
	steps := flag.Int("steps", 0, "apply (or with -down, roll back) only this many migrations")
	flag.Parse()

	cfg := config.MustLoad()
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	logger := logging.Component("migrate")

	m, err := postgres.NewMigrator(cfg.PostgresURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create migrator")
	}
	defer m.Close()

	switch {
	case *steps > 0 && *down:
		err = m.Steps(-*steps)
	case *steps > 0:
		err = m.Steps(*steps)
	case *down:
		err = m.Down()
	default:
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error().Err(err).Msg("migration failed")
		os.Exit(1)
	}

	version, dirty, verr := m.Version()
	switch {
	case errors.Is(verr, migrate.ErrNilVersion):
		logger.Info().Msg("database has no migrations applied")
	case verr != nil:
		logger.Error().Err(verr).Msg("failed to read schema version")
		os.Exit(1)
	default:
		logger.Info().Uint("version", version).Bool("dirty", dirty).Msg("migrations complete")
	}
}
