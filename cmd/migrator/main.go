package main

import (
	"errors"
	"flag"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	var migrationsPath, databaseURL string
	var down bool

	flag.StringVar(&migrationsPath, "migrations-path", "./migrations", "path to migrations")
	flag.StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "postgres connection url (defaults to $DATABASE_URL)")
	flag.BoolVar(&down, "down", false, "roll back the most recent migration instead of applying")
	flag.Parse()

	if databaseURL == "" {
		log.Fatal().Msg("database url is required (-database-url or DATABASE_URL)")
	}

	m, err := migrate.New("file://"+migrationsPath, databaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create migrator")
	}
	defer m.Close()

	if down {
		err = m.Steps(-1)
	} else {
		err = m.Up()
	}
	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info().Msg("no migrations to apply")
			return
		}
		log.Fatal().Err(err).Msg("failed to apply migrations")
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		log.Fatal().Err(err).Msg("failed to read migration version")
	}
	log.Info().Uint("version", version).Bool("dirty", dirty).Msg("migrations applied")
}
