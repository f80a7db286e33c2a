package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/joho/godotenv"

	"github.com/seijin4ka/CostNavigator-sub000/internal/db"
	"github.com/seijin4ka/CostNavigator-sub000/internal/obs"
)

func main() {
	_ = godotenv.Load()
	logger := obs.NewLogger(os.Getenv("LOG_FORMAT"), os.Getenv("LOG_LEVEL"))

	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: migrate [up|down N|force V|version]")
	}
	flag.Parse()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL is not set")
	}

	m, err := db.NewMigrator(dbURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("init migrator")
	}
	defer m.Close()

	cmd := flag.Arg(0)
	if cmd == "" {
		cmd = "up"
	}

	switch cmd {
	case "up":
		err = m.Up()
	case "down":
		steps := 1
		if arg := flag.Arg(1); arg != "" {
			if steps, err = strconv.Atoi(arg); err != nil || steps < 1 {
				logger.Fatal().Str("steps", arg).Msg("down needs a positive step count")
			}
		}
		err = m.Steps(-steps)
	case "force":
		v, convErr := strconv.Atoi(flag.Arg(1))
		if convErr != nil {
			logger.Fatal().Str("version", flag.Arg(1)).Msg("force needs a version")
		}
		err = m.Force(v)
	case "version":
		v, dirty, verr := m.Version()
		if errors.Is(verr, migrate.ErrNilVersion) {
			logger.Info().Msg("no migrations applied")
			return
		}
		if verr != nil {
			logger.Fatal().Err(verr).Msg("read version")
		}
		logger.Info().Uint("version", v).Bool("dirty", dirty).Msg("schema version")
		return
	default:
		flag.Usage()
		os.Exit(2)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info().Str("cmd", cmd).Msg("no change")
		return
	}
	if err != nil {
		logger.Fatal().Err(err).Str("cmd", cmd).Msg("migration failed")
	}
	logger.Info().Str("cmd", cmd).Msg("migration complete")
}
