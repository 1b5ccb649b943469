package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/liamcoop/rulebuilder/internal/config"
	"github.com/liamcoop/rulebuilder/internal/logger"
)

// databaseURL picks the flag, then DATABASE_URL, then store.postgres_url from
// the config file and RULEBUILDER_ environment.
func databaseURL(flagValue, configPath string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v, nil
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return "", err
	}
	if cfg.Store.PostgresURL == "" {
		return "", errors.New("no database URL: use -database, DATABASE_URL or store.postgres_url")
	}
	return cfg.Store.PostgresURL, nil
}

func run(m *migrate.Migrate, command string, args []string) error {
	switch command {
	case "up":
		logger.Info("running migrations up")
		err := m.Up()
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("no migrations to run, database is up to date")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		logger.Info("migrations completed")

	case "down":
		logger.Info("rolling back migrations")
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to roll back migrations: %w", err)
		}
		logger.Info("rollback completed")

	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			return fmt.Errorf("failed to get version: %w", err)
		}
		logger.Info("current version", "version", version, "dirty", dirty)

	case "force":
		if len(args) < 1 {
			return errors.New("force requires a version number: -command force <version>")
		}
		version, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid version number: %w", err)
		}
		if err := m.Force(version); err != nil {
			return fmt.Errorf("failed to force version: %w", err)
		}
		logger.Info("forced version", "version", version)

	default:
		return fmt.Errorf("unknown command %q (use: up, down, version, force)", command)
	}
	return nil
}

func main() {
	var (
		dbURL          string
		migrationsPath string
		command        string
		configPath     string
	)
	flag.StringVar(&dbURL, "database", "", "Database URL")
	flag.StringVar(&migrationsPath, "path", "migrations", "Path to migrations directory")
	flag.StringVar(&command, "command", "up", "Migration command: up, down, version, force")
	flag.StringVar(&configPath, "config", os.Getenv("RULEBUILDER_CONFIG"), "Path to TOML config file")
	flag.Parse()

	url, err := databaseURL(dbURL, configPath)
	if err != nil {
		logger.Fatal("database URL is required", "error", err)
	}

	logger.Info("connecting to database", "migrations", migrationsPath)
	m, err := migrate.New("file://"+migrationsPath, url)
	if err != nil {
		logger.Fatal("failed to create migration instance", "error", err)
	}
	defer m.Close()

	if err := run(m, command, flag.Args()); err != nil {
		logger.Fatal("migration failed", "command", command, "error", err)
	}
}
