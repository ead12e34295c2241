package main

import (
	"FlightSurety/internal/config"
	"FlightSurety/internal/observability"
	"FlightSurety/internal/persistence"
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: migrate <up|down|status>")
		fmt.Println("  up     - apply all pending migrations")
		fmt.Println("  down   - roll back the last migration")
		fmt.Println("  status - list pending migrations")
		fmt.Println()
		fmt.Println("Environment:")
		fmt.Println("  FLIGHTSURETY_CONFIG          - optional YAML config file")
		fmt.Println("  FLIGHTSURETY_POSTGRES_DSN    - Postgres connection string")
		fmt.Println("  FLIGHTSURETY_MIGRATIONS_DIR  - path to migrations directory (default: migrations)")
		os.Exit(1)
	}

	logger := observability.NewLogger("migrate")

	cfg, err := config.Load("")
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}

	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db")
	}
	defer db.Close()

	ctx := context.Background()
	migrator := persistence.NewMigrator(db, cfg.MigrationsDir, logger)

	switch os.Args[1] {
	case "up":
		if err := migrator.Up(ctx); err != nil {
			logger.Fatal().Err(err).Msg("migrate up")
		}
		logger.Info().Msg("all migrations applied")

	case "down":
		if err := migrator.Down(ctx); err != nil {
			logger.Fatal().Err(err).Msg("migrate down")
		}
		logger.Info().Msg("last migration rolled back")

	case "status":
		pending, err := migrator.Pending(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("migration status")
		}
		if len(pending) == 0 {
			fmt.Println("up to date")
		}
		for _, p := range pending {
			fmt.Println("pending:", p)
		}

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s (use 'up', 'down' or 'status')\n", os.Args[1])
		os.Exit(1)
	}
}
