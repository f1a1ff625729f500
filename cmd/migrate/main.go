package main

import (
	"context"
	"flag"
	"os"

	"github.com/sarathsp06/hookline/internal/config"
	"github.com/sarathsp06/hookline/internal/logger"
	"github.com/sarathsp06/hookline/internal/migrations"
)

func main() {
	var (
		direction = flag.String("direction", "up", "Migration direction: up, down")
		steps     = flag.Int("steps", 0, "Number of migration steps (0 for all)")
		version   = flag.Uint("version", 0, "Target migration version")
	)
	flag.Parse()

	log := logger.NewLogger("migration")

	cfg, err := config.Load()
	if err != nil {
		log.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	log.Info("Starting database migration", "direction", *direction)

	opts := migrations.Options{
		Direction: *direction,
		Steps:     *steps,
		Version:   *version,
	}
	if err := migrations.Run(context.Background(), cfg.DatabaseURL, opts, log); err != nil {
		log.Error("Migration failed", "error", err)
		os.Exit(1)
	}

	log.Info("All migrations completed successfully")
}
