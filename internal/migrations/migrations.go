// Package migrations applies the River queue schema and the application
// schema. Application migrations are embedded in the binary.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
)

//go:embed sql/*.sql
var files embed.FS

// Direction of an application migration
const (
	Up   = "up"
	Down = "down"
)

// Options selects which application migrations run
type Options struct {
	Direction string
	// Steps limits the number of migrations applied, 0 for all (up) or one (down)
	Steps int
	// Version migrates to a specific version when non-zero
	Version uint
}

// Run applies River migrations and then application migrations
func Run(ctx context.Context, databaseURL string, opts Options, log *slog.Logger) error {
	if err := RunRiver(ctx, databaseURL, log); err != nil {
		return fmt.Errorf("failed to run River migrations: %w", err)
	}
	if err := RunApp(databaseURL, opts, log); err != nil {
		return fmt.Errorf("failed to run application migrations: %w", err)
	}
	return nil
}

// RunRiver brings the River job tables up to date
func RunRiver(ctx context.Context, databaseURL string, log *slog.Logger) error {
	log.Info("Running River queue migrations...")

	dbPool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create database pool: %w", err)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	migrator, err := rivermigrate.New(riverpgxv5.New(dbPool), nil)
	if err != nil {
		return fmt.Errorf("failed to create River migrator: %w", err)
	}

	res, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, &rivermigrate.MigrateOpts{})
	if err != nil {
		return err
	}

	for _, version := range res.Versions {
		log.Info("Applied River migration",
			"version", version.Version,
			"name", version.Name,
		)
	}
	if len(res.Versions) == 0 {
		log.Info("No River migrations needed - database is already up to date")
	}
	return nil
}

// RunApp applies the embedded application migrations
func RunApp(databaseURL string, opts Options, log *slog.Logger) error {
	log.Info("Running application migrations...", "direction", opts.Direction)

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	m, err := newMigrate(db)
	if err != nil {
		return err
	}
	defer m.Close()

	currentVersion, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get current migration version: %w", err)
	}
	if dirty {
		log.Warn("Database is in dirty state, forcing version", "version", currentVersion)
		if err := m.Force(int(currentVersion)); err != nil {
			return fmt.Errorf("failed to force version: %w", err)
		}
	}

	if err := apply(m, opts); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	finalVersion, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get final migration version: %w", err)
	}
	log.Info("Application migrations completed",
		"from_version", currentVersion,
		"final_version", finalVersion,
		"dirty", dirty,
	)
	return nil
}

func newMigrate(db *sql.DB) (*migrate.Migrate, error) {
	source, err := iofs.New(files, "sql")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}

func apply(m *migrate.Migrate, opts Options) error {
	switch opts.Direction {
	case Up, "":
		switch {
		case opts.Version > 0:
			return m.Migrate(opts.Version)
		case opts.Steps > 0:
			return m.Steps(opts.Steps)
		default:
			return m.Up()
		}
	case Down:
		switch {
		case opts.Version > 0:
			return m.Migrate(opts.Version)
		case opts.Steps > 0:
			return m.Steps(-opts.Steps)
		default:
			return m.Steps(-1)
		}
	default:
		return fmt.Errorf("invalid direction: %s (must be 'up' or 'down')", opts.Direction)
	}
}
