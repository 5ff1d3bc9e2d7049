package migrations

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/uptrace/bun"

	"ms-events/internal/logger"
)

//go:embed sql/*.sql
var sqlFiles embed.FS

// Runner handles PostgreSQL schema migrations
type Runner struct {
	bunDB    *bun.DB
	logger   *logger.Logger
	migrator *migrate.Migrate
}

func NewRunner(bunDB *bun.DB, log *logger.Logger) *Runner {
	if log == nil {
		log = logger.Discard()
	}
	return &Runner{bunDB: bunDB, logger: log}
}

// Initialize prepares the migration system
func (r *Runner) Initialize() error {
	driver, err := postgres.WithInstance(r.bunDB.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create postgres migration driver: %w", err)
	}

	source, err := iofs.New(sqlFiles, "sql")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	r.migrator = migrator
	return nil
}

func (r *Runner) ensure() error {
	if r.migrator != nil {
		return nil
	}
	return r.Initialize()
}

// MigrateUp runs all pending migrations. A dirty version is marked clean
// before continuing.
func (r *Runner) MigrateUp() error {
	if err := r.ensure(); err != nil {
		return err
	}

	version, dirty, err := r.migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	if dirty {
		r.logger.Warn("MIGRATE", fmt.Sprintf("Detected dirty migration at version %d, attempting to fix", version))
		if err := r.migrator.Force(int(version)); err != nil {
			return fmt.Errorf("failed to fix dirty migration: %w", err)
		}
	}

	if err := r.migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	r.logVersion()
	return nil
}

// MigrateDown rolls back all migrations
func (r *Runner) MigrateDown() error {
	if err := r.ensure(); err != nil {
		return err
	}

	if err := r.migrator.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down failed: %w", err)
	}
	r.logVersion()
	return nil
}

// MigrateTo migrates up or down to a specific version
func (r *Runner) MigrateTo(version uint) error {
	if err := r.ensure(); err != nil {
		return err
	}

	if err := r.migrator.Migrate(version); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration to version %d failed: %w", version, err)
	}
	r.logVersion()
	return nil
}

// Version reports the applied version. ok is false when nothing was applied.
func (r *Runner) Version() (version uint, dirty bool, ok bool, err error) {
	if err := r.ensure(); err != nil {
		return 0, false, false, err
	}
	version, dirty, err = r.migrator.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, false, nil
	}
	if err != nil {
		return 0, false, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, dirty, true, nil
}

func (r *Runner) logVersion() {
	version, dirty, err := r.migrator.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		r.logger.Info("MIGRATE", "No migrations applied")
	case err != nil:
		r.logger.Warn("MIGRATE", fmt.Sprintf("Failed to read schema version: %v", err))
	default:
		r.logger.Info("MIGRATE", fmt.Sprintf("Current schema version: %d (dirty: %t)", version, dirty))
	}
}

// Close frees resources associated with the migrator
func (r *Runner) Close() error {
	if r.migrator == nil {
		return nil
	}
	sourceErr, databaseErr := r.migrator.Close()
	if sourceErr != nil {
		return fmt.Errorf("error closing migrator source: %w", sourceErr)
	}
	if databaseErr != nil {
		return fmt.Errorf("error closing migrator database: %w", databaseErr)
	}
	return nil
}
