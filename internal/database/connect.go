package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-events/internal/config"
	"ms-events/internal/logger"
	"ms-events/internal/models"
)

// Open connects to the configured store, retrying the ping until
// ConnectRetries attempts have failed.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*bun.DB, error) {
	if log == nil {
		log = logger.Discard()
	}

	driverName, dsn := "postgres", cfg.PostgresDSN
	if cfg.Driver == "sqlite" {
		driverName, dsn = sqliteshim.ShimName, cfg.SQLiteDSN
	}

	retries := cfg.ConnectRetries
	if retries < 1 {
		retries = 1
	}

	var sqldb *sql.DB
	var err error
	for i := 0; i < retries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to %s (attempt %d/%d)", cfg.Driver, i+1, retries))
		sqldb, err = sql.Open(driverName, dsn)
		if err == nil {
			err = sqldb.PingContext(ctx)
			if err == nil {
				break
			}
			sqldb.Close()
		}

		log.Error("DATABASE", fmt.Sprintf("Failed to connect to %s: %v", cfg.Driver, err))
		if i < retries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(cfg.RetryInterval):
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s after %d attempts: %w", cfg.Driver, retries, err)
	}

	if cfg.Driver == "sqlite" {
		// One connection keeps :memory: databases and write locks consistent
		sqldb.SetMaxOpenConns(1)
		log.Info("DATABASE", "✅ SQLite connection successful")
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)
	log.Info("DATABASE", "✅ PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

// CreateSchema creates the tables from the models. Used for SQLite, where
// the SQL migrations do not apply.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	for _, model := range []interface{}{(*models.Venue)(nil), (*models.Event)(nil)} {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	_, err := db.NewCreateIndex().
		Model((*models.Event)(nil)).
		Index("idx_events_date").
		IfNotExists().
		Column("date", "id").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}
