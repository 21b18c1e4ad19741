package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"pricewatch/internal/config"
)

// TrackedItemStore is the repository the checker sweeps over.
type TrackedItemStore interface {
	ListAll(ctx context.Context) ([]TrackedItem, error)
	DeleteByID(ctx context.Context, id int64) error
	Insert(ctx context.Context, item NewTrackedItem) (TrackedItem, error)
}

// SchemaManager is implemented by stores able to create their own table.
type SchemaManager interface {
	EnsureSchema(ctx context.Context) error
	Ping(ctx context.Context) error
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Handle is a store plus the means to release it.
type Handle interface {
	TrackedItemStore
	SchemaManager
	Close()
}

// Open connects to the configured backend and returns a ready store.
func Open(ctx context.Context, cfg config.DatabaseConfig) (Handle, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		pool, err := NewPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return NewStore(pool), nil
	case config.DriverSQLite:
		store, err := OpenSQLite(cfg)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// NewPool configures a PostgreSQL connection pool from runtime settings.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, connErr("create pgx pool", err)
	}

	return pool, nil
}
