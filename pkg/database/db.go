// Package database wraps sqlx with transaction scoping and migrations
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Config holds Postgres connection settings
type Config struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Querier runs statements against the database or an open transaction.
// Both *sqlx.DB and *sqlx.Tx satisfy it.
type Querier interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// DB is the database handle shared by repositories
type DB interface {
	Querier
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
	PingContext(ctx context.Context) error
	Close() error
	// SQL returns the underlying *sql.DB, used by migrations
	SQL() *sql.DB
	// WithinTx runs fn in a transaction, reusing one already bound to ctx
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	// Conn returns the transaction bound to ctx, or the database itself
	Conn(ctx context.Context) Querier
}

type DatabaseInstance struct {
	*sqlx.DB
	logger ectologger.Logger
}

// NewDatabaseInstance wraps an open sqlx handle
func NewDatabaseInstance(db *sqlx.DB, logger ectologger.Logger) DB {
	return &DatabaseInstance{
		DB:     db,
		logger: logger,
	}
}

// Open connects to Postgres and applies the pool settings
func Open(ctx context.Context, cfg Config, logger ectologger.Logger) (DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	logger.WithContext(ctx).Info("Connected to postgres")
	return NewDatabaseInstance(db, logger), nil
}

func (db *DatabaseInstance) SQL() *sql.DB {
	return db.DB.DB
}

func (db *DatabaseInstance) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return WithinTx(ctx, db.DB, db.logger, nil, fn)
}

func (db *DatabaseInstance) Conn(ctx context.Context) Querier {
	return Conn(ctx, db.DB)
}
