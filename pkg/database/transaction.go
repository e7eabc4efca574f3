package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
)

type txContextKey struct{}

// Beginner starts transactions
type Beginner interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// TxFromContext returns the transaction bound to ctx, if any
func TxFromContext(ctx context.Context) (*sqlx.Tx, bool) {
	tx, ok := ctx.Value(txContextKey{}).(*sqlx.Tx)
	return tx, ok && tx != nil
}

// Conn returns the transaction bound to ctx, or db when there is none
func Conn(ctx context.Context, db Querier) Querier {
	if tx, ok := TxFromContext(ctx); ok {
		return tx
	}
	return db
}

// WithinTx runs fn inside a transaction bound to the ctx passed to fn.
// When ctx already carries a transaction fn joins it and the outermost call
// decides whether to commit. fn returning an error, or panicking, rolls back.
func WithinTx(ctx context.Context, db Beginner, logger ectologger.Logger, opts *sql.TxOptions, fn func(ctx context.Context) error) (err error) {
	if _, ok := TxFromContext(ctx); ok {
		return fn(ctx)
	}

	tx, err := db.BeginTxx(ctx, opts)
	if err != nil {
		logger.WithContext(ctx).WithError(err).Error("error while beginning transaction")
		return fmt.Errorf("error while beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txContextKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.WithContext(ctx).WithError(rbErr).Error("error while rolling back transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		logger.WithContext(ctx).WithError(err).Error("error while committing transaction")
		return fmt.Errorf("error while committing transaction: %w", err)
	}
	return nil
}
