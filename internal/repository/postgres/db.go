package postgresrepo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const maxTxAttempts = 3

type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type txKey struct{}

type Store struct {
	pool *pgxpool.Pool
	tz   string
}

// NewStore wraps the pool. tz is the IANA zone the ledger procedures use to
// derive a slot's calendar date.
func NewStore(pool *pgxpool.Pool, tz string) *Store {
	return &Store{
		pool: pool,
		tz:   tz,
	}
}

// RunTx runs fn in a transaction carried by ctx. Repositories called with
// that ctx join the transaction. Nested calls reuse the outer transaction.
// Serialization failures and deadlocks are retried.
func (s *Store) RunTx(
	ctx context.Context,
	opts *pgx.TxOptions,
	fn func(ctx context.Context) error,
) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	txOpts := pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	}

	if opts != nil {
		txOpts.IsoLevel = opts.IsoLevel
		txOpts.AccessMode = opts.AccessMode
		txOpts.DeferrableMode = opts.DeferrableMode
	}

	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = s.runTxOnce(ctx, txOpts, fn)
		if err == nil || !IsRetryable(err) {
			return err
		}
	}

	return err
}

func (s *Store) runTxOnce(ctx context.Context, txOpts pgx.TxOptions, fn func(ctx context.Context) error) error {
	tx, err := s.pool.BeginTx(ctx, txOpts)
	if err != nil {
		return err
	}

	defer tx.Rollback(ctx)

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

func txFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey{}).(pgx.Tx)
	return tx
}

func (s *Store) handle(ctx context.Context) DB {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return s.pool
}

func (s *Store) Ledger() *LedgerRepo     { return &LedgerRepo{s: s} }
func (s *Store) Bookings() *BookingRepo  { return &BookingRepo{s: s} }
func (s *Store) Payments() *PaymentRepo  { return &PaymentRepo{s: s} }
func (s *Store) Jobs() *JobRepo          { return &JobRepo{s: s} }
func (s *Store) Settings() *SettingsRepo { return &SettingsRepo{s: s} }
func (s *Store) Users() *UserRepo        { return &UserRepo{s: s} }
