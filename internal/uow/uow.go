package uow

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// AfterCommit is a function that runs after a successful transaction commit.
type AfterCommit func(ctx context.Context)

// TxRunner runs fn in a transaction carried by the context passed to fn.
type TxRunner interface {
	RunTx(ctx context.Context, opts *pgx.TxOptions, fn func(ctx context.Context) error) error
}

type hooksKey struct{}

type hooks struct {
	list []AfterCommit
}

// UoW represents a unit of work.
type UoW struct {
	runner TxRunner
}

func New(runner TxRunner) *UoW {
	return &UoW{runner: runner}
}

// Do runs fn inside the transaction. After a successful commit,
// it executes all after-commit hooks.
func (u *UoW) Do(
	ctx context.Context,
	fn func(ctx context.Context, after func(AfterCommit)) error,
) error {
	return u.DoWithOpts(ctx, nil, fn)
}

// DoWithOpts runs fn inside the transaction with the given options. A nested
// call joins the outer unit and its hooks run when the outer one commits.
func (u *UoW) DoWithOpts(
	ctx context.Context,
	opts *pgx.TxOptions,
	fn func(ctx context.Context, after func(AfterCommit)) error,
) error {
	if outer, ok := ctx.Value(hooksKey{}).(*hooks); ok {
		return u.runner.RunTx(ctx, opts, func(ctx context.Context) error {
			return fn(ctx, func(h AfterCommit) { outer.list = append(outer.list, h) })
		})
	}

	hs := &hooks{}
	err := u.runner.RunTx(context.WithValue(ctx, hooksKey{}, hs), opts, func(ctx context.Context) error {
		// retried attempts start with a clean hook list
		hs.list = hs.list[:0]
		return fn(ctx, func(h AfterCommit) { hs.list = append(hs.list, h) })
	})
	if err != nil {
		return err
	}

	for _, h := range hs.list {
		h(ctx)
	}

	return nil
}

// Direct runs fn without a transaction. Useful for tests and for stores that
// already make every call atomic.
type Direct struct{}

func (Direct) RunTx(ctx context.Context, _ *pgx.TxOptions, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
