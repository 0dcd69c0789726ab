package postgresrepo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/kirinyoku/washq/internal/domain"
)

// LedgerRepo exposes the slot counter procedures. Each procedure is a single
// statement, so no explicit transaction is needed around it.
type LedgerRepo struct {
	s *Store
}

func (r *LedgerRepo) ReserveSlot(ctx context.Context, slotStart time.Time) (bool, error) {
	const op = "postgres.LedgerRepo.ReserveSlot"

	var ok bool
	if err := r.s.handle(ctx).QueryRow(ctx,
		`SELECT fn_reserve_slot($1, $2)`, slotStart, r.s.tz,
	).Scan(&ok); err != nil {
		return false, wrapDBErr(op, err)
	}

	return ok, nil
}

func (r *LedgerRepo) ReleaseSlot(ctx context.Context, slotStart time.Time) error {
	const op = "postgres.LedgerRepo.ReleaseSlot"

	if _, err := r.s.handle(ctx).Exec(ctx,
		`SELECT fn_release_slot($1, $2)`, slotStart, r.s.tz,
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *LedgerRepo) ConfirmSlot(ctx context.Context, slotStart time.Time) error {
	const op = "postgres.LedgerRepo.ConfirmSlot"

	if _, err := r.s.handle(ctx).Exec(ctx,
		`SELECT fn_confirm_slot($1, $2)`, slotStart, r.s.tz,
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// CountersForDay returns the materialized counters of a calendar date.
func (r *LedgerRepo) CountersForDay(ctx context.Context, date string) ([]domain.SlotCounter, error) {
	const op = "postgres.LedgerRepo.CountersForDay"

	rows, err := r.s.handle(ctx).Query(ctx, `
		SELECT slot_start, quota, reserved_count, confirmed_count
		  FROM slot_counters
		 WHERE slot_date = $1::date
		 ORDER BY slot_start`, date)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	counters, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.SlotCounter, error) {
		var c domain.SlotCounter
		err := row.Scan(&c.SlotStart, &c.Quota, &c.ReservedCount, &c.ConfirmedCount)
		return c, err
	})
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return counters, nil
}

// EnsureCounters materializes zeroed counters for the given slots. Existing
// rows are left untouched. It returns how many rows were created.
func (r *LedgerRepo) EnsureCounters(
	ctx context.Context,
	date string,
	slots []time.Time,
	quota int,
) (int64, error) {
	const op = "postgres.LedgerRepo.EnsureCounters"

	if len(slots) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, start := range slots {
		batch.Queue(`
			INSERT INTO slot_counters (slot_date, slot_start, quota)
			VALUES ($1::date, $2, $3)
			ON CONFLICT (slot_date, slot_start) DO NOTHING`,
			date, start, quota,
		)
	}

	br := r.s.handle(ctx).SendBatch(ctx, batch)
	defer br.Close()

	var created int64
	for range slots {
		tag, err := br.Exec()
		if err != nil {
			return created, wrapDBErr(op, err)
		}
		created += tag.RowsAffected()
	}

	if err := br.Close(); err != nil {
		return created, fmt.Errorf("%s:%w", op, err)
	}

	return created, nil
}
