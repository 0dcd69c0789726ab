package postgresrepo

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/kirinyoku/washq/internal/domain"
	"github.com/kirinyoku/washq/internal/repository"
)

type SettingsRepo struct {
	s *Store
}

const businessHoursColumns = `
	weekday, to_char(open_time, 'HH24:MI'), to_char(close_time, 'HH24:MI'),
	slot_minutes, default_quota, is_active`

func scanBusinessHours(row pgx.Row) (domain.BusinessHours, error) {
	var h domain.BusinessHours
	err := row.Scan(&h.Weekday, &h.OpenTime, &h.CloseTime, &h.SlotMinutes, &h.DefaultQuota, &h.IsActive)
	return h, err
}

// BusinessHoursFor returns the active configuration of a weekday or
// repository.ErrNotFound when the business is closed that day.
func (r *SettingsRepo) BusinessHoursFor(ctx context.Context, weekday int) (*domain.BusinessHours, error) {
	const op = "postgres.SettingsRepo.BusinessHoursFor"

	h, err := scanBusinessHours(r.s.handle(ctx).QueryRow(ctx,
		`SELECT`+businessHoursColumns+` FROM business_hours WHERE weekday = $1 AND is_active`,
		weekday,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &h, nil
}

func (r *SettingsRepo) ListBusinessHours(ctx context.Context) ([]domain.BusinessHours, error) {
	const op = "postgres.SettingsRepo.ListBusinessHours"

	rows, err := r.s.handle(ctx).Query(ctx,
		`SELECT`+businessHoursColumns+` FROM business_hours ORDER BY weekday`,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	hours, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.BusinessHours, error) {
		return scanBusinessHours(row)
	})
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return hours, nil
}

// UpsertBusinessHours writes every entry. Callers wrap it in a transaction
// when the whole week must change together.
func (r *SettingsRepo) UpsertBusinessHours(ctx context.Context, hours []domain.BusinessHours) error {
	const op = "postgres.SettingsRepo.UpsertBusinessHours"

	db := r.s.handle(ctx)
	for _, h := range hours {
		if _, err := db.Exec(ctx, `
			INSERT INTO business_hours (weekday, open_time, close_time, slot_minutes, default_quota, is_active)
			VALUES ($1, $2::time, $3::time, $4, $5, $6)
			ON CONFLICT (weekday) DO UPDATE
			   SET open_time = EXCLUDED.open_time,
			       close_time = EXCLUDED.close_time,
			       slot_minutes = EXCLUDED.slot_minutes,
			       default_quota = EXCLUDED.default_quota,
			       is_active = EXCLUDED.is_active`,
			h.Weekday, h.OpenTime, h.CloseTime, h.SlotMinutes, h.DefaultQuota, h.IsActive,
		); err != nil {
			return wrapDBErr(op, err)
		}
	}

	return nil
}

func (r *SettingsRepo) OverridesForDay(ctx context.Context, date string) ([]domain.SlotOverride, error) {
	const op = "postgres.SettingsRepo.OverridesForDay"

	rows, err := r.s.handle(ctx).Query(ctx, `
		SELECT to_char(slot_date, 'YYYY-MM-DD'), slot_start, closed, quota, reason
		  FROM slot_overrides
		 WHERE slot_date = $1::date
		 ORDER BY slot_start`, date)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	overrides, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.SlotOverride, error) {
		var o domain.SlotOverride
		err := row.Scan(&o.Date, &o.SlotStart, &o.Closed, &o.Quota, &o.Reason)
		return o, err
	})
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return overrides, nil
}

// UpsertOverride stores the override and re-resolves the quota of an already
// materialized counter, so clearing the quota falls back to the weekday default.
func (r *SettingsRepo) UpsertOverride(ctx context.Context, o domain.SlotOverride) error {
	const op = "postgres.SettingsRepo.UpsertOverride"

	db := r.s.handle(ctx)
	if _, err := db.Exec(ctx, `
		INSERT INTO slot_overrides (slot_date, slot_start, closed, quota, reason)
		VALUES ($1::date, $2, $3, $4, $5)
		ON CONFLICT (slot_date, slot_start) DO UPDATE
		   SET closed = EXCLUDED.closed,
		       quota = EXCLUDED.quota,
		       reason = EXCLUDED.reason`,
		o.Date, o.SlotStart, o.Closed, o.Quota, o.Reason,
	); err != nil {
		return wrapDBErr(op, err)
	}

	if err := r.syncQuota(ctx, o.SlotStart); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// DeleteOverride removes the override and restores the counter quota to the
// weekday default, never below reserved_count.
func (r *SettingsRepo) DeleteOverride(ctx context.Context, date string, slotStart time.Time) error {
	const op = "postgres.SettingsRepo.DeleteOverride"

	tag, err := r.s.handle(ctx).Exec(ctx,
		`DELETE FROM slot_overrides WHERE slot_date = $1::date AND slot_start = $2`,
		date, slotStart,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return wrapDBErr(op, repository.ErrNotFound)
	}

	if err := r.syncQuota(ctx, slotStart); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *SettingsRepo) syncQuota(ctx context.Context, slotStart time.Time) error {
	_, err := r.s.handle(ctx).Exec(ctx, `SELECT fn_sync_slot_quota($1, $2)`, slotStart, r.s.tz)
	return err
}

// ListPaymentChannels returns the channels in display order. With
// activeOnly set, disabled channels are left out.
func (r *SettingsRepo) ListPaymentChannels(ctx context.Context, activeOnly bool) ([]domain.PaymentChannel, error) {
	const op = "postgres.SettingsRepo.ListPaymentChannels"

	rows, err := r.s.handle(ctx).Query(ctx, `
		SELECT type, name, value, is_active, display_order
		  FROM payment_channels
		 WHERE is_active OR NOT $1
		 ORDER BY display_order, type, name`, activeOnly)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	channels, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.PaymentChannel, error) {
		var c domain.PaymentChannel
		err := row.Scan(&c.Type, &c.Name, &c.Value, &c.IsActive, &c.DisplayOrder)
		return c, err
	})
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return channels, nil
}

// UpsertPaymentChannels writes every channel keyed by (type, name).
func (r *SettingsRepo) UpsertPaymentChannels(ctx context.Context, channels []domain.PaymentChannel) error {
	const op = "postgres.SettingsRepo.UpsertPaymentChannels"

	batch := &pgx.Batch{}
	for _, c := range channels {
		batch.Queue(`
			INSERT INTO payment_channels (type, name, value, is_active, display_order)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (type, name) DO UPDATE
			   SET value = EXCLUDED.value,
			       is_active = EXCLUDED.is_active,
			       display_order = EXCLUDED.display_order,
			       updated_at = NOW()`,
			c.Type, c.Name, c.Value, c.IsActive, c.DisplayOrder,
		)
	}

	if err := r.s.handle(ctx).SendBatch(ctx, batch).Close(); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}
