package postgresrepo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kirinyoku/washq/internal/domain"
)

type BookingRepo struct {
	s *Store
}

const bookingColumns = `
	b.id, b.user_id, b.services,
	b.pickup_lat, b.pickup_lng, b.dropoff_lat, b.dropoff_lng, b.same_point,
	b.slot_start, b.slot_end, b.status, b.price_estimate, b.deposit_minor,
	b.notes, b.admin_notes, b.hold_expires_at, b.created_at, b.updated_at`

func bookingDest(b *domain.Booking) []any {
	return []any{
		&b.ID, &b.UserID, &b.Services,
		&b.Pickup.Lat, &b.Pickup.Lng, &b.Dropoff.Lat, &b.Dropoff.Lng, &b.SamePoint,
		&b.SlotStart, &b.SlotEnd, &b.Status, &b.PriceEstimate, &b.DepositMinor,
		&b.Notes, &b.AdminNotes, &b.HoldExpiresAt, &b.CreatedAt, &b.UpdatedAt,
	}
}

func (r *BookingRepo) Create(ctx context.Context, b *domain.Booking) error {
	const op = "postgres.BookingRepo.Create"

	if b.Services == nil {
		b.Services = []string{}
	}

	err := r.s.handle(ctx).QueryRow(ctx, `
		INSERT INTO bookings (
			id, user_id, services,
			pickup_lat, pickup_lng, dropoff_lat, dropoff_lng, same_point,
			slot_start, slot_end, status, price_estimate, deposit_minor,
			notes, hold_expires_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING created_at, updated_at`,
		b.ID, b.UserID, b.Services,
		b.Pickup.Lat, b.Pickup.Lng, b.Dropoff.Lat, b.Dropoff.Lng, b.SamePoint,
		b.SlotStart, b.SlotEnd, b.Status, b.PriceEstimate, b.DepositMinor,
		b.Notes, b.HoldExpiresAt,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *BookingRepo) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "postgres.BookingRepo.Delete"

	if _, err := r.s.handle(ctx).Exec(ctx, `DELETE FROM bookings WHERE id = $1`, id); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *BookingRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	const op = "postgres.BookingRepo.Get"

	var b domain.Booking
	if err := r.s.handle(ctx).QueryRow(ctx,
		`SELECT`+bookingColumns+` FROM bookings b WHERE b.id = $1`, id,
	).Scan(bookingDest(&b)...); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &b, nil
}

func (r *BookingRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Booking, error) {
	const op = "postgres.BookingRepo.ListByUser"

	rows, err := r.s.handle(ctx).Query(ctx,
		`SELECT`+bookingColumns+` FROM bookings b WHERE b.user_id = $1 ORDER BY b.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	bookings, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Booking, error) {
		var b domain.Booking
		err := row.Scan(bookingDest(&b)...)
		return b, err
	})
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return bookings, nil
}

// UpdateStatus moves the booking from one status to another only if it is
// still in from. It reports whether the row moved.
func (r *BookingRepo) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	from, to domain.BookingStatus,
	adminNotes string,
) (bool, error) {
	const op = "postgres.BookingRepo.UpdateStatus"

	tag, err := r.s.handle(ctx).Exec(ctx, `
		UPDATE bookings
		   SET status = $3,
		       admin_notes = CASE WHEN $4 = '' THEN admin_notes ELSE $4 END,
		       updated_at = NOW()
		 WHERE id = $1 AND status = $2`,
		id, from, to, adminNotes,
	)
	if err != nil {
		return false, wrapDBErr(op, err)
	}

	return tag.RowsAffected() == 1, nil
}

// FindExpiredHolds returns holds whose deadline is before now.
func (r *BookingRepo) FindExpiredHolds(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	const op = "postgres.BookingRepo.FindExpiredHolds"

	rows, err := r.s.handle(ctx).Query(ctx, `
		SELECT id FROM bookings
		 WHERE status = 'HOLD_PENDING_PAYMENT' AND hold_expires_at < $1
		 ORDER BY hold_expires_at`, now)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return ids, nil
}

// MarkExpired moves the given holds to HOLD_EXPIRED and returns only the rows
// this call actually moved. Rows another writer got to first are skipped.
func (r *BookingRepo) MarkExpired(ctx context.Context, ids []uuid.UUID, now time.Time) ([]domain.ExpiredHold, error) {
	const op = "postgres.BookingRepo.MarkExpired"

	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.s.handle(ctx).Query(ctx, `
		UPDATE bookings
		   SET status = 'HOLD_EXPIRED', updated_at = NOW()
		 WHERE id = ANY($1)
		   AND status = 'HOLD_PENDING_PAYMENT'
		   AND hold_expires_at < $2
		RETURNING id, user_id, slot_start`, ids, now)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	expired, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ExpiredHold, error) {
		var e domain.ExpiredHold
		err := row.Scan(&e.BookingID, &e.UserID, &e.SlotStart)
		return e, err
	})
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return expired, nil
}

// PurgeTerminal deletes bookings in a terminal status last touched before
// the cutoff. Payments and jobs cascade.
func (r *BookingRepo) PurgeTerminal(ctx context.Context, before time.Time) (int64, error) {
	const op = "postgres.BookingRepo.PurgeTerminal"

	var closed []string
	for _, st := range domain.ClosedStatuses() {
		closed = append(closed, string(st))
	}

	tag, err := r.s.handle(ctx).Exec(ctx,
		`DELETE FROM bookings WHERE status = ANY($1) AND updated_at < $2`,
		closed, before,
	)
	if err != nil {
		return 0, wrapDBErr(op, err)
	}

	return tag.RowsAffected(), nil
}

// List returns bookings with their payment and job, newest slot first.
func (r *BookingRepo) List(
	ctx context.Context,
	f domain.BookingFilter,
	loc *time.Location,
) ([]domain.BookingDetails, int64, error) {
	const op = "postgres.BookingRepo.List"

	var (
		where []string
		args  []any
	)

	if f.Date != nil {
		day := domain.StartOfDay(*f.Date, loc)
		args = append(args, day, day.AddDate(0, 0, 1))
		where = append(where, fmt.Sprintf("b.slot_start >= $%d AND b.slot_start < $%d", len(args)-1, len(args)))
	}

	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("b.status = $%d", len(args)))
	}

	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	db := r.s.handle(ctx)

	var total int64
	if err := db.QueryRow(ctx, `SELECT COUNT(*) FROM bookings b`+cond, args...).Scan(&total); err != nil {
		return nil, 0, wrapDBErr(op, err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}

	args = append(args, limit, f.Offset)
	query := `
		SELECT` + bookingColumns + `,
		       p.booking_id, p.method, p.amount_minor, p.status, p.slip_path, p.paid_at, p.verification_notes,
		       j.booking_id, j.assignee, j.phase, j.notes, j.started_at, j.finished_at
		  FROM bookings b
		  LEFT JOIN payments p ON p.booking_id = b.id
		  LEFT JOIN jobs j ON j.booking_id = b.id` + cond +
		fmt.Sprintf(" ORDER BY b.slot_start DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, wrapDBErr(op, err)
	}

	out, err := pgx.CollectRows(rows, scanBookingDetails)
	if err != nil {
		return nil, 0, wrapDBErr(op, err)
	}

	return out, total, nil
}

func scanBookingDetails(row pgx.CollectableRow) (domain.BookingDetails, error) {
	var (
		d domain.BookingDetails

		payID      *uuid.UUID
		payMethod  *string
		payAmount  *int64
		payStatus  *string
		paySlip    *string
		payPaidAt  *time.Time
		payNotes   *string
		jobID      *uuid.UUID
		jobAssign  *string
		jobPhase   *string
		jobNotes   *string
		jobStarted *time.Time
		jobEnded   *time.Time
	)

	dest := append(bookingDest(&d.Booking),
		&payID, &payMethod, &payAmount, &payStatus, &paySlip, &payPaidAt, &payNotes,
		&jobID, &jobAssign, &jobPhase, &jobNotes, &jobStarted, &jobEnded,
	)
	if err := row.Scan(dest...); err != nil {
		return d, err
	}

	if payID != nil {
		d.Payment = &domain.Payment{
			BookingID:         *payID,
			Method:            deref(payMethod),
			AmountMinor:       derefInt(payAmount),
			Status:            domain.PaymentStatus(deref(payStatus)),
			SlipPath:          deref(paySlip),
			PaidAt:            payPaidAt,
			VerificationNotes: deref(payNotes),
		}
	}

	if jobID != nil {
		d.Job = &domain.Job{
			BookingID:  *jobID,
			Assignee:   deref(jobAssign),
			Phase:      domain.JobPhase(deref(jobPhase)),
			Notes:      deref(jobNotes),
			StartedAt:  jobStarted,
			FinishedAt: jobEnded,
		}
	}

	return d, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(n *int64) int64 {
	if n == nil {
		return 0
	}
	return *n
}

// CountByStatus counts bookings whose slot starts in [from, to). An empty
// statuses slice counts every status.
func (r *BookingRepo) CountByStatus(
	ctx context.Context,
	statuses []domain.BookingStatus,
	from, to time.Time,
) (int64, error) {
	const op = "postgres.BookingRepo.CountByStatus"

	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}

	var n int64
	if err := r.s.handle(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM bookings
		 WHERE slot_start >= $1 AND slot_start < $2
		   AND (cardinality($3::text[]) = 0 OR status = ANY($3))`,
		from, to, names,
	).Scan(&n); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return n, nil
}

// CountWithStatus counts bookings in any of the statuses regardless of slot.
func (r *BookingRepo) CountWithStatus(ctx context.Context, statuses []domain.BookingStatus) (int64, error) {
	const op = "postgres.BookingRepo.CountWithStatus"

	if len(statuses) == 0 {
		return 0, nil
	}

	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}

	var n int64
	if err := r.s.handle(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM bookings WHERE status = ANY($1)`, names,
	).Scan(&n); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return n, nil
}
