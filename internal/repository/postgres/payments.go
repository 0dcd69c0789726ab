package postgresrepo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/washq/internal/domain"
	"github.com/kirinyoku/washq/internal/repository"
)

type PaymentRepo struct {
	s *Store
}

func (r *PaymentRepo) Create(ctx context.Context, p *domain.Payment) error {
	const op = "postgres.PaymentRepo.Create"

	if _, err := r.s.handle(ctx).Exec(ctx, `
		INSERT INTO payments (booking_id, method, amount_minor, status)
		VALUES ($1, $2, $3, $4)`,
		p.BookingID, p.Method, p.AmountMinor, p.Status,
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *PaymentRepo) Get(ctx context.Context, bookingID uuid.UUID) (*domain.Payment, error) {
	const op = "postgres.PaymentRepo.Get"

	var p domain.Payment
	if err := r.s.handle(ctx).QueryRow(ctx, `
		SELECT booking_id, method, amount_minor, status, slip_path, paid_at, verification_notes
		  FROM payments WHERE booking_id = $1`, bookingID,
	).Scan(&p.BookingID, &p.Method, &p.AmountMinor, &p.Status, &p.SlipPath, &p.PaidAt, &p.VerificationNotes); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &p, nil
}

// AttachSlip records the uploaded slip and puts the payment under review.
func (r *PaymentRepo) AttachSlip(ctx context.Context, bookingID uuid.UUID, path string) error {
	const op = "postgres.PaymentRepo.AttachSlip"

	tag, err := r.s.handle(ctx).Exec(ctx, `
		UPDATE payments
		   SET slip_path = $2, status = $3
		 WHERE booking_id = $1`,
		bookingID, path, domain.PaymentUnderReview,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return wrapDBErr(op, repository.ErrNotFound)
	}

	return nil
}

// SetStatus records a verification outcome. paidAt is only written when set.
func (r *PaymentRepo) SetStatus(
	ctx context.Context,
	bookingID uuid.UUID,
	status domain.PaymentStatus,
	notes string,
	paidAt *time.Time,
) error {
	const op = "postgres.PaymentRepo.SetStatus"

	tag, err := r.s.handle(ctx).Exec(ctx, `
		UPDATE payments
		   SET status = $2,
		       verification_notes = $3,
		       paid_at = COALESCE($4, paid_at)
		 WHERE booking_id = $1`,
		bookingID, status, notes, paidAt,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return wrapDBErr(op, repository.ErrNotFound)
	}

	return nil
}
