package postgresrepo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/washq/internal/domain"
)

type JobRepo struct {
	s *Store
}

func (r *JobRepo) Get(ctx context.Context, bookingID uuid.UUID) (*domain.Job, error) {
	const op = "postgres.JobRepo.Get"

	var j domain.Job
	if err := r.s.handle(ctx).QueryRow(ctx, `
		SELECT booking_id, assignee, phase, notes, started_at, finished_at
		  FROM jobs WHERE booking_id = $1`, bookingID,
	).Scan(&j.BookingID, &j.Assignee, &j.Phase, &j.Notes, &j.StartedAt, &j.FinishedAt); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &j, nil
}

// Assign creates the job in the pickup phase or reassigns an existing one.
func (r *JobRepo) Assign(ctx context.Context, bookingID uuid.UUID, assignee string) error {
	const op = "postgres.JobRepo.Assign"

	if _, err := r.s.handle(ctx).Exec(ctx, `
		INSERT INTO jobs (booking_id, assignee, phase)
		VALUES ($1, $2, $3)
		ON CONFLICT (booking_id) DO UPDATE SET assignee = EXCLUDED.assignee`,
		bookingID, assignee, domain.PhasePickup,
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// UpdatePhase upserts the job phase. started_at is set once; finished_at is
// only written when finishedAt is non-nil. Empty notes keep the stored ones.
func (r *JobRepo) UpdatePhase(
	ctx context.Context,
	bookingID uuid.UUID,
	phase domain.JobPhase,
	notes string,
	now time.Time,
	finishedAt *time.Time,
) error {
	const op = "postgres.JobRepo.UpdatePhase"

	if _, err := r.s.handle(ctx).Exec(ctx, `
		INSERT INTO jobs (booking_id, phase, notes, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (booking_id) DO UPDATE
		   SET phase = EXCLUDED.phase,
		       notes = COALESCE(NULLIF(EXCLUDED.notes, ''), jobs.notes),
		       started_at = COALESCE(jobs.started_at, EXCLUDED.started_at),
		       finished_at = COALESCE(EXCLUDED.finished_at, jobs.finished_at)`,
		bookingID, phase, notes, now, finishedAt,
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}
