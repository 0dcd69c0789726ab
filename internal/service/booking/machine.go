package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/washq/internal/clock"
	"github.com/kirinyoku/washq/internal/domain"
	"github.com/kirinyoku/washq/internal/repository"
	"github.com/kirinyoku/washq/internal/uow"
)

type Bookings interface {
	Create(ctx context.Context, b *domain.Booking) error
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Booking, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.BookingStatus, adminNotes string) (bool, error)
}

type Payments interface {
	Create(ctx context.Context, p *domain.Payment) error
	Get(ctx context.Context, bookingID uuid.UUID) (*domain.Payment, error)
	AttachSlip(ctx context.Context, bookingID uuid.UUID, path string) error
	SetStatus(ctx context.Context, bookingID uuid.UUID, status domain.PaymentStatus, notes string, paidAt *time.Time) error
}

type Jobs interface {
	Get(ctx context.Context, bookingID uuid.UUID) (*domain.Job, error)
	Assign(ctx context.Context, bookingID uuid.UUID, assignee string) error
	UpdatePhase(
		ctx context.Context,
		bookingID uuid.UUID,
		phase domain.JobPhase,
		notes string,
		now time.Time,
		finishedAt *time.Time,
	) error
}

type Capacity interface {
	Reserve(ctx context.Context, slotStart time.Time) (bool, error)
	Release(ctx context.Context, slotStart time.Time) error
	Confirm(ctx context.Context, slotStart time.Time) error
	CheckBookable(ctx context.Context, slotStart time.Time) (bool, string, error)
}

// Notifier delivers status messages. Implementations own their failure
// policy and never report errors back to the lifecycle.
type Notifier interface {
	BookingStatusChanged(ctx context.Context, b domain.Booking, note string)
}

// Step describes one requested status change.
type Step struct {
	BookingID  uuid.UUID
	To         domain.BookingStatus
	AdminNotes string
	// Note is passed to the notifier, e.g. a rejection reason.
	Note string
	// InTx runs in the same transaction as the status update, after the
	// conditional update succeeded.
	InTx func(ctx context.Context, b *domain.Booking) error
	// Owner restricts the step to bookings of this user when set.
	Owner uuid.UUID
}

// Machine applies lifecycle transitions and their side effects. It is the
// single path through which customer actions and the admin gate change a
// booking status.
type Machine struct {
	bookings Bookings
	jobs     Jobs
	capacity Capacity
	notifier Notifier
	uow      *uow.UoW
	clock    clock.Clock
	log      *slog.Logger
}

func NewMachine(
	bookings Bookings,
	jobs Jobs,
	capacity Capacity,
	notifier Notifier,
	u *uow.UoW,
	clk clock.Clock,
	log *slog.Logger,
) *Machine {
	if log == nil {
		log = slog.Default()
	}

	return &Machine{
		bookings: bookings,
		jobs:     jobs,
		capacity: capacity,
		notifier: notifier,
		uow:      u,
		clock:    clk,
		log:      log.With("component", "lifecycle"),
	}
}

// Load fetches a booking, mapping a missing row to domain.ErrBookingNotFound.
// A non-nil owner hides bookings of other users.
func (m *Machine) Load(ctx context.Context, id, owner uuid.UUID) (*domain.Booking, error) {
	b, err := m.bookings.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}

	if owner != uuid.Nil && b.UserID != owner {
		return nil, domain.ErrBookingNotFound
	}

	return b, nil
}

// Apply validates and commits one transition. The capacity effect, the
// fulfillment job update and the notification are registered as after-commit
// hooks, so inside an outer unit they wait for the outer commit.
//
// The status write is conditional on the status observed here. If another
// writer moved the booking first, Apply re-reads it and reports
// domain.ErrHoldExpired when the sweeper won a payment race, or an
// *domain.InvalidTransitionError otherwise. Capacity and job failures after
// commit are logged and never undo the status change.
func (m *Machine) Apply(ctx context.Context, step Step) (*domain.Booking, error) {
	const op = "service.booking.Machine.Apply"

	b, err := m.Load(ctx, step.BookingID, step.Owner)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	from := b.Status
	if err := domain.ValidateTransition(from, step.To); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if from == domain.StatusHoldPendingPayment &&
		step.To == domain.StatusAwaitShopConfirm &&
		!b.HoldActive(m.clock.Now()) {
		return nil, fmt.Errorf("%s:%w", op, domain.ErrHoldExpired)
	}

	next := *b
	next.Status = step.To
	if step.AdminNotes != "" {
		next.AdminNotes = step.AdminNotes
	}

	err = m.uow.Do(ctx, func(ctx context.Context, after func(uow.AfterCommit)) error {
		moved, err := m.bookings.UpdateStatus(ctx, b.ID, from, step.To, step.AdminNotes)
		if err != nil {
			return err
		}

		if !moved {
			return m.lostRace(ctx, b.ID, step.To)
		}

		if step.InTx != nil {
			if err := step.InTx(ctx, b); err != nil {
				return err
			}
		}

		after(func(ctx context.Context) {
			m.log.InfoContext(ctx, "booking transitioned",
				"booking_id", next.ID,
				"from", from,
				"to", next.Status,
			)

			m.applyCapacityEffect(ctx, &next, from, next.Status)
			m.recordPhase(ctx, &next, step.AdminNotes)
			m.notifier.BookingStatusChanged(ctx, next, step.Note)
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &next, nil
}

func (m *Machine) lostRace(ctx context.Context, id uuid.UUID, to domain.BookingStatus) error {
	cur, err := m.bookings.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.ErrBookingNotFound
	}
	if err != nil {
		return err
	}

	if cur.Status == domain.StatusHoldExpired && to == domain.StatusAwaitShopConfirm {
		return domain.ErrHoldExpired
	}

	return &domain.InvalidTransitionError{From: cur.Status, To: to}
}

func (m *Machine) applyCapacityEffect(ctx context.Context, b *domain.Booking, from, to domain.BookingStatus) {
	var err error

	effect := domain.CapacityEffectOf(from, to)
	switch effect {
	case domain.EffectConfirm:
		err = m.capacity.Confirm(ctx, b.SlotStart)
	case domain.EffectRelease:
		err = m.capacity.Release(ctx, b.SlotStart)
	default:
		return
	}

	if err != nil {
		m.log.ErrorContext(ctx, "capacity effect failed after commit",
			"booking_id", b.ID,
			"slot_start", b.SlotStart,
			"effect", effect.String(),
			"err", err,
		)
	}
}

func (m *Machine) recordPhase(ctx context.Context, b *domain.Booking, notes string) {
	phase, ok := domain.FulfillmentPhase(b.Status)
	if !ok {
		return
	}

	now := m.clock.Now()

	var finished *time.Time
	if b.Status == domain.StatusCompleted {
		finished = &now
	}

	if err := m.jobs.UpdatePhase(ctx, b.ID, phase, notes, now, finished); err != nil {
		m.log.WarnContext(ctx, "job phase update failed",
			"booking_id", b.ID,
			"phase", phase,
			"err", err,
		)
	}
}
