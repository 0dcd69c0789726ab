package admin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/washq/internal/clock"
	"github.com/kirinyoku/washq/internal/domain"
	"github.com/kirinyoku/washq/internal/service/booking"
	"github.com/kirinyoku/washq/internal/uow"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

var activeJobStatuses = []domain.BookingStatus{
	domain.StatusPickupAssigned,
	domain.StatusPickedUp,
	domain.StatusInWash,
	domain.StatusReadyForReturn,
	domain.StatusOnTheWayReturn,
}

type Lister interface {
	List(ctx context.Context, f domain.BookingFilter, loc *time.Location) ([]domain.BookingDetails, int64, error)
	CountByStatus(ctx context.Context, statuses []domain.BookingStatus, from, to time.Time) (int64, error)
	CountWithStatus(ctx context.Context, statuses []domain.BookingStatus) (int64, error)
}

type Settings interface {
	ListBusinessHours(ctx context.Context) ([]domain.BusinessHours, error)
	UpsertBusinessHours(ctx context.Context, hours []domain.BusinessHours) error
	UpsertOverride(ctx context.Context, o domain.SlotOverride) error
	DeleteOverride(ctx context.Context, date string, slotStart time.Time) error
	ListPaymentChannels(ctx context.Context, activeOnly bool) ([]domain.PaymentChannel, error)
	UpsertPaymentChannels(ctx context.Context, channels []domain.PaymentChannel) error
}

// QRStore validates and stores payment QR images.
type QRStore interface {
	Validate(data []byte, declared string) (string, error)
	UploadQR(ctx context.Context, contentType string, data []byte) (string, error)
}

// DayInvalidator drops cached availability after settings change.
type DayInvalidator interface {
	InvalidateDay(ctx context.Context, day time.Time)
}

// Service is the operator-facing gate over the booking lifecycle. Every
// status change goes through the shared lifecycle machine, so the capacity
// side effects match the customer paths exactly.
type Service struct {
	machine  *booking.Machine
	payments booking.Payments
	jobs     booking.Jobs
	lister   Lister
	settings Settings
	days     DayInvalidator
	qr       QRStore
	uow      *uow.UoW
	clock    clock.Clock
	log      *slog.Logger
}

func New(
	machine *booking.Machine,
	payments booking.Payments,
	jobs booking.Jobs,
	lister Lister,
	settings Settings,
	days DayInvalidator,
	qr QRStore,
	u *uow.UoW,
	clk clock.Clock,
	log *slog.Logger,
) *Service {
	if log == nil {
		log = slog.Default()
	}

	return &Service{
		machine:  machine,
		payments: payments,
		jobs:     jobs,
		lister:   lister,
		settings: settings,
		days:     days,
		qr:       qr,
		uow:      u,
		clock:    clk,
		log:      log.With("component", "admin"),
	}
}

// Transition applies an operator-requested status change.
//
// Parameters:
//   - ctx: request-scoped context.
//   - id: booking to move.
//   - next: requested status.
//   - notes: optional admin notes stored on the booking.
//   - adminID: operator performing the change, for the audit log.
//
// Returns:
//   - *domain.Booking: the booking after the change.
//   - error: domain.ErrBookingNotFound if the booking does not exist.
//   - error: *domain.InvalidTransitionError naming the attempted pair.
func (s *Service) Transition(
	ctx context.Context,
	id uuid.UUID,
	next domain.BookingStatus,
	notes string,
	adminID string,
) (*domain.Booking, error) {
	const op = "service.admin.Transition"

	if !next.Valid() {
		return nil, fmt.Errorf("%s:%w", op, domain.Invalidf("unknown status %q", next))
	}

	b, err := s.machine.Apply(ctx, booking.Step{
		BookingID:  id,
		To:         next,
		AdminNotes: notes,
		Note:       notes,
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	s.log.InfoContext(ctx, "admin transition", "booking_id", id, "to", next, "admin_id", adminID)

	return b, nil
}

// VerifyPayment marks the payment verified and confirms the booking.
func (s *Service) VerifyPayment(ctx context.Context, id uuid.UUID, adminID string) (*domain.Booking, error) {
	const op = "service.admin.VerifyPayment"

	now := s.clock.Now()

	b, err := s.machine.Apply(ctx, booking.Step{
		BookingID:  id,
		To:         domain.StatusConfirmed,
		AdminNotes: "Payment verified by admin " + adminID,
		InTx: func(ctx context.Context, b *domain.Booking) error {
			return s.payments.SetStatus(ctx, b.ID, domain.PaymentVerified, "Verified by admin "+adminID, &now)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return b, nil
}

// RejectPayment rejects the slip and releases the slot.
func (s *Service) RejectPayment(ctx context.Context, id uuid.UUID, reason, adminID string) (*domain.Booking, error) {
	const op = "service.admin.RejectPayment"

	if reason == "" {
		return nil, fmt.Errorf("%s:%w", op, domain.Invalidf("rejection reason is required"))
	}

	b, err := s.machine.Apply(ctx, booking.Step{
		BookingID:  id,
		To:         domain.StatusRejected,
		AdminNotes: fmt.Sprintf("Payment rejected by admin %s: %s", adminID, reason),
		Note:       reason,
		InTx: func(ctx context.Context, b *domain.Booking) error {
			return s.payments.SetStatus(ctx, b.ID, domain.PaymentRejected, reason, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return b, nil
}

// AssignRunner creates the fulfillment job and moves the booking to
// PICKUP_ASSIGNED.
func (s *Service) AssignRunner(ctx context.Context, id uuid.UUID, assignee, adminID string) (*domain.Booking, error) {
	const op = "service.admin.AssignRunner"

	if assignee == "" {
		return nil, fmt.Errorf("%s:%w", op, domain.Invalidf("assignee is required"))
	}

	b, err := s.machine.Apply(ctx, booking.Step{
		BookingID:  id,
		To:         domain.StatusPickupAssigned,
		AdminNotes: fmt.Sprintf("Runner %s assigned by admin %s", assignee, adminID),
		InTx: func(ctx context.Context, b *domain.Booking) error {
			return s.jobs.Assign(ctx, b.ID, assignee)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return b, nil
}

// ListBookings pages through bookings. page is 1-based.
func (s *Service) ListBookings(
	ctx context.Context,
	date *time.Time,
	status domain.BookingStatus,
	page, limit int,
) (*domain.BookingPage, error) {
	const op = "service.admin.ListBookings"

	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%s:%w", op, domain.Invalidf("unknown status %q", status))
	}

	if page < 1 {
		page = 1
	}

	switch {
	case limit <= 0:
		limit = defaultPageSize
	case limit > maxPageSize:
		limit = maxPageSize
	}

	bookings, total, err := s.lister.List(ctx, domain.BookingFilter{
		Date:   date,
		Status: status,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}, s.clock.Location())
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if bookings == nil {
		bookings = []domain.BookingDetails{}
	}

	return &domain.BookingPage{
		Bookings: bookings,
		Page:     page,
		Limit:    limit,
		Total:    total,
		Pages:    (total + int64(limit) - 1) / int64(limit),
	}, nil
}

// DashboardStats aggregates today's counters and a seven day trend.
func (s *Service) DashboardStats(ctx context.Context) (*domain.DashboardStats, error) {
	const op = "service.admin.DashboardStats"

	loc := s.clock.Location()
	today := domain.StartOfDay(s.clock.Now(), loc)
	tomorrow := today.AddDate(0, 0, 1)

	var (
		stats  domain.DashboardStats
		weekly = make([]domain.DayCount, 7)
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		stats.TodayBookings, err = s.lister.CountByStatus(gctx, nil, today, tomorrow)
		return err
	})
	g.Go(func() (err error) {
		stats.PendingPayments, err = s.lister.CountWithStatus(gctx, []domain.BookingStatus{domain.StatusAwaitShopConfirm})
		return err
	})
	g.Go(func() (err error) {
		stats.ActiveJobs, err = s.lister.CountWithStatus(gctx, activeJobStatuses)
		return err
	})
	g.Go(func() (err error) {
		stats.CompletedToday, err = s.lister.CountByStatus(gctx, []domain.BookingStatus{domain.StatusCompleted}, today, tomorrow)
		return err
	})

	for i := 0; i < 7; i++ {
		day := today.AddDate(0, 0, i-6)
		g.Go(func() error {
			n, err := s.lister.CountByStatus(gctx, nil, day, day.AddDate(0, 0, 1))
			if err != nil {
				return err
			}
			weekly[i] = domain.DayCount{Date: day.Format(domain.DateLayout), Bookings: n}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	stats.Weekly = weekly

	return &stats, nil
}
