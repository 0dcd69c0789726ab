package sweeper

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
	"github.com/kirinyoku/washq/internal/service/booking"
)

type Bookings interface {
	FindExpiredHolds(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	MarkExpired(ctx context.Context, ids []uuid.UUID, now time.Time) ([]domain.ExpiredHold, error)
	PurgeTerminal(ctx context.Context, before time.Time) (int64, error)
}

type Releaser interface {
	Release(ctx context.Context, slotStart time.Time) error
}

type Counters interface {
	EnsureCounters(ctx context.Context, date string, slots []time.Time, quota int) (int64, error)
}

type Hours interface {
	BusinessHoursFor(ctx context.Context, weekday int) (*domain.BusinessHours, error)
}

type Config struct {
	RetentionDays   int
	PregenerateDays int
}

// Service runs the background maintenance jobs. Overlap between runs of the
// same job is prevented by the scheduler, not here.
type Service struct {
	bookings Bookings
	capacity Releaser
	counters Counters
	hours    Hours
	notifier booking.Notifier
	clock    clock.Clock
	log      *slog.Logger
	cfg      Config
}

func New(
	bookings Bookings,
	capacity Releaser,
	counters Counters,
	hours Hours,
	notifier booking.Notifier,
	clk clock.Clock,
	log *slog.Logger,
	cfg Config,
) *Service {
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}

	if cfg.PregenerateDays <= 0 {
		cfg.PregenerateDays = 7
	}

	if log == nil {
		log = slog.Default()
	}

	return &Service{
		bookings: bookings,
		capacity: capacity,
		counters: counters,
		hours:    hours,
		notifier: notifier,
		clock:    clk,
		log:      log.With("component", "sweeper"),
		cfg:      cfg,
	}
}

type SweepResult struct {
	Found    int
	Expired  int
	Released int
	Failed   int
}

// SweepExpired moves overdue holds to HOLD_EXPIRED and releases one unit of
// capacity per booking it moved. Bookings a concurrent customer action got to
// first are not returned by the conditional update and are not released here.
// A failed release is logged and the loop continues.
func (s *Service) SweepExpired(ctx context.Context) (SweepResult, error) {
	const op = "service.sweeper.SweepExpired"

	var res SweepResult
	now := s.clock.Now()

	ids, err := s.bookings.FindExpiredHolds(ctx, now)
	if err != nil {
		return res, fmt.Errorf("%s:%w", op, err)
	}

	res.Found = len(ids)
	if len(ids) == 0 {
		return res, nil
	}

	expired, err := s.bookings.MarkExpired(ctx, ids, now)
	if err != nil {
		return res, fmt.Errorf("%s:%w", op, err)
	}

	res.Expired = len(expired)

	for _, e := range expired {
		if err := s.capacity.Release(ctx, e.SlotStart); err != nil {
			res.Failed++
			s.log.ErrorContext(ctx, "release for expired hold failed",
				"booking_id", e.BookingID,
				"slot_start", e.SlotStart,
				"err", err,
			)
		} else {
			res.Released++
		}

		s.notifier.BookingStatusChanged(ctx, domain.Booking{
			ID:        e.BookingID,
			UserID:    e.UserID,
			SlotStart: e.SlotStart,
			Status:    domain.StatusHoldExpired,
		}, "")
	}

	s.log.InfoContext(ctx, "expired holds swept",
		"found", res.Found,
		"expired", res.Expired,
		"released", res.Released,
		"failed", res.Failed,
	)

	return res, nil
}

// Cleanup deletes terminal bookings untouched for RetentionDays.
func (s *Service) Cleanup(ctx context.Context) (int64, error) {
	const op = "service.sweeper.Cleanup"

	before := s.clock.Now().AddDate(0, 0, -s.cfg.RetentionDays)

	n, err := s.bookings.PurgeTerminal(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	s.log.InfoContext(ctx, "terminal bookings purged", "deleted", n, "before", before)

	return n, nil
}

// Pregenerate materializes zeroed counters for the upcoming days so the
// first reservation of a slot does not pay for the insert.
func (s *Service) Pregenerate(ctx context.Context) (int64, error) {
	const op = "service.sweeper.Pregenerate"

	loc := s.clock.Location()
	today := domain.StartOfDay(s.clock.Now(), loc)

	var created int64
	for i := 1; i <= s.cfg.PregenerateDays; i++ {
		day := today.AddDate(0, 0, i)

		bh, err := s.hours.BusinessHoursFor(ctx, domain.Weekday(day, loc))
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return created, fmt.Errorf("%s:%w", op, err)
		}

		slots, err := bh.Slots(day, loc)
		if err != nil {
			return created, fmt.Errorf("%s:%w", op, err)
		}

		n, err := s.counters.EnsureCounters(ctx, day.Format(domain.DateLayout), slots, bh.DefaultQuota)
		if err != nil {
			return created, fmt.Errorf("%s:%w", op, err)
		}
		created += n
	}

	s.log.InfoContext(ctx, "slot counters pregenerated", "days", s.cfg.PregenerateDays, "created", created)

	return created, nil
}
