package capacity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/kirinyoku/washq/internal/clock"
	"github.com/kirinyoku/washq/internal/domain"
	"github.com/kirinyoku/washq/internal/repository"
)

// Ledger is the slot counter store. Every method must be a single atomic
// storage operation; the service never reads a counter to decide a write.
type Ledger interface {
	ReserveSlot(ctx context.Context, slotStart time.Time) (bool, error)
	ReleaseSlot(ctx context.Context, slotStart time.Time) error
	ConfirmSlot(ctx context.Context, slotStart time.Time) error
	CountersForDay(ctx context.Context, date string) ([]domain.SlotCounter, error)
}

type Settings interface {
	BusinessHoursFor(ctx context.Context, weekday int) (*domain.BusinessHours, error)
	OverridesForDay(ctx context.Context, date string) ([]domain.SlotOverride, error)
}

type DayCache interface {
	GetDay(
		ctx context.Context,
		date string,
		load func(ctx context.Context) (domain.DayAvailability, error),
	) (domain.DayAvailability, error)
	InvalidateDay(ctx context.Context, date string) error
}

type Publisher interface {
	PublishSlotChanged(ctx context.Context, date string, slotStart time.Time) error
}

type Config struct {
	CutOff             time.Duration
	MaxRangeDays       int
	DefaultSlotMinutes int
}

type Service struct {
	ledger   Ledger
	settings Settings
	cache    DayCache
	pub      Publisher
	clock    clock.Clock
	log      *slog.Logger
	cfg      Config
}

// New builds the capacity engine. cache and pub may be nil.
func New(
	ledger Ledger,
	settings Settings,
	cache DayCache,
	pub Publisher,
	clk clock.Clock,
	log *slog.Logger,
	cfg Config,
) *Service {
	if cfg.CutOff < 0 {
		cfg.CutOff = 0
	}

	if cfg.MaxRangeDays <= 0 {
		cfg.MaxRangeDays = 30
	}

	if cfg.DefaultSlotMinutes <= 0 {
		cfg.DefaultSlotMinutes = 60
	}

	if log == nil {
		log = slog.Default()
	}

	return &Service{
		ledger:   ledger,
		settings: settings,
		cache:    cache,
		pub:      pub,
		clock:    clk,
		log:      log.With("component", "capacity"),
		cfg:      cfg,
	}
}

func (s *Service) dateOf(t time.Time) string {
	return t.In(s.clock.Location()).Format(domain.DateLayout)
}

// Reserve claims one unit of capacity. false means the slot is full, closed
// or has no business hours.
func (s *Service) Reserve(ctx context.Context, slotStart time.Time) (bool, error) {
	const op = "service.capacity.Reserve"

	ok, err := s.ledger.ReserveSlot(ctx, slotStart)
	if err != nil {
		s.log.ErrorContext(ctx, "reserve failed", "slot_start", slotStart, "err", err)
		return false, fmt.Errorf("%s:%w", op, err)
	}

	if ok {
		s.changed(ctx, slotStart)
	}

	return ok, nil
}

// Release returns one unit of capacity. Callers release once per logical
// event; the ledger floors the count at zero but does not deduplicate.
func (s *Service) Release(ctx context.Context, slotStart time.Time) error {
	const op = "service.capacity.Release"

	if err := s.ledger.ReleaseSlot(ctx, slotStart); err != nil {
		s.log.ErrorContext(ctx, "release failed", "slot_start", slotStart, "err", err)
		return fmt.Errorf("%s:%w", op, err)
	}

	s.changed(ctx, slotStart)

	return nil
}

func (s *Service) Confirm(ctx context.Context, slotStart time.Time) error {
	const op = "service.capacity.Confirm"

	if err := s.ledger.ConfirmSlot(ctx, slotStart); err != nil {
		s.log.ErrorContext(ctx, "confirm failed", "slot_start", slotStart, "err", err)
		return fmt.Errorf("%s:%w", op, err)
	}

	s.changed(ctx, slotStart)

	return nil
}

// changed drops the cached day and notifies live subscribers.
func (s *Service) changed(ctx context.Context, slotStart time.Time) {
	date := s.dateOf(slotStart)

	if s.cache != nil {
		if err := s.cache.InvalidateDay(ctx, date); err != nil {
			s.log.WarnContext(ctx, "availability cache invalidation failed", "date", date, "err", err)
		}
	}

	if s.pub != nil {
		if err := s.pub.PublishSlotChanged(ctx, date, slotStart); err != nil {
			s.log.WarnContext(ctx, "slot change publish failed", "date", date, "err", err)
		}
	}
}

// InvalidateDay is used after override changes that do not go through the
// ledger procedures.
func (s *Service) InvalidateDay(ctx context.Context, day time.Time) {
	s.changed(ctx, domain.StartOfDay(day, s.clock.Location()))
}

// GetDayAvailability is an advisory snapshot of one calendar day. It grants
// nothing: Reserve is the only permission check.
func (s *Service) GetDayAvailability(ctx context.Context, day time.Time) (domain.DayAvailability, error) {
	const op = "service.capacity.GetDayAvailability"

	date := s.dateOf(day)

	var (
		out domain.DayAvailability
		err error
	)
	if s.cache != nil {
		out, err = s.cache.GetDay(ctx, date, func(ctx context.Context) (domain.DayAvailability, error) {
			return s.loadDay(ctx, day)
		})
	} else {
		out, err = s.loadDay(ctx, day)
	}
	if err != nil {
		return domain.DayAvailability{}, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// GetAvailability returns one entry per calendar day in [start, end].
func (s *Service) GetAvailability(ctx context.Context, start, end time.Time) ([]domain.DayAvailability, error) {
	const op = "service.capacity.GetAvailability"

	loc := s.clock.Location()
	start, end = domain.StartOfDay(start, loc), domain.StartOfDay(end, loc)

	if start.After(end) {
		return nil, fmt.Errorf("%s:%w", op, domain.Invalidf("start date must be before or equal to end date"))
	}

	if end.After(start.AddDate(0, 0, s.cfg.MaxRangeDays)) {
		return nil, fmt.Errorf("%s:%w", op, domain.Invalidf("date range cannot exceed %d days", s.cfg.MaxRangeDays))
	}

	var days []domain.DayAvailability
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		day, err := s.GetDayAvailability(ctx, d)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
		days = append(days, day)
	}

	return days, nil
}

func (s *Service) loadDay(ctx context.Context, day time.Time) (domain.DayAvailability, error) {
	loc := s.clock.Location()
	now := s.clock.Now()
	day = domain.StartOfDay(day, loc)
	date := day.Format(domain.DateLayout)

	bh, err := s.settings.BusinessHoursFor(ctx, domain.Weekday(day, loc))
	if errors.Is(err, repository.ErrNotFound) {
		return domain.DayAvailability{
			Date: date,
			Business: domain.BusinessWindow{
				Open:        "00:00",
				Close:       "00:00",
				SlotMinutes: s.cfg.DefaultSlotMinutes,
			},
			DayBookable: false,
			Slots:       []domain.SlotAvailability{},
		}, nil
	}
	if err != nil {
		return domain.DayAvailability{}, err
	}

	starts, err := bh.Slots(day, loc)
	if err != nil {
		return domain.DayAvailability{}, err
	}

	closing, err := bh.ClosingOn(day, loc)
	if err != nil {
		return domain.DayAvailability{}, err
	}

	counters, err := s.ledger.CountersForDay(ctx, date)
	if err != nil {
		return domain.DayAvailability{}, err
	}

	overrides, err := s.settings.OverridesForDay(ctx, date)
	if err != nil {
		return domain.DayAvailability{}, err
	}

	byStart := make(map[int64]domain.SlotCounter, len(counters))
	for _, c := range counters {
		byStart[c.SlotStart.Unix()] = c
	}

	overrideAt := make(map[int64]domain.SlotOverride, len(overrides))
	for _, o := range overrides {
		overrideAt[o.SlotStart.Unix()] = o
	}

	slots := make([]domain.SlotAvailability, 0, len(starts))
	for _, start := range starts {
		slots = append(slots, s.slotAvailability(now, start, closing, bh.DefaultQuota, byStart, overrideAt))
	}

	return domain.DayAvailability{
		Date: date,
		Business: domain.BusinessWindow{
			Open:        bh.OpenTime,
			Close:       bh.CloseTime,
			SlotMinutes: bh.SlotMinutes,
		},
		DayBookable: domain.DayBookable(now, closing, loc),
		Slots:       slots,
	}, nil
}

func (s *Service) slotAvailability(
	now, start, closing time.Time,
	defaultQuota int,
	counters map[int64]domain.SlotCounter,
	overrides map[int64]domain.SlotOverride,
) domain.SlotAvailability {
	sa := domain.SlotAvailability{
		Start: start,
		Quota: defaultQuota,
	}

	if c, ok := counters[start.Unix()]; ok {
		sa.Quota = c.Quota
		sa.Reserved = c.ReservedCount
		sa.Confirmed = c.ConfirmedCount
	}

	o, hasOverride := overrides[start.Unix()]
	if hasOverride && o.Closed {
		sa.Reason = o.Reason
		if sa.Reason == "" {
			sa.Reason = domain.ReasonSlotClosed
		}
		return sa
	}

	if hasOverride && o.Quota != nil {
		sa.Quota = *o.Quota
	}

	if ok, reason := domain.CheckCutoff(now, start, closing, s.cfg.CutOff, s.clock.Location()); !ok {
		sa.Reason = reason
		return sa
	}

	if sa.Reserved >= sa.Quota {
		sa.Reason = domain.ReasonSlotFull
		return sa
	}

	sa.Bookable = true

	return sa
}

// CheckBookable applies the same rules as the availability view to one slot
// without touching counters. slotStart must be one of the instants the
// day's business hours generate. Used to reject obviously late requests before a
// reservation is attempted.
func (s *Service) CheckBookable(ctx context.Context, slotStart time.Time) (bool, string, error) {
	const op = "service.capacity.CheckBookable"

	loc := s.clock.Location()

	bh, err := s.settings.BusinessHoursFor(ctx, domain.Weekday(slotStart, loc))
	if errors.Is(err, repository.ErrNotFound) {
		return false, domain.ReasonNoBusiness, nil
	}
	if err != nil {
		return false, "", fmt.Errorf("%s:%w", op, err)
	}

	slots, err := bh.Slots(slotStart, loc)
	if err != nil {
		return false, "", fmt.Errorf("%s:%w", op, err)
	}

	if !slices.ContainsFunc(slots, slotStart.Equal) {
		return false, domain.ReasonOffSchedule, nil
	}

	closing, err := bh.ClosingOn(slotStart, loc)
	if err != nil {
		return false, "", fmt.Errorf("%s:%w", op, err)
	}

	ok, reason := domain.CheckCutoff(s.clock.Now(), slotStart, closing, s.cfg.CutOff, loc)

	return ok, reason, nil
}
