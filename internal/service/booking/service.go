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
)

const paymentMethod = "bank_transfer"

// SlipStore validates and persists payment slip images.
type SlipStore interface {
	Validate(data []byte, declared string) (string, error)
	Upload(ctx context.Context, bookingID uuid.UUID, contentType string, data []byte) (string, error)
}

// PaymentChannels lists the active ways to pay a deposit.
type PaymentChannels interface {
	ListPaymentChannels(ctx context.Context, activeOnly bool) ([]domain.PaymentChannel, error)
}

type Config struct {
	HoldTTL        time.Duration
	SlotDuration   time.Duration
	MaxAdvanceDays int
	DepositMinor   int64
	// QRBaseURL prefixes the storage path of a QR payment channel.
	QRBaseURL string
}

type Service struct {
	bookings Bookings
	payments Payments
	jobs     Jobs
	capacity Capacity
	slips    SlipStore
	channels PaymentChannels
	notifier Notifier
	machine  *Machine
	clock    clock.Clock
	log      *slog.Logger
	cfg      Config
}

func New(
	bookings Bookings,
	payments Payments,
	jobs Jobs,
	capacity Capacity,
	slips SlipStore,
	channels PaymentChannels,
	notifier Notifier,
	machine *Machine,
	clk clock.Clock,
	log *slog.Logger,
	cfg Config,
) *Service {
	if cfg.HoldTTL <= 0 {
		cfg.HoldTTL = 15 * time.Minute
	}

	if cfg.SlotDuration <= 0 {
		cfg.SlotDuration = time.Hour
	}

	if cfg.MaxAdvanceDays <= 0 {
		cfg.MaxAdvanceDays = 30
	}

	if log == nil {
		log = slog.Default()
	}

	return &Service{
		bookings: bookings,
		payments: payments,
		jobs:     jobs,
		capacity: capacity,
		slips:    slips,
		channels: channels,
		notifier: notifier,
		machine:  machine,
		clock:    clk,
		log:      log.With("component", "booking"),
		cfg:      cfg,
	}
}

type HoldRequest struct {
	UserID        uuid.UUID
	Services      []string
	Pickup        domain.Point
	Dropoff       *domain.Point
	SamePoint     bool
	SlotStart     time.Time
	PriceEstimate int64
	Notes         string
}

type HoldResult struct {
	BookingID     uuid.UUID `json:"booking_id"`
	SlotStart     time.Time `json:"slot_start"`
	HoldExpiresAt time.Time      `json:"hold_expires_at"`
	DepositMinor  int64          `json:"deposit_minor"`
	PayInfo       domain.PayInfo `json:"pay_info"`
}

// CreateHold books a slot for a customer.
//
// The booking row is written first and the slot reserved second. When the
// reservation fails for any reason the row is deleted again and the caller
// gets a *domain.SlotUnavailableError. When the payment record cannot be
// written the reservation is released and the row deleted.
//
// Returns:
//   - *HoldResult: the new booking and its hold deadline.
//   - error: domain.ErrValidation for malformed or late requests.
//   - error: domain.ErrSlotUnavailable if no capacity could be reserved.
func (s *Service) CreateHold(ctx context.Context, req HoldRequest) (*HoldResult, error) {
	const op = "service.booking.CreateHold"

	if err := s.validateHold(ctx, req); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	now := s.clock.Now()

	dropoff := req.Pickup
	if !req.SamePoint && req.Dropoff != nil {
		dropoff = *req.Dropoff
	}

	b := &domain.Booking{
		ID:            uuid.New(),
		UserID:        req.UserID,
		Services:      req.Services,
		Pickup:        req.Pickup,
		Dropoff:       dropoff,
		SamePoint:     req.SamePoint,
		SlotStart:     req.SlotStart,
		SlotEnd:       req.SlotStart.Add(s.cfg.SlotDuration),
		Status:        domain.StatusHoldPendingPayment,
		PriceEstimate: req.PriceEstimate,
		DepositMinor:  s.cfg.DepositMinor,
		Notes:         req.Notes,
		HoldExpiresAt: now.Add(s.cfg.HoldTTL),
	}

	if err := s.bookings.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	reserved, err := s.capacity.Reserve(ctx, b.SlotStart)
	if err != nil || !reserved {
		if err != nil {
			s.log.ErrorContext(ctx, "reserve failed, rolling back booking", "booking_id", b.ID, "err", err)
		}
		s.rollbackBooking(ctx, b.ID)
		return nil, fmt.Errorf("%s:%w", op, &domain.SlotUnavailableError{SlotStart: b.SlotStart})
	}

	if err := s.payments.Create(ctx, &domain.Payment{
		BookingID:   b.ID,
		Method:      paymentMethod,
		AmountMinor: s.cfg.DepositMinor,
		Status:      domain.PaymentPending,
	}); err != nil {
		if relErr := s.capacity.Release(ctx, b.SlotStart); relErr != nil {
			s.log.ErrorContext(ctx, "release after payment failure failed", "booking_id", b.ID, "err", relErr)
		}
		s.rollbackBooking(ctx, b.ID)
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	s.log.InfoContext(ctx, "hold created",
		"booking_id", b.ID,
		"user_id", b.UserID,
		"slot_start", b.SlotStart,
		"hold_expires_at", b.HoldExpiresAt,
	)

	s.notifier.BookingStatusChanged(ctx, *b, "")

	return &HoldResult{
		BookingID:     b.ID,
		SlotStart:     b.SlotStart,
		HoldExpiresAt: b.HoldExpiresAt,
		DepositMinor:  b.DepositMinor,
		PayInfo:       s.payInfo(ctx, b.DepositMinor),
	}, nil
}

// PaymentChannels lists the channels customers can pay through.
func (s *Service) PaymentChannels(ctx context.Context) ([]domain.PaymentChannel, error) {
	const op = "service.booking.PaymentChannels"

	channels, err := s.channels.ListPaymentChannels(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return channels, nil
}

// payInfo never fails the hold. Without channels the customer still gets
// the deposit amount and can ask the shop how to pay.
func (s *Service) payInfo(ctx context.Context, deposit int64) domain.PayInfo {
	channels, err := s.channels.ListPaymentChannels(ctx, true)
	if err != nil {
		s.log.WarnContext(ctx, "payment channels unavailable", "err", err)
		return domain.PayInfo{DepositMinor: deposit}
	}

	return domain.BuildPayInfo(channels, s.cfg.QRBaseURL, deposit)
}

func (s *Service) rollbackBooking(ctx context.Context, id uuid.UUID) {
	if err := s.bookings.Delete(ctx, id); err != nil {
		s.log.ErrorContext(ctx, "booking rollback failed", "booking_id", id, "err", err)
	}
}

func (s *Service) validateHold(ctx context.Context, req HoldRequest) error {
	if req.UserID == uuid.Nil {
		return domain.Invalidf("user id is required")
	}

	if len(req.Services) == 0 {
		return domain.Invalidf("at least one service is required")
	}

	if req.PriceEstimate < 0 {
		return domain.Invalidf("price estimate must not be negative")
	}

	if req.SlotStart.IsZero() {
		return domain.Invalidf("slot start is required")
	}

	now := s.clock.Now()
	if req.SlotStart.Before(now) {
		return domain.Invalidf("cannot book slots in the past")
	}

	if req.SlotStart.After(now.AddDate(0, 0, s.cfg.MaxAdvanceDays)) {
		return domain.Invalidf("cannot book slots more than %d days in advance", s.cfg.MaxAdvanceDays)
	}

	ok, reason, err := s.capacity.CheckBookable(ctx, req.SlotStart)
	if err != nil {
		return err
	}

	if !ok {
		if reason == domain.ReasonNoBusiness || reason == domain.ReasonOffSchedule {
			return &domain.SlotUnavailableError{SlotStart: req.SlotStart}
		}
		return domain.Invalidf("slot not bookable: %s", reason)
	}

	return nil
}

// UploadPaymentSlip validates the slip, stores it and moves the booking to
// AWAIT_SHOP_CONFIRM. The hold deadline is checked here and again by the
// conditional status update, so a concurrent expiry sweep yields
// domain.ErrHoldExpired rather than a silent overwrite.
func (s *Service) UploadPaymentSlip(
	ctx context.Context,
	userID, bookingID uuid.UUID,
	declaredType string,
	data []byte,
) (*domain.Booking, error) {
	const op = "service.booking.UploadPaymentSlip"

	contentType, err := s.slips.Validate(data, declaredType)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	b, err := s.machine.Load(ctx, bookingID, userID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	switch {
	case b.Status == domain.StatusHoldExpired:
		return nil, fmt.Errorf("%s:%w", op, domain.ErrHoldExpired)
	case b.Status != domain.StatusHoldPendingPayment:
		return nil, fmt.Errorf("%s:%w", op, domain.ErrNotPendingPayment)
	case !b.HoldActive(s.clock.Now()):
		return nil, fmt.Errorf("%s:%w", op, domain.ErrHoldExpired)
	}

	path, err := s.slips.Upload(ctx, b.ID, contentType, data)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	updated, err := s.machine.Apply(ctx, Step{
		BookingID: b.ID,
		Owner:     userID,
		To:        domain.StatusAwaitShopConfirm,
		InTx: func(ctx context.Context, b *domain.Booking) error {
			return s.payments.AttachSlip(ctx, b.ID, path)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return updated, nil
}

// CancelHold lets a customer abandon an unpaid hold.
func (s *Service) CancelHold(ctx context.Context, userID, bookingID uuid.UUID) (*domain.Booking, error) {
	const op = "service.booking.CancelHold"

	b, err := s.machine.Load(ctx, bookingID, userID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if b.Status != domain.StatusHoldPendingPayment {
		return nil, fmt.Errorf("%s:%w", op, domain.ErrNotPendingPayment)
	}

	updated, err := s.machine.Apply(ctx, Step{
		BookingID: bookingID,
		Owner:     userID,
		To:        domain.StatusCancelled,
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return updated, nil
}

// GetBooking returns the booking with its payment and job when present. A
// non-nil owner hides bookings of other users.
func (s *Service) GetBooking(ctx context.Context, id, owner uuid.UUID) (*domain.BookingDetails, error) {
	const op = "service.booking.GetBooking"

	b, err := s.machine.Load(ctx, id, owner)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	d := &domain.BookingDetails{Booking: *b}

	p, err := s.payments.Get(ctx, id)
	switch {
	case err == nil:
		d.Payment = p
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	j, err := s.jobs.Get(ctx, id)
	switch {
	case err == nil:
		d.Job = j
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return d, nil
}

func (s *Service) ListUserBookings(ctx context.Context, userID uuid.UUID) ([]domain.Booking, error) {
	const op = "service.booking.ListUserBookings"

	bookings, err := s.bookings.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return bookings, nil
}
