package admin_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kirinyoku/washq/internal/clock"
	"github.com/kirinyoku/washq/internal/domain"
	"github.com/kirinyoku/washq/internal/service/admin"
	"github.com/kirinyoku/washq/internal/service/booking"
	"github.com/kirinyoku/washq/internal/service/booking/bookingtest"
	"github.com/kirinyoku/washq/internal/uow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bkk = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Bangkok")
	if err != nil {
		panic(err)
	}
	return loc
}()

type memSettings struct {
	*bookingtest.Channels
	hours     []domain.BusinessHours
	overrides map[string]domain.SlotOverride
}

func (m *memSettings) ListBusinessHours(context.Context) ([]domain.BusinessHours, error) {
	return m.hours, nil
}

func (m *memSettings) UpsertBusinessHours(_ context.Context, hours []domain.BusinessHours) error {
	m.hours = append(m.hours[:0], hours...)
	return nil
}

func (m *memSettings) UpsertOverride(_ context.Context, o domain.SlotOverride) error {
	m.overrides[o.Date+o.SlotStart.String()] = o
	return nil
}

func (m *memSettings) DeleteOverride(_ context.Context, date string, start time.Time) error {
	delete(m.overrides, date+start.String())
	return nil
}

type days struct {
	invalidated []time.Time
}

func (d *days) InvalidateDay(_ context.Context, day time.Time) {
	d.invalidated = append(d.invalidated, day)
}

type txRunner struct {
	calls int
}

func (r *txRunner) RunTx(ctx context.Context, opts *pgx.TxOptions, fn func(ctx context.Context) error) error {
	r.calls++
	return uow.Direct{}.RunTx(ctx, opts, fn)
}

type env struct {
	tx       *txRunner
	clock    *clock.Manual
	bookings *bookingtest.Bookings
	payments *bookingtest.Payments
	jobs     *bookingtest.Jobs
	capacity *bookingtest.Capacity
	notifier *bookingtest.Notifier
	settings *memSettings
	slips    *bookingtest.Slips
	days     *days
	svc      *admin.Service
}

func newEnv() *env {
	e := &env{
		tx:       &txRunner{},
		clock:    clock.NewManual(time.Date(2025, 3, 10, 9, 0, 0, 0, bkk), bkk),
		bookings: bookingtest.NewBookings(),
		payments: bookingtest.NewPayments(),
		jobs:     bookingtest.NewJobs(),
		capacity: bookingtest.NewCapacity(),
		notifier: &bookingtest.Notifier{},
		settings: &memSettings{Channels: &bookingtest.Channels{}, overrides: map[string]domain.SlotOverride{}},
		slips:    &bookingtest.Slips{},
		days:     &days{},
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	u := uow.New(e.tx)
	machine := booking.NewMachine(e.bookings, e.jobs, e.capacity, e.notifier, u, e.clock, log)
	e.svc = admin.New(machine, e.payments, e.jobs, e.bookings, e.settings, e.days, e.slips, u, e.clock, log)

	return e
}

func (e *env) staged(status domain.BookingStatus, slot time.Time) domain.Booking {
	b := domain.Booking{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		SlotStart:     slot,
		Status:        status,
		HoldExpiresAt: e.clock.Now().Add(10 * time.Minute),
	}
	e.bookings.Put(b)
	_ = e.payments.Create(context.Background(), &domain.Payment{BookingID: b.ID, Status: domain.PaymentUnderReview})
	return b
}

func TestTransitionToConfirmedConfirmsOnce(t *testing.T) {
	e := newEnv()
	slot := time.Date(2025, 3, 11, 10, 0, 0, 0, bkk)
	b := e.staged(domain.StatusAwaitShopConfirm, slot)

	got, err := e.svc.Transition(context.Background(), b.ID, domain.StatusConfirmed, "", "admin-1")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusConfirmed, got.Status)
	assert.Equal(t, 1, e.capacity.Count(e.capacity.Confirms, slot))
	assert.Equal(t, 0, e.capacity.Total(e.capacity.Releases))

	sent := e.notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, domain.StatusConfirmed, sent[0].Status)
}

func TestTransitionSkippingStatesRejected(t *testing.T) {
	e := newEnv()
	b := e.staged(domain.StatusPickedUp, time.Date(2025, 3, 11, 10, 0, 0, 0, bkk))

	_, err := e.svc.Transition(context.Background(), b.ID, domain.StatusCompleted, "", "admin-1")

	var ite *domain.InvalidTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, domain.StatusPickedUp, ite.From)
	assert.Equal(t, domain.StatusCompleted, ite.To)
	assert.Contains(t, err.Error(), "invalid transition from PICKED_UP to COMPLETED")
}

func TestTransitionUnknownBookingAndStatus(t *testing.T) {
	e := newEnv()

	_, err := e.svc.Transition(context.Background(), uuid.New(), domain.StatusConfirmed, "", "a")
	require.ErrorIs(t, err, domain.ErrBookingNotFound)

	_, err = e.svc.Transition(context.Background(), uuid.New(), "DONE", "", "a")
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestTransitionStoresAdminNotes(t *testing.T) {
	e := newEnv()
	b := e.staged(domain.StatusConfirmed, time.Date(2025, 3, 11, 10, 0, 0, 0, bkk))

	_, err := e.svc.Transition(context.Background(), b.ID, domain.StatusCancelled, "customer called", "a")
	require.NoError(t, err)

	got, err := e.bookings.Get(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, "customer called", got.AdminNotes)
	assert.Equal(t, 1, e.capacity.Total(e.capacity.Releases))
}

func TestTransitionWritesJobNotes(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	b := e.staged(domain.StatusPickupAssigned, time.Date(2025, 3, 11, 10, 0, 0, 0, bkk))

	_, err := e.svc.Transition(ctx, b.ID, domain.StatusPickedUp, "scratch on tailgate", "a")
	require.NoError(t, err)

	j, err := e.jobs.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhasePickup, j.Phase)
	assert.Equal(t, "scratch on tailgate", j.Notes)
}

func TestVerifyPayment(t *testing.T) {
	e := newEnv()
	b := e.staged(domain.StatusAwaitShopConfirm, time.Date(2025, 3, 11, 10, 0, 0, 0, bkk))

	got, err := e.svc.VerifyPayment(context.Background(), b.ID, "admin-7")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, got.Status)

	p, err := e.payments.Get(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentVerified, p.Status)
	require.NotNil(t, p.PaidAt)
	assert.Equal(t, 1, e.capacity.Total(e.capacity.Confirms))
}

func TestVerifyPaymentWrongState(t *testing.T) {
	e := newEnv()
	b := e.staged(domain.StatusHoldPendingPayment, time.Date(2025, 3, 11, 10, 0, 0, 0, bkk))

	_, err := e.svc.VerifyPayment(context.Background(), b.ID, "admin-7")
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	p, err := e.payments.Get(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentUnderReview, p.Status)
	assert.Equal(t, 0, e.capacity.Total(e.capacity.Confirms))
}

func TestRejectPayment(t *testing.T) {
	e := newEnv()
	b := e.staged(domain.StatusAwaitShopConfirm, time.Date(2025, 3, 11, 10, 0, 0, 0, bkk))

	_, err := e.svc.RejectPayment(context.Background(), b.ID, "", "a")
	require.ErrorIs(t, err, domain.ErrValidation)

	got, err := e.svc.RejectPayment(context.Background(), b.ID, "amount mismatch", "a")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, got.Status)
	assert.Equal(t, 1, e.capacity.Total(e.capacity.Releases))

	sent := e.notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "amount mismatch", sent[0].Note)
}

func TestAssignRunner(t *testing.T) {
	e := newEnv()
	b := e.staged(domain.StatusConfirmed, time.Date(2025, 3, 11, 10, 0, 0, 0, bkk))

	got, err := e.svc.AssignRunner(context.Background(), b.ID, "somchai", "a")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPickupAssigned, got.Status)

	j, err := e.jobs.Get(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, "somchai", j.Assignee)
	assert.Equal(t, domain.PhasePickup, j.Phase)
	assert.Equal(t, 0, e.capacity.Total(e.capacity.Releases)+e.capacity.Total(e.capacity.Confirms))
}

func TestListBookingsPaging(t *testing.T) {
	e := newEnv()
	for i := 0; i < 5; i++ {
		e.staged(domain.StatusConfirmed, time.Date(2025, 3, 11, 8+i, 0, 0, 0, bkk))
	}
	e.staged(domain.StatusCancelled, time.Date(2025, 3, 12, 8, 0, 0, 0, bkk))

	page, err := e.svc.ListBookings(context.Background(), nil, domain.StatusConfirmed, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.Total)
	assert.Equal(t, int64(3), page.Pages)
	assert.Len(t, page.Bookings, 2)

	day := time.Date(2025, 3, 12, 0, 0, 0, 0, bkk)
	page, err = e.svc.ListBookings(context.Background(), &day, "", 1, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, 20, page.Limit)
}

func TestDashboardStats(t *testing.T) {
	e := newEnv()
	today := time.Date(2025, 3, 10, 14, 0, 0, 0, bkk)

	e.staged(domain.StatusAwaitShopConfirm, today)
	e.staged(domain.StatusInWash, today)
	e.staged(domain.StatusCompleted, today.Add(-2*time.Hour))
	e.staged(domain.StatusConfirmed, today.AddDate(0, 0, -3))

	stats, err := e.svc.DashboardStats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(3), stats.TodayBookings)
	assert.Equal(t, int64(1), stats.PendingPayments)
	assert.Equal(t, int64(1), stats.ActiveJobs)
	assert.Equal(t, int64(1), stats.CompletedToday)
	require.Len(t, stats.Weekly, 7)
	assert.Equal(t, "2025-03-10", stats.Weekly[6].Date)
	assert.Equal(t, int64(3), stats.Weekly[6].Bookings)
	assert.Equal(t, int64(1), stats.Weekly[3].Bookings)
}

func TestUpdateBusinessHoursValidates(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	err := e.svc.UpdateBusinessHours(ctx, []domain.BusinessHours{
		{Weekday: 1, OpenTime: "18:00", CloseTime: "08:00", SlotMinutes: 60},
	})
	require.ErrorIs(t, err, domain.ErrValidation)

	err = e.svc.UpdateBusinessHours(ctx, []domain.BusinessHours{
		{Weekday: 1, OpenTime: "08:00", CloseTime: "18:00", SlotMinutes: 60, DefaultQuota: 2, IsActive: true},
		{Weekday: 1, OpenTime: "09:00", CloseTime: "18:00", SlotMinutes: 60, DefaultQuota: 2, IsActive: true},
	})
	require.ErrorIs(t, err, domain.ErrValidation)

	require.NoError(t, e.svc.UpdateBusinessHours(ctx, []domain.BusinessHours{
		{Weekday: 1, OpenTime: "08:00", CloseTime: "18:00", SlotMinutes: 60, DefaultQuota: 2, IsActive: true},
	}))

	hours, err := e.svc.ListBusinessHours(ctx)
	require.NoError(t, err)
	assert.Len(t, hours, 1)
}

func TestUpsertOverrideInvalidatesDay(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	slot := time.Date(2025, 3, 11, 10, 0, 0, 0, bkk)

	err := e.svc.UpsertOverride(ctx, domain.SlotOverride{Date: "2025-03-12", SlotStart: slot, Closed: true})
	require.ErrorIs(t, err, domain.ErrValidation)

	require.NoError(t, e.svc.UpsertOverride(ctx, domain.SlotOverride{Date: "2025-03-11", SlotStart: slot, Closed: true}))
	require.NoError(t, e.svc.DeleteOverride(ctx, "2025-03-11", slot))

	assert.Len(t, e.days.invalidated, 2)
	assert.Empty(t, e.settings.overrides)
}

func TestOverrideWritesRunInOneTransaction(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	slot := time.Date(2025, 3, 11, 10, 0, 0, 0, bkk)
	q := 8

	require.NoError(t, e.svc.UpsertOverride(ctx, domain.SlotOverride{Date: "2025-03-11", SlotStart: slot, Quota: &q}))
	assert.Equal(t, 1, e.tx.calls)

	require.NoError(t, e.svc.DeleteOverride(ctx, "2025-03-11", slot))
	assert.Equal(t, 2, e.tx.calls)
}

func TestUpdatePaymentChannels(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	got, err := e.svc.UpdatePaymentChannels(ctx, []domain.PaymentChannel{
		{Type: domain.ChannelPromptPay, Name: "shop", Value: "0812345678", IsActive: true},
		{Type: domain.ChannelBankAccount, Name: "kbank", Value: "123-4-56789-0", IsActive: false, DisplayOrder: 1},
	}, nil)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 1, e.tx.calls)

	got, err = e.svc.UpdatePaymentChannels(ctx, []domain.PaymentChannel{
		{Type: domain.ChannelPromptPay, Name: "shop", Value: "0899999999", IsActive: true},
	}, nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "0899999999", got[0].Value)
}

func TestUpdatePaymentChannelsStoresQR(t *testing.T) {
	e := newEnv()

	got, err := e.svc.UpdatePaymentChannels(context.Background(), []domain.PaymentChannel{
		{Type: domain.ChannelQRCode, Name: "main", IsActive: true},
	}, &admin.QRImage{ContentType: "image/png", Data: []byte("png")})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "qr-codes/1.png", got[0].Value)
	assert.Equal(t, 1, e.slips.QRUploads)
}

func TestUpdatePaymentChannelsRejectsBadInput(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	qr := &admin.QRImage{ContentType: "image/png", Data: []byte("png")}

	cases := map[string][]domain.PaymentChannel{
		"empty":        nil,
		"unknown type": {{Type: "cash", Name: "x", Value: "y"}},
		"duplicate": {
			{Type: domain.ChannelPromptPay, Name: "shop", Value: "1"},
			{Type: domain.ChannelPromptPay, Name: "shop", Value: "2"},
		},
		"qr without value": {{Type: domain.ChannelQRCode, Name: "main"}},
	}
	for name, channels := range cases {
		_, err := e.svc.UpdatePaymentChannels(ctx, channels, nil)
		assert.ErrorIs(t, err, domain.ErrValidation, name)
	}

	_, err := e.svc.UpdatePaymentChannels(ctx, []domain.PaymentChannel{
		{Type: domain.ChannelPromptPay, Name: "shop", Value: "1"},
	}, qr)
	assert.ErrorIs(t, err, domain.ErrValidation)

	e.slips.ValidateErr = domain.Invalidf("unsupported image type")
	_, err = e.svc.UpdatePaymentChannels(ctx, []domain.PaymentChannel{{Type: domain.ChannelQRCode, Name: "main"}}, qr)
	assert.ErrorIs(t, err, domain.ErrValidation)

	assert.Equal(t, 0, e.slips.QRUploads)
	assert.Equal(t, 0, e.tx.calls)
}
