package booking_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/washq/internal/domain"
	"github.com/kirinyoku/washq/internal/service/booking"
	"github.com/kirinyoku/washq/internal/uow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *env) staged(status domain.BookingStatus) domain.Booking {
	b := domain.Booking{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		SlotStart:     time.Date(2025, 3, 11, 10, 0, 0, 0, bkk),
		Status:        status,
		HoldExpiresAt: e.clock.Now().Add(10 * time.Minute),
	}
	e.bookings.Put(b)
	return b
}

func TestTransitionTableAgainstMachine(t *testing.T) {
	for _, from := range domain.AllStatuses() {
		for _, to := range domain.AllStatuses() {
			e := newEnv()
			b := e.staged(from)

			_, err := e.machine.Apply(context.Background(), booking.Step{BookingID: b.ID, To: to})

			if domain.CanTransition(from, to) {
				assert.NoError(t, err, "%s -> %s", from, to)
				continue
			}

			var ite *domain.InvalidTransitionError
			require.ErrorAs(t, err, &ite, "%s -> %s", from, to)
			assert.Equal(t, from, ite.From)
			assert.Equal(t, to, ite.To)

			got, _ := e.bookings.Get(context.Background(), b.ID)
			assert.Equal(t, from, got.Status)
		}
	}
}

func TestCapacityEffectsCalledOnce(t *testing.T) {
	cases := []struct {
		from, to          domain.BookingStatus
		confirms, release int
	}{
		{domain.StatusAwaitShopConfirm, domain.StatusConfirmed, 1, 0},
		{domain.StatusAwaitShopConfirm, domain.StatusRejected, 0, 1},
		{domain.StatusHoldPendingPayment, domain.StatusCancelled, 0, 1},
		{domain.StatusHoldPendingPayment, domain.StatusHoldExpired, 0, 1},
		{domain.StatusConfirmed, domain.StatusCancelled, 0, 1},
		{domain.StatusConfirmed, domain.StatusPickupAssigned, 0, 0},
		{domain.StatusInWash, domain.StatusReadyForReturn, 0, 0},
	}

	for _, tc := range cases {
		e := newEnv()
		b := e.staged(tc.from)

		_, err := e.machine.Apply(context.Background(), booking.Step{BookingID: b.ID, To: tc.to})
		require.NoError(t, err)

		assert.Equal(t, tc.confirms, e.capacity.Total(e.capacity.Confirms), "%s -> %s", tc.from, tc.to)
		assert.Equal(t, tc.release, e.capacity.Total(e.capacity.Releases), "%s -> %s", tc.from, tc.to)
		assert.Equal(t, 0, e.capacity.Total(e.capacity.Reserves))
	}
}

func TestPickedUpToCompletedRejected(t *testing.T) {
	e := newEnv()
	b := e.staged(domain.StatusPickedUp)

	_, err := e.machine.Apply(context.Background(), booking.Step{BookingID: b.ID, To: domain.StatusCompleted})

	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	var ite *domain.InvalidTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, domain.InvalidTransitionError{From: domain.StatusPickedUp, To: domain.StatusCompleted}, *ite)
	assert.Empty(t, e.notifier.Sent())
}

func TestConfirmFailureStillCommits(t *testing.T) {
	e := newEnv()
	b := e.staged(domain.StatusAwaitShopConfirm)
	e.capacity.ConfirmErr = errors.New("ledger down")

	got, err := e.machine.Apply(context.Background(), booking.Step{BookingID: b.ID, To: domain.StatusConfirmed})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, got.Status)
	require.Len(t, e.notifier.Sent(), 1)
}

func TestFulfillmentPhaseRecorded(t *testing.T) {
	e := newEnv()
	b := e.staged(domain.StatusOnTheWayReturn)

	_, err := e.machine.Apply(context.Background(), booking.Step{BookingID: b.ID, To: domain.StatusCompleted})
	require.NoError(t, err)

	j, err := e.jobs.Get(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseReturn, j.Phase)
	assert.NotNil(t, j.FinishedAt)
}

func TestFulfillmentNotesRecorded(t *testing.T) {
	e := newEnv()
	b := e.staged(domain.StatusPickupAssigned)
	ctx := context.Background()

	_, err := e.machine.Apply(ctx, booking.Step{
		BookingID:  b.ID,
		To:         domain.StatusPickedUp,
		AdminNotes: "scratch on rear bumper",
	})
	require.NoError(t, err)

	j, err := e.jobs.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhasePickup, j.Phase)
	assert.Equal(t, "scratch on rear bumper", j.Notes)

	_, err = e.machine.Apply(ctx, booking.Step{BookingID: b.ID, To: domain.StatusInWash})
	require.NoError(t, err)

	j, err = e.jobs.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseWash, j.Phase)
	assert.Equal(t, "scratch on rear bumper", j.Notes)
}

func TestEffectsWaitForOuterCommit(t *testing.T) {
	e := newEnv()
	b := e.staged(domain.StatusAwaitShopConfirm)
	ctx := context.Background()

	err := e.uow.Do(ctx, func(ctx context.Context, _ func(uow.AfterCommit)) error {
		got, err := e.machine.Apply(ctx, booking.Step{BookingID: b.ID, To: domain.StatusConfirmed})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusConfirmed, got.Status)

		assert.Equal(t, 0, e.capacity.Total(e.capacity.Confirms))
		assert.Empty(t, e.notifier.Sent())
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 1, e.capacity.Total(e.capacity.Confirms))
	assert.Len(t, e.notifier.Sent(), 1)
}

func TestEffectsDroppedWhenOuterUnitFails(t *testing.T) {
	e := newEnv()
	b := e.staged(domain.StatusAwaitShopConfirm)

	err := e.uow.Do(context.Background(), func(ctx context.Context, _ func(uow.AfterCommit)) error {
		_, err := e.machine.Apply(ctx, booking.Step{BookingID: b.ID, To: domain.StatusRejected})
		require.NoError(t, err)
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	assert.Equal(t, 0, e.capacity.Total(e.capacity.Releases))
	assert.Empty(t, e.notifier.Sent())
}

func TestJobFailureDoesNotFailTransition(t *testing.T) {
	e := newEnv()
	b := e.staged(domain.StatusPickedUp)
	e.jobs.PhaseErr = errors.New("jobs table locked")

	got, err := e.machine.Apply(context.Background(), booking.Step{BookingID: b.ID, To: domain.StatusInWash})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInWash, got.Status)
}

func TestConcurrentWriterWinsReportsCurrentStatus(t *testing.T) {
	e := newEnv()
	b := e.staged(domain.StatusAwaitShopConfirm)
	e.bookings.BeforeUpdate = func(id uuid.UUID) {
		e.bookings.SetStatus(id, domain.StatusRejected)
	}

	_, err := e.machine.Apply(context.Background(), booking.Step{BookingID: b.ID, To: domain.StatusConfirmed})

	var ite *domain.InvalidTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, domain.StatusRejected, ite.From)
	assert.Equal(t, 0, e.capacity.Total(e.capacity.Confirms))
}

func TestInTxErrorAbortsSideEffects(t *testing.T) {
	e := newEnv()
	b := e.staged(domain.StatusAwaitShopConfirm)

	_, err := e.machine.Apply(context.Background(), booking.Step{
		BookingID: b.ID,
		To:        domain.StatusConfirmed,
		InTx:      func(context.Context, *domain.Booking) error { return assert.AnError },
	})
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 0, e.capacity.Total(e.capacity.Confirms))
	assert.Empty(t, e.notifier.Sent())
}

func TestApplyUnknownBooking(t *testing.T) {
	e := newEnv()
	_, err := e.machine.Apply(context.Background(), booking.Step{BookingID: uuid.New(), To: domain.StatusConfirmed})
	require.ErrorIs(t, err, domain.ErrBookingNotFound)
}
