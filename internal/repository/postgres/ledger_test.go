package postgresrepo

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/washq/internal/domain"
	"github.com/kirinyoku/washq/internal/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTZ = "Asia/Bangkok"

// newTestStore connects to WASHQ_TEST_DSN and applies migrations. Tests are
// skipped when the variable is unset.
func newTestStore(t *testing.T) (*Store, *pgxpool.Pool) {
	t.Helper()

	dsn := os.Getenv("WASHQ_TEST_DSN")
	if dsn == "" {
		t.Skip("WASHQ_TEST_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := postgres.New(ctx, postgres.Config{DSN: dsn, MaxConns: 32, Migrate: true})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return NewStore(pool, testTZ), pool
}

// futureSlot picks a slot far enough ahead that parallel runs do not collide.
func futureSlot(t *testing.T, s *Store, quota int) time.Time {
	t.Helper()

	loc, err := time.LoadLocation(testTZ)
	require.NoError(t, err)

	day := time.Now().In(loc).AddDate(1, 0, int(time.Now().UnixNano()%300))
	slot := time.Date(day.Year(), day.Month(), day.Day(), 10, 0, 0, 0, loc)

	q := quota
	require.NoError(t, s.Settings().UpsertOverride(context.Background(), domain.SlotOverride{
		Date:      slot.Format(domain.DateLayout),
		SlotStart: slot,
		Quota:     &q,
		Reason:    "test " + uuid.NewString(),
	}))

	t.Cleanup(func() {
		ctx := context.Background()
		_ = s.Settings().DeleteOverride(ctx, slot.Format(domain.DateLayout), slot)
		_, _ = s.pool.Exec(ctx, `DELETE FROM slot_counters WHERE slot_start = $1`, slot)
	})

	return slot
}

func counterFor(t *testing.T, s *Store, slot time.Time) domain.SlotCounter {
	t.Helper()

	counters, err := s.Ledger().CountersForDay(context.Background(), slot.Format(domain.DateLayout))
	require.NoError(t, err)

	for _, c := range counters {
		if c.SlotStart.Equal(slot) {
			return c
		}
	}

	t.Fatalf("no counter for %s", slot)
	return domain.SlotCounter{}
}

func TestReserveSlotNeverOversells(t *testing.T) {
	s, _ := newTestStore(t)
	slot := futureSlot(t, s, 5)

	var (
		wg  sync.WaitGroup
		won atomic.Int64
	)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.Ledger().ReserveSlot(context.Background(), slot)
			assert.NoError(t, err)
			if ok {
				won.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(5), won.Load())
	assert.Equal(t, 5, counterFor(t, s, slot).ReservedCount)
}

func TestReleaseAndConfirmKeepCounterInvariants(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	slot := futureSlot(t, s, 2)

	ok, err := s.Ledger().ReserveSlot(ctx, slot)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, s.Ledger().ConfirmSlot(ctx, slot))
	require.NoError(t, s.Ledger().ConfirmSlot(ctx, slot))

	c := counterFor(t, s, slot)
	assert.Equal(t, 1, c.ReservedCount)
	assert.Equal(t, 1, c.ConfirmedCount)

	require.NoError(t, s.Ledger().ReleaseSlot(ctx, slot))
	require.NoError(t, s.Ledger().ReleaseSlot(ctx, slot))

	c = counterFor(t, s, slot)
	assert.Equal(t, 0, c.ReservedCount)
	assert.Equal(t, 0, c.ConfirmedCount)
}

func TestClosedOverrideRejectsReserve(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	slot := futureSlot(t, s, 3)

	require.NoError(t, s.Settings().UpsertOverride(ctx, domain.SlotOverride{
		Date:      slot.Format(domain.DateLayout),
		SlotStart: slot,
		Closed:    true,
	}))

	ok, err := s.Ledger().ReserveSlot(ctx, slot)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRunTxRollsBackOnError(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	slot := futureSlot(t, s, 3)

	err := s.RunTx(ctx, nil, func(ctx context.Context) error {
		ok, err := s.Ledger().ReserveSlot(ctx, slot)
		require.NoError(t, err)
		require.True(t, ok)
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	counters, err := s.Ledger().CountersForDay(ctx, slot.Format(domain.DateLayout))
	require.NoError(t, err)
	for _, c := range counters {
		if c.SlotStart.Equal(slot) {
			assert.Equal(t, 0, c.ReservedCount)
		}
	}
}

func TestReserveSlotRejectsOffGridInstants(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	slot := futureSlot(t, s, 3)

	for _, off := range []time.Time{
		slot.Add(time.Minute),
		slot.Add(time.Second),
		time.Date(slot.Year(), slot.Month(), slot.Day(), 3, 0, 0, 0, slot.Location()),
		time.Date(slot.Year(), slot.Month(), slot.Day(), 23, 0, 0, 0, slot.Location()),
	} {
		ok, err := s.Ledger().ReserveSlot(ctx, off)
		require.NoError(t, err)
		assert.False(t, ok, off.String())
	}

	counters, err := s.Ledger().CountersForDay(ctx, slot.Format(domain.DateLayout))
	require.NoError(t, err)
	for _, c := range counters {
		assert.True(t, c.SlotStart.Equal(slot), "unexpected counter at %s", c.SlotStart)
	}
}

func TestDeleteOverrideRestoresDefaultQuota(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	slot := futureSlot(t, s, 10)
	date := slot.Format(domain.DateLayout)

	hours, err := s.Settings().BusinessHoursFor(ctx, domain.Weekday(slot, slot.Location()))
	require.NoError(t, err)

	ok, err := s.Ledger().ReserveSlot(ctx, slot)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 10, counterFor(t, s, slot).Quota)

	require.NoError(t, s.Settings().DeleteOverride(ctx, date, slot))
	assert.Equal(t, hours.DefaultQuota, counterFor(t, s, slot).Quota)

	q := 7
	require.NoError(t, s.Settings().UpsertOverride(ctx, domain.SlotOverride{Date: date, SlotStart: slot, Quota: &q}))
	assert.Equal(t, 7, counterFor(t, s, slot).Quota)

	require.NoError(t, s.Settings().UpsertOverride(ctx, domain.SlotOverride{Date: date, SlotStart: slot, Reason: "quota cleared"}))
	assert.Equal(t, hours.DefaultQuota, counterFor(t, s, slot).Quota)

	for i := 1; i < hours.DefaultQuota; i++ {
		ok, err := s.Ledger().ReserveSlot(ctx, slot)
		require.NoError(t, err)
		require.True(t, ok)
	}

	ok, err = s.Ledger().ReserveSlot(ctx, slot)
	require.NoError(t, err)
	assert.False(t, ok)
}
