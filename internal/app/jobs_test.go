package app

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/washq/internal/clock"
	"github.com/kirinyoku/washq/internal/config"
	"github.com/kirinyoku/washq/internal/domain"
	"github.com/kirinyoku/washq/internal/scheduler"
	"github.com/kirinyoku/washq/internal/service/booking/bookingtest"
	"github.com/kirinyoku/washq/internal/service/sweeper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noCounters struct{}

func (noCounters) EnsureCounters(context.Context, string, []time.Time, int) (int64, error) {
	return 0, nil
}

type noHours struct{}

func (noHours) BusinessHoursFor(context.Context, int) (*domain.BusinessHours, error) {
	return &domain.BusinessHours{OpenTime: "08:00", CloseTime: "10:00", SlotMinutes: 60, DefaultQuota: 1}, nil
}

func jobByName(t *testing.T, jobs []scheduler.Job, name string) scheduler.Job {
	t.Helper()
	for _, j := range jobs {
		if j.Name == name {
			return j
		}
	}
	t.Fatalf("job %s not registered", name)
	return scheduler.Job{}
}

func TestMaintenanceJobsLogEachRunOnce(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	clk := clock.NewManual(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC), time.UTC)
	bookings := bookingtest.NewBookings()
	bookings.Put(domain.Booking{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		SlotStart:     clk.Now().Add(time.Hour),
		Status:        domain.StatusHoldPendingPayment,
		HoldExpiresAt: clk.Now().Add(-time.Minute),
	})

	sw := sweeper.New(bookings, bookingtest.NewCapacity(), noCounters{}, noHours{}, &bookingtest.Notifier{}, clk, log, sweeper.Config{})
	jobs := maintenanceJobs(sw, config.JobsConfig{
		SweepSpec:       "@every 1m",
		CleanupSpec:     "0 2 * * *",
		PregenerateSpec: "0 1 * * *",
	})
	require.Len(t, jobs, 3)

	for name, line := range map[string]string{
		"expire_holds":         "expired holds swept",
		"cleanup":              "terminal bookings purged",
		"pregenerate_counters": "slot counters pregenerated",
	} {
		buf.Reset()
		require.NoError(t, jobByName(t, jobs, name).Run(context.Background()), name)
		assert.Equal(t, 1, strings.Count(buf.String(), line), name)
	}
}

func TestRegisterJobsRejectsBadSpec(t *testing.T) {
	clk := clock.NewManual(time.Now(), time.UTC)
	sw := sweeper.New(bookingtest.NewBookings(), bookingtest.NewCapacity(), noCounters{}, noHours{}, &bookingtest.Notifier{}, clk, nil, sweeper.Config{})

	err := registerJobs(scheduler.New(time.UTC, nil), sw, config.JobsConfig{
		SweepSpec:       "not a spec",
		CleanupSpec:     "0 2 * * *",
		PregenerateSpec: "0 1 * * *",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expire_holds")
}
