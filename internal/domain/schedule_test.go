package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bangkok(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Bangkok")
	require.NoError(t, err)
	return loc
}

func TestParseClock(t *testing.T) {
	t.Parallel()

	m, err := ParseClock("09:30")
	require.NoError(t, err)
	assert.Equal(t, 570, m)

	m, err = ParseClock("18:00:00")
	require.NoError(t, err)
	assert.Equal(t, 1080, m)

	for _, bad := range []string{"", "9", "25:00", "10:60", "ab:cd", "24:30"} {
		_, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}
}

func TestBusinessHours_Slots(t *testing.T) {
	t.Parallel()
	loc := bangkok(t)

	h := BusinessHours{Weekday: 1, OpenTime: "09:00", CloseTime: "12:30", SlotMinutes: 60, DefaultQuota: 3, IsActive: true}
	day := time.Date(2024, 1, 15, 0, 0, 0, 0, loc)

	slots, err := h.Slots(day, loc)
	require.NoError(t, err)
	require.Len(t, slots, 3)
	assert.Equal(t, time.Date(2024, 1, 15, 9, 0, 0, 0, loc), slots[0])
	assert.Equal(t, time.Date(2024, 1, 15, 11, 0, 0, 0, loc), slots[2])
}

func TestBusinessHours_Validate(t *testing.T) {
	t.Parallel()

	ok := BusinessHours{Weekday: 0, OpenTime: "08:00", CloseTime: "18:00", SlotMinutes: 60, DefaultQuota: 5}
	require.NoError(t, ok.Validate())

	cases := []BusinessHours{
		{Weekday: 7, OpenTime: "08:00", CloseTime: "18:00", SlotMinutes: 60},
		{Weekday: 1, OpenTime: "18:00", CloseTime: "08:00", SlotMinutes: 60},
		{Weekday: 1, OpenTime: "08:00", CloseTime: "18:00", SlotMinutes: 0},
		{Weekday: 1, OpenTime: "08:00", CloseTime: "18:00", SlotMinutes: 60, DefaultQuota: -1},
		{Weekday: 1, OpenTime: "x", CloseTime: "18:00", SlotMinutes: 60},
	}
	for _, c := range cases {
		err := c.Validate()
		assert.ErrorIs(t, err, ErrValidation, "%+v", c)
	}
}

func TestCheckCutoff(t *testing.T) {
	t.Parallel()
	loc := bangkok(t)

	slot := time.Date(2024, 1, 15, 15, 0, 0, 0, loc)
	closing := time.Date(2024, 1, 15, 18, 0, 0, 0, loc)
	cutoff := 15 * time.Minute

	t.Run("bookable one minute before the cutoff", func(t *testing.T) {
		now := slot.Add(-cutoff - time.Minute)
		ok, reason := CheckCutoff(now, slot, closing, cutoff, loc)
		assert.True(t, ok)
		assert.Empty(t, reason)
	})

	t.Run("not bookable one minute after the cutoff", func(t *testing.T) {
		now := slot.Add(-cutoff + time.Minute)
		ok, reason := CheckCutoff(now, slot, closing, cutoff, loc)
		assert.False(t, ok)
		assert.Equal(t, ReasonCutoffPassed, reason)
	})

	t.Run("slot in the past", func(t *testing.T) {
		ok, reason := CheckCutoff(slot.Add(time.Minute), slot, closing, cutoff, loc)
		assert.False(t, ok)
		assert.Equal(t, ReasonSlotInPast, reason)
	})

	t.Run("business closed for today", func(t *testing.T) {
		late := time.Date(2024, 1, 15, 19, 0, 0, 0, loc)
		lateSlot := time.Date(2024, 1, 15, 20, 0, 0, 0, loc)
		ok, reason := CheckCutoff(late.Add(-30*time.Minute), lateSlot, closing, cutoff, loc)
		assert.False(t, ok)
		assert.Equal(t, ReasonBusinessClosed, reason)
	})

	t.Run("future dates skip the same-day rules", func(t *testing.T) {
		now := time.Date(2024, 1, 15, 23, 50, 0, 0, loc)
		tomorrow := time.Date(2024, 1, 16, 0, 0, 0, 0, loc)
		tomorrowClose := time.Date(2024, 1, 16, 18, 0, 0, 0, loc)
		ok, _ := CheckCutoff(now, tomorrow, tomorrowClose, cutoff, loc)
		assert.True(t, ok)
	})
}

func TestSameDayUsesServiceZone(t *testing.T) {
	t.Parallel()
	loc := bangkok(t)

	// 2024-01-15 18:30 UTC is already 2024-01-16 in Bangkok.
	a := time.Date(2024, 1, 15, 18, 30, 0, 0, time.UTC)
	b := time.Date(2024, 1, 16, 9, 0, 0, 0, loc)
	assert.True(t, SameDay(a, b, loc))
	assert.False(t, SameDay(a, b, time.UTC))
	assert.Equal(t, 2, Weekday(a, loc))
}
