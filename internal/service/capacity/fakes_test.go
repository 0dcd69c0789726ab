package capacity

import (
	"context"
	"sync"
	"time"

	"github.com/kirinyoku/washq/internal/domain"
	"github.com/kirinyoku/washq/internal/repository"
)

// memLedger emulates the storage procedures: each call is one critical
// section, the same guarantee the row lock gives in Postgres.
type memLedger struct {
	mu       sync.Mutex
	quota    map[int64]int
	counters map[int64]*domain.SlotCounter
	failNext error

	reserves, releases, confirms int
}

func newMemLedger() *memLedger {
	return &memLedger{
		quota:    map[int64]int{},
		counters: map[int64]*domain.SlotCounter{},
	}
}

func (l *memLedger) setQuota(slot time.Time, q int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.quota[slot.Unix()] = q
}

func (l *memLedger) counter(slot time.Time) domain.SlotCounter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok := l.counters[slot.Unix()]; ok {
		return *c
	}
	return domain.SlotCounter{SlotStart: slot, Quota: l.quota[slot.Unix()]}
}

func (l *memLedger) ReserveSlot(_ context.Context, slot time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.reserves++
	if err := l.failNext; err != nil {
		l.failNext = nil
		return false, err
	}

	c, ok := l.counters[slot.Unix()]
	if !ok {
		c = &domain.SlotCounter{SlotStart: slot, Quota: l.quota[slot.Unix()]}
		l.counters[slot.Unix()] = c
	}

	if c.ReservedCount >= c.Quota {
		return false, nil
	}
	c.ReservedCount++

	return true, nil
}

func (l *memLedger) ReleaseSlot(_ context.Context, slot time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.releases++
	if err := l.failNext; err != nil {
		l.failNext = nil
		return err
	}

	if c, ok := l.counters[slot.Unix()]; ok {
		if c.ReservedCount > 0 {
			c.ReservedCount--
		}
		if c.ConfirmedCount > c.ReservedCount {
			c.ConfirmedCount = c.ReservedCount
		}
	}

	return nil
}

func (l *memLedger) ConfirmSlot(_ context.Context, slot time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.confirms++
	if c, ok := l.counters[slot.Unix()]; ok && c.ConfirmedCount < c.ReservedCount {
		c.ConfirmedCount++
	}

	return nil
}

func (l *memLedger) CountersForDay(_ context.Context, date string) ([]domain.SlotCounter, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []domain.SlotCounter
	for _, c := range l.counters {
		if c.SlotStart.In(testLoc).Format(domain.DateLayout) == date {
			out = append(out, *c)
		}
	}
	return out, nil
}

type memSettings struct {
	hours     map[int]domain.BusinessHours
	overrides map[string][]domain.SlotOverride
}

func newMemSettings() *memSettings {
	hours := map[int]domain.BusinessHours{}
	for wd := 0; wd < 7; wd++ {
		hours[wd] = domain.BusinessHours{
			Weekday:      wd,
			OpenTime:     "08:00",
			CloseTime:    "18:00",
			SlotMinutes:  60,
			DefaultQuota: 3,
			IsActive:     true,
		}
	}
	return &memSettings{hours: hours, overrides: map[string][]domain.SlotOverride{}}
}

func (s *memSettings) BusinessHoursFor(_ context.Context, wd int) (*domain.BusinessHours, error) {
	h, ok := s.hours[wd]
	if !ok || !h.IsActive {
		return nil, repository.ErrNotFound
	}
	return &h, nil
}

func (s *memSettings) OverridesForDay(_ context.Context, date string) ([]domain.SlotOverride, error) {
	return s.overrides[date], nil
}

type recordingCache struct {
	mu          sync.Mutex
	invalidated []string
}

func (c *recordingCache) GetDay(
	ctx context.Context,
	_ string,
	load func(ctx context.Context) (domain.DayAvailability, error),
) (domain.DayAvailability, error) {
	return load(ctx)
}

func (c *recordingCache) InvalidateDay(_ context.Context, date string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, date)
	return nil
}
