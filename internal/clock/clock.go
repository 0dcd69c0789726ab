package clock

import (
	"sync"
	"time"
)

// Clock supplies the current instant in the service time zone. Every
// cutoff, expiry and business-hours comparison goes through one Clock.
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

type zoneClock struct {
	loc *time.Location
}

// NewZone returns a clock backed by time.Now, normalized to loc.
func NewZone(loc *time.Location) Clock {
	return zoneClock{loc: loc}
}

func (c zoneClock) Now() time.Time {
	return time.Now().In(c.loc)
}

func (c zoneClock) Location() *time.Location {
	return c.loc
}

// Manual is a settable clock for tests and replays.
type Manual struct {
	mu  sync.Mutex
	now time.Time
	loc *time.Location
}

func NewManual(t time.Time, loc *time.Location) *Manual {
	return &Manual{now: t.In(loc), loc: loc}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) Location() *time.Location {
	return m.loc
}

func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t.In(m.loc)
	m.mu.Unlock()
}

func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}
