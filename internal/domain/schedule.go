package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

const (
	ReasonSlotInPast     = "slot in the past"
	ReasonBusinessClosed = "business closed for today"
	ReasonCutoffPassed   = "cutoff passed"
	ReasonSlotClosed     = "slot closed"
	ReasonSlotFull       = "slot full"
	ReasonNoBusiness     = "no business hours"
	ReasonOffSchedule    = "not a scheduled slot start"
)

// ParseClock parses "HH:MM" or "HH:MM:SS" into minutes after midnight.
func ParseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid clock %q", s)
	}

	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 24 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}

	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}

	if h == 24 && m != 0 {
		return 0, fmt.Errorf("invalid clock %q", s)
	}

	return h*60 + m, nil
}

// StartOfDay returns local midnight of t in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func SameDay(a, b time.Time, loc *time.Location) bool {
	a, b = a.In(loc), b.In(loc)
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// ParseDate parses a YYYY-MM-DD calendar date as local midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, Invalidf("invalid date %q", s)
	}
	return d, nil
}

// Weekday returns 0 for Sunday through 6 for Saturday.
func Weekday(t time.Time, loc *time.Location) int {
	return int(t.In(loc).Weekday())
}

func (h BusinessHours) Validate() error {
	if h.Weekday < 0 || h.Weekday > 6 {
		return Invalidf("invalid weekday: %d", h.Weekday)
	}

	open, err := ParseClock(h.OpenTime)
	if err != nil {
		return Invalidf("invalid open time for weekday %d", h.Weekday)
	}

	closing, err := ParseClock(h.CloseTime)
	if err != nil {
		return Invalidf("invalid close time for weekday %d", h.Weekday)
	}

	if closing <= open {
		return Invalidf("close time must be after open time for weekday %d", h.Weekday)
	}

	if h.SlotMinutes <= 0 {
		return Invalidf("slot minutes must be positive for weekday %d", h.Weekday)
	}

	if h.DefaultQuota < 0 {
		return Invalidf("default quota must not be negative for weekday %d", h.Weekday)
	}

	return nil
}

func atMinutes(day time.Time, minutes int, loc *time.Location) time.Time {
	d := StartOfDay(day, loc)
	return time.Date(d.Year(), d.Month(), d.Day(), minutes/60, minutes%60, 0, 0, loc)
}

// ClosingOn returns the business closing instant on the calendar day of day.
func (h BusinessHours) ClosingOn(day time.Time, loc *time.Location) (time.Time, error) {
	closing, err := ParseClock(h.CloseTime)
	if err != nil {
		return time.Time{}, err
	}
	return atMinutes(day, closing, loc), nil
}

// Slots generates the slot start instants of day. A slot is only emitted
// when it ends at or before closing time.
func (h BusinessHours) Slots(day time.Time, loc *time.Location) ([]time.Time, error) {
	open, err := ParseClock(h.OpenTime)
	if err != nil {
		return nil, err
	}

	closing, err := ParseClock(h.CloseTime)
	if err != nil {
		return nil, err
	}

	if h.SlotMinutes <= 0 {
		return nil, fmt.Errorf("slot minutes must be positive")
	}

	step := time.Duration(h.SlotMinutes) * time.Minute
	start := atMinutes(day, open, loc)
	end := atMinutes(day, closing, loc)

	var out []time.Time
	for cur := start; !cur.Add(step).After(end); cur = cur.Add(step) {
		out = append(out, cur)
	}

	return out, nil
}

// DayBookable is false once now is past closing on the same calendar day.
func DayBookable(now, closing time.Time, loc *time.Location) bool {
	if SameDay(now, closing, loc) && now.After(closing) {
		return false
	}
	return true
}

// CheckCutoff applies the same-day bookability rule to a single slot.
func CheckCutoff(
	now time.Time,
	slotStart time.Time,
	closing time.Time,
	cutoff time.Duration,
	loc *time.Location,
) (bool, string) {
	if slotStart.Before(now) {
		return false, ReasonSlotInPast
	}

	if !DayBookable(now, closing, loc) {
		return false, ReasonBusinessClosed
	}

	if SameDay(slotStart, now, loc) && now.After(slotStart.Add(-cutoff)) {
		return false, ReasonCutoffPassed
	}

	return true, ""
}
