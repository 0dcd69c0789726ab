package domain

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	StatusHoldPendingPayment BookingStatus = "HOLD_PENDING_PAYMENT"
	StatusAwaitShopConfirm   BookingStatus = "AWAIT_SHOP_CONFIRM"
	StatusConfirmed          BookingStatus = "CONFIRMED"
	StatusPickupAssigned     BookingStatus = "PICKUP_ASSIGNED"
	StatusPickedUp           BookingStatus = "PICKED_UP"
	StatusInWash             BookingStatus = "IN_WASH"
	StatusReadyForReturn     BookingStatus = "READY_FOR_RETURN"
	StatusOnTheWayReturn     BookingStatus = "ON_THE_WAY_RETURN"
	StatusCompleted          BookingStatus = "COMPLETED"
	StatusReviewed           BookingStatus = "REVIEWED"
	StatusRejected           BookingStatus = "REJECTED"
	StatusHoldExpired        BookingStatus = "HOLD_EXPIRED"
	StatusCancelled          BookingStatus = "CANCELLED"
	StatusNoShow             BookingStatus = "NO_SHOW"
)

type PaymentStatus string

const (
	PaymentPending     PaymentStatus = "PENDING"
	PaymentUnderReview PaymentStatus = "UNDER_REVIEW"
	PaymentVerified    PaymentStatus = "VERIFIED"
	PaymentRejected    PaymentStatus = "REJECTED"
)

type JobPhase string

const (
	PhasePickup JobPhase = "pickup"
	PhaseWash   JobPhase = "wash"
	PhaseReturn JobPhase = "return"
)

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Booking struct {
	ID            uuid.UUID     `json:"id"`
	UserID        uuid.UUID     `json:"user_id"`
	Services      []string      `json:"services"`
	Pickup        Point         `json:"pickup"`
	Dropoff       Point         `json:"dropoff"`
	SamePoint     bool          `json:"same_point"`
	SlotStart     time.Time     `json:"slot_start"`
	SlotEnd       time.Time     `json:"slot_end"`
	Status        BookingStatus `json:"status"`
	PriceEstimate int64         `json:"price_estimate"`
	DepositMinor  int64         `json:"deposit_minor"`
	Notes         string        `json:"notes,omitempty"`
	AdminNotes    string        `json:"admin_notes,omitempty"`
	HoldExpiresAt time.Time     `json:"hold_expires_at"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// HoldActive reports whether the hold deadline is still ahead of now.
func (b *Booking) HoldActive(now time.Time) bool {
	return !now.After(b.HoldExpiresAt)
}

type BookingDetails struct {
	Booking
	Payment *Payment `json:"payment,omitempty"`
	Job     *Job     `json:"job,omitempty"`
}

type Payment struct {
	BookingID         uuid.UUID     `json:"booking_id"`
	Method            string        `json:"method"`
	AmountMinor       int64         `json:"amount_minor"`
	Status            PaymentStatus `json:"status"`
	SlipPath          string        `json:"slip_path,omitempty"`
	PaidAt            *time.Time    `json:"paid_at,omitempty"`
	VerificationNotes string        `json:"verification_notes,omitempty"`
}

// Job is the fulfillment record of a confirmed booking.
type Job struct {
	BookingID  uuid.UUID  `json:"booking_id"`
	Assignee   string     `json:"assignee,omitempty"`
	Phase      JobPhase   `json:"phase"`
	Notes      string     `json:"notes,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

type SlotCounter struct {
	SlotStart      time.Time `json:"slot_start"`
	Quota          int       `json:"quota"`
	ReservedCount  int       `json:"reserved"`
	ConfirmedCount int       `json:"confirmed"`
}

type SlotOverride struct {
	Date      string    `json:"date"`
	SlotStart time.Time `json:"slot_start"`
	Closed    bool      `json:"closed"`
	Quota     *int      `json:"quota,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

type BusinessHours struct {
	Weekday      int    `json:"weekday"`
	OpenTime     string `json:"open_time"`
	CloseTime    string `json:"close_time"`
	SlotMinutes  int    `json:"slot_minutes"`
	DefaultQuota int    `json:"default_quota"`
	IsActive     bool   `json:"is_active"`
}

type SlotAvailability struct {
	Start     time.Time `json:"start"`
	Quota     int       `json:"quota"`
	Reserved  int       `json:"reserved"`
	Confirmed int       `json:"confirmed"`
	Bookable  bool      `json:"bookable"`
	Reason    string    `json:"reason,omitempty"`
}

type BusinessWindow struct {
	Open        string `json:"open"`
	Close       string `json:"close"`
	SlotMinutes int    `json:"slot_minutes"`
}

type DayAvailability struct {
	Date        string             `json:"date"`
	Business    BusinessWindow     `json:"business"`
	DayBookable bool               `json:"day_bookable"`
	Slots       []SlotAvailability `json:"slots"`
}

// ExpiredHold is a booking the sweeper moved to HOLD_EXPIRED.
type ExpiredHold struct {
	BookingID uuid.UUID
	UserID    uuid.UUID
	SlotStart time.Time
}

type Recipient struct {
	UserID     uuid.UUID
	LineUserID string
}

type BookingFilter struct {
	Date   *time.Time
	Status BookingStatus
	Limit  int
	Offset int
}

type BookingPage struct {
	Bookings []BookingDetails `json:"bookings"`
	Page     int              `json:"page"`
	Limit    int              `json:"limit"`
	Total    int64            `json:"total"`
	Pages    int64            `json:"pages"`
}

type DayCount struct {
	Date     string `json:"date"`
	Bookings int64  `json:"bookings"`
}

type DashboardStats struct {
	TodayBookings   int64      `json:"today_bookings"`
	PendingPayments int64      `json:"pending_payments"`
	ActiveJobs      int64      `json:"active_jobs"`
	CompletedToday  int64      `json:"completed_today"`
	Weekly          []DayCount `json:"weekly"`
}
