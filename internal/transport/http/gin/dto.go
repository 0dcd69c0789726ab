package httpgin

import (
	"time"

	"github.com/kirinyoku/washq/internal/domain"
)

type CreateBookingRequest struct {
	UserID        string        `json:"user_id" binding:"required,uuid"`
	Services      []string      `json:"services" binding:"required,min=1,dive,required"`
	Pickup        domain.Point  `json:"pickup"`
	Dropoff       *domain.Point `json:"dropoff"`
	SamePoint     bool          `json:"same_point"`
	SlotStart     string        `json:"slot_start" binding:"required"`
	PriceEstimate int64         `json:"price_estimate" binding:"gte=0"`
	Notes         string        `json:"notes"`
}

type CancelBookingRequest struct {
	UserID string `json:"user_id" binding:"required,uuid"`
}

type TransitionRequest struct {
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes"`
}

type RejectPaymentRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type AssignRunnerRequest struct {
	Assignee string `json:"assignee" binding:"required"`
}

type BusinessHoursRequest struct {
	Hours []domain.BusinessHours `json:"hours" binding:"required,min=1"`
}

type SlotOverrideRequest struct {
	Date      string `json:"date" binding:"required"`
	SlotStart string `json:"slot_start" binding:"required"`
	Closed    bool   `json:"closed"`
	Quota     *int   `json:"quota"`
	Reason    string `json:"reason"`
}

type PaymentChannelsRequest struct {
	Channels []domain.PaymentChannel `json:"channels" binding:"required,min=1"`
}

type PaymentChannelsResponse struct {
	Channels []domain.PaymentChannel `json:"channels"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type BookingResponse struct {
	Booking *domain.Booking `json:"booking"`
}

func parseRFC3339(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
