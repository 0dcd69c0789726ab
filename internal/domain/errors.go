package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrSlotUnavailable   = errors.New("slot no longer available")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrHoldExpired       = errors.New("hold expired")
	ErrBookingNotFound   = errors.New("booking not found")
	ErrNotPendingPayment = errors.New("booking is not pending payment")
	ErrValidation        = errors.New("validation failed")
)

type SlotUnavailableError struct {
	SlotStart time.Time
}

func (e *SlotUnavailableError) Error() string {
	return fmt.Sprintf("slot at %s is no longer available", e.SlotStart.Format(time.RFC3339))
}

func (e *SlotUnavailableError) Is(target error) bool {
	return target == ErrSlotUnavailable
}

type InvalidTransitionError struct {
	From BookingStatus
	To   BookingStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func Invalidf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}
