package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/washq/internal/domain"
	"github.com/kirinyoku/washq/internal/repository"
)

type Recipients interface {
	Recipient(ctx context.Context, userID uuid.UUID) (domain.Recipient, error)
}

// Dispatcher turns lifecycle events into LINE messages. Every failure is
// logged and dropped; callers never observe delivery errors.
type Dispatcher struct {
	recipients Recipients
	sender     Notifier
	loc        *time.Location
	timeout    time.Duration
	log        *slog.Logger
}

func NewDispatcher(recipients Recipients, sender Notifier, loc *time.Location, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		recipients: recipients,
		sender:     sender,
		loc:        loc,
		timeout:    5 * time.Second,
		log:        log.With(slog.String("component", "notify")),
	}
}

func (d *Dispatcher) BookingStatusChanged(ctx context.Context, b domain.Booking, note string) {
	log := d.log.With(
		slog.String("booking_id", b.ID.String()),
		slog.String("status", string(b.Status)),
	)

	text, ok := Render(b, note, d.loc)
	if !ok {
		return
	}

	// The request context may already be done once the handler returns.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	r, err := d.recipients.Recipient(ctx, b.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Debug("no LINE recipient for user", slog.String("user_id", b.UserID.String()))
			return
		}
		log.Warn("failed to resolve recipient", slog.Any("error", err))
		return
	}

	if err := d.sender.Send(ctx, Message{To: r.LineUserID, Text: text, BookingID: b.ID}); err != nil {
		log.Warn("failed to send notification", slog.Any("error", err))
		return
	}

	log.Debug("notification sent")
}
