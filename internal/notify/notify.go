// Package notify delivers booking status messages to customers over LINE.
package notify

import (
	"context"

	"github.com/google/uuid"
)

// Message is a single text push to one LINE user.
type Message struct {
	To        string    `json:"to"`
	Text      string    `json:"text"`
	BookingID uuid.UUID `json:"booking_id"`
}

// Notifier sends a message. The LINE client pushes directly, the queue
// defers delivery to the worker.
type Notifier interface {
	Send(ctx context.Context, m Message) error
}
