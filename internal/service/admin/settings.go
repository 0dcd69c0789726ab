package admin

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/kirinyoku/washq/internal/domain"
	"github.com/kirinyoku/washq/internal/uow"
)

func (s *Service) ListBusinessHours(ctx context.Context) ([]domain.BusinessHours, error) {
	const op = "service.admin.ListBusinessHours"

	hours, err := s.settings.ListBusinessHours(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return hours, nil
}

// UpdateBusinessHours validates every entry and writes them in one
// transaction. Weekdays may appear at most once.
func (s *Service) UpdateBusinessHours(ctx context.Context, hours []domain.BusinessHours) error {
	const op = "service.admin.UpdateBusinessHours"

	if len(hours) == 0 {
		return fmt.Errorf("%s:%w", op, domain.Invalidf("no business hours given"))
	}

	seen := make(map[int]bool, len(hours))
	for _, h := range hours {
		if err := h.Validate(); err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}
		if seen[h.Weekday] {
			return fmt.Errorf("%s:%w", op, domain.Invalidf("duplicate weekday %d", h.Weekday))
		}
		seen[h.Weekday] = true
	}

	err := s.uow.Do(ctx, func(ctx context.Context, _ func(uow.AfterCommit)) error {
		return s.settings.UpsertBusinessHours(ctx, hours)
	})
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	s.log.InfoContext(ctx, "business hours updated", "weekdays", len(hours))

	return nil
}

// UpsertOverride closes a slot or changes its quota for one date.
func (s *Service) UpsertOverride(ctx context.Context, o domain.SlotOverride) error {
	const op = "service.admin.UpsertOverride"

	if err := s.validateOverride(o.Date, o.SlotStart); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if o.Quota != nil && *o.Quota < 0 {
		return fmt.Errorf("%s:%w", op, domain.Invalidf("quota must not be negative"))
	}

	err := s.uow.Do(ctx, func(ctx context.Context, _ func(uow.AfterCommit)) error {
		return s.settings.UpsertOverride(ctx, o)
	})
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	s.days.InvalidateDay(ctx, o.SlotStart)

	return nil
}

func (s *Service) DeleteOverride(ctx context.Context, date string, slotStart time.Time) error {
	const op = "service.admin.DeleteOverride"

	if err := s.validateOverride(date, slotStart); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	err := s.uow.Do(ctx, func(ctx context.Context, _ func(uow.AfterCommit)) error {
		return s.settings.DeleteOverride(ctx, date, slotStart)
	})
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	s.days.InvalidateDay(ctx, slotStart)

	return nil
}

func (s *Service) validateOverride(date string, slotStart time.Time) error {
	loc := s.clock.Location()

	day, err := domain.ParseDate(date, loc)
	if err != nil {
		return err
	}

	if slotStart.IsZero() || !domain.SameDay(day, slotStart, loc) {
		return domain.Invalidf("slot start must fall on %s", date)
	}

	return nil
}

// QRImage is an uploaded QR code for the qr_code payment channel.
type QRImage struct {
	ContentType string
	Data        []byte
}

// ListPaymentChannels returns every channel, disabled ones included.
func (s *Service) ListPaymentChannels(ctx context.Context) ([]domain.PaymentChannel, error) {
	const op = "service.admin.ListPaymentChannels"

	channels, err := s.settings.ListPaymentChannels(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return channels, nil
}

// UpdatePaymentChannels upserts the given channels. When qr is set the
// image is stored and its path becomes the value of every qr_code channel
// in the request.
func (s *Service) UpdatePaymentChannels(
	ctx context.Context,
	channels []domain.PaymentChannel,
	qr *QRImage,
) ([]domain.PaymentChannel, error) {
	const op = "service.admin.UpdatePaymentChannels"

	if len(channels) == 0 {
		return nil, fmt.Errorf("%s:%w", op, domain.Invalidf("no payment channels given"))
	}

	type key struct {
		t    domain.ChannelType
		name string
	}
	seen := make(map[key]bool, len(channels))
	hasQR := false

	for _, c := range channels {
		if c.Type == domain.ChannelQRCode && qr != nil {
			// filled with the uploaded path below
			hasQR = true
			c.Value = "qr"
		}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
		k := key{c.Type, c.Name}
		if seen[k] {
			return nil, fmt.Errorf("%s:%w", op, domain.Invalidf("duplicate payment channel %s/%s", c.Type, c.Name))
		}
		seen[k] = true
	}

	if qr != nil {
		if !hasQR {
			return nil, fmt.Errorf("%s:%w", op, domain.Invalidf("qr image given without a qr_code channel"))
		}

		contentType, err := s.qr.Validate(qr.Data, qr.ContentType)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}

		path, err := s.qr.UploadQR(ctx, contentType, qr.Data)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}

		channels = slices.Clone(channels)
		for i := range channels {
			if channels[i].Type == domain.ChannelQRCode {
				channels[i].Value = path
			}
		}
	}

	err := s.uow.Do(ctx, func(ctx context.Context, _ func(uow.AfterCommit)) error {
		return s.settings.UpsertPaymentChannels(ctx, channels)
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	s.log.InfoContext(ctx, "payment channels updated", "channels", len(channels), "qr_uploaded", qr != nil)

	return s.ListPaymentChannels(ctx)
}
