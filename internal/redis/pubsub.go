package redisx

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// SlotChanged is broadcast whenever a slot counter or override moves.
type SlotChanged struct {
	Type      string `json:"type"`
	Date      string `json:"date"`
	SlotStart string `json:"slot_start"`
	TsUnix    int64  `json:"ts_unix"`
}

type SlotsPubSub struct {
	rdb     *redis.Client
	channel string
}

func NewSlotsPubSub(rdb *redis.Client) *SlotsPubSub {
	return &SlotsPubSub{
		rdb:     rdb,
		channel: ChannelSlotsChanged(),
	}
}

func (p *SlotsPubSub) PublishSlotChanged(ctx context.Context, date string, slotStart time.Time) error {
	msg := SlotChanged{
		Type:      "slot_changed",
		Date:      date,
		SlotStart: slotMember(slotStart),
		TsUnix:    time.Now().Unix(),
	}

	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return p.rdb.Publish(ctx, p.channel, b).Err()
}

// Subscribe blocks delivering decoded messages to handler until ctx ends.
func (p *SlotsPubSub) Subscribe(ctx context.Context, handler func(ctx context.Context, msg SlotChanged)) error {
	sub := p.rdb.Subscribe(ctx, p.channel)
	defer sub.Close()

	ch := sub.Channel(redis.WithChannelSize(256))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var ev SlotChanged
			if err := json.Unmarshal([]byte(m.Payload), &ev); err == nil && ev.Date != "" {
				handler(ctx, ev)
			}
		}
	}
}
