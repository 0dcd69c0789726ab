package service

import (
	"log/slog"

	"github.com/kirinyoku/washq/internal/clock"
	redisx "github.com/kirinyoku/washq/internal/redis"
	postgres "github.com/kirinyoku/washq/internal/repository/postgres"
	redis "github.com/kirinyoku/washq/internal/repository/redis"
	"github.com/kirinyoku/washq/internal/service/admin"
	"github.com/kirinyoku/washq/internal/service/booking"
	"github.com/kirinyoku/washq/internal/service/capacity"
	"github.com/kirinyoku/washq/internal/service/sweeper"
	"github.com/kirinyoku/washq/internal/uow"
)

type Services struct {
	Capacity *capacity.Service
	Booking  *booking.Service
	Admin    *admin.Service
	Sweeper  *sweeper.Service
}

// ImageStore keeps slip and payment QR images.
type ImageStore interface {
	booking.SlipStore
	admin.QRStore
}

type Config struct {
	Capacity capacity.Config
	Booking  booking.Config
	Sweeper  sweeper.Config
}

// NewServices wires every service onto one store. Customer actions, the
// admin gate and the sweeper share a single lifecycle machine.
func NewServices(
	store *postgres.Store,
	cache *redis.AvailabilityCache,
	pubsub *redisx.SlotsPubSub,
	images ImageStore,
	notifier booking.Notifier,
	clk clock.Clock,
	logger *slog.Logger,
	cfg Config,
) *Services {
	u := uow.New(store)

	capacitySvc := capacity.New(store.Ledger(), store.Settings(), cache, pubsub, clk, logger, cfg.Capacity)

	machine := booking.NewMachine(store.Bookings(), store.Jobs(), capacitySvc, notifier, u, clk, logger)

	return &Services{
		Capacity: capacitySvc,
		Booking: booking.New(
			store.Bookings(),
			store.Payments(),
			store.Jobs(),
			capacitySvc,
			images,
			store.Settings(),
			notifier,
			machine,
			clk,
			logger,
			cfg.Booking,
		),
		Admin: admin.New(
			machine,
			store.Payments(),
			store.Jobs(),
			store.Bookings(),
			store.Settings(),
			capacitySvc,
			images,
			u,
			clk,
			logger,
		),
		Sweeper: sweeper.New(
			store.Bookings(),
			capacitySvc,
			store.Ledger(),
			store.Settings(),
			notifier,
			clk,
			logger,
			cfg.Sweeper,
		),
	}
}
