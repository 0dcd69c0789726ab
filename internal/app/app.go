package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/washq/internal/clock"
	"github.com/kirinyoku/washq/internal/config"
	"github.com/kirinyoku/washq/internal/notify"
	"github.com/kirinyoku/washq/internal/postgres"
	redisx "github.com/kirinyoku/washq/internal/redis"
	postgresrepo "github.com/kirinyoku/washq/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/washq/internal/repository/redis"
	"github.com/kirinyoku/washq/internal/scheduler"
	"github.com/kirinyoku/washq/internal/service"
	"github.com/kirinyoku/washq/internal/service/booking"
	"github.com/kirinyoku/washq/internal/service/capacity"
	"github.com/kirinyoku/washq/internal/service/chat"
	"github.com/kirinyoku/washq/internal/service/sweeper"
	"github.com/kirinyoku/washq/internal/slips"
	httpgin "github.com/kirinyoku/washq/internal/transport/http/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server

	pool      *pgxpool.Pool
	rdb       *redis.Client
	queue     *asynq.Client
	slipStore *slips.GCSStore

	services  *service.Services
	scheduler *scheduler.Scheduler
	worker    *notify.Worker
	hub       *httpgin.Hub
	pubsub    *redisx.SlotsPubSub
	ipLimiter *httpgin.IPLimiter
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	pgxPool, err := postgres.New(ctx, postgres.Config{
		DSN:      cfg.Postgres.DSN(),
		MaxConns: cfg.Postgres.MaxConns,
		Migrate:  cfg.Postgres.Migrate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}

	redisCfg := redisx.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}
	rdb, err := redisx.New(ctx, redisCfg)
	if err != nil {
		pgxPool.Close()
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	slipStore, err := slips.NewGCSStore(ctx, slips.GCSConfig{
		Bucket:          cfg.Storage.Bucket,
		CredentialsFile: cfg.Storage.CredentialsFile,
	})
	if err != nil {
		pgxPool.Close()
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to initialize slip storage: %w", err)
	}

	loc := cfg.Booking.Location
	clk := clock.NewZone(loc)

	// Initialize repositories
	store := postgresrepo.NewStore(pgxPool, loc.String())
	cache := redisrepo.NewAvailabilityCache(redisrepo.NewCache(rdb), cfg.Booking.AvailabilityCacheTTL)
	pubsub := redisx.NewSlotsPubSub(rdb)
	holdLimiter := redisrepo.NewSlidingWindowLimiter(rdb, "holds", cfg.Server.HoldsPerMinute, time.Minute, nil)
	idempotencyStore := redisrepo.NewIdempotencyStore(rdb, 24*time.Hour)

	// Notifications go through the asynq queue; the worker does the push.
	queueOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}
	queueClient := asynq.NewClient(queueOpt)
	lineClient, err := notify.NewLineClient(cfg.Line.BaseURL, cfg.Line.AccessToken, nil)
	if err != nil {
		pgxPool.Close()
		_ = rdb.Close()
		_ = queueClient.Close()
		_ = slipStore.Close()
		return nil, fmt.Errorf("failed to initialize line client: %w", err)
	}

	dispatcher := notify.NewDispatcher(store.Users(), notify.NewQueue(queueClient), loc, logger)
	worker := notify.NewWorker(
		queueOpt,
		lineClient,
		notify.WorkerConfig{Concurrency: cfg.Notify.Concurrency, RatePerSecond: cfg.Notify.RatePerSecond},
		logger,
	)

	// Initialize services
	services := service.NewServices(store, cache, pubsub, slipStore, dispatcher, clk, logger, service.Config{
		Capacity: capacity.Config{
			CutOff:             cfg.Booking.CutOff,
			MaxRangeDays:       30,
			DefaultSlotMinutes: cfg.Booking.SlotMinutes,
		},
		Booking: booking.Config{
			HoldTTL:        cfg.Booking.HoldTTL,
			SlotDuration:   time.Duration(cfg.Booking.SlotMinutes) * time.Minute,
			MaxAdvanceDays: cfg.Booking.MaxAdvanceDays,
			DepositMinor:   cfg.Booking.DepositMinor,
			QRBaseURL:      cfg.Storage.PublicBaseURL,
		},
		Sweeper: sweeper.Config{
			RetentionDays:   cfg.Jobs.RetentionDays,
			PregenerateDays: cfg.Jobs.PregenerateDays,
		},
	})

	sched := scheduler.New(loc, logger)
	if err := registerJobs(sched, services.Sweeper, cfg.Jobs); err != nil {
		pgxPool.Close()
		_ = rdb.Close()
		_ = queueClient.Close()
		_ = slipStore.Close()
		return nil, err
	}

	hub := httpgin.NewHub(logger)
	ipLimiter := httpgin.NewIPLimiter(cfg.Server.RequestsPerMinute, cfg.Server.RequestsPerMinute/6+1)

	// The webhook is only mounted when the channel secret is configured.
	var lineWebhook *httpgin.LineWebhook
	if cfg.Line.ChannelSecret != "" {
		chatSvc := chat.New(store.Users(), store.Bookings(), lineClient, loc, logger, chat.Config{
			BookingURL: cfg.Line.BookingURL,
		})
		lineWebhook = httpgin.NewLineWebhook(chatSvc, cfg.Line.ChannelSecret, logger)
	}

	// Initialize Gin router
	router := httpgin.NewRouter(httpgin.Deps{
		Availability: services.Capacity,
		Bookings:     services.Booking,
		Admin:        services.Admin,
		Idempotency:  idempotencyStore,
		HoldLimiter:  holdLimiter,
		Hub:          hub,
		Line:         lineWebhook,
		Location:     loc,
	}, logger, ipLimiter.Middleware())

	return &App{
		cfg:    cfg,
		logger: logger,
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		pool:      pgxPool,
		rdb:       rdb,
		queue:     queueClient,
		slipStore: slipStore,
		services:  services,
		scheduler: sched,
		worker:    worker,
		hub:       hub,
		pubsub:    pubsub,
		ipLimiter: ipLimiter,
	}, nil
}

// maintenanceJobs binds the sweeper operations to their cron specs. The
// sweeper logs each run's outcome itself.
func maintenanceJobs(sw *sweeper.Service, cfg config.JobsConfig) []scheduler.Job {
	return []scheduler.Job{
		{
			Name:    "expire_holds",
			Spec:    cfg.SweepSpec,
			Timeout: 50 * time.Second,
			Run: func(ctx context.Context) error {
				_, err := sw.SweepExpired(ctx)
				return err
			},
		},
		{
			Name:    "cleanup",
			Spec:    cfg.CleanupSpec,
			Timeout: 10 * time.Minute,
			Run: func(ctx context.Context) error {
				_, err := sw.Cleanup(ctx)
				return err
			},
		},
		{
			Name:    "pregenerate_counters",
			Spec:    cfg.PregenerateSpec,
			Timeout: 5 * time.Minute,
			Run: func(ctx context.Context) error {
				_, err := sw.Pregenerate(ctx)
				return err
			},
		},
	}
}

func registerJobs(s *scheduler.Scheduler, sw *sweeper.Service, cfg config.JobsConfig) error {
	for _, j := range maintenanceJobs(sw, cfg) {
		if err := s.Add(j); err != nil {
			return fmt.Errorf("failed to schedule %s: %w", j.Name, err)
		}
	}

	return nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	defer a.close()

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return a.scheduler.Run(gCtx)
	})

	g.Go(func() error {
		return a.worker.Run(gCtx)
	})

	g.Go(func() error {
		return a.hub.Run(gCtx, a.pubsub)
	})

	g.Go(func() error {
		return a.ipLimiter.Run(gCtx)
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}

func (a *App) close() {
	if err := a.queue.Close(); err != nil {
		a.logger.Warn("failed to close task queue", slog.Any("error", err))
	}
	if err := a.slipStore.Close(); err != nil {
		a.logger.Warn("failed to close slip storage", slog.Any("error", err))
	}
	if err := a.rdb.Close(); err != nil {
		a.logger.Warn("failed to close redis", slog.Any("error", err))
	}
	a.pool.Close()
}
