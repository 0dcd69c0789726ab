package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"golang.org/x/time/rate"
)

type WorkerConfig struct {
	Concurrency   int
	RatePerSecond float64
}

// Worker consumes notify:line tasks and pushes them through the sender.
type Worker struct {
	srv     *asynq.Server
	sender  Notifier
	limiter *rate.Limiter
	log     *slog.Logger
}

func NewWorker(opt asynq.RedisClientOpt, sender Notifier, cfg WorkerConfig, log *slog.Logger) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 10
	}

	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues: map[string]int{
			"default": 1,
		},
	})

	burst := int(cfg.RatePerSecond)
	if burst < 1 {
		burst = 1
	}

	return &Worker{
		srv:     srv,
		sender:  sender,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst),
		log:     log.With(slog.String("component", "notify_worker")),
	}
}

func (w *Worker) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeLinePush, w.HandleLinePush)
	return mux
}

// Run blocks until ctx is done, then drains in-flight tasks.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.srv.Start(w.Mux()); err != nil {
		return fmt.Errorf("notify.Worker.Run: %w", err)
	}

	<-ctx.Done()
	w.srv.Shutdown()
	return nil
}

func (w *Worker) HandleLinePush(ctx context.Context, task *asynq.Task) error {
	var m Message
	if err := json.Unmarshal(task.Payload(), &m); err != nil {
		w.log.Error("invalid payload", slog.Any("error", err))
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	if err := w.limiter.Wait(ctx); err != nil {
		return err
	}

	if err := w.sender.Send(ctx, m); err != nil {
		w.log.Warn("push failed",
			slog.String("booking_id", m.BookingID.String()),
			slog.Any("error", err),
		)
		return err
	}

	return nil
}
