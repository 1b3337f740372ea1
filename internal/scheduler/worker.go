package scheduler

import (
	"context"
	"fmt"
	"time"

	"leadline_backend/internal/events"
	"leadline_backend/internal/partners"
	"leadline_backend/platform/config"
	"leadline_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// store is the worker's own persistence slice, backed by repo.
type store interface {
	insertManualSupport(ctx context.Context, phone, message, reason string) error
	getPayment(ctx context.Context, id uuid.UUID) (paymentDue, bool, error)
}

// paymentStatusSetter flips partner payment statuses; satisfied by
// partners.Repository.
type paymentStatusSetter interface {
	SetPaymentStatus(ctx context.Context, id uuid.UUID, status string) error
}

type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	store    store
	payments paymentStatusSetter
	bus      events.Bus
	log      *logger.Logger
	now      func() time.Time
}

func NewWorker(cfg config.SchedulerConfig, pool *pgxpool.Pool, bus events.Bus, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:   server,
		mux:      mux,
		store:    &repo{pool: pool},
		payments: partners.NewRepository(pool),
		bus:      bus,
		log:      log,
		now:      time.Now,
	}

	mux.HandleFunc(TaskManualSupport, w.handleManualSupport)
	mux.HandleFunc(TaskPartnerPaymentReminder, w.handlePartnerPaymentReminder)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleManualSupport(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseManualSupportPayload(task)
	if err != nil {
		return err
	}

	req := payload.Request
	if err := w.store.insertManualSupport(ctx, req.Phone, req.Message, "delivery chain exhausted"); err != nil {
		return err
	}

	w.log.Warn("delivery escalated to manual support",
		"phone", req.Phone, "type", req.Type, "retry_count", req.RetryCount)
	return nil
}

func (w *Worker) handlePartnerPaymentReminder(ctx context.Context, task *asynq.Task) error {
	payload, err := ParsePartnerPaymentReminderPayload(task)
	if err != nil {
		return err
	}

	paymentID, err := uuid.Parse(payload.PaymentID)
	if err != nil {
		return err
	}

	payment, found, err := w.store.getPayment(ctx, paymentID)
	if err != nil {
		return err
	}
	if !found || payment.Status != partners.PaymentPending {
		// Paid or disputed in the meantime; nothing to chase.
		return nil
	}

	if !payment.DueDate.After(w.now()) {
		if err := w.payments.SetPaymentStatus(ctx, payment.ID, partners.PaymentOverdue); err != nil {
			return err
		}
		w.log.Warn("partner payment overdue",
			"payment_id", payment.ID, "partner", payment.Partner, "amount", payment.Amount)
	}

	if w.bus == nil {
		return nil
	}

	w.bus.Publish(ctx, events.PartnerPaymentDue{
		BaseEvent: events.NewBaseEvent(),
		PaymentID: payment.ID,
		Partner:   payment.Partner,
		LeadID:    payment.LeadID,
		Amount:    payment.Amount,
	})

	return nil
}
