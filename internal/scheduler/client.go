// Package scheduler wraps asynq for deferred work: the manual support queue
// behind the delivery chain and partner payment reminders.
package scheduler

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"leadline_backend/internal/delivery"
	"leadline_backend/platform/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

type Client struct {
	client *asynq.Client
	queue  string
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
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

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queue,
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueManualSupport hands a fully failed delivery to a human. Satisfies
// the delivery dispatcher's ManualQueue.
func (c *Client) EnqueueManualSupport(ctx context.Context, req delivery.Request) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("scheduler not configured")
	}

	task, err := NewManualSupportTask(ManualSupportPayload{Request: req})
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue))
	return err
}

// SchedulePartnerPaymentReminder enqueues a reminder to run at the payment's
// due date.
func (c *Client) SchedulePartnerPaymentReminder(ctx context.Context, paymentID string, runAt time.Time) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewPartnerPaymentReminderTask(PartnerPaymentReminderPayload{PaymentID: paymentID})
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task, asynq.ProcessAt(runAt), asynq.Queue(c.queue))
	return err
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
