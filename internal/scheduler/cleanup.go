package scheduler

import (
	"context"
	"time"

	"leadline_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

const (
	defaultCleanupInterval = time.Hour
	// Provider retries arrive within minutes; 48h of dedup history is
	// plenty to absorb them.
	dedupRetention = 48 * time.Hour
)

// Cleanup periodically prunes processed inbound message ids past their dedup
// window and clears expired pending-lead sessions.
type Cleanup struct {
	repo     *repo
	log      *logger.Logger
	interval time.Duration
}

func NewCleanup(pool *pgxpool.Pool, log *logger.Logger, interval time.Duration) *Cleanup {
	if interval <= 0 {
		interval = defaultCleanupInterval
	}

	return &Cleanup{
		repo:     &repo{pool: pool},
		log:      log,
		interval: interval,
	}
}

func (c *Cleanup) Run(ctx context.Context) {
	if c == nil || c.repo == nil {
		return
	}

	c.sweep(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweep(ctx)
		}
	}
}

// sweep runs the independent prune operations concurrently. Each logs its
// own outcome; one failing never blocks the other.
func (c *Cleanup) sweep(ctx context.Context) {
	now := time.Now()

	var g errgroup.Group
	g.Go(func() error {
		deleted, err := c.repo.deleteDedupBefore(ctx, now.Add(-dedupRetention))
		if err != nil {
			c.log.Warn("dedup cleanup failed", "error", err)
		} else if deleted > 0 {
			c.log.Info("dedup cleanup removed processed message ids", "deleted", deleted)
		}
		return nil
	})
	g.Go(func() error {
		cleared, err := c.repo.clearExpiredPendingLeads(ctx, now)
		if err != nil {
			c.log.Warn("pending lead cleanup failed", "error", err)
		} else if cleared > 0 {
			c.log.Info("expired pending lead sessions cleared", "cleared", cleared)
		}
		return nil
	})
	_ = g.Wait()
}
