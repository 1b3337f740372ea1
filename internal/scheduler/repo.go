package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// repo covers the worker's own persistence: the manual support queue and the
// partner payment lookups reminders need.
type repo struct {
	pool *pgxpool.Pool
}

func (r *repo) insertManualSupport(ctx context.Context, phone, message, reason string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO manual_support_queue (phone, message, reason)
		VALUES ($1, $2, $3)
	`, phone, message, reason)
	return err
}

type paymentDue struct {
	ID      uuid.UUID
	Partner string
	LeadID  uuid.UUID
	Amount  float64
	Status  string
	DueDate time.Time
}

func (r *repo) getPayment(ctx context.Context, id uuid.UUID) (paymentDue, bool, error) {
	var p paymentDue
	err := r.pool.QueryRow(ctx, `
		SELECT id, partner, lead_id, amount, status, due_date
		FROM partner_payments WHERE id = $1
	`, id).Scan(&p.ID, &p.Partner, &p.LeadID, &p.Amount, &p.Status, &p.DueDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return paymentDue{}, false, nil
	}
	if err != nil {
		return paymentDue{}, false, err
	}
	return p, true, nil
}

func (r *repo) deleteDedupBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM inbound_dedup WHERE processed_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *repo) clearExpiredPendingLeads(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET pending_lead = NULL, pending_lead_expires_at = NULL, updated_at = now()
		WHERE pending_lead_expires_at IS NOT NULL AND pending_lead_expires_at < $1
	`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
