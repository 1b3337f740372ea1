package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Message directions.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Message is one append-only log row. One per inbound and per outbound send.
type Message struct {
	ID                uuid.UUID
	UserID            *uuid.UUID
	Phone             string
	Direction         string
	Channel           string
	Body              string
	ProviderMessageID string
	CreatedAt         time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// RecordMessage appends one message log row.
func (r *Repository) RecordMessage(ctx context.Context, m Message) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO messages (user_id, phone, direction, channel, body, provider_message_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, m.UserID, m.Phone, m.Direction, m.Channel, m.Body, m.ProviderMessageID)
	return err
}

// MarkProcessed claims a provider message id for processing. Returns false
// when another delivery of the same id already claimed it, so webhook retries
// are acknowledged without reprocessing. Empty ids are always fresh.
func (r *Repository) MarkProcessed(ctx context.Context, providerMessageID string) (bool, error) {
	if providerMessageID == "" {
		return true, nil
	}
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO inbound_dedup (provider_message_id)
		VALUES ($1)
		ON CONFLICT (provider_message_id) DO NOTHING
	`, providerMessageID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
