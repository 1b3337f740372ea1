package partners

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrAPIKeyNotFound = errors.New("partner api key not found")

// Payment statuses.
const (
	PaymentPending  = "pending"
	PaymentOverdue  = "overdue"
	PaymentPaid     = "paid"
	PaymentDisputed = "disputed"
)

// APIKey identifies one partner platform. Only the SHA-256 of the key is
// stored.
type APIKey struct {
	ID       uuid.UUID
	Partner  string
	Platform string
	Active   bool
}

// Payment is money owed by a partner for an ingested lead.
type Payment struct {
	ID        uuid.UUID
	Partner   string
	LeadID    uuid.UUID
	Amount    float64
	Status    string
	DueDate   time.Time
	CreatedAt time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func hashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// LookupAPIKey resolves a raw API key to its partner record.
func (r *Repository) LookupAPIKey(ctx context.Context, rawKey string) (APIKey, error) {
	var k APIKey
	err := r.pool.QueryRow(ctx, `
		SELECT id, partner, platform, active
		FROM partner_api_keys WHERE key_hash = $1
	`, hashAPIKey(rawKey)).Scan(&k.ID, &k.Partner, &k.Platform, &k.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return APIKey{}, ErrAPIKeyNotFound
	}
	if err != nil {
		return APIKey{}, err
	}
	if !k.Active {
		return APIKey{}, ErrAPIKeyNotFound
	}
	return k, nil
}

// CreatePayment inserts a pending payment and fills in its id.
func (r *Repository) CreatePayment(ctx context.Context, p *Payment) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO partner_payments (partner, lead_id, amount, status, due_date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, p.Partner, p.LeadID, p.Amount, p.Status, p.DueDate).Scan(&p.ID, &p.CreatedAt)
}

// SetPaymentStatus moves a payment between pending, overdue, paid and
// disputed.
func (r *Repository) SetPaymentStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE partner_payments SET status = $2 WHERE id = $1
	`, id, status)
	return err
}
