package compliance

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Consent types recorded in the ledger.
const (
	ConsentDoubleOptIn     = "double_opt_in"
	ConsentOptOut          = "opt_out"
	ConsentPartnerReferral = "partner_referral"
)

// SuppressionEntry blocks all outbound traffic to a phone except an opt-in
// acknowledgement.
type SuppressionEntry struct {
	Phone     string
	Reason    string
	Channel   string
	CreatedAt time.Time
}

// ConsentRecord is an immutable audit entry. Created, never mutated.
type ConsentRecord struct {
	ID           uuid.UUID
	UserID       *uuid.UUID
	Phone        string
	ConsentType  string
	UserResponse string
	Channel      string
	Language     string
	CreatedAt    time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetSuppression looks up the suppression entry for phone. The second return
// reports whether one exists.
func (r *Repository) GetSuppression(ctx context.Context, phone string) (SuppressionEntry, bool, error) {
	var entry SuppressionEntry
	err := r.pool.QueryRow(ctx, `
		SELECT phone, reason, channel, created_at FROM suppression_list WHERE phone = $1
	`, phone).Scan(&entry.Phone, &entry.Reason, &entry.Channel, &entry.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return SuppressionEntry{}, false, nil
	}
	if err != nil {
		return SuppressionEntry{}, false, err
	}
	return entry, true, nil
}

// Suppress upserts a suppression entry for phone.
func (r *Repository) Suppress(ctx context.Context, phone, reason, channel string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO suppression_list (phone, reason, channel)
		VALUES ($1, $2, $3)
		ON CONFLICT (phone) DO UPDATE SET reason = EXCLUDED.reason, channel = EXCLUDED.channel
	`, phone, reason, channel)
	return err
}

// Unsuppress removes phone from the suppression list.
// Only an opt-in keyword triggers this.
func (r *Repository) Unsuppress(ctx context.Context, phone string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM suppression_list WHERE phone = $1`, phone)
	return err
}

// RecordConsent appends one immutable entry to the consent ledger.
func (r *Repository) RecordConsent(ctx context.Context, rec ConsentRecord) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `
		INSERT INTO consent_records (user_id, phone, consent_type, user_response, channel, language)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, rec.UserID, rec.Phone, rec.ConsentType, rec.UserResponse, rec.Channel, rec.Language).Scan(&id)
	return id, err
}

// ListConsentByPhone returns the consent history for a phone, newest first.
func (r *Repository) ListConsentByPhone(ctx context.Context, phone string) ([]ConsentRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, phone, consent_type, user_response, channel, language, created_at
		FROM consent_records
		WHERE phone = $1
		ORDER BY created_at DESC
	`, phone)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]ConsentRecord, 0)
	for rows.Next() {
		var rec ConsentRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Phone, &rec.ConsentType,
			&rec.UserResponse, &rec.Channel, &rec.Language, &rec.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
