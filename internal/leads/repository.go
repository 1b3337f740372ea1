// Package leads holds the Lead entity, its persistence and the materializer
// that turns classified intents into Lead rows.
package leads

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound          = errors.New("lead not found")
	ErrInvalidTransition = errors.New("invalid lead status transition")
)

// Lead lifecycle statuses. Transitions only move forward; distributed,
// accepted and declined are terminal.
const (
	StatusReceived    = "received"
	StatusCaptured    = "captured"
	StatusConsented   = "consented"
	StatusDistributed = "distributed"
	StatusAccepted    = "accepted"
	StatusDeclined    = "declined"
)

// Lead sources.
const (
	SourceConversation = "conversation"
	SourcePartner      = "partner"
)

var statusRank = map[string]int{
	StatusReceived:    0,
	StatusCaptured:    1,
	StatusConsented:   2,
	StatusDistributed: 3,
	StatusAccepted:    3,
	StatusDeclined:    3,
}

func terminal(status string) bool {
	switch status {
	case StatusDistributed, StatusAccepted, StatusDeclined:
		return true
	}
	return false
}

// CanTransition reports whether a lead may move from one status to another.
func CanTransition(from, to string) bool {
	fromRank, okFrom := statusRank[from]
	toRank, okTo := statusRank[to]
	if !okFrom || !okTo {
		return false
	}
	return !terminal(from) && toRank > fromRank
}

// Location is the resolved place a lead refers to.
type Location struct {
	Country string
	Region  string
	City    string
	Lat     *float64
	Lon     *float64
}

// Lead is a monetizable need extracted from a conversation or ingested from
// a partner platform.
type Lead struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Category    string
	PartnerName string
	Description string
	Location    Location
	Currency    string
	Budget      *float64
	BudgetUSD   *float64

	ConsentGiven     bool
	ConsentTimestamp *time.Time

	Status             string
	Source             string
	LeadValue          float64
	AcceptedByVendorID *uuid.UUID

	// Details is the matched-vendor audit blob, JSON.
	Details []byte

	CreatedAt time.Time
	UpdatedAt time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const leadColumns = `id, user_id, category, partner_name, description,
	country, region, city, latitude, longitude,
	currency, budget, budget_usd, consent_given, consent_timestamp,
	status, source, lead_value, accepted_by_vendor_id, details,
	created_at, updated_at`

func scanLead(row pgx.Row) (Lead, error) {
	var l Lead
	err := row.Scan(&l.ID, &l.UserID, &l.Category, &l.PartnerName, &l.Description,
		&l.Location.Country, &l.Location.Region, &l.Location.City,
		&l.Location.Lat, &l.Location.Lon,
		&l.Currency, &l.Budget, &l.BudgetUSD, &l.ConsentGiven, &l.ConsentTimestamp,
		&l.Status, &l.Source, &l.LeadValue, &l.AcceptedByVendorID, &l.Details,
		&l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return l, err
}

// Create inserts the lead and fills in its id and timestamps.
func (r *Repository) Create(ctx context.Context, l *Lead) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO leads (user_id, category, partner_name, description,
			country, region, city, latitude, longitude,
			currency, budget, budget_usd, consent_given, consent_timestamp,
			status, source, lead_value)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id, created_at, updated_at
	`, l.UserID, l.Category, l.PartnerName, l.Description,
		l.Location.Country, l.Location.Region, l.Location.City, l.Location.Lat, l.Location.Lon,
		l.Currency, l.Budget, l.BudgetUSD, l.ConsentGiven, l.ConsentTimestamp,
		l.Status, l.Source, l.LeadValue).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
}

// GetByID fetches one lead.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Lead, error) {
	return scanLead(r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+` FROM leads WHERE id = $1
	`, id))
}

// Transition moves a lead from one status to another. The from status is part
// of the predicate, so a concurrent writer losing the race gets
// ErrInvalidTransition instead of silently clobbering.
func (r *Repository) Transition(ctx context.Context, id uuid.UUID, from, to string) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: lead %s no longer in %s", ErrInvalidTransition, id, from)
	}
	return nil
}

// Accept marks a lead as taken by a vendor. Only non-terminal, unaccepted
// leads can be taken.
func (r *Repository) Accept(ctx context.Context, id, vendorID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET status = $3, accepted_by_vendor_id = $2, updated_at = now()
		WHERE id = $1
		  AND accepted_by_vendor_id IS NULL
		  AND status IN ($4, $5, $6)
	`, id, vendorID, StatusAccepted, StatusReceived, StatusCaptured, StatusConsented)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: lead %s is not available", ErrInvalidTransition, id)
	}
	return nil
}

// SetMatchDetails stores the matched-vendor audit blob.
func (r *Repository) SetMatchDetails(ctx context.Context, id uuid.UUID, details []byte) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE leads SET details = $2, updated_at = now() WHERE id = $1
	`, id, details)
	return err
}

// ListOpen returns unaccepted leads still eligible for distribution,
// newest first.
func (r *Repository) ListOpen(ctx context.Context) ([]Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+` FROM leads
		WHERE status IN ($1, $2) AND accepted_by_vendor_id IS NULL
		ORDER BY created_at DESC
	`, StatusCaptured, StatusConsented)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Filters narrows a lead query. Zero values mean "any".
type Filters struct {
	Status   string
	Category string
	Country  string
	City     string
	// Q is a case-insensitive substring over description, category and
	// partner name.
	Q     string
	Limit int
}

// Query lists leads matching the filters, newest first.
func (r *Repository) Query(ctx context.Context, f Filters) ([]Lead, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.Category != "" {
		add("category = $%d", f.Category)
	}
	if f.Country != "" {
		add("country = $%d", f.Country)
	}
	if f.City != "" {
		add("lower(city) = lower($%d)", f.City)
	}
	if f.Q != "" {
		add("(description ILIKE $%d OR category ILIKE $%[1]d OR partner_name ILIKE $%[1]d)",
			"%"+f.Q+"%")
	}

	query := `SELECT ` + leadColumns + ` FROM leads`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
