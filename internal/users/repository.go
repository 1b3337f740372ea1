// Package users provides the User entity and its persistence.
package users

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("user not found")

// Status values for a user lifecycle.
const (
	StatusReferred   = "referred"
	StatusOnboarding = "onboarding"
	StatusActive     = "active"
	StatusOptedOut   = "opted_out"
)

// Onboarding steps. A nil step means the user never entered onboarding.
const (
	StepConsent  = "consent"
	StepName     = "name"
	StepEmail    = "email"
	StepPassword = "password"
	StepComplete = "complete"
)

// User is keyed by phone; one row per end user.
type User struct {
	ID                   uuid.UUID
	Phone                string
	Status               string
	OnboardingStep       *string
	Name                 *string
	Email                *string
	PasswordHash         *string
	Language             string
	PreferredChannel     string
	Country              *string
	Region               *string
	City                 *string
	Latitude             *float64
	Longitude            *float64
	PendingLead          []byte
	PendingLeadExpiresAt *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, phone, status, onboarding_step, name, email, password_hash,
	language, preferred_channel, country, region, city, latitude, longitude,
	pending_lead, pending_lead_expires_at, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Phone, &u.Status, &u.OnboardingStep, &u.Name, &u.Email,
		&u.PasswordHash, &u.Language, &u.PreferredChannel, &u.Country, &u.Region,
		&u.City, &u.Latitude, &u.Longitude, &u.PendingLead, &u.PendingLeadExpiresAt,
		&u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

// GetByPhone looks a user up by normalized phone.
func (r *Repository) GetByPhone(ctx context.Context, phone string) (User, error) {
	return scanUser(r.pool.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users WHERE phone = $1
	`, phone))
}

// GetByID looks a user up by id.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (User, error) {
	return scanUser(r.pool.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users WHERE id = $1
	`, id))
}

// CreateParams holds attributes for a new user row.
type CreateParams struct {
	Phone            string
	Status           string
	OnboardingStep   *string
	Language         string
	PreferredChannel string
	Country          *string
}

// Create inserts a new user. Conflicts on phone return the existing row, so
// duplicate webhook deliveries never create two users for one phone.
func (r *Repository) Create(ctx context.Context, params CreateParams) (User, error) {
	return scanUser(r.pool.QueryRow(ctx, `
		INSERT INTO users (phone, status, onboarding_step, language, preferred_channel, country)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (phone) DO UPDATE SET updated_at = now()
		RETURNING `+userColumns+`
	`, params.Phone, params.Status, params.OnboardingStep, params.Language,
		params.PreferredChannel, params.Country))
}

// SetStatus updates the lifecycle status.
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users SET status = $2, updated_at = now() WHERE id = $1
	`, id, status)
	return err
}

// SetStatusByPhone updates status for the user owning phone, if any.
func (r *Repository) SetStatusByPhone(ctx context.Context, phone, status string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users SET status = $2, updated_at = now() WHERE phone = $1
	`, phone, status)
	return err
}

// SetOnboardingStep advances the onboarding step.
func (r *Repository) SetOnboardingStep(ctx context.Context, id uuid.UUID, step string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users SET onboarding_step = $2, updated_at = now() WHERE id = $1
	`, id, step)
	return err
}

// SetName stores the user's name.
func (r *Repository) SetName(ctx context.Context, id uuid.UUID, name string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users SET name = $2, updated_at = now() WHERE id = $1
	`, id, name)
	return err
}

// SetEmail stores the user's email.
func (r *Repository) SetEmail(ctx context.Context, id uuid.UUID, email string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users SET email = $2, updated_at = now() WHERE id = $1
	`, id, email)
	return err
}

// SetPasswordHash stores the hashed password.
func (r *Repository) SetPasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1
	`, id, hash)
	return err
}

// EmailTakenByOther reports whether email belongs to a different user.
func (r *Repository) EmailTakenByOther(ctx context.Context, email string, userID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM users WHERE lower(email) = lower($1) AND id <> $2)
	`, email, userID).Scan(&exists)
	return exists, err
}

// SetPendingLead stores the deferred-consent lead session on the user row.
func (r *Repository) SetPendingLead(ctx context.Context, id uuid.UUID, payload []byte, expiresAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users SET pending_lead = $2, pending_lead_expires_at = $3, updated_at = now()
		WHERE id = $1
	`, id, payload, expiresAt)
	return err
}

// ClearPendingLead discards the deferred-consent lead session.
func (r *Repository) ClearPendingLead(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users SET pending_lead = NULL, pending_lead_expires_at = NULL, updated_at = now()
		WHERE id = $1
	`, id)
	return err
}

// SetLocation stores resolved location fields.
func (r *Repository) SetLocation(ctx context.Context, id uuid.UUID, country, region, city *string, lat, lon *float64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users SET country = $2, region = $3, city = $4, latitude = $5, longitude = $6,
			updated_at = now()
		WHERE id = $1
	`, id, country, region, city, lat, lon)
	return err
}

// SetPreferredChannel records the channel the user last wrote in on.
func (r *Repository) SetPreferredChannel(ctx context.Context, id uuid.UUID, channel string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users SET preferred_channel = $2, updated_at = now() WHERE id = $1
	`, id, channel)
	return err
}
