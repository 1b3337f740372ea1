// Package vendors holds the Vendor entity and its persistence. Vendors are
// read-only inputs to matching; their settings are managed elsewhere.
package vendors

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("vendor not found")

// Subscription tiers and their lead-feed result caps.
const (
	TierFree       = "free"
	TierBasic      = "basic"
	TierPremium    = "premium"
	TierEnterprise = "enterprise"
)

// FeedCap returns the maximum result count for a tier. Zero means unbounded.
func FeedCap(tier string) int {
	switch tier {
	case TierBasic:
		return 20
	case TierPremium:
		return 100
	case TierEnterprise:
		return 0
	default:
		return 5
	}
}

// Vendor is a service provider with a configured geographic and budget
// service area.
type Vendor struct {
	ID               uuid.UUID
	BusinessName     string
	Category         string
	Country          string
	Region           string
	City             string
	Lat              *float64
	Lon              *float64
	ServiceRadiusKM  *float64
	ServiceCountries []string
	MinBudget        *float64
	MaxBudget        *float64
	SubscriptionTier string
	Verified         bool
	Rating           float64
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const vendorColumns = `id, business_name, category, country, region, city,
	latitude, longitude, service_radius_km, service_countries,
	min_budget, max_budget, subscription_tier, verified, rating`

func scanVendor(row pgx.Row) (Vendor, error) {
	var v Vendor
	err := row.Scan(&v.ID, &v.BusinessName, &v.Category, &v.Country, &v.Region, &v.City,
		&v.Lat, &v.Lon, &v.ServiceRadiusKM, &v.ServiceCountries,
		&v.MinBudget, &v.MaxBudget, &v.SubscriptionTier, &v.Verified, &v.Rating)
	if errors.Is(err, pgx.ErrNoRows) {
		return Vendor{}, ErrNotFound
	}
	return v, err
}

// GetByID fetches one vendor.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Vendor, error) {
	return scanVendor(r.pool.QueryRow(ctx, `
		SELECT `+vendorColumns+` FROM vendors WHERE id = $1
	`, id))
}

// ListVerifiedByCategory returns the matching candidate set for a lead
// category, id-ordered for deterministic downstream ranking.
func (r *Repository) ListVerifiedByCategory(ctx context.Context, category string) ([]Vendor, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+vendorColumns+` FROM vendors
		WHERE verified = true AND category = $1
		ORDER BY id ASC
	`, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Vendor
	for rows.Next() {
		v, err := scanVendor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
