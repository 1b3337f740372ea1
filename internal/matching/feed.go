package matching

import (
	"context"
	"fmt"
	"strings"

	"leadline_backend/internal/leads"
	"leadline_backend/internal/vendors"
)

// LeadSource supplies the open-lead set for vendor feeds.
type LeadSource interface {
	ListOpen(ctx context.Context) ([]leads.Lead, error)
}

// FeedFilters are the caller-supplied narrowing filters on top of the
// vendor's own service-area constraints.
type FeedFilters struct {
	Status   string
	Category string
	Country  string
	City     string
	Q        string
}

// FindLeadsForVendor returns open leads inside the vendor's service area.
// Leads missing a constrained attribute (country, city, budget, coordinates)
// are kept rather than dropped. The result is capped by the vendor's
// subscription tier.
func (e *Engine) FindLeadsForVendor(ctx context.Context, v vendors.Vendor, f FeedFilters) ([]leads.Lead, error) {
	open, err := e.leads.ListOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("list open leads: %w", err)
	}

	categoryBound := v.Category != "general" && v.SubscriptionTier != vendors.TierEnterprise

	limit := vendors.FeedCap(v.SubscriptionTier)
	var out []leads.Lead
	for _, l := range open {
		if categoryBound && !strings.EqualFold(l.Category, v.Category) {
			continue
		}
		if !vendorServesCountry(v, l.Location.Country) {
			continue
		}
		if v.City != "" && l.Location.City != "" && !strings.EqualFold(v.City, l.Location.City) {
			continue
		}
		if l.BudgetUSD != nil && !budgetInRange(*l.BudgetUSD, v.MinBudget, v.MaxBudget) {
			continue
		}
		if outsideServiceRadius(v, l) {
			continue
		}
		if !matchesFeedFilters(l, f) {
			continue
		}

		out = append(out, l)
		if limit > 0 && len(out) >= limit {
			break
		}
	}

	return out, nil
}

func vendorServesCountry(v vendors.Vendor, country string) bool {
	if country == "" {
		return true
	}
	if v.Country == "" && len(v.ServiceCountries) == 0 {
		return true
	}
	return strings.EqualFold(v.Country, country) || containsFold(v.ServiceCountries, country)
}

func outsideServiceRadius(v vendors.Vendor, l leads.Lead) bool {
	if v.Lat == nil || v.Lon == nil || v.ServiceRadiusKM == nil {
		return false
	}
	if l.Location.Lat == nil || l.Location.Lon == nil {
		return false
	}
	return HaversineKM(*v.Lat, *v.Lon, *l.Location.Lat, *l.Location.Lon) > *v.ServiceRadiusKM
}

func matchesFeedFilters(l leads.Lead, f FeedFilters) bool {
	if f.Status != "" && l.Status != f.Status {
		return false
	}
	if f.Category != "" && !strings.EqualFold(l.Category, f.Category) {
		return false
	}
	if f.Country != "" && !strings.EqualFold(l.Location.Country, f.Country) {
		return false
	}
	if f.City != "" && !strings.EqualFold(l.Location.City, f.City) {
		return false
	}
	if f.Q != "" {
		q := strings.ToLower(f.Q)
		if !strings.Contains(strings.ToLower(l.Description), q) &&
			!strings.Contains(strings.ToLower(l.Category), q) &&
			!strings.Contains(strings.ToLower(l.PartnerName), q) {
			return false
		}
	}
	return true
}
