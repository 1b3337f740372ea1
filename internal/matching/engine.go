// Package matching scores verified vendors against leads and filters open
// leads down to a vendor's service area.
package matching

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"leadline_backend/internal/leads"
	"leadline_backend/internal/vendors"
	"leadline_backend/platform/logger"

	"github.com/google/uuid"
)

// Score weights. The category weight is granted to every candidate because
// the candidate set is already category-filtered.
const (
	weightCategory       = 50
	weightCountryExact   = 30
	weightCountryService = 25
	weightGlobal         = 10
	weightCityExact      = 20
	weightCitySubstring  = 10
	weightWithinRadius   = 15
	weightNoRadius       = 5
	weightBudget         = 10
	weightRating         = 5

	ratingThreshold = 4.5
	auditTopN       = 5
)

// Match is one scored vendor for a lead.
type Match struct {
	VendorID uuid.UUID `json:"vendorId"`
	Score    int       `json:"score"`
	Reasons  []string  `json:"reasons"`
}

// VendorSource supplies candidate vendors.
type VendorSource interface {
	ListVerifiedByCategory(ctx context.Context, category string) ([]vendors.Vendor, error)
}

// LeadAudit persists the ranked-match blob onto a lead.
type LeadAudit interface {
	SetMatchDetails(ctx context.Context, id uuid.UUID, details []byte) error
}

type Engine struct {
	vendors VendorSource
	leads   LeadSource
	audit   LeadAudit
	log     *logger.Logger
}

func NewEngine(vendorSrc VendorSource, leadSrc LeadSource, audit LeadAudit, log *logger.Logger) *Engine {
	return &Engine{vendors: vendorSrc, leads: leadSrc, audit: audit, log: log}
}

// MatchVendorsToLead ranks every verified vendor in the lead's category,
// highest score first. Ties break on ascending vendor id so repeated runs
// rank identically.
func (e *Engine) MatchVendorsToLead(ctx context.Context, lead leads.Lead) ([]Match, error) {
	candidates, err := e.vendors.ListVerifiedByCategory(ctx, lead.Category)
	if err != nil {
		return nil, fmt.Errorf("list candidate vendors: %w", err)
	}

	matches := make([]Match, 0, len(candidates))
	for _, v := range candidates {
		m, geoOK := ScoreVendor(lead, v)
		if !geoOK {
			continue
		}
		matches = append(matches, m)
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return bytes.Compare(matches[i].VendorID[:], matches[j].VendorID[:]) < 0
	})

	return matches, nil
}

// MatchAndRecord ranks vendors for a lead and persists the top results onto
// the lead's audit blob.
func (e *Engine) MatchAndRecord(ctx context.Context, lead leads.Lead) ([]Match, error) {
	matches, err := e.MatchVendorsToLead(ctx, lead)
	if err != nil {
		return nil, err
	}

	top := matches
	if len(top) > auditTopN {
		top = top[:auditTopN]
	}

	blob, err := json.Marshal(struct {
		MatchedAt time.Time `json:"matchedAt"`
		Matches   []Match   `json:"matches"`
	}{MatchedAt: time.Now().UTC(), Matches: top})
	if err != nil {
		return nil, fmt.Errorf("marshal match audit: %w", err)
	}

	if err := e.audit.SetMatchDetails(ctx, lead.ID, blob); err != nil {
		return nil, fmt.Errorf("store match audit: %w", err)
	}

	return matches, nil
}

// ScoreVendor computes one vendor's score against a lead. geoOK reports
// whether the vendor has any geographic affinity with the lead; vendors
// without one never reach the ranked results.
func ScoreVendor(lead leads.Lead, v vendors.Vendor) (m Match, geoOK bool) {
	m = Match{VendorID: v.ID}

	m.add(weightCategory, "category match")

	switch {
	case v.Country != "" && strings.EqualFold(v.Country, lead.Location.Country):
		m.add(weightCountryExact, "country match")
		geoOK = true
	case containsFold(v.ServiceCountries, lead.Location.Country):
		m.add(weightCountryService, "lead country in service countries")
		geoOK = true
	case v.Country == "" && v.ServiceRadiusKM == nil:
		m.add(weightGlobal, "global coverage")
		geoOK = true
	}

	if lead.Location.City != "" {
		switch {
		case strings.EqualFold(v.City, lead.Location.City):
			m.add(weightCityExact, "city match")
		case v.Region != "" && strings.Contains(strings.ToLower(v.Region), strings.ToLower(lead.Location.City)):
			m.add(weightCitySubstring, "city within region")
		}
	}

	if lead.Location.Lat != nil && lead.Location.Lon != nil && v.Lat != nil && v.Lon != nil {
		if v.ServiceRadiusKM == nil {
			m.add(weightNoRadius, "unlimited service radius")
		} else {
			dist := HaversineKM(*lead.Location.Lat, *lead.Location.Lon, *v.Lat, *v.Lon)
			if dist <= *v.ServiceRadiusKM {
				m.add(weightWithinRadius, fmt.Sprintf("within service radius (%.0f km)", dist))
				geoOK = true
			}
		}
	}

	if lead.BudgetUSD != nil && budgetInRange(*lead.BudgetUSD, v.MinBudget, v.MaxBudget) {
		m.add(weightBudget, "budget in range")
	}

	if v.Rating >= ratingThreshold {
		m.add(weightRating, "highly rated")
	}

	return m, geoOK
}

func (m *Match) add(weight int, reason string) {
	m.Score += weight
	m.Reasons = append(m.Reasons, reason)
}

func budgetInRange(budget float64, min, max *float64) bool {
	if min != nil && budget < *min {
		return false
	}
	if max != nil && budget > *max {
		return false
	}
	return true
}

func containsFold(list []string, needle string) bool {
	if needle == "" {
		return false
	}
	for _, s := range list {
		if strings.EqualFold(s, needle) {
			return true
		}
	}
	return false
}
