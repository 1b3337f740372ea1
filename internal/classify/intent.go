// Package classify is the boundary to the external message classification
// service. Free text goes in, a validated structured intent comes out. The
// service's payload is loosely typed, so everything is checked here before
// the rest of the pipeline sees it.
package classify

import (
	"fmt"
	"strings"
)

// Intent categories the pipeline routes on.
const (
	CategoryGeneral    = "general"
	CategoryPlumbing   = "plumbing"
	CategoryElectrical = "electrical"
	CategoryLegal      = "legal"
	CategoryHealth     = "health"
	CategoryRealEstate = "real_estate"
	CategoryHomeRepair = "home_repair"
)

// Urgency levels reported by the classifier.
const (
	UrgencyLow    = "low"
	UrgencyMedium = "medium"
	UrgencyHigh   = "high"
)

// LeadSignal is present only when the classifier flags the message as a
// monetizable need.
type LeadSignal struct {
	Category    string `json:"category"`
	AskConsent  bool   `json:"askConsent"`
	Description string `json:"description"`
}

// HealthDetails carries health-category-only fields. Present iff the intent
// category is health.
type HealthDetails struct {
	Symptoms      []string `json:"symptoms"`
	TriageAdvised bool     `json:"triageAdvised"`
}

// Intent is the validated output of the classifier for one message.
type Intent struct {
	Category     string         `json:"category"`
	Urgency      string         `json:"urgency"`
	Reply        string         `json:"reply"`
	Lead         *LeadSignal    `json:"lead,omitempty"`
	Health       *HealthDetails `json:"health,omitempty"`
	LocationHint string         `json:"locationHint"`
	BudgetHint   string         `json:"budgetHint"`
}

// IsLead reports whether the intent carries a usable lead signal.
func (in Intent) IsLead() bool {
	return in.Lead != nil && in.Lead.Category != ""
}

var validCategories = map[string]bool{
	CategoryGeneral:    true,
	CategoryPlumbing:   true,
	CategoryElectrical: true,
	CategoryLegal:      true,
	CategoryHealth:     true,
	CategoryRealEstate: true,
	CategoryHomeRepair: true,
}

// Validate normalizes and checks an intent at the adapter boundary.
// Unknown categories collapse to general; that keeps a drifting classifier
// from routing messages into categories the partner table does not know.
func (in *Intent) Validate() error {
	in.Category = strings.ToLower(strings.TrimSpace(in.Category))
	if in.Category == "" {
		in.Category = CategoryGeneral
	}
	if !validCategories[in.Category] {
		in.Category = CategoryGeneral
	}

	switch in.Urgency {
	case UrgencyLow, UrgencyMedium, UrgencyHigh:
	case "":
		in.Urgency = UrgencyLow
	default:
		return fmt.Errorf("unknown urgency %q", in.Urgency)
	}

	if in.Health != nil && in.Category != CategoryHealth {
		return fmt.Errorf("health details present on %q intent", in.Category)
	}

	if in.Lead != nil {
		in.Lead.Category = strings.ToLower(strings.TrimSpace(in.Lead.Category))
		if in.Lead.Category == "" {
			// A lead flag without a category is unusable; drop the signal.
			in.Lead = nil
		}
	}

	return nil
}
