package matching

import (
	"context"
	"encoding/json"
	"testing"

	"leadline_backend/internal/leads"
	"leadline_backend/internal/vendors"
	"leadline_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeVendorSource struct {
	vendors []vendors.Vendor
}

func (f *fakeVendorSource) ListVerifiedByCategory(_ context.Context, category string) ([]vendors.Vendor, error) {
	var out []vendors.Vendor
	for _, v := range f.vendors {
		if v.Verified && v.Category == category {
			out = append(out, v)
		}
	}
	return out, nil
}

type fakeLeadSource struct {
	open []leads.Lead
}

func (f *fakeLeadSource) ListOpen(_ context.Context) ([]leads.Lead, error) {
	return f.open, nil
}

type fakeAudit struct {
	blobs map[uuid.UUID][]byte
}

func (f *fakeAudit) SetMatchDetails(_ context.Context, id uuid.UUID, details []byte) error {
	if f.blobs == nil {
		f.blobs = map[uuid.UUID][]byte{}
	}
	f.blobs[id] = details
	return nil
}

func f64(v float64) *float64 { return &v }

func newTestEngine(vs []vendors.Vendor, open []leads.Lead) (*Engine, *fakeAudit) {
	audit := &fakeAudit{}
	return NewEngine(&fakeVendorSource{vendors: vs}, &fakeLeadSource{open: open}, audit, logger.New("test")), audit
}

func TestCountryAndBudgetScoring(t *testing.T) {
	vendorNG := vendors.Vendor{
		ID:           uuid.New(),
		BusinessName: "Lagos Pipes",
		Category:     "plumbing",
		Country:      "NG",
		Verified:     true,
		MinBudget:    f64(10),
		MaxBudget:    f64(100),
	}
	vendorUS := vendors.Vendor{
		ID:           uuid.New(),
		BusinessName: "NYC Pipes",
		Category:     "plumbing",
		Country:      "US",
		Verified:     true,
	}

	engine, _ := newTestEngine([]vendors.Vendor{vendorNG, vendorUS}, nil)

	lead := leads.Lead{
		ID:        uuid.New(),
		Category:  "plumbing",
		Location:  leads.Location{Country: "NG"},
		BudgetUSD: f64(40),
	}

	matches, err := engine.MatchVendorsToLead(context.Background(), lead)
	if err != nil {
		t.Fatalf("MatchVendorsToLead: %v", err)
	}

	// The US vendor has no geographic affinity with an NG lead and is
	// excluded entirely.
	if len(matches) != 1 {
		t.Fatalf("matches = %d, want only the in-country vendor", len(matches))
	}

	best := matches[0]
	if best.VendorID != vendorNG.ID {
		t.Fatalf("top vendor = %s, want the in-country one", best.VendorID)
	}
	// category 50 + country 30 + budget 10
	if best.Score != 90 {
		t.Errorf("score = %d, want 90", best.Score)
	}
}

func TestScoreVendorComponents(t *testing.T) {
	lagosLat, lagosLon := 6.5244, 3.3792

	cases := []struct {
		name   string
		lead   leads.Lead
		vendor vendors.Vendor
		want   int
	}{
		{
			name: "service country bonus",
			lead: leads.Lead{Category: "legal", Location: leads.Location{Country: "KE"}},
			vendor: vendors.Vendor{
				Category: "legal", Country: "NG",
				ServiceCountries: []string{"KE", "ZA"},
			},
			want: weightCategory + weightCountryService,
		},
		{
			name: "global vendor bonus",
			lead: leads.Lead{Category: "legal", Location: leads.Location{Country: "KE"}},
			vendor: vendors.Vendor{
				Category: "legal",
			},
			want: weightCategory + weightGlobal,
		},
		{
			name: "city exact plus rating",
			lead: leads.Lead{Category: "plumbing", Location: leads.Location{Country: "NG", City: "Lagos"}},
			vendor: vendors.Vendor{
				Category: "plumbing", Country: "NG", City: "lagos", Rating: 4.7,
			},
			want: weightCategory + weightCountryExact + weightCityExact + weightRating,
		},
		{
			name: "city substring of region",
			lead: leads.Lead{Category: "plumbing", Location: leads.Location{Country: "NG", City: "Lagos"}},
			vendor: vendors.Vendor{
				Category: "plumbing", Country: "NG", Region: "Greater Lagos Area",
			},
			want: weightCategory + weightCountryExact + weightCitySubstring,
		},
		{
			name: "within service radius",
			lead: leads.Lead{
				Category: "plumbing",
				Location: leads.Location{Country: "NG", Lat: &lagosLat, Lon: &lagosLon},
			},
			vendor: vendors.Vendor{
				Category: "plumbing", Country: "NG",
				Lat: f64(6.45), Lon: f64(3.39), ServiceRadiusKM: f64(25),
			},
			want: weightCategory + weightCountryExact + weightWithinRadius,
		},
		{
			name: "coordinates but no radius limit",
			lead: leads.Lead{
				Category: "plumbing",
				Location: leads.Location{Country: "NG", Lat: &lagosLat, Lon: &lagosLon},
			},
			vendor: vendors.Vendor{
				Category: "plumbing", Country: "NG",
				Lat: f64(6.45), Lon: f64(3.39),
			},
			want: weightCategory + weightCountryExact + weightNoRadius,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, geoOK := ScoreVendor(tc.lead, tc.vendor)
			if !geoOK {
				t.Fatal("expected geographic affinity")
			}
			if got.Score != tc.want {
				t.Errorf("score = %d (%v), want %d", got.Score, got.Reasons, tc.want)
			}
		})
	}
}

func TestTieBreakOnVendorID(t *testing.T) {
	low := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	high := uuid.MustParse("ffffffff-0000-0000-0000-000000000001")

	// Identical vendors apart from id; listed high-id first.
	base := vendors.Vendor{Category: "legal", Country: "NG", Verified: true}
	vHigh, vLow := base, base
	vHigh.ID = high
	vLow.ID = low

	engine, _ := newTestEngine([]vendors.Vendor{vHigh, vLow}, nil)
	lead := leads.Lead{Category: "legal", Location: leads.Location{Country: "NG"}}

	matches, err := engine.MatchVendorsToLead(context.Background(), lead)
	if err != nil {
		t.Fatalf("MatchVendorsToLead: %v", err)
	}
	if matches[0].VendorID != low {
		t.Errorf("equal scores must rank ascending by vendor id")
	}
}

func TestMatchAndRecordPersistsTopFive(t *testing.T) {
	var vs []vendors.Vendor
	ratings := []float64{4.9, 4.8, 4.6, 3.0, 2.0, 1.0, 0.5}
	for _, r := range ratings {
		vs = append(vs, vendors.Vendor{
			ID: uuid.New(), Category: "plumbing", Country: "NG", Verified: true, Rating: r,
		})
	}

	engine, audit := newTestEngine(vs, nil)
	lead := leads.Lead{ID: uuid.New(), Category: "plumbing", Location: leads.Location{Country: "NG"}}

	matches, err := engine.MatchAndRecord(context.Background(), lead)
	if err != nil {
		t.Fatalf("MatchAndRecord: %v", err)
	}
	if len(matches) != len(vs) {
		t.Errorf("matches = %d, want all %d candidates", len(matches), len(vs))
	}

	var stored struct {
		Matches []Match `json:"matches"`
	}
	if err := json.Unmarshal(audit.blobs[lead.ID], &stored); err != nil {
		t.Fatalf("unmarshal audit blob: %v", err)
	}
	if len(stored.Matches) != auditTopN {
		t.Errorf("stored matches = %d, want %d", len(stored.Matches), auditTopN)
	}
}

func TestFindLeadsForVendor(t *testing.T) {
	lagosLat, lagosLon := 6.5244, 3.3792
	abujaLat, abujaLon := 9.0765, 7.3986

	open := []leads.Lead{
		{ID: uuid.New(), Category: "plumbing", Status: leads.StatusConsented,
			Location: leads.Location{Country: "NG", City: "Lagos", Lat: &lagosLat, Lon: &lagosLon},
			BudgetUSD: f64(50), Description: "burst pipe"},
		{ID: uuid.New(), Category: "plumbing", Status: leads.StatusCaptured,
			Location: leads.Location{Country: "NG", City: "Abuja", Lat: &abujaLat, Lon: &abujaLon}},
		{ID: uuid.New(), Category: "legal", Status: leads.StatusConsented,
			Location: leads.Location{Country: "NG"}},
		{ID: uuid.New(), Category: "plumbing", Status: leads.StatusConsented,
			Location: leads.Location{Country: "US"}},
		{ID: uuid.New(), Category: "plumbing", Status: leads.StatusConsented,
			Location: leads.Location{Country: "NG"}, BudgetUSD: f64(5000)},
	}

	vendor := vendors.Vendor{
		ID: uuid.New(), Category: "plumbing", Country: "NG",
		Lat: f64(6.5), Lon: f64(3.4), ServiceRadiusKM: f64(50),
		MaxBudget: f64(1000), SubscriptionTier: vendors.TierBasic,
	}

	engine, _ := newTestEngine(nil, open)

	got, err := engine.FindLeadsForVendor(context.Background(), vendor, FeedFilters{})
	if err != nil {
		t.Fatalf("FindLeadsForVendor: %v", err)
	}

	// Kept: the Lagos lead. Dropped: Abuja (outside radius), legal
	// (category), US (country), 5000 (budget).
	if len(got) != 1 {
		t.Fatalf("leads = %d, want 1", len(got))
	}
	if got[0].Location.City != "Lagos" {
		t.Errorf("kept lead = %+v, want the Lagos one", got[0])
	}

	// Free-text filter.
	got, err = engine.FindLeadsForVendor(context.Background(), vendor, FeedFilters{Q: "BURST"})
	if err != nil {
		t.Fatalf("FindLeadsForVendor: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("q filter leads = %d, want 1", len(got))
	}
}

func TestFeedTierCap(t *testing.T) {
	var open []leads.Lead
	for i := 0; i < 10; i++ {
		open = append(open, leads.Lead{
			ID: uuid.New(), Category: "plumbing", Status: leads.StatusConsented,
			Location: leads.Location{Country: "NG"},
		})
	}

	engine, _ := newTestEngine(nil, open)
	vendor := vendors.Vendor{Category: "plumbing", Country: "NG", SubscriptionTier: vendors.TierFree}

	got, err := engine.FindLeadsForVendor(context.Background(), vendor, FeedFilters{})
	if err != nil {
		t.Fatalf("FindLeadsForVendor: %v", err)
	}
	if len(got) != 5 {
		t.Errorf("free tier leads = %d, want 5", len(got))
	}

	vendor.SubscriptionTier = vendors.TierEnterprise
	got, err = engine.FindLeadsForVendor(context.Background(), vendor, FeedFilters{})
	if err != nil {
		t.Fatalf("FindLeadsForVendor: %v", err)
	}
	if len(got) != 10 {
		t.Errorf("enterprise tier leads = %d, want unbounded 10", len(got))
	}
}
