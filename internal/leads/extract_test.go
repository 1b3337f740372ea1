package leads

import (
	"testing"

	"leadline_backend/internal/tables"
	"leadline_backend/internal/users"
)

func loadTables(t *testing.T) *tables.Tables {
	t.Helper()
	tbl, err := tables.Load("../../config/tables.yaml")
	if err != nil {
		t.Fatalf("load tables: %v", err)
	}
	return tbl
}

func TestBudgetExtraction(t *testing.T) {
	ex := NewExtractor(loadTables(t))

	cases := []struct {
		name     string
		text     string
		wantCode string
		wantAmt  float64
		wantUSD  float64
		wantOK   bool
	}{
		{"dollar prefix", "my budget is $150 for this", "USD", 150, 150, true},
		{"naira symbol", "I can pay ₦50,000", "NGN", 50000, 32.5, true},
		{"naira word suffix", "around 20000 naira", "NGN", 20000, 13, true},
		{"pound prefix", "up to £300", "GBP", 300, 381, true},
		{"kenyan shilling", "budget ksh 5000", "KES", 5000, 38.5, true},
		{"rupees suffix", "maybe 2000 rupees", "INR", 2000, 24, true},
		{"decimal amount", "$99.50 max", "USD", 99.5, 99.5, true},
		{"no currency", "I need a plumber tomorrow", "", 0, 0, false},
		{"bare number", "call me at 5000", "", 0, 0, false},
		{"rand does not fire inside words", "repair needed urgently", "", 0, 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, amt, usd, ok := ex.Budget(tc.text)
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tc.wantOK)
			}
			if !ok {
				return
			}
			if code != tc.wantCode {
				t.Errorf("code = %q, want %q", code, tc.wantCode)
			}
			if amt != tc.wantAmt {
				t.Errorf("amount = %v, want %v", amt, tc.wantAmt)
			}
			if diff := usd - tc.wantUSD; diff > 0.001 || diff < -0.001 {
				t.Errorf("usd = %v, want %v", usd, tc.wantUSD)
			}
		})
	}
}

func TestBudgetEarliestMatchWins(t *testing.T) {
	ex := NewExtractor(loadTables(t))

	code, amt, _, ok := ex.Budget("₦10,000 which is about $7")
	if !ok || code != "NGN" || amt != 10000 {
		t.Errorf("got (%q, %v, %v), want first-mentioned NGN 10000", code, amt, ok)
	}
}

func TestLocationFromText(t *testing.T) {
	ex := NewExtractor(loadTables(t))

	loc, ok := ex.LocationFromText("I need a plumber in Lekki urgently")
	if !ok {
		t.Fatal("expected a location match")
	}
	if loc.Country != "NG" || loc.City != "Lagos" {
		t.Errorf("got %+v, want Lagos NG via alias", loc)
	}

	if _, ok := ex.LocationFromText("no place mentioned here"); ok {
		t.Error("unexpected location match")
	}
}

func TestResolveLocationPriority(t *testing.T) {
	ex := NewExtractor(loadTables(t))

	country, city := "KE", "Nairobi"
	stored := users.User{Phone: "+2348012345678", Country: &country, City: &city}

	// Stored location beats both the text and the calling code.
	loc := ex.ResolveLocation(stored, "plumber needed in Lagos")
	if loc.Country != "KE" || loc.City != "Nairobi" {
		t.Errorf("got %+v, want stored Nairobi KE", loc)
	}

	// Text beats the calling code.
	bare := users.User{Phone: "+2348012345678"}
	loc = ex.ResolveLocation(bare, "plumber needed in Nairobi")
	if loc.Country != "KE" {
		t.Errorf("got %+v, want text-derived KE", loc)
	}

	// Calling code is the last resort.
	loc = ex.ResolveLocation(bare, "plumber needed asap")
	if loc.Country != "NG" {
		t.Errorf("got %+v, want calling-code NG", loc)
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{StatusReceived, StatusCaptured, true},
		{StatusReceived, StatusConsented, true},
		{StatusCaptured, StatusConsented, true},
		{StatusConsented, StatusDistributed, true},
		{StatusConsented, StatusAccepted, true},
		{StatusConsented, StatusDeclined, true},
		{StatusConsented, StatusCaptured, false},
		{StatusCaptured, StatusReceived, false},
		{StatusDistributed, StatusAccepted, false},
		{StatusAccepted, StatusDeclined, false},
		{StatusDeclined, StatusConsented, false},
		{"bogus", StatusCaptured, false},
	}

	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}
