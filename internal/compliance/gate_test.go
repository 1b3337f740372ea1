package compliance

import (
	"context"
	"testing"

	"leadline_backend/internal/events"
	"leadline_backend/internal/tables"
	"leadline_backend/platform/logger"

	"github.com/google/uuid"
)

func testTables() *tables.Tables {
	return &tables.Tables{
		Keywords: tables.Keywords{
			OptOut: []string{"STOP", "UNSUBSCRIBE", "OPT OUT"},
			OptIn:  []string{"START", "UNSTOP"},
			Help:   []string{"HELP", "INFO"},
		},
		Affirmatives: map[string][]string{"en": {"yes"}},
		Messages: map[string]map[string]string{
			"en": {
				"opt_out_confirmed": "You are unsubscribed.",
				"opt_in_confirmed":  "Welcome back!",
				"help":              "Reply STOP to unsubscribe.",
			},
			"fr": {
				"opt_out_confirmed": "Vous êtes désabonné.",
			},
		},
	}
}

type fakeStore struct {
	suppressed map[string]SuppressionEntry
	consents   []ConsentRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{suppressed: make(map[string]SuppressionEntry)}
}

func (f *fakeStore) GetSuppression(_ context.Context, phone string) (SuppressionEntry, bool, error) {
	entry, ok := f.suppressed[phone]
	return entry, ok, nil
}

func (f *fakeStore) Suppress(_ context.Context, phone, reason, channel string) error {
	f.suppressed[phone] = SuppressionEntry{Phone: phone, Reason: reason, Channel: channel}
	return nil
}

func (f *fakeStore) Unsuppress(_ context.Context, phone string) error {
	delete(f.suppressed, phone)
	return nil
}

func (f *fakeStore) RecordConsent(_ context.Context, rec ConsentRecord) (uuid.UUID, error) {
	f.consents = append(f.consents, rec)
	return uuid.New(), nil
}

type fakeUserStatus struct {
	statuses map[string]string
}

func (f *fakeUserStatus) SetStatusByPhone(_ context.Context, phone, status string) error {
	if f.statuses == nil {
		f.statuses = make(map[string]string)
	}
	f.statuses[phone] = status
	return nil
}

func newTestGate(store *fakeStore, userst *fakeUserStatus) *Gate {
	log := logger.New("development")
	return NewGate(store, userst, testTables(), events.NewInMemoryBus(log), log)
}

func TestGateOptOutSuppressesAndRecordsConsent(t *testing.T) {
	store := newFakeStore()
	userst := &fakeUserStatus{}
	gate := newTestGate(store, userst)

	dec, err := gate.Evaluate(context.Background(), "+2348012345678", "STOP", "sms", "en")
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if dec.Outcome != OptOutHandled {
		t.Fatalf("outcome = %v, want OptOutHandled", dec.Outcome)
	}
	if dec.Reply != "You are unsubscribed." {
		t.Errorf("reply = %q", dec.Reply)
	}
	if _, ok := store.suppressed["+2348012345678"]; !ok {
		t.Error("phone should be on the suppression list")
	}
	if userst.statuses["+2348012345678"] != "opted_out" {
		t.Errorf("user status = %q, want opted_out", userst.statuses["+2348012345678"])
	}
	if len(store.consents) != 1 || store.consents[0].ConsentType != ConsentOptOut {
		t.Fatalf("expected one opt_out consent record, got %+v", store.consents)
	}

	// The very next non-opt-in message produces no reply.
	dec, err = gate.Evaluate(context.Background(), "+2348012345678", "hello again", "sms", "en")
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if dec.Outcome != SuppressedSilent {
		t.Errorf("outcome = %v, want SuppressedSilent", dec.Outcome)
	}
	if dec.Reply != "" {
		t.Errorf("suppressed message must get no reply, got %q", dec.Reply)
	}
}

func TestGateOptInReactivatesSuppressedPhone(t *testing.T) {
	store := newFakeStore()
	store.suppressed["+14155550100"] = SuppressionEntry{Phone: "+14155550100", Reason: "user_opt_out"}
	userst := &fakeUserStatus{}
	gate := newTestGate(store, userst)

	// Non-opt-in messages from a suppressed phone are dropped silently,
	// even opt-out and help keywords.
	for _, body := range []string{"hello", "HELP", "STOP"} {
		dec, err := gate.Evaluate(context.Background(), "+14155550100", body, "sms", "en")
		if err != nil {
			t.Fatalf("Evaluate(%q) returned error: %v", body, err)
		}
		if dec.Outcome != SuppressedSilent {
			t.Errorf("Evaluate(%q) outcome = %v, want SuppressedSilent", body, dec.Outcome)
		}
	}

	dec, err := gate.Evaluate(context.Background(), "+14155550100", "START", "sms", "en")
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if dec.Outcome != Reactivated {
		t.Fatalf("outcome = %v, want Reactivated", dec.Outcome)
	}
	if dec.Reply != "Welcome back!" {
		t.Errorf("reply = %q", dec.Reply)
	}
	if _, ok := store.suppressed["+14155550100"]; ok {
		t.Error("suppression entry should be deleted")
	}
	if userst.statuses["+14155550100"] != "active" {
		t.Errorf("user status = %q, want active", userst.statuses["+14155550100"])
	}
	if len(store.consents) != 1 || store.consents[0].ConsentType != ConsentDoubleOptIn {
		t.Fatalf("expected one double_opt_in consent record, got %+v", store.consents)
	}
	if store.consents[0].UserResponse != "START (lifted suppression: user_opt_out)" {
		t.Errorf("consent response = %q", store.consents[0].UserResponse)
	}
}

func TestGateHelpAndPassThrough(t *testing.T) {
	gate := newTestGate(newFakeStore(), &fakeUserStatus{})

	dec, err := gate.Evaluate(context.Background(), "+14155550100", "help me please", "sms", "en")
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if dec.Outcome != HelpHandled {
		t.Errorf("outcome = %v, want HelpHandled", dec.Outcome)
	}

	dec, err = gate.Evaluate(context.Background(), "+14155550100", "I need a plumber", "sms", "en")
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if dec.Outcome != PassThrough {
		t.Errorf("outcome = %v, want PassThrough", dec.Outcome)
	}
	if dec.Reply != "" {
		t.Errorf("pass-through must not carry a reply, got %q", dec.Reply)
	}
}

func TestGateLocalizedReply(t *testing.T) {
	gate := newTestGate(newFakeStore(), &fakeUserStatus{})

	dec, err := gate.Evaluate(context.Background(), "+33612345678", "STOP", "sms", "fr")
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if dec.Reply != "Vous êtes désabonné." {
		t.Errorf("reply = %q, want French confirmation", dec.Reply)
	}
}

func TestMatcherExactAndPrefix(t *testing.T) {
	m := NewMatcher([]string{"STOP", "OPT OUT"})

	cases := []struct {
		text string
		want bool
	}{
		{"STOP", true},
		{"stop", true},
		{"  Stop  ", true},
		{"STOP please", true},
		{"opt out now", true},
		{"STOPPING by later", false},
		{"please STOP", false},
		{"", false},
	}

	for _, tc := range cases {
		if got := m.Matches(tc.text); got != tc.want {
			t.Errorf("Matches(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}
