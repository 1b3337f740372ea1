package leads

import (
	"context"
	"strings"
	"testing"
	"time"

	"leadline_backend/internal/classify"
	"leadline_backend/internal/events"
	"leadline_backend/internal/users"
	"leadline_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeLeadStore struct {
	created []*Lead
}

func (f *fakeLeadStore) Create(_ context.Context, l *Lead) error {
	l.ID = uuid.New()
	l.CreatedAt = time.Now()
	f.created = append(f.created, l)
	return nil
}

type fakeLeadUserStore struct {
	pending   map[uuid.UUID][]byte
	expiries  map[uuid.UUID]time.Time
	locations map[uuid.UUID]string
}

func newFakeLeadUserStore() *fakeLeadUserStore {
	return &fakeLeadUserStore{
		pending:   map[uuid.UUID][]byte{},
		expiries:  map[uuid.UUID]time.Time{},
		locations: map[uuid.UUID]string{},
	}
}

func (f *fakeLeadUserStore) SetPendingLead(_ context.Context, id uuid.UUID, payload []byte, expiresAt time.Time) error {
	f.pending[id] = payload
	f.expiries[id] = expiresAt
	return nil
}

func (f *fakeLeadUserStore) ClearPendingLead(_ context.Context, id uuid.UUID) error {
	delete(f.pending, id)
	delete(f.expiries, id)
	return nil
}

func (f *fakeLeadUserStore) SetLocation(_ context.Context, id uuid.UUID, country, _, _ *string, _, _ *float64) error {
	if country != nil {
		f.locations[id] = *country
	}
	return nil
}

func newTestMaterializer(t *testing.T) (*Materializer, *fakeLeadStore, *fakeLeadUserStore) {
	t.Helper()
	store := &fakeLeadStore{}
	userStore := newFakeLeadUserStore()
	log := logger.New("test")
	m := NewMaterializer(store, userStore, loadTables(t), events.NewInMemoryBus(log), log)
	return m, store, userStore
}

func activeUser() users.User {
	return users.User{
		ID:       uuid.New(),
		Phone:    "+2348012345678",
		Status:   users.StatusActive,
		Language: "en",
	}
}

func plumbingIntent(askConsent bool) classify.Intent {
	return classify.Intent{
		Category: classify.CategoryPlumbing,
		Urgency:  classify.UrgencyMedium,
		Lead: &classify.LeadSignal{
			Category:    "plumbing",
			AskConsent:  askConsent,
			Description: "burst pipe in Lekki, budget ₦30,000",
		},
	}
}

func TestHandleIntentImmediateCapture(t *testing.T) {
	m, store, _ := newTestMaterializer(t)
	u := activeUser()

	reply, err := m.HandleIntent(context.Background(), u, plumbingIntent(false))
	if err != nil {
		t.Fatalf("HandleIntent: %v", err)
	}

	if len(store.created) != 1 {
		t.Fatalf("leads created = %d, want 1", len(store.created))
	}
	lead := store.created[0]
	if lead.Status != StatusCaptured {
		t.Errorf("status = %q, want %q", lead.Status, StatusCaptured)
	}
	if lead.ConsentGiven {
		t.Error("immediate capture must not claim consent")
	}
	if lead.PartnerName != "PipeWorks Network" {
		t.Errorf("partner = %q, want PipeWorks Network", lead.PartnerName)
	}
	if lead.LeadValue != 12.5 {
		t.Errorf("lead value = %v, want partner flat value 12.5", lead.LeadValue)
	}
	if lead.Location.Country != "NG" || lead.Location.City != "Lagos" {
		t.Errorf("location = %+v, want Lagos NG from text", lead.Location)
	}
	if lead.BudgetUSD == nil || *lead.BudgetUSD < 19 || *lead.BudgetUSD > 20 {
		t.Errorf("budgetUSD = %v, want about 19.5", lead.BudgetUSD)
	}
	if reply == "" {
		t.Error("expected a lead_created reply")
	}
}

func TestHandleIntentDefersOnAskConsent(t *testing.T) {
	m, store, userStore := newTestMaterializer(t)
	u := activeUser()

	reply, err := m.HandleIntent(context.Background(), u, plumbingIntent(true))
	if err != nil {
		t.Fatalf("HandleIntent: %v", err)
	}

	if len(store.created) != 0 {
		t.Fatalf("lead created before consent, want deferred")
	}
	if _, ok := userStore.pending[u.ID]; !ok {
		t.Fatal("pending lead session not stored")
	}
	if !strings.Contains(reply, "PipeWorks Network") {
		t.Errorf("consent request %q should name the partner", reply)
	}
}

func TestHandleIntentUnknownCategorySkips(t *testing.T) {
	m, store, _ := newTestMaterializer(t)
	intent := plumbingIntent(false)
	intent.Lead.Category = "astrology"

	reply, err := m.HandleIntent(context.Background(), activeUser(), intent)
	if err != nil {
		t.Fatalf("HandleIntent: %v", err)
	}
	if reply != "" || len(store.created) != 0 {
		t.Error("category without a partner must create nothing")
	}
}

func TestPendingReplyAffirmativeCreatesConsentedLead(t *testing.T) {
	m, store, userStore := newTestMaterializer(t)
	u := activeUser()

	if _, err := m.HandleIntent(context.Background(), u, plumbingIntent(true)); err != nil {
		t.Fatalf("HandleIntent: %v", err)
	}
	u.PendingLead = userStore.pending[u.ID]
	exp := userStore.expiries[u.ID]
	u.PendingLeadExpiresAt = &exp

	reply, handled, err := m.HandlePendingReply(context.Background(), u, "yes")
	if err != nil {
		t.Fatalf("HandlePendingReply: %v", err)
	}
	if !handled {
		t.Fatal("affirmative reply must be handled")
	}

	if len(store.created) != 1 {
		t.Fatalf("leads created = %d, want 1", len(store.created))
	}
	lead := store.created[0]
	if lead.Status != StatusReceived {
		t.Errorf("status = %q, want %q", lead.Status, StatusReceived)
	}
	if !lead.ConsentGiven || lead.ConsentTimestamp == nil {
		t.Error("consented lead must record consent and its timestamp")
	}
	if _, stillPending := userStore.pending[u.ID]; stillPending {
		t.Error("pending session must be cleared after creation")
	}
	if reply == "" {
		t.Error("expected a lead_created reply")
	}
}

func TestPendingReplyNegativeDiscards(t *testing.T) {
	m, store, userStore := newTestMaterializer(t)
	u := activeUser()

	if _, err := m.HandleIntent(context.Background(), u, plumbingIntent(true)); err != nil {
		t.Fatalf("HandleIntent: %v", err)
	}
	u.PendingLead = userStore.pending[u.ID]

	reply, handled, err := m.HandlePendingReply(context.Background(), u, "no")
	if err != nil {
		t.Fatalf("HandlePendingReply: %v", err)
	}
	if !handled {
		t.Fatal("negative reply must be handled")
	}
	if len(store.created) != 0 {
		t.Error("declined lead must not be created")
	}
	if _, stillPending := userStore.pending[u.ID]; stillPending {
		t.Error("pending session must be cleared after decline")
	}
	if reply == "" {
		t.Error("expected a lead_declined reply")
	}
}

func TestPendingReplyExpiredFallsThrough(t *testing.T) {
	m, store, userStore := newTestMaterializer(t)
	u := activeUser()

	if _, err := m.HandleIntent(context.Background(), u, plumbingIntent(true)); err != nil {
		t.Fatalf("HandleIntent: %v", err)
	}
	u.PendingLead = userStore.pending[u.ID]
	past := time.Now().Add(-time.Hour)
	u.PendingLeadExpiresAt = &past

	_, handled, err := m.HandlePendingReply(context.Background(), u, "yes")
	if err != nil {
		t.Fatalf("HandlePendingReply: %v", err)
	}
	if handled {
		t.Error("expired session must fall through to normal routing")
	}
	if len(store.created) != 0 {
		t.Error("expired session must not create a lead")
	}
	if _, stillPending := userStore.pending[u.ID]; stillPending {
		t.Error("expired session must be cleared")
	}
}

func TestNoPendingLeadFallsThrough(t *testing.T) {
	m, _, _ := newTestMaterializer(t)

	_, handled, err := m.HandlePendingReply(context.Background(), activeUser(), "yes")
	if err != nil {
		t.Fatalf("HandlePendingReply: %v", err)
	}
	if handled {
		t.Error("no session means nothing to handle")
	}
}
