package messaging

import (
	"context"
	"sync"
	"testing"

	"leadline_backend/internal/classify"
	"leadline_backend/internal/compliance"
	"leadline_backend/internal/delivery"
	"leadline_backend/internal/users"
	"leadline_backend/platform/logger"
	"leadline_backend/platform/phone"

	"github.com/google/uuid"
)

type fakeUsers struct {
	byPhone  map[string]users.User
	channels map[uuid.UUID]string
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byPhone: make(map[string]users.User), channels: make(map[uuid.UUID]string)}
}

func (f *fakeUsers) GetByPhone(_ context.Context, phoneNum string) (users.User, error) {
	u, ok := f.byPhone[phoneNum]
	if !ok {
		return users.User{}, users.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) Create(_ context.Context, params users.CreateParams) (users.User, error) {
	u := users.User{
		ID:               uuid.New(),
		Phone:            params.Phone,
		Status:           params.Status,
		OnboardingStep:   params.OnboardingStep,
		Language:         params.Language,
		PreferredChannel: params.PreferredChannel,
	}
	f.byPhone[params.Phone] = u
	return u, nil
}

func (f *fakeUsers) SetPreferredChannel(_ context.Context, id uuid.UUID, channel string) error {
	f.channels[id] = channel
	return nil
}

type fakeLog struct {
	messages  []Message
	processed map[string]bool
}

func newFakeLog() *fakeLog {
	return &fakeLog{processed: make(map[string]bool)}
}

func (f *fakeLog) RecordMessage(_ context.Context, m Message) error {
	f.messages = append(f.messages, m)
	return nil
}

func (f *fakeLog) MarkProcessed(_ context.Context, id string) (bool, error) {
	if id == "" {
		return true, nil
	}
	if f.processed[id] {
		return false, nil
	}
	f.processed[id] = true
	return true, nil
}

type fakeGate struct {
	decision compliance.Decision
	calls    int
}

func (f *fakeGate) Evaluate(_ context.Context, _, _, _, _ string) (compliance.Decision, error) {
	f.calls++
	return f.decision, nil
}

type fakeOnboarder struct {
	reply  string
	inputs []string
}

func (f *fakeOnboarder) Advance(_ context.Context, _ users.User, input, _ string) (string, error) {
	f.inputs = append(f.inputs, input)
	return f.reply, nil
}

type fakeClassifier struct {
	intent classify.Intent
	calls  int
}

func (f *fakeClassifier) Classify(_ context.Context, _, _ string) (classify.Intent, error) {
	f.calls++
	return f.intent, nil
}

type fakeLeadHandler struct {
	pendingReply   string
	pendingHandled bool
	intentReply    string
	intents        []classify.Intent
}

func (f *fakeLeadHandler) HandlePendingReply(_ context.Context, _ users.User, _ string) (string, bool, error) {
	return f.pendingReply, f.pendingHandled, nil
}

func (f *fakeLeadHandler) HandleIntent(_ context.Context, _ users.User, intent classify.Intent) (string, error) {
	f.intents = append(f.intents, intent)
	return f.intentReply, nil
}

type fakeDeliverer struct {
	requests []delivery.Request
	success  bool
}

func (f *fakeDeliverer) Deliver(_ context.Context, req delivery.Request) delivery.Result {
	f.requests = append(f.requests, req)
	return delivery.Result{Success: f.success, MethodUsed: "sms"}
}

type pipelineFixture struct {
	pipeline   *Pipeline
	users      *fakeUsers
	log        *fakeLog
	gate       *fakeGate
	onboarder  *fakeOnboarder
	classifier *fakeClassifier
	leads      *fakeLeadHandler
	deliverer  *fakeDeliverer
}

func newPipelineFixture() *pipelineFixture {
	f := &pipelineFixture{
		users:      newFakeUsers(),
		log:        newFakeLog(),
		gate:       &fakeGate{decision: compliance.Decision{Outcome: compliance.PassThrough}},
		onboarder:  &fakeOnboarder{reply: "Welcome! Reply YES to continue."},
		classifier: &fakeClassifier{},
		leads:      &fakeLeadHandler{},
		deliverer:  &fakeDeliverer{success: true},
	}
	f.pipeline = NewPipeline(f.users, f.log, f.gate, f.onboarder, f.classifier, f.leads,
		f.deliverer, logger.New("test"))
	return f
}

func inboundSMS(body, sid string) phone.Inbound {
	return phone.Inbound{
		Phone:             "+2348012345678",
		Channel:           phone.ChannelSMS,
		Body:              body,
		ProviderMessageID: sid,
	}
}

func TestUnknownNumberStartsOnboarding(t *testing.T) {
	f := newPipelineFixture()

	if err := f.pipeline.Process(context.Background(), inboundSMS("HI", "SM1")); err != nil {
		t.Fatalf("Process: %v", err)
	}

	u, ok := f.users.byPhone["+2348012345678"]
	if !ok {
		t.Fatal("user not created")
	}
	if u.Status != users.StatusOnboarding {
		t.Errorf("status = %q, want %q", u.Status, users.StatusOnboarding)
	}
	if u.OnboardingStep == nil || *u.OnboardingStep != users.StepConsent {
		t.Errorf("onboarding step = %v, want consent", u.OnboardingStep)
	}

	if len(f.deliverer.requests) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(f.deliverer.requests))
	}
	if got := f.deliverer.requests[0].Message; got != f.onboarder.reply {
		t.Errorf("reply = %q, want consent prompt", got)
	}

	// Inbound row must precede the outbound row.
	if len(f.log.messages) != 2 {
		t.Fatalf("message rows = %d, want 2", len(f.log.messages))
	}
	if f.log.messages[0].Direction != DirectionInbound || f.log.messages[1].Direction != DirectionOutbound {
		t.Errorf("log order = %s,%s; want inbound,outbound",
			f.log.messages[0].Direction, f.log.messages[1].Direction)
	}
}

func TestDuplicateProviderMessageSkipped(t *testing.T) {
	f := newPipelineFixture()
	ctx := context.Background()

	if err := f.pipeline.Process(ctx, inboundSMS("HI", "SM1")); err != nil {
		t.Fatalf("first Process: %v", err)
	}
	rows, sends := len(f.log.messages), len(f.deliverer.requests)

	if err := f.pipeline.Process(ctx, inboundSMS("HI", "SM1")); err != nil {
		t.Fatalf("duplicate Process: %v", err)
	}
	if len(f.log.messages) != rows || len(f.deliverer.requests) != sends {
		t.Error("duplicate delivery produced new side effects")
	}
}

func TestGateShortCircuitSkipsRouting(t *testing.T) {
	f := newPipelineFixture()
	f.gate.decision = compliance.Decision{
		Outcome: compliance.OptOutHandled,
		Reply:   "You have been unsubscribed.",
	}

	if err := f.pipeline.Process(context.Background(), inboundSMS("STOP", "SM2")); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if len(f.onboarder.inputs) != 0 {
		t.Error("gate-handled message must not reach the state machine")
	}
	if len(f.deliverer.requests) != 1 || f.deliverer.requests[0].Message != f.gate.decision.Reply {
		t.Errorf("deliveries = %v, want one opt-out confirmation", f.deliverer.requests)
	}
	for _, m := range f.log.messages {
		if m.Direction == DirectionInbound {
			t.Error("gate-handled message should not be persisted as inbound")
		}
	}
}

func TestSuppressedSilentDropsWithoutReply(t *testing.T) {
	f := newPipelineFixture()
	f.gate.decision = compliance.Decision{Outcome: compliance.SuppressedSilent}

	if err := f.pipeline.Process(context.Background(), inboundSMS("hello?", "SM3")); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(f.deliverer.requests) != 0 {
		t.Error("suppressed phone must get no reply")
	}
	if len(f.log.messages) != 0 {
		t.Error("suppressed message must leave no log rows")
	}
}

func TestActiveUserRoutesToClassifier(t *testing.T) {
	f := newPipelineFixture()
	f.users.byPhone["+2348012345678"] = users.User{
		ID:               uuid.New(),
		Phone:            "+2348012345678",
		Status:           users.StatusActive,
		Language:         "en",
		PreferredChannel: "sms",
	}
	f.classifier.intent = classify.Intent{
		Category: classify.CategoryPlumbing,
		Urgency:  classify.UrgencyHigh,
		Lead:     &classify.LeadSignal{Category: classify.CategoryPlumbing, Description: "burst pipe"},
	}
	f.leads.intentReply = "Thanks! We've logged your request."

	if err := f.pipeline.Process(context.Background(), inboundSMS("my pipe burst", "SM4")); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if len(f.leads.intents) != 1 {
		t.Fatalf("lead handler calls = %d, want 1", len(f.leads.intents))
	}
	if len(f.onboarder.inputs) != 0 {
		t.Error("active user must not reach the onboarding machine")
	}
	if len(f.deliverer.requests) != 1 || f.deliverer.requests[0].Message != f.leads.intentReply {
		t.Errorf("deliveries = %v, want lead confirmation", f.deliverer.requests)
	}
}

func TestPendingLeadReplyPreemptsClassification(t *testing.T) {
	f := newPipelineFixture()
	f.users.byPhone["+2348012345678"] = users.User{
		ID:     uuid.New(),
		Phone:  "+2348012345678",
		Status: users.StatusActive,
	}
	f.leads.pendingHandled = true
	f.leads.pendingReply = "Thanks! We've logged your request."

	if err := f.pipeline.Process(context.Background(), inboundSMS("yes", "SM5")); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if f.classifier.calls != 0 {
		t.Error("pending-lead reply must not be classified")
	}
	if len(f.deliverer.requests) != 1 || f.deliverer.requests[0].Message != f.leads.pendingReply {
		t.Errorf("deliveries = %v, want pending-lead confirmation", f.deliverer.requests)
	}
}

func TestChannelSwitchUpdatesPreference(t *testing.T) {
	f := newPipelineFixture()
	id := uuid.New()
	f.users.byPhone["+2348012345678"] = users.User{
		ID:               id,
		Phone:            "+2348012345678",
		Status:           users.StatusActive,
		PreferredChannel: "sms",
	}

	in := inboundSMS("hello", "SM6")
	in.Channel = phone.ChannelWhatsApp
	if err := f.pipeline.Process(context.Background(), in); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if got := f.users.channels[id]; got != "whatsapp" {
		t.Errorf("preferred channel = %q, want whatsapp", got)
	}
}

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	km := NewKeyedMutex()

	var counter, max int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("+2348012345678")
			defer unlock()

			mu.Lock()
			counter++
			if counter > max {
				max = counter
			}
			mu.Unlock()

			mu.Lock()
			counter--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if max != 1 {
		t.Errorf("max concurrent holders = %d, want 1", max)
	}
}
