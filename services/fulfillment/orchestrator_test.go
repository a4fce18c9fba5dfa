package fulfillment

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"plancosmique/models"
	"plancosmique/services/analysis"
	"plancosmique/services/catalog"
	"plancosmique/services/consultation"
	"plancosmique/services/payment"
	"plancosmique/services/wallet"

	"go.uber.org/zap"
)

// memoryStore is the in-memory SessionStore used across these tests.
type memoryStore struct {
	mu       sync.Mutex
	sessions map[string]Session
}

func newMemoryStore() *memoryStore {
	return &memoryStore{sessions: make(map[string]Session)}
}

func (m *memoryStore) Save(_ context.Context, session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.SessionID] = *session
	return nil
}

func (m *memoryStore) Get(_ context.Context, sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, NewFlowError(CodeSessionNotFound, "session introuvable")
	}
	copied := session
	return &copied, nil
}

func (m *memoryStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

type stubWalletAPI struct {
	balances []models.WalletOffering
}

func (s *stubWalletAPI) FetchWalletOfferings(context.Context, string) ([]models.WalletOffering, error) {
	return s.balances, nil
}

func (s *stubWalletAPI) ConsumeOfferings(context.Context, string, []models.RequiredOffering) error {
	return nil
}

type stubProvisioner struct {
	id  string
	err error
}

func (s *stubProvisioner) Create(context.Context, string, models.ConsultationChoice, consultation.FormData) (string, error) {
	return s.id, s.err
}

func (s *stubProvisioner) Fetch(context.Context, string) (*models.Consultation, error) {
	return &models.Consultation{ID: s.id}, nil
}

type stubConsumption struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *stubConsumption) Consume(context.Context, string, []models.RequiredOffering) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.err
}

func (s *stubConsumption) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubWorkflow struct {
	result *payment.Result
}

func (s *stubWorkflow) Run(context.Context, string) *payment.Result {
	return s.result
}

// scriptedOpener serves scripted SSE bodies, then errors.
type scriptedOpener struct {
	mu     sync.Mutex
	bodies []string
	calls  int
}

func (o *scriptedOpener) OpenAnalysisProgressStream(context.Context, string) (io.ReadCloser, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.calls >= len(o.bodies) {
		o.calls++
		return nil, errors.New("connection refused")
	}
	body := o.bodies[o.calls]
	o.calls++
	return io.NopCloser(strings.NewReader(body)), nil
}

func testCatalog() catalog.Resolver {
	return catalog.NewStaticResolver([]models.ConsultationChoice{{
		ID:           "vie-anterieure",
		Title:        "Vie antérieure",
		Participants: models.ParticipantsSolo,
		RequiredOfferings: []models.RequiredOffering{
			{OfferingID: "colombe", Quantity: 2},
		},
	}})
}

type orchestratorFixture struct {
	svc         *DefaultOrchestratorService
	store       *memoryStore
	consumption *stubConsumption
	opener      *scriptedOpener
}

func newFixture(walletBalance int, sseBodies ...string) *orchestratorFixture {
	opener := &scriptedOpener{bodies: sseBodies}
	stream := analysis.NewStreamClient(opener, zap.NewNop())
	stream.BaseDelay = time.Millisecond

	store := newMemoryStore()
	consumption := &stubConsumption{}

	svc := NewOrchestratorService(
		testCatalog(),
		&stubWalletAPI{balances: []models.WalletOffering{{OfferingID: "colombe", Quantity: walletBalance}}},
		&stubProvisioner{id: "cons-77"},
		consumption,
		&stubWorkflow{result: &payment.Result{State: payment.StatePaid, ConsultationID: "cons-77"}},
		stream,
		store,
		zap.NewNop(),
	)
	svc.Simulator = &analysis.Simulator{
		Stages: []analysis.SimulatedStage{{Name: "a", Message: "A", Duration: time.Second}},
		Tick:   10 * time.Millisecond,
	}
	svc.Countdown = &Countdown{Seconds: 2, Interval: 5 * time.Millisecond}

	return &orchestratorFixture{svc: svc, store: store, consumption: consumption, opener: opener}
}

func validForm() consultation.FormData {
	return consultation.FormData{Subject: models.BirthData{
		FullName:   "Awa Diop",
		BirthDate:  "1990-04-12",
		BirthPlace: "Dakar",
	}}
}

func TestStartSessionUnknownChoiceRefused(t *testing.T) {
	f := newFixture(0)

	_, err := f.svc.StartSession(context.Background(), "user-1", "inexistant", "", nil)
	if err == nil {
		t.Fatal("expected a configuration error")
	}
	var flowErr *FlowError
	if !errors.As(err, &flowErr) || flowErr.Code != CodeConfig {
		t.Errorf("expected %s, got %v", CodeConfig, err)
	}
}

func TestDeficitBranchesToOffering(t *testing.T) {
	f := newFixture(1)
	ctx := context.Background()

	session, err := f.svc.StartSession(ctx, "user-1", "vie-anterieure", "cat-1", nil)
	if err != nil {
		t.Fatal(err)
	}
	session, err = f.svc.SubmitForm(ctx, session.SessionID, validForm())
	if err != nil {
		t.Fatal(err)
	}

	if session.State.Phase != PhaseOffering {
		t.Fatalf("expected offering, got %s", session.State.Phase)
	}
	deficit := session.State.Deficits[0]
	if deficit.OfferingID != "colombe" || deficit.Needed != 2 || deficit.Available != 1 {
		t.Errorf("unexpected deficit: %+v", deficit)
	}
	if f.consumption.callCount() != 0 {
		t.Error("no consumption may run while a deficit exists")
	}
}

func TestFullCoverageAutoConsumesAndStreams(t *testing.T) {
	f := newFixture(2,
		"data: {\"progress\":40,\"completed\":false}\n",
		"data: {\"progress\":100,\"completed\":true}\n",
	)
	ctx := context.Background()

	session, err := f.svc.StartSession(ctx, "user-1", "vie-anterieure", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	session, err = f.svc.SubmitForm(ctx, session.SessionID, validForm())
	if err != nil {
		t.Fatal(err)
	}
	if session.State.Phase != PhaseGenereAnalyse {
		t.Fatalf("expected genereanalyse, got %s", session.State.Phase)
	}
	if f.consumption.callCount() != 1 {
		t.Fatalf("expected one auto-consumption, got %d", f.consumption.callCount())
	}

	// The stream drops after 40%, reconnects, completes at 100%. The
	// snapshot must converge on completed with the countdown armed.
	deadline := time.After(2 * time.Second)
	for {
		snapshot, err := f.svc.Snapshot(ctx, session.SessionID)
		if err != nil {
			t.Fatal(err)
		}
		if snapshot.ShouldAutoRedirect {
			if snapshot.AnalysisProgress != 100 {
				t.Errorf("expected progress 100, got %d", snapshot.AnalysisProgress)
			}
			if snapshot.Status != "completed" {
				t.Errorf("expected completed status, got %s", snapshot.Status)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("snapshot never reached completion")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestConfirmOfferingDebitFailureStaysAtOffering(t *testing.T) {
	f := newFixture(1)
	f.consumption.err = wallet.NewDebitError("solde insuffisant")
	ctx := context.Background()

	session, _ := f.svc.StartSession(ctx, "user-1", "vie-anterieure", "", nil)
	session, _ = f.svc.SubmitForm(ctx, session.SessionID, validForm())

	returned, err := f.svc.ConfirmOffering(ctx, session.SessionID)
	if err == nil {
		t.Fatal("expected a retryable consume error")
	}
	if returned.State.Phase != PhaseOffering {
		t.Errorf("a failed debit must leave the session at offering, got %s", returned.State.Phase)
	}

	// Explicit user retry succeeds.
	f.consumption.err = nil
	returned, err = f.svc.ConfirmOffering(ctx, session.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	if returned.State.Phase != PhaseGenereAnalyse {
		t.Errorf("expected genereanalyse after successful retry, got %s", returned.State.Phase)
	}
}

func TestPaymentCallbackAlreadyUsedArmsRedirect(t *testing.T) {
	f := newFixture(1)
	f.svc.Payments = &stubWorkflow{result: &payment.Result{
		State:             payment.StateAlreadyUsed,
		Message:           "Ce paiement a déjà été traité",
		ConsultationID:    "cons-77",
		AnalysisCompleted: true,
	}}
	ctx := context.Background()

	session, _ := f.svc.StartSession(ctx, "user-1", "vie-anterieure", "", nil)
	session, _ = f.svc.SubmitForm(ctx, session.SessionID, validForm())

	result, err := f.svc.HandlePaymentCallback(ctx, session.SessionID, "tok-1")
	if err != nil {
		t.Fatal(err)
	}
	if result.State != payment.StateAlreadyUsed {
		t.Fatalf("unexpected workflow state %s", result.State)
	}

	snapshot, err := f.svc.Snapshot(ctx, session.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	if snapshot.Status != "already_used" {
		t.Errorf("expected already_used status, got %s", snapshot.Status)
	}
	if !snapshot.ShouldAutoRedirect || snapshot.AnalysisProgress != 100 {
		t.Errorf("already_used must arm the redirect with full progress: %+v", snapshot)
	}
}

// bookGateway verifies a paid token whose personal_Info marks a book, then
// reports the processing as an already-fulfilled duplicate with the book's
// download link.
type bookGateway struct{}

func (bookGateway) VerifyPayment(context.Context, string) (*models.VerifyPaymentResult, error) {
	return &models.VerifyPaymentResult{
		Success: true,
		Status:  "paid",
		Data: models.VerifyPaymentData{
			Amount:       9000,
			PersonalInfo: []models.PersonalInfo{{Type: models.ProductTypeBook}},
		},
	}, nil
}

func (bookGateway) ProcessConsultationPayment(context.Context, string, models.PaymentRecord) (*models.ProcessPaymentResult, error) {
	return &models.ProcessPaymentResult{
		Success:        false,
		Message:        "Ce paiement a déjà été traité",
		ConsultationID: "cons-77",
		DownloadURL:    "https://cdn/ebook.pdf",
	}, nil
}

func TestBookPaymentRedirectsToLibrary(t *testing.T) {
	f := newFixture(1)
	f.svc.Payments = payment.NewWorkflowService(bookGateway{}, zap.NewNop())
	ctx := context.Background()

	session, _ := f.svc.StartSession(ctx, "user-1", "vie-anterieure", "", nil)
	session, _ = f.svc.SubmitForm(ctx, session.SessionID, validForm())

	result, err := f.svc.HandlePaymentCallback(ctx, session.SessionID, "tok-book")
	if err != nil {
		t.Fatal(err)
	}
	if result.ProductType != models.ProductTypeBook {
		t.Fatalf("expected a book fulfillment, got %q", result.ProductType)
	}

	deadline := time.After(2 * time.Second)
	for {
		snapshot, err := f.svc.Snapshot(ctx, session.SessionID)
		if err != nil {
			t.Fatal(err)
		}
		if snapshot.RedirectTarget != "" {
			if snapshot.RedirectTarget != RouteLibrary {
				t.Errorf("a book with a download must redirect to the library, got %q", snapshot.RedirectTarget)
			}
			if snapshot.Actions.DownloadBook != "https://cdn/ebook.pdf" {
				t.Errorf("download action missing: %+v", snapshot.Actions)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("redirect target never resolved")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (f *orchestratorFixture) hasRuntime(sessionID string) bool {
	f.svc.mu.Lock()
	defer f.svc.mu.Unlock()
	_, ok := f.svc.runtimes[sessionID]
	return ok
}

func TestExpiredSessionReapsRuntime(t *testing.T) {
	f := newFixture(2, "data: {\"progress\":40,\"completed\":false}\n")
	f.svc.RuntimeTTL = 20 * time.Millisecond
	ctx := context.Background()

	session, err := f.svc.StartSession(ctx, "user-1", "vie-anterieure", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	session, err = f.svc.SubmitForm(ctx, session.SessionID, validForm())
	if err != nil {
		t.Fatal(err)
	}
	if !f.hasRuntime(session.SessionID) {
		t.Fatal("expected a live runtime after the analysis started")
	}

	// The store entry disappears without a teardown, as a Redis TTL would
	// make it. The expiry check must cancel the timers and evict.
	if err := f.store.Delete(ctx, session.SessionID); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for f.hasRuntime(session.SessionID) {
		select {
		case <-deadline:
			t.Fatal("runtime survived its session's expiry")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestLiveSessionKeepsRuntimeAcrossExpiryChecks(t *testing.T) {
	f := newFixture(2)
	f.svc.RuntimeTTL = 10 * time.Millisecond
	ctx := context.Background()

	session, err := f.svc.StartSession(ctx, "user-1", "vie-anterieure", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Snapshot(ctx, session.SessionID); err != nil {
		t.Fatal(err)
	}

	time.Sleep(50 * time.Millisecond)
	if !f.hasRuntime(session.SessionID) {
		t.Error("the expiry check must re-arm while the session is still stored")
	}
}

func TestTeardownDropsSession(t *testing.T) {
	f := newFixture(2)
	ctx := context.Background()

	session, _ := f.svc.StartSession(ctx, "user-1", "vie-anterieure", "", nil)
	if err := f.svc.Teardown(ctx, session.SessionID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Snapshot(ctx, session.SessionID); err == nil {
		t.Error("expected the session to be gone after teardown")
	}
}
