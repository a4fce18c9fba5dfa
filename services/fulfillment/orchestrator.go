package fulfillment

import (
	"context"
	"sync"
	"time"

	"plancosmique/backend"
	"plancosmique/models"
	"plancosmique/services/analysis"
	"plancosmique/services/catalog"
	"plancosmique/services/consultation"
	"plancosmique/services/payment"
	"plancosmique/services/wallet"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrchestratorService drives the fulfillment workflow:
// selection -> form -> offering reconciliation -> payment/consumption ->
// streamed analysis -> completion/redirect.
type OrchestratorService interface {
	StartSession(ctx context.Context, userID, choiceID, categoryID string, profile *consultation.FormData) (*Session, error)
	SubmitForm(ctx context.Context, sessionID string, form consultation.FormData) (*Session, error)
	ConfirmOffering(ctx context.Context, sessionID string) (*Session, error)
	MarketplaceHandoffFor(ctx context.Context, sessionID string) (*Session, error)
	HandlePaymentCallback(ctx context.Context, sessionID, token string) (*payment.Result, error)
	ResetError(ctx context.Context, sessionID string) (*Session, error)
	Snapshot(ctx context.Context, sessionID string) (*Snapshot, error)
	Teardown(ctx context.Context, sessionID string) error
}

// DefaultOrchestratorService implements OrchestratorService.
type DefaultOrchestratorService struct {
	Catalog     catalog.Resolver
	Wallet      backend.WalletAPI
	Provisioner consultation.ProvisionerService
	Consumption wallet.ConsumptionService
	Payments    payment.WorkflowService
	Stream      *analysis.StreamClient
	Simulator   *analysis.Simulator
	Sessions    SessionStore
	Countdown   *Countdown
	Logger      *zap.Logger

	// MarketplaceURL is where users buy missing offerings.
	MarketplaceURL string

	// RuntimeTTL bounds how long a runtime may outlive its last check
	// against the session store. Defaults to the session TTL.
	RuntimeTTL time.Duration

	mu       sync.Mutex
	runtimes map[string]*sessionRuntime
}

// sessionRuntime holds the volatile, in-memory side of a session: the latest
// progress event, the live connection and every cancellable timer. All of it
// dies with Teardown; none of it is persisted.
type sessionRuntime struct {
	mu sync.Mutex

	progress      models.AnalysisProgressEvent
	haveProgress  bool
	realEventSeen bool

	consuming bool

	cancelStream    func()
	cancelSimulator func()
	cancelCountdown func()

	countdownArmed     bool
	countdownRemaining int
	redirectTarget     string

	expiry *time.Timer
}

func NewOrchestratorService(
	catalogResolver catalog.Resolver,
	walletAPI backend.WalletAPI,
	provisioner consultation.ProvisionerService,
	consumption wallet.ConsumptionService,
	payments payment.WorkflowService,
	stream *analysis.StreamClient,
	sessions SessionStore,
	logger *zap.Logger,
) *DefaultOrchestratorService {
	return &DefaultOrchestratorService{
		Catalog:     catalogResolver,
		Wallet:      walletAPI,
		Provisioner: provisioner,
		Consumption: consumption,
		Payments:    payments,
		Stream:      stream,
		Simulator:   analysis.NewSimulator(),
		Sessions:    sessions,
		Countdown:   NewCountdown(),
		Logger:      logger,
		runtimes:    make(map[string]*sessionRuntime),
	}
}

func (s *DefaultOrchestratorService) runtimeTTL() time.Duration {
	if s.RuntimeTTL > 0 {
		return s.RuntimeTTL
	}
	return sessionTTL
}

func (s *DefaultOrchestratorService) runtime(sessionID string) *sessionRuntime {
	s.mu.Lock()
	defer s.mu.Unlock()
	rt, ok := s.runtimes[sessionID]
	if !ok {
		rt = &sessionRuntime{}
		// Timers must never outlive the persisted session: if the Redis
		// entry expires without an explicit teardown, the expiry check
		// reaps the runtime and everything it drives.
		rt.expiry = time.AfterFunc(s.runtimeTTL(), func() { s.expireRuntime(sessionID) })
		s.runtimes[sessionID] = rt
	}
	return rt
}

// expireRuntime drops the runtime once its session has vanished from the
// store; while the session is still live the check re-arms for another
// period.
func (s *DefaultOrchestratorService) expireRuntime(sessionID string) {
	if _, err := s.Sessions.Get(context.Background(), sessionID); err == nil {
		s.mu.Lock()
		if rt, ok := s.runtimes[sessionID]; ok && rt.expiry != nil {
			rt.expiry.Reset(s.runtimeTTL())
		}
		s.mu.Unlock()
		return
	}
	s.Logger.Info("reaping runtime for expired session", zap.String("sessionId", sessionID))
	s.dropRuntime(sessionID)
}

// dropRuntime evicts the runtime and cancels everything it drives: the
// stream subscription, the simulator, the countdown and the expiry check.
func (s *DefaultOrchestratorService) dropRuntime(sessionID string) {
	s.mu.Lock()
	rt, ok := s.runtimes[sessionID]
	if ok {
		delete(s.runtimes, sessionID)
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.cancelStream != nil {
		rt.cancelStream()
	}
	if rt.cancelSimulator != nil {
		rt.cancelSimulator()
	}
	if rt.cancelCountdown != nil {
		rt.cancelCountdown()
	}
	if rt.expiry != nil {
		rt.expiry.Stop()
	}
}

// StartSession resolves the choice, reconciles the wallet and opens a new
// session. When the choice needs no third-party form, profile birth data is
// available and the wallet already covers the requirement, the form step is
// skipped and the consultation is created immediately.
func (s *DefaultOrchestratorService) StartSession(ctx context.Context, userID, choiceID, categoryID string, profile *consultation.FormData) (*Session, error) {
	choice, err := s.Catalog.Choice(choiceID)
	if err != nil {
		return nil, NewFlowError(CodeConfig, backend.BackendMessage(err, "choix de consultation inconnu"))
	}
	required, err := s.Catalog.Resolve(choiceID)
	if err != nil {
		// Refuse to proceed: a consultation must never be provisioned at
		// zero cost because of a missing mapping.
		return nil, NewFlowError(CodeConfig, backend.BackendMessage(err, "configuration des offrandes introuvable"))
	}

	state, err := Reduce(NewState(), ChoiceSelected{ChoiceID: choiceID, CategoryID: categoryID, Required: required})
	if err != nil {
		return nil, err
	}

	session := &Session{
		SessionID: uuid.New().String(),
		UserID:    userID,
		State:     state,
		CreatedAt: time.Now().Unix(),
	}
	if err := s.Sessions.Save(ctx, session); err != nil {
		return nil, err
	}

	s.Logger.Info("fulfillment session started",
		zap.String("sessionId", session.SessionID),
		zap.String("choiceId", choiceID),
		zap.String("userId", userID))

	if profile != nil && !choice.RequiresThirdPartyForm() {
		balances, err := s.Wallet.FetchWalletOfferings(ctx, userID)
		if err == nil && wallet.Reconcile(required, balances).HasAll {
			return s.SubmitForm(ctx, session.SessionID, *profile)
		}
	}
	return session, nil
}

// SubmitForm provisions the consultation from the submitted birth data, then
// routes by wallet coverage: full coverage auto-consumes and starts the
// analysis, a deficit branches to the offering step.
func (s *DefaultOrchestratorService) SubmitForm(ctx context.Context, sessionID string, form consultation.FormData) (*Session, error) {
	session, err := s.Sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.State.Phase != PhaseForm {
		return nil, NewFlowError(CodeConflict, "la session n'attend pas de formulaire")
	}

	choice, err := s.Catalog.Choice(session.State.ChoiceID)
	if err != nil {
		return nil, NewFlowError(CodeConfig, err.Error())
	}

	consultationID, err := s.Provisioner.Create(ctx, session.UserID, *choice, form)
	if err != nil {
		if _, ok := err.(*consultation.InputError); ok {
			return nil, NewFlowError(CodeInput, backend.BackendMessage(err, "formulaire incomplet"))
		}
		// No automatic retry: a duplicated consultation is worse than asking
		// the user to resubmit.
		return nil, NewFlowError(CodeProvision, backend.BackendMessage(err, "échec de la création de la consultation"))
	}

	balances, err := s.Wallet.FetchWalletOfferings(ctx, session.UserID)
	if err != nil {
		return nil, NewFlowError(CodeWallet, backend.BackendMessage(err, "lecture du portefeuille impossible"))
	}
	reconciliation := wallet.Reconcile(session.State.Required, balances)

	state, err := Reduce(session.State, ConsultationCreated{ConsultationID: consultationID, Reconciliation: reconciliation})
	if err != nil {
		return nil, err
	}
	session.State = state

	if reconciliation.HasAll {
		if err := s.Consumption.Consume(ctx, consultationID, session.State.Required); err != nil {
			session.State, _ = Reduce(session.State, Failed{Code: CodeConsume, Message: backend.BackendMessage(err, "échec de la consommation des offrandes")})
			_ = s.Sessions.Save(ctx, session)
			return session, nil
		}
	}

	if err := s.Sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	if reconciliation.HasAll {
		s.startAnalysis(session.SessionID, consultationID)
	}
	return session, nil
}

// ConfirmOffering runs the wallet consumption transaction for a session
// sitting at the offering step. The action is rejected while a previous
// confirmation is still in flight.
func (s *DefaultOrchestratorService) ConfirmOffering(ctx context.Context, sessionID string) (*Session, error) {
	session, err := s.Sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.State.Phase != PhaseOffering {
		return nil, NewFlowError(CodeConflict, "aucune offrande à confirmer dans cet état")
	}

	rt := s.runtime(sessionID)
	rt.mu.Lock()
	if rt.consuming {
		rt.mu.Unlock()
		return nil, NewFlowError(CodeConflict, "consommation déjà en cours")
	}
	rt.consuming = true
	rt.mu.Unlock()
	defer func() {
		rt.mu.Lock()
		rt.consuming = false
		rt.mu.Unlock()
	}()

	atOffering := session.State
	state, err := Reduce(session.State, OfferingConfirmed{})
	if err != nil {
		return nil, err
	}
	session.State = state

	if err := s.Consumption.Consume(ctx, session.State.ConsultationID, session.State.Required); err != nil {
		if _, retryable := err.(*wallet.DebitError); retryable {
			// Nothing was spent; leave the session at the offering step so
			// the user can retry explicitly.
			session.State = atOffering
			_ = s.Sessions.Save(ctx, session)
			return session, NewFlowError(CodeConsume, backend.BackendMessage(err, "échec du débit des offrandes"))
		}
		session.State, _ = Reduce(session.State, Failed{Code: CodeConsume, Message: backend.BackendMessage(err, "échec de la consommation des offrandes")})
		_ = s.Sessions.Save(ctx, session)
		return session, nil
	}

	session.State, err = Reduce(session.State, ConsumptionSucceeded{})
	if err != nil {
		return nil, err
	}
	if err := s.Sessions.Save(ctx, session); err != nil {
		return nil, err
	}

	s.startAnalysis(session.SessionID, session.State.ConsultationID)
	return session, nil
}

// MarketplaceHandoffFor pauses the flow while the user buys the missing
// offerings externally; the payment callback resumes it.
func (s *DefaultOrchestratorService) MarketplaceHandoffFor(ctx context.Context, sessionID string) (*Session, error) {
	session, err := s.Sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	state, err := Reduce(session.State, MarketplaceHandoff{})
	if err != nil {
		return nil, err
	}
	session.State = state
	if err := s.Sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// HandlePaymentCallback runs the payment workflow for the token and applies
// its terminal result to the session. Safe to invoke repeatedly for the same
// token; the workflow memoizes per token.
func (s *DefaultOrchestratorService) HandlePaymentCallback(ctx context.Context, sessionID, token string) (*payment.Result, error) {
	session, err := s.Sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	// The callback may arrive while the session still sits at the offering
	// step (the user navigated away to the marketplace without us seeing
	// the handoff); move it forward first.
	if session.State.Phase == PhaseOffering {
		if session.State, err = Reduce(session.State, MarketplaceHandoff{}); err != nil {
			return nil, err
		}
	}

	result := s.Payments.Run(ctx, token)

	state, err := Reduce(session.State, PaymentConcluded{Result: result})
	if err != nil {
		return result, err
	}
	session.State = state
	if err := s.Sessions.Save(ctx, session); err != nil {
		return result, err
	}

	switch result.State {
	case payment.StatePaid:
		s.startAnalysis(session.SessionID, session.State.ConsultationID)
	case payment.StateAlreadyUsed:
		// The earlier fulfillment already generated the analysis.
		s.armRedirect(session.SessionID, session.State)
	}
	return result, nil
}

// ResetError recovers a session from a non-terminal error back to the form.
func (s *DefaultOrchestratorService) ResetError(ctx context.Context, sessionID string) (*Session, error) {
	session, err := s.Sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	state, err := Reduce(session.State, Reset{})
	if err != nil {
		return nil, err
	}
	session.State = state
	if err := s.Sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// startAnalysis opens the progress stream for the consultation, backed by
// the local simulator until the first real event arrives. Any previous
// subscription for this session is cancelled first so exactly one live
// connection exists per consultation.
func (s *DefaultOrchestratorService) startAnalysis(sessionID, consultationID string) {
	rt := s.runtime(sessionID)

	rt.mu.Lock()
	if rt.cancelStream != nil {
		rt.cancelStream()
	}
	if rt.cancelSimulator != nil {
		rt.cancelSimulator()
	}
	rt.realEventSeen = false
	rt.cancelSimulator = s.Simulator.Start(consultationID, func(event models.AnalysisProgressEvent) {
		rt.mu.Lock()
		defer rt.mu.Unlock()
		if rt.realEventSeen {
			// A real event took over; simulated frames are discarded.
			return
		}
		rt.progress = event
		rt.haveProgress = true
	})
	rt.cancelStream = s.Stream.Subscribe(consultationID,
		func(event models.AnalysisProgressEvent) {
			s.onProgressEvent(sessionID, rt, event)
		},
		func(err error) {
			s.Logger.Warn("analysis stream transport error",
				zap.String("sessionId", sessionID),
				zap.String("consultationId", consultationID),
				zap.Error(err))
		})
	rt.mu.Unlock()
}

func (s *DefaultOrchestratorService) onProgressEvent(sessionID string, rt *sessionRuntime, event models.AnalysisProgressEvent) {
	rt.mu.Lock()
	if !rt.realEventSeen {
		rt.realEventSeen = true
		if rt.cancelSimulator != nil {
			rt.cancelSimulator()
			rt.cancelSimulator = nil
		}
	}
	rt.progress = event
	rt.haveProgress = true
	rt.mu.Unlock()

	if !event.Completed {
		return
	}

	ctx := context.Background()
	session, err := s.Sessions.Get(ctx, sessionID)
	if err != nil {
		s.Logger.Warn("session vanished before analysis completion", zap.String("sessionId", sessionID))
		s.dropRuntime(sessionID)
		return
	}
	if state, err := Reduce(session.State, AnalysisFinished{}); err == nil {
		session.State = state
		_ = s.Sessions.Save(ctx, session)
	}
	s.armRedirect(sessionID, session.State)
}

// armRedirect starts the auto-redirect countdown exactly once per session.
func (s *DefaultOrchestratorService) armRedirect(sessionID string, state State) {
	rt := s.runtime(sessionID)
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.countdownArmed {
		return
	}
	rt.countdownArmed = true
	rt.countdownRemaining = s.Countdown.Seconds

	rt.cancelCountdown = s.Countdown.Start(
		func(remaining int) {
			rt.mu.Lock()
			rt.countdownRemaining = remaining
			rt.mu.Unlock()
		},
		func() {
			target := RedirectTarget(state.ProductType, state.DownloadURL, state.ConsultationID)
			rt.mu.Lock()
			rt.redirectTarget = target
			rt.mu.Unlock()
			s.Logger.Info("auto-redirect fired",
				zap.String("sessionId", sessionID),
				zap.String("target", target))
		})
}

// Snapshot assembles the hook-shaped view of the session.
func (s *DefaultOrchestratorService) Snapshot(ctx context.Context, sessionID string) (*Snapshot, error) {
	session, err := s.Sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	state := session.State

	rt := s.runtime(sessionID)
	rt.mu.Lock()
	progress := rt.progress
	haveProgress := rt.haveProgress
	countdownArmed := rt.countdownArmed
	countdownRemaining := rt.countdownRemaining
	redirectTarget := rt.redirectTarget
	rt.mu.Unlock()

	status := statusFor(state)
	snapshot := &Snapshot{
		Status:                status,
		StatusConfig:          configFor(status, state),
		ConsultationID:        state.ConsultationID,
		DownloadURL:           state.DownloadURL,
		ShouldAutoRedirect:    countdownArmed,
		AutoRedirectCountdown: countdownRemaining,
		RedirectTarget:        redirectTarget,
	}
	if haveProgress {
		snapshot.AnalysisProgress = progress.Progress
		snapshot.CurrentStageMessage = progress.Message
	}
	if state.AnalysisCompleted {
		snapshot.AnalysisProgress = 100
	}
	if len(state.Deficits) > 0 {
		snapshot.Deficits = state.Deficits
	}

	snapshot.Actions = Actions{GoHome: "/"}
	if state.ConsultationID != "" {
		snapshot.Actions.ViewConsultation = routeConsultationBase + state.ConsultationID
	}
	if state.ProductType == models.ProductTypeBook && state.DownloadURL != "" {
		snapshot.Actions.DownloadBook = state.DownloadURL
	}
	if state.Phase == PhaseOffering && s.MarketplaceURL != "" {
		snapshot.Actions.BuyOfferings = s.MarketplaceURL
	}
	if state.Phase == PhaseError && !state.Terminal {
		snapshot.Actions.Retry = "/fulfillment/retry"
	}
	return snapshot, nil
}

// Teardown cancels the stream subscription, any pending reconnect, the
// simulator and the countdown, then drops the session. Must run on
// navigation away so nothing leaks across consultations.
func (s *DefaultOrchestratorService) Teardown(ctx context.Context, sessionID string) error {
	s.dropRuntime(sessionID)
	return s.Sessions.Delete(ctx, sessionID)
}
