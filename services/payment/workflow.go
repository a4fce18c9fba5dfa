package payment

import (
	"context"
	"sync"

	"plancosmique/backend"
	"plancosmique/models"

	"go.uber.org/zap"
)

// State is the workflow position for one payment token.
type State string

const (
	StateIdle          State = "IDLE"
	StateVerifying     State = "VERIFYING"
	StateVerified      State = "VERIFIED"
	StateVerifyFailed  State = "VERIFY_FAILED"
	StateProcessing    State = "PROCESSING"
	StatePaid          State = "PAID"
	StateAlreadyUsed   State = "ALREADY_USED"
	StateProcessFailed State = "PROCESS_FAILED"
)

// MsgMissingToken is returned for a blank token, before any network call.
const MsgMissingToken = "Token de paiement manquant"

// Result is the terminal outcome of running the workflow for a token.
type Result struct {
	State          State   `json:"state"`
	Status         Status  `json:"status"`
	Message        string  `json:"message"`
	Amount         float64 `json:"amount"`
	ConsultationID string  `json:"consultationId,omitempty"`
	DownloadURL    string  `json:"downloadUrl,omitempty"`
	ProductType    string  `json:"productType"`

	// AnalysisCompleted is set on the already-used path: the earlier
	// fulfillment ran the analysis, so the redirect may arm immediately.
	AnalysisCompleted bool `json:"analysisCompleted"`
}

// Terminal reports whether the state admits no further transition.
func (r *Result) Terminal() bool {
	switch r.State {
	case StateVerifyFailed, StatePaid, StateAlreadyUsed, StateProcessFailed:
		return true
	}
	return false
}

// Succeeded reports whether the payment concluded positively, counting the
// benign duplicate as success.
func (r *Result) Succeeded() bool {
	return r.State == StatePaid || r.State == StateAlreadyUsed
}

// WorkflowService verifies a payment token and triggers consultation-side
// processing exactly once per token.
type WorkflowService interface {
	Run(ctx context.Context, token string) *Result
}

// DefaultWorkflowService implements WorkflowService. Outcomes are memoized
// per token so a second invocation for the same token (page refresh, double
// callback) returns the recorded outcome without re-processing.
type DefaultWorkflowService struct {
	Gateway backend.PaymentGateway
	Logger  *zap.Logger

	mu   sync.Mutex
	runs map[string]*tokenRun
}

type tokenRun struct {
	done   chan struct{}
	result *Result
}

func NewWorkflowService(gateway backend.PaymentGateway, logger *zap.Logger) *DefaultWorkflowService {
	return &DefaultWorkflowService{
		Gateway: gateway,
		Logger:  logger,
		runs:    make(map[string]*tokenRun),
	}
}

// Run drives the token through
// VERIFYING -> (VERIFIED | VERIFY_FAILED) -> PROCESSING ->
// (PAID | ALREADY_USED | PROCESS_FAILED). Never returns a non-terminal
// result. Errors are embedded in the result: the caller renders them, it
// does not retry. Concurrent calls for the same token share one physical
// run and observe its outcome.
func (s *DefaultWorkflowService) Run(ctx context.Context, token string) *Result {
	if token == "" {
		return &Result{State: StateVerifyFailed, Status: StatusError, Message: MsgMissingToken}
	}

	s.mu.Lock()
	if prior, ok := s.runs[token]; ok {
		s.mu.Unlock()
		<-prior.done
		return prior.result
	}
	current := &tokenRun{done: make(chan struct{})}
	s.runs[token] = current
	s.mu.Unlock()

	current.result = s.run(ctx, token)
	close(current.done)
	return current.result
}

func (s *DefaultWorkflowService) run(ctx context.Context, token string) *Result {
	s.Logger.Info("verifying payment token", zap.String("token", token))

	verification, err := s.Gateway.VerifyPayment(ctx, token)
	if err != nil {
		msg := backend.BackendMessage(err, "échec de la vérification du paiement")
		s.Logger.Warn("payment verification failed", zap.String("token", token), zap.String("message", msg))
		return &Result{State: StateVerifyFailed, Status: StatusError, Message: msg}
	}

	status := NormalizeStatus(verification.Status)
	switch status {
	case StatusPaid, StatusCompleted:
		// fall through to processing; a token fulfilled earlier surfaces
		// there as a benign duplicate
	case StatusAlreadyUsed:
		return &Result{
			State:             StateAlreadyUsed,
			Status:            status,
			Message:           "Paiement déjà utilisé",
			AnalysisCompleted: true,
		}
	case StatusPending:
		return &Result{State: StateVerifyFailed, Status: status, Message: "Paiement en attente de confirmation"}
	default:
		return &Result{State: StateVerifyFailed, Status: status, Message: "Paiement non confirmé"}
	}

	record := models.PaymentRecord{
		Token:        token,
		Amount:       verification.Data.Amount,
		Status:       verification.Status,
		PersonalInfo: verification.Data.PersonalInfo,
	}

	s.Logger.Info("processing consultation payment", zap.String("token", token))
	processed, err := s.Gateway.ProcessConsultationPayment(ctx, token, record)
	if err != nil {
		msg := backend.BackendMessage(err, "échec du traitement du paiement")
		if IsAlreadyProcessed(msg) {
			s.Logger.Info("payment already processed, treating as fulfilled", zap.String("token", token))
			return &Result{
				State:             StateAlreadyUsed,
				Status:            StatusAlreadyUsed,
				Message:           msg,
				ProductType:       record.ProductType(),
				AnalysisCompleted: true,
			}
		}
		s.Logger.Error("consultation payment processing failed", zap.String("token", token), zap.String("message", msg))
		return &Result{State: StateProcessFailed, Status: StatusError, Message: msg}
	}

	if !processed.Success && IsAlreadyProcessed(processed.Message) {
		return &Result{
			State:             StateAlreadyUsed,
			Status:            StatusAlreadyUsed,
			Message:           processed.Message,
			ConsultationID:    processed.ConsultationID,
			DownloadURL:       processed.DownloadURL,
			ProductType:       record.ProductType(),
			AnalysisCompleted: true,
		}
	}
	if !processed.Success {
		return &Result{State: StateProcessFailed, Status: StatusError, Message: processed.Message}
	}

	return &Result{
		State:          StatePaid,
		Status:         StatusPaid,
		Message:        processed.Message,
		Amount:         verification.Data.Amount,
		ConsultationID: processed.ConsultationID,
		DownloadURL:    processed.DownloadURL,
		ProductType:    record.ProductType(),
	}
}
