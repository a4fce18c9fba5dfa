package fulfillment

import (
	"fmt"

	"plancosmique/models"
	"plancosmique/services/payment"
)

// Phase is the workflow position of a fulfillment session.
type Phase string

const (
	PhaseSelection     Phase = "selection"
	PhaseForm          Phase = "form"
	PhaseOffering      Phase = "offering"
	PhaseProcessing    Phase = "processing"
	PhaseConsulter     Phase = "consulter"
	PhaseGenereAnalyse Phase = "genereanalyse"
	PhaseError         Phase = "error"
)

// State is the tagged-union machine value. It is advanced exclusively by
// Reduce, which keeps illegal combinations (a generating analysis on an
// already-used payment, a paid consultation with no id) unrepresentable.
type State struct {
	Phase      Phase  `json:"phase"`
	ChoiceID   string `json:"choiceId"`
	CategoryID string `json:"categoryId,omitempty"`

	ConsultationID string                    `json:"consultationId,omitempty"`
	Required       []models.RequiredOffering `json:"required,omitempty"`
	Deficits       []models.OfferingDeficit  `json:"deficits,omitempty"`

	PaymentState      payment.State `json:"paymentState,omitempty"`
	PaymentMessage    string        `json:"paymentMessage,omitempty"`
	DownloadURL       string        `json:"downloadUrl,omitempty"`
	ProductType       string        `json:"productType,omitempty"`
	AnalysisCompleted bool          `json:"analysisCompleted"`

	ErrorCode    string `json:"errorCode,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	// Terminal marks states with no recovery path (already-used duplicate).
	Terminal bool `json:"terminal"`
}

// Event is one input to the reducer.
type Event interface {
	eventName() string
}

// ChoiceSelected starts a session from a catalog choice.
type ChoiceSelected struct {
	ChoiceID   string
	CategoryID string
	Required   []models.RequiredOffering
}

// ConsultationCreated records the backend id and the wallet reconciliation
// at creation time.
type ConsultationCreated struct {
	ConsultationID string
	Reconciliation models.Reconciliation
}

// OfferingConfirmed is the user confirming a wallet-based payment.
type OfferingConfirmed struct{}

// MarketplaceHandoff pauses the flow while the user buys missing offerings
// externally; the payment callback resumes it.
type MarketplaceHandoff struct{}

// ConsumptionSucceeded flips the session into analysis generation after the
// wallet transaction landed.
type ConsumptionSucceeded struct{}

// PaymentConcluded carries the terminal payment workflow result.
type PaymentConcluded struct {
	Result *payment.Result
}

// AnalysisFinished marks the completed analysis observed on the stream.
type AnalysisFinished struct{}

// Failed overlays the error state.
type Failed struct {
	Code    string
	Message string
}

// Reset recovers from a non-terminal error back to the form.
type Reset struct{}

func (ChoiceSelected) eventName() string       { return "choiceSelected" }
func (ConsultationCreated) eventName() string  { return "consultationCreated" }
func (OfferingConfirmed) eventName() string    { return "offeringConfirmed" }
func (MarketplaceHandoff) eventName() string   { return "marketplaceHandoff" }
func (ConsumptionSucceeded) eventName() string { return "consumptionSucceeded" }
func (PaymentConcluded) eventName() string     { return "paymentConcluded" }
func (AnalysisFinished) eventName() string     { return "analysisFinished" }
func (Failed) eventName() string               { return "failed" }
func (Reset) eventName() string                { return "reset" }

// TransitionError reports an event applied in a phase that does not admit it.
type TransitionError struct {
	Phase Phase
	Event string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal transition: event %s in phase %s", e.Event, e.Phase)
}

// NewState returns the initial machine value.
func NewState() State {
	return State{Phase: PhaseSelection}
}

// Reduce applies one event to the state and returns the next state. Pure: no
// clocks, no I/O, no mutation of the input.
func Reduce(s State, ev Event) (State, error) {
	if s.Terminal {
		return s, &TransitionError{Phase: s.Phase, Event: ev.eventName()}
	}

	switch e := ev.(type) {
	case ChoiceSelected:
		if s.Phase != PhaseSelection {
			return s, &TransitionError{Phase: s.Phase, Event: ev.eventName()}
		}
		next := s
		next.Phase = PhaseForm
		next.ChoiceID = e.ChoiceID
		next.CategoryID = e.CategoryID
		next.Required = e.Required
		return next, nil

	case ConsultationCreated:
		if s.Phase != PhaseForm {
			return s, &TransitionError{Phase: s.Phase, Event: ev.eventName()}
		}
		next := s
		next.ConsultationID = e.ConsultationID
		if e.Reconciliation.HasAll {
			// Wallet fully covers: auto-consumption happens transparently
			// and the session heads straight to analysis generation.
			next.Phase = PhaseGenereAnalyse
			next.Deficits = nil
		} else {
			next.Phase = PhaseOffering
			next.Deficits = e.Reconciliation.Missing
		}
		return next, nil

	case OfferingConfirmed:
		if s.Phase != PhaseOffering {
			return s, &TransitionError{Phase: s.Phase, Event: ev.eventName()}
		}
		next := s
		next.Phase = PhaseConsulter
		return next, nil

	case MarketplaceHandoff:
		if s.Phase != PhaseOffering {
			return s, &TransitionError{Phase: s.Phase, Event: ev.eventName()}
		}
		next := s
		next.Phase = PhaseProcessing
		return next, nil

	case ConsumptionSucceeded:
		if s.Phase != PhaseConsulter && s.Phase != PhaseForm {
			return s, &TransitionError{Phase: s.Phase, Event: ev.eventName()}
		}
		next := s
		next.Phase = PhaseGenereAnalyse
		return next, nil

	case PaymentConcluded:
		if s.Phase != PhaseProcessing {
			return s, &TransitionError{Phase: s.Phase, Event: ev.eventName()}
		}
		next := s
		next.PaymentState = e.Result.State
		next.PaymentMessage = e.Result.Message
		next.DownloadURL = e.Result.DownloadURL
		next.ProductType = e.Result.ProductType
		if e.Result.ConsultationID != "" {
			next.ConsultationID = e.Result.ConsultationID
		}
		switch e.Result.State {
		case payment.StatePaid:
			next.Phase = PhaseGenereAnalyse
		case payment.StateAlreadyUsed:
			// Fulfilled earlier: completion directly, no recovery path.
			next.Phase = PhaseGenereAnalyse
			next.AnalysisCompleted = true
			next.Terminal = true
		default:
			next.Phase = PhaseError
			next.ErrorCode = string(e.Result.State)
			next.ErrorMessage = e.Result.Message
		}
		return next, nil

	case AnalysisFinished:
		if s.Phase != PhaseGenereAnalyse {
			return s, &TransitionError{Phase: s.Phase, Event: ev.eventName()}
		}
		next := s
		next.AnalysisCompleted = true
		return next, nil

	case Failed:
		next := s
		next.Phase = PhaseError
		next.ErrorCode = e.Code
		next.ErrorMessage = e.Message
		return next, nil

	case Reset:
		if s.Phase != PhaseError {
			return s, &TransitionError{Phase: s.Phase, Event: ev.eventName()}
		}
		next := s
		next.Phase = PhaseForm
		next.ErrorCode = ""
		next.ErrorMessage = ""
		next.PaymentState = ""
		next.PaymentMessage = ""
		return next, nil
	}

	return s, &TransitionError{Phase: s.Phase, Event: ev.eventName()}
}
