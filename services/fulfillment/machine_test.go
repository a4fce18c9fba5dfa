package fulfillment

import (
	"testing"

	"plancosmique/models"
	"plancosmique/services/payment"
)

func selected(t *testing.T) State {
	t.Helper()
	s, err := Reduce(NewState(), ChoiceSelected{
		ChoiceID: "vie-anterieure",
		Required: []models.RequiredOffering{{OfferingID: "colombe", Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("ChoiceSelected: %v", err)
	}
	return s
}

func TestChoiceSelectionMovesToForm(t *testing.T) {
	s := selected(t)
	if s.Phase != PhaseForm {
		t.Errorf("expected form, got %s", s.Phase)
	}
	if s.ChoiceID != "vie-anterieure" || len(s.Required) != 1 {
		t.Errorf("choice payload not carried: %+v", s)
	}
}

func TestCreationWithCoverageSkipsOffering(t *testing.T) {
	s, err := Reduce(selected(t), ConsultationCreated{
		ConsultationID: "cons-1",
		Reconciliation: models.Reconciliation{HasAll: true},
	})
	if err != nil {
		t.Fatalf("ConsultationCreated: %v", err)
	}
	if s.Phase != PhaseGenereAnalyse {
		t.Errorf("full coverage must go straight to genereanalyse, got %s", s.Phase)
	}
	if s.ConsultationID != "cons-1" {
		t.Errorf("consultation id missing: %+v", s)
	}
}

func TestCreationWithDeficitBranchesToOffering(t *testing.T) {
	s, err := Reduce(selected(t), ConsultationCreated{
		ConsultationID: "cons-1",
		Reconciliation: models.Reconciliation{
			Missing: []models.OfferingDeficit{{OfferingID: "colombe", Needed: 2, Available: 1}},
		},
	})
	if err != nil {
		t.Fatalf("ConsultationCreated: %v", err)
	}
	if s.Phase != PhaseOffering {
		t.Errorf("expected offering, got %s", s.Phase)
	}
	if len(s.Deficits) != 1 {
		t.Errorf("deficits not carried: %+v", s.Deficits)
	}
}

func atOffering(t *testing.T) State {
	t.Helper()
	s, err := Reduce(selected(t), ConsultationCreated{
		ConsultationID: "cons-1",
		Reconciliation: models.Reconciliation{
			Missing: []models.OfferingDeficit{{OfferingID: "colombe", Needed: 2, Available: 0}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestWalletPathThroughConsulter(t *testing.T) {
	s, err := Reduce(atOffering(t), OfferingConfirmed{})
	if err != nil {
		t.Fatal(err)
	}
	if s.Phase != PhaseConsulter {
		t.Errorf("expected consulter, got %s", s.Phase)
	}
	s, err = Reduce(s, ConsumptionSucceeded{})
	if err != nil {
		t.Fatal(err)
	}
	if s.Phase != PhaseGenereAnalyse {
		t.Errorf("expected genereanalyse after consumption, got %s", s.Phase)
	}
}

func TestMarketplacePathResumesViaPayment(t *testing.T) {
	s, err := Reduce(atOffering(t), MarketplaceHandoff{})
	if err != nil {
		t.Fatal(err)
	}
	if s.Phase != PhaseProcessing {
		t.Errorf("expected processing, got %s", s.Phase)
	}

	s, err = Reduce(s, PaymentConcluded{Result: &payment.Result{State: payment.StatePaid, ConsultationID: "cons-2"}})
	if err != nil {
		t.Fatal(err)
	}
	if s.Phase != PhaseGenereAnalyse {
		t.Errorf("expected genereanalyse after paid, got %s", s.Phase)
	}
	if s.ConsultationID != "cons-2" {
		t.Errorf("payment consultation id must win: %+v", s)
	}
}

func TestAlreadyUsedIsTerminalCompletion(t *testing.T) {
	s, _ := Reduce(atOffering(t), MarketplaceHandoff{})
	s, err := Reduce(s, PaymentConcluded{Result: &payment.Result{
		State:             payment.StateAlreadyUsed,
		AnalysisCompleted: true,
	}})
	if err != nil {
		t.Fatal(err)
	}
	if !s.AnalysisCompleted || !s.Terminal {
		t.Errorf("already_used must complete terminally: %+v", s)
	}

	// Terminal states admit no further events.
	if _, err := Reduce(s, Reset{}); err == nil {
		t.Error("expected a transition error out of a terminal state")
	}
}

func TestPaymentFailureIsRecoverable(t *testing.T) {
	s, _ := Reduce(atOffering(t), MarketplaceHandoff{})
	s, err := Reduce(s, PaymentConcluded{Result: &payment.Result{
		State:   payment.StateProcessFailed,
		Message: "montant incohérent",
	}})
	if err != nil {
		t.Fatal(err)
	}
	if s.Phase != PhaseError {
		t.Fatalf("expected error overlay, got %s", s.Phase)
	}
	if s.ErrorMessage != "montant incohérent" {
		t.Errorf("backend message must pass through: %q", s.ErrorMessage)
	}

	s, err = Reduce(s, Reset{})
	if err != nil {
		t.Fatal(err)
	}
	if s.Phase != PhaseForm || s.ErrorMessage != "" {
		t.Errorf("reset must return to a clean form: %+v", s)
	}
}

func TestIllegalTransitionsRejected(t *testing.T) {
	cases := []struct {
		name  string
		state State
		event Event
	}{
		{"select twice", selected(t), ChoiceSelected{ChoiceID: "x"}},
		{"create from selection", NewState(), ConsultationCreated{ConsultationID: "c"}},
		{"confirm without offering", selected(t), OfferingConfirmed{}},
		{"payment before processing", selected(t), PaymentConcluded{Result: &payment.Result{State: payment.StatePaid}}},
		{"finish before generating", selected(t), AnalysisFinished{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Reduce(tc.state, tc.event); err == nil {
				t.Errorf("expected a transition error for %s", tc.name)
			}
		})
	}
}
