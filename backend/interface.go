package backend

import (
	"context"
	"io"

	"plancosmique/models"
)

// PaymentGateway talks to the external payment provider through the site
// backend.
type PaymentGateway interface {
	VerifyPayment(ctx context.Context, token string) (*models.VerifyPaymentResult, error)
	ProcessConsultationPayment(ctx context.Context, token string, record models.PaymentRecord) (*models.ProcessPaymentResult, error)
}

// ConsultationAPI manages consultation records owned by the backend store.
type ConsultationAPI interface {
	// CreateConsultation issues exactly one request; the idempotency key lets
	// the backend collapse accidental double submissions.
	CreateConsultation(ctx context.Context, payload models.CreateConsultationPayload, idempotencyKey string) (string, error)
	FetchConsultation(ctx context.Context, id string) (*models.Consultation, error)
	UpdateConsultationStatus(ctx context.Context, id, status, paymentMethod string) error
}

// WalletAPI reads and debits the user's offering ledger.
type WalletAPI interface {
	FetchWalletOfferings(ctx context.Context, userID string) ([]models.WalletOffering, error)
	ConsumeOfferings(ctx context.Context, consultationID string, offerings []models.RequiredOffering) error
}

// AnalysisStreamOpener opens the raw SSE body for a consultation's analysis
// progress. Parsing and reconnection live in services/analysis.
type AnalysisStreamOpener interface {
	OpenAnalysisProgressStream(ctx context.Context, consultationID string) (io.ReadCloser, error)
}
