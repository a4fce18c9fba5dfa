package wallet

import (
	"context"

	"plancosmique/backend"
	"plancosmique/models"

	"go.uber.org/zap"
)

// ConsumptionService runs the two-step offering consumption transaction:
// debit the wallet, then flip the consultation to paid. The steps are
// strictly ordered and non-reversible once the debit lands.
type ConsumptionService interface {
	Consume(ctx context.Context, consultationID string, offerings []models.RequiredOffering) error
}

// DefaultConsumptionService implements ConsumptionService against the wallet
// ledger and consultation store.
type DefaultConsumptionService struct {
	Wallet        backend.WalletAPI
	Consultations backend.ConsultationAPI
	Logger        *zap.Logger
}

func NewConsumptionService(walletAPI backend.WalletAPI, consultations backend.ConsultationAPI, logger *zap.Logger) *DefaultConsumptionService {
	return &DefaultConsumptionService{
		Wallet:        walletAPI,
		Consultations: consultations,
		Logger:        logger,
	}
}

// Consume debits the wallet for the chosen offerings and marks the
// consultation paid with paymentMethod wallet_offerings.
//
// Failure semantics:
//   - debit fails: abort before the status flip, return a retryable
//     DebitError — unless the ledger says the offerings were already
//     consumed, which is a benign duplicate and proceeds to the flip.
//   - status flip fails after a successful debit: return InconsistentError;
//     callers must not auto-retry the flip.
func (s *DefaultConsumptionService) Consume(ctx context.Context, consultationID string, offerings []models.RequiredOffering) error {
	if err := s.Wallet.ConsumeOfferings(ctx, consultationID, offerings); err != nil {
		msg := backend.BackendMessage(err, "échec du débit des offrandes")
		if !isAlreadyConsumed(msg) {
			s.Logger.Warn("wallet debit failed",
				zap.String("consultationId", consultationID),
				zap.String("message", msg))
			return NewDebitError(msg)
		}
		s.Logger.Info("offerings already consumed, continuing to status flip",
			zap.String("consultationId", consultationID))
	}

	if err := s.Consultations.UpdateConsultationStatus(ctx, consultationID, models.ConsultationStatusPaid, models.PaymentMethodWalletOfferings); err != nil {
		msg := backend.BackendMessage(err, "échec de la mise à jour du statut")
		s.Logger.Error("consultation status flip failed after debit",
			zap.String("consultationId", consultationID),
			zap.String("message", msg))
		return &InconsistentError{ConsultationID: consultationID, Message: msg}
	}

	s.Logger.Info("offerings consumed and consultation marked paid",
		zap.String("consultationId", consultationID),
		zap.Int("offeringCount", len(offerings)))
	return nil
}
