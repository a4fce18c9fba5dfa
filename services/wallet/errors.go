package wallet

import (
	"fmt"
	"strings"
)

// DebitError is a retryable failure of the wallet debit step. Nothing has
// been spent; the user may simply try again.
type DebitError struct {
	Code    string
	Message string
}

func (e *DebitError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewDebitError(msg string) error {
	return &DebitError{
		Code:    "walletDebitError",
		Message: msg,
	}
}

// InconsistentError marks the known gap where the debit succeeded but the
// consultation status flip failed: offerings are spent, the consultation is
// not marked paid. Never auto-retried.
type InconsistentError struct {
	ConsultationID string
	Message        string
}

func (e *InconsistentError) Error() string {
	return fmt.Sprintf("walletInconsistent: consultation %s debited but not marked paid: %s", e.ConsultationID, e.Message)
}

// alreadyConsumedTokens are the domain phrases the ledger uses when a
// consultation's offerings were already debited. Matching is a
// case-insensitive substring check.
var alreadyConsumedTokens = []string{
	"already consumed",
	"already debited",
	"déjà consommé",
	"deja consomme",
	"déjà débité",
}

// isAlreadyConsumed reports whether a debit failure actually means the
// offerings were consumed earlier, which the transaction treats as success.
func isAlreadyConsumed(msg string) bool {
	lower := strings.ToLower(msg)
	for _, token := range alreadyConsumedTokens {
		if strings.Contains(lower, strings.ToLower(token)) {
			return true
		}
	}
	return false
}
