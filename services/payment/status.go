package payment

import "strings"

// Status is the closed normalization of the gateway's free-text payment
// status values.
type Status string

const (
	StatusPending     Status = "pending"
	StatusPaid        Status = "paid"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusAlreadyUsed Status = "already_used"
	StatusError       Status = "error"
)

// statusMap covers every backend status string observed in the wild. The
// gateway has emitted both French and English variants over time.
var statusMap = map[string]Status{
	"pending":      StatusPending,
	"en_attente":   StatusPending,
	"paid":         StatusPaid,
	"payé":         StatusPaid,
	"paye":         StatusPaid,
	"success":      StatusPaid,
	"completed":    StatusCompleted,
	"complete":     StatusCompleted,
	"failure":      StatusFailed,
	"failed":       StatusFailed,
	"no paid":      StatusFailed,
	"not_paid":     StatusFailed,
	"cancelled":    StatusFailed,
	"canceled":     StatusFailed,
	"already_used": StatusAlreadyUsed,
	"already used": StatusAlreadyUsed,
}

// NormalizeStatus maps a raw gateway status into the closed enum. Unknown
// values map to StatusError: an unrecognized payment state must never be
// treated as payable.
func NormalizeStatus(raw string) Status {
	if status, ok := statusMap[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return status
	}
	return StatusError
}

// alreadyProcessedTokens are the phrases the processing endpoint uses when a
// token was fulfilled earlier. A match downgrades a processing failure to a
// benign duplicate.
var alreadyProcessedTokens = []string{
	"déjà",
	"deja",
	"already",
	"utilisé",
	"utilise",
	"traité",
	"traite",
}

// IsAlreadyProcessed reports whether a processing failure message actually
// means the payment was fulfilled before (e.g. the user refreshed the
// callback page). Case-insensitive substring match.
func IsAlreadyProcessed(message string) bool {
	lower := strings.ToLower(message)
	for _, token := range alreadyProcessedTokens {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}
