package fulfillment

import "fmt"

// FlowError is a fulfillment-level failure surfaced to the UI. Backend
// messages travel through verbatim; Code classifies for routing.
type FlowError struct {
	Code    string
	Message string
}

func (e *FlowError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewFlowError(code, msg string) error {
	return &FlowError{Code: code, Message: msg}
}

// Error codes.
const (
	CodeSessionNotFound = "sessionNotFound"
	CodeConfig          = "configError"
	CodeInput           = "inputError"
	CodeWallet          = "walletError"
	CodeConsume         = "consumeError"
	CodeProvision       = "provisionError"
	CodeConflict        = "conflict"
)
