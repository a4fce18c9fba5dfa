package models

// Product types discriminating what a payment fulfils.
const (
	ProductTypeBook         = "book"
	ProductTypeConsultation = "consultation"
)

// PersonalInfo is one entry of a payment record's personal_Info array; the
// first entry's Type discriminates book vs consultation fulfillment.
type PersonalInfo struct {
	Type  string `json:"type"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// PaymentRecord is the authoritative payment state returned by the gateway.
// This service never writes it except through the processing call.
type PaymentRecord struct {
	Token        string         `json:"token"`
	Amount       float64        `json:"amount"`
	Fees         float64        `json:"fees"`
	Status       string         `json:"status"`
	PersonalInfo []PersonalInfo `json:"personal_Info"`
}

// ProductType returns the fulfillment type carried by the record, defaulting
// to consultation when the gateway sent no personal info.
func (p PaymentRecord) ProductType() string {
	if len(p.PersonalInfo) > 0 && p.PersonalInfo[0].Type != "" {
		return p.PersonalInfo[0].Type
	}
	return ProductTypeConsultation
}

// VerifyPaymentData is the payload portion of a verification response. Its
// personal_Info array discriminates what the payment fulfils (book vs
// consultation).
type VerifyPaymentData struct {
	ID           string         `json:"id"`
	Amount       float64        `json:"amount"`
	Status       string         `json:"status"`
	PersonalInfo []PersonalInfo `json:"personal_Info"`
}

// VerifyPaymentResult is the gateway's answer to a token verification.
type VerifyPaymentResult struct {
	Success bool              `json:"success"`
	Status  string            `json:"status"`
	Data    VerifyPaymentData `json:"data"`
}

// ProcessPaymentResult is the consultation backend's answer to a
// process-consultation-payment call.
type ProcessPaymentResult struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	ConsultationID string `json:"consultationId,omitempty"`
	DownloadURL    string `json:"downloadUrl,omitempty"`
}
