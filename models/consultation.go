package models

// Consultation statuses as stored by the consultation backend. The lattice is
// PENDING -> pending_payment -> paid; the analysis pipeline consumes paid
// consultations.
const (
	ConsultationStatusPending        = "PENDING"
	ConsultationStatusPendingPayment = "pending_payment"
	ConsultationStatusPaid           = "paid"
)

// Payment methods recorded on the consultation when it flips to paid.
const (
	PaymentMethodWalletOfferings = "wallet_offerings"
	PaymentMethodExternal        = "external"
)

// Consultation is the read-mostly projection of a backend consultation
// record. The backend owns it; this service only ever holds the normalized
// shape produced by NormalizeConsultation.
type Consultation struct {
	ID           string                `json:"id"`
	Title        string                `json:"title"`
	Description  string                `json:"description"`
	Alternatives []OfferingAlternative `json:"alternatives"`
	Status       string                `json:"status"`
}

// ConsultationRaw mirrors the heterogeneous field names the consultation
// backend actually emits. It exists only at the API boundary.
type ConsultationRaw struct {
	ID             string                `json:"id"`
	MongoID        string                `json:"_id"`
	ConsultationID string                `json:"consultationId"`
	Title          string                `json:"title"`
	Titre          string                `json:"titre"`
	Description    string                `json:"description"`
	Alternatives   []OfferingAlternative `json:"alternatives"`
	Status         string                `json:"status"`
	Statut         string                `json:"statut"`
}

// BirthData is the user-supplied or profile-sourced input a consultation is
// created from.
type BirthData struct {
	FullName   string `json:"fullName"`
	BirthDate  string `json:"birthDate"`
	BirthTime  string `json:"birthTime,omitempty"`
	BirthPlace string `json:"birthPlace"`
}

// CreateConsultationPayload is the body sent to the consultation backend on
// creation.
type CreateConsultationPayload struct {
	UserID    string             `json:"userId"`
	ChoiceID  string             `json:"choiceId"`
	Title     string             `json:"title"`
	Subject   BirthData          `json:"subject"`
	Third     *BirthData         `json:"third,omitempty"`
	Offerings []RequiredOffering `json:"offerings"`
}

// NormalizeConsultation maps the backend's duck-typed payload into the
// canonical Consultation shape. First non-empty candidate wins for each
// aliased field.
func NormalizeConsultation(raw ConsultationRaw) Consultation {
	c := Consultation{
		Description:  raw.Description,
		Alternatives: raw.Alternatives,
	}
	for _, id := range []string{raw.ID, raw.MongoID, raw.ConsultationID} {
		if id != "" {
			c.ID = id
			break
		}
	}
	c.Title = raw.Title
	if c.Title == "" {
		c.Title = raw.Titre
	}
	c.Status = raw.Status
	if c.Status == "" {
		c.Status = raw.Statut
	}
	return c
}
