package models

// Participants describes who a consultation choice is performed for.
type Participants string

const (
	ParticipantsSolo      Participants = "SOLO"
	ParticipantsAvecTiers Participants = "AVEC_TIERS"
	ParticipantsPourTiers Participants = "POUR_TIERS"
	ParticipantsGroupe    Participants = "GROUPE"
)

// Frequence limits how often a choice may be requested by the same user.
type Frequence string

const (
	FrequenceUneFoisVie Frequence = "UNE_FOIS_VIE"
	FrequenceLibre      Frequence = "LIBRE"
)

// ConsultationChoice is an immutable catalog entry. It is loaded from the
// catalog source and never mutated by this service.
type ConsultationChoice struct {
	ID                string             `json:"id"`
	Title             string             `json:"title"`
	Description       string             `json:"description"`
	Participants      Participants       `json:"participants"`
	Frequence         Frequence          `json:"frequence"`
	RequiredOfferings []RequiredOffering `json:"requiredOfferings"`
}

// RequiresThirdPartyForm reports whether the choice needs birth data for
// someone other than the requesting user.
func (c ConsultationChoice) RequiresThirdPartyForm() bool {
	return c.Participants != ParticipantsSolo
}
