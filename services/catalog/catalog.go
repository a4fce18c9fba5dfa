package catalog

import (
	"fmt"

	"plancosmique/models"
)

// ConfigError marks a choice that references no known offering mapping. The
// caller must refuse to proceed: a missing mapping never degrades into a
// zero-cost consultation.
type ConfigError struct {
	Code    string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewConfigError(msg string) error {
	return &ConfigError{
		Code:    "catalogConfigError",
		Message: msg,
	}
}

// Resolver maps a consultation choice to its concrete required-offering set.
type Resolver interface {
	Resolve(choiceID string) ([]models.RequiredOffering, error)
	Choice(choiceID string) (*models.ConsultationChoice, error)
}

// StaticResolver serves an immutable in-memory catalog loaded at startup.
type StaticResolver struct {
	choices map[string]models.ConsultationChoice
}

// NewStaticResolver indexes the given catalog entries by choice id.
func NewStaticResolver(choices []models.ConsultationChoice) *StaticResolver {
	index := make(map[string]models.ConsultationChoice, len(choices))
	for _, c := range choices {
		index[c.ID] = c
	}
	return &StaticResolver{choices: index}
}

// Resolve returns the required-offering set for choiceID. A miss is a
// configuration error, never an empty set.
func (r *StaticResolver) Resolve(choiceID string) ([]models.RequiredOffering, error) {
	choice, ok := r.choices[choiceID]
	if !ok {
		return nil, NewConfigError(fmt.Sprintf("no offering mapping for choice %q", choiceID))
	}
	if len(choice.RequiredOfferings) == 0 {
		return nil, NewConfigError(fmt.Sprintf("choice %q has an empty offering mapping", choiceID))
	}
	required := make([]models.RequiredOffering, len(choice.RequiredOfferings))
	copy(required, choice.RequiredOfferings)
	return required, nil
}

// Choice returns the full catalog entry for choiceID.
func (r *StaticResolver) Choice(choiceID string) (*models.ConsultationChoice, error) {
	choice, ok := r.choices[choiceID]
	if !ok {
		return nil, NewConfigError(fmt.Sprintf("unknown consultation choice %q", choiceID))
	}
	return &choice, nil
}
