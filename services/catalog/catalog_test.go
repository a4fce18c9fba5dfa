package catalog

import (
	"testing"

	"plancosmique/models"
)

func testChoices() []models.ConsultationChoice {
	return []models.ConsultationChoice{
		{
			ID:           "vie-anterieure",
			Title:        "Vie antérieure",
			Participants: models.ParticipantsSolo,
			Frequence:    models.FrequenceUneFoisVie,
			RequiredOfferings: []models.RequiredOffering{
				{OfferingID: "colombe", Quantity: 2},
				{OfferingID: "hydromel", Quantity: 1},
			},
		},
		{
			ID:           "compatibilite",
			Title:        "Compatibilité",
			Participants: models.ParticipantsAvecTiers,
			Frequence:    models.FrequenceLibre,
		},
	}
}

func TestResolveKnownChoice(t *testing.T) {
	r := NewStaticResolver(testChoices())

	required, err := r.Resolve("vie-anterieure")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if len(required) != 2 {
		t.Fatalf("expected 2 required offerings, got %d", len(required))
	}
	if required[0].OfferingID != "colombe" || required[0].Quantity != 2 {
		t.Errorf("unexpected first requirement: %+v", required[0])
	}
}

func TestResolveUnknownChoiceIsConfigError(t *testing.T) {
	r := NewStaticResolver(testChoices())

	required, err := r.Resolve("inexistant")
	if err == nil {
		t.Fatal("expected a configuration error for an unknown choice")
	}
	if required != nil {
		t.Errorf("expected no offerings on miss, got %+v", required)
	}
	if _, ok := err.(*ConfigError); !ok {
		t.Errorf("expected *ConfigError, got %T", err)
	}
}

func TestResolveEmptyMappingIsConfigError(t *testing.T) {
	r := NewStaticResolver(testChoices())

	// "compatibilite" exists but carries no offering mapping; resolving it
	// must fail rather than price the consultation at zero.
	if _, err := r.Resolve("compatibilite"); err == nil {
		t.Fatal("expected a configuration error for an empty mapping")
	}
}

func TestResolveReturnsACopy(t *testing.T) {
	r := NewStaticResolver(testChoices())

	first, _ := r.Resolve("vie-anterieure")
	first[0].Quantity = 99

	second, _ := r.Resolve("vie-anterieure")
	if second[0].Quantity != 2 {
		t.Errorf("catalog mutated through a resolved slice: %+v", second[0])
	}
}
