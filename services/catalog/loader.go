package catalog

import (
	"encoding/json"
	"fmt"
	"os"

	"plancosmique/models"
)

// LoadFromFile builds a StaticResolver from a JSON catalog file. The file is
// read once at startup; a malformed catalog aborts the boot rather than
// serving choices with missing offering mappings.
func LoadFromFile(path string) (*StaticResolver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewConfigError(fmt.Sprintf("failed to read catalog file %s: %v", path, err))
	}

	var catalogFile struct {
		Choices []models.ConsultationChoice `json:"choices"`
	}
	if err := json.Unmarshal(data, &catalogFile); err != nil {
		return nil, NewConfigError(fmt.Sprintf("failed to parse catalog file %s: %v", path, err))
	}
	if len(catalogFile.Choices) == 0 {
		return nil, NewConfigError(fmt.Sprintf("catalog file %s lists no choices", path))
	}

	for _, choice := range catalogFile.Choices {
		if choice.ID == "" {
			return nil, NewConfigError("catalog entry without an id")
		}
		if len(choice.RequiredOfferings) == 0 {
			return nil, NewConfigError(fmt.Sprintf("choice %q has no required offerings", choice.ID))
		}
	}

	return NewStaticResolver(catalogFile.Choices), nil
}
