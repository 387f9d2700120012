package prompt

import (
	"encoding/json"

	"github.com/Strob0t/ActionForge/internal/domain/action"
)

// OutputSchema returns the JSON Schema of the orchestrator output with the
// action enums closed.
func OutputSchema() json.RawMessage {
	types := make([]string, 0, len(action.Types))
	for _, t := range action.Types {
		types = append(types, string(t))
	}
	targets := make([]string, 0, len(action.Targets))
	for _, t := range action.Targets {
		targets = append(targets, string(t))
	}

	schema := map[string]any{
		"type":                 "object",
		"required":             []string{"actions"},
		"additionalProperties": false,
		"properties": map[string]any{
			"actions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []string{"type", "target", "reason"},
					"properties": map[string]any{
						"type":       map[string]any{"type": "string", "enum": types},
						"target":     map[string]any{"type": "string", "enum": targets},
						"id":         map[string]any{"type": "string"},
						"data":       map[string]any{"type": "object"},
						"changes":    map[string]any{"type": "object"},
						"reason":     map[string]any{"type": "string"},
						"confidence": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
					},
				},
			},
		},
	}
	// The schema is built from static values; Marshal cannot fail.
	data, _ := json.Marshal(schema)
	return data
}
