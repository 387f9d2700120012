// Package prompt composes the deterministic request sent to the generation
// backend: a fixed instruction text plus a JSON document describing the
// interaction, its related entities and the relevant policy.
package prompt

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/Strob0t/ActionForge/internal/domain/action"
	"github.com/Strob0t/ActionForge/internal/domain/interaction"
	"github.com/Strob0t/ActionForge/internal/domain/policy"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(
	template.New("").Funcs(template.FuncMap{"join": join}).ParseFS(templateFS, "templates/*.tmpl"),
)

// Input is everything the composer needs for one orchestration.
type Input struct {
	Interaction interaction.Interaction
	Related     *interaction.RelatedEntities
	Policy      *policy.Policy
}

// Request is the composed model request.
type Request struct {
	System string          `json:"system"`
	User   string          `json:"user"`
	Schema json.RawMessage `json:"schema"`
}

// userDocument fixes the field order of the user message.
type userDocument struct {
	Interaction interaction.Interaction      `json:"interaction"`
	Related     *interaction.RelatedEntities `json:"related_entities,omitempty"`
	Policy      *policy.Policy               `json:"policy,omitempty"`
}

type systemData struct {
	Types     []action.Type
	Targets   []action.Target
	HasPolicy bool
}

// Compose builds the request. Identical input yields byte-identical output.
func Compose(in Input) (Request, error) {
	pv := in.Policy.ModelView()

	var sys bytes.Buffer
	if err := templates.ExecuteTemplate(&sys, "system.tmpl", systemData{
		Types:     action.Types,
		Targets:   action.Targets,
		HasPolicy: pv != nil,
	}); err != nil {
		return Request{}, fmt.Errorf("execute system template: %w", err)
	}

	doc := userDocument{
		Interaction: sanitizeInteraction(in.Interaction),
		Related:     scrubRelated(in.Related),
		Policy:      pv,
	}
	user, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return Request{}, fmt.Errorf("marshal prompt document: %w", err)
	}

	return Request{
		System: sys.String(),
		User:   string(user),
		Schema: OutputSchema(),
	}, nil
}

func join(items any, sep string) string {
	var parts []string
	switch v := items.(type) {
	case []action.Type:
		for _, t := range v {
			parts = append(parts, string(t))
		}
	case []action.Target:
		for _, t := range v {
			parts = append(parts, string(t))
		}
	case []string:
		parts = v
	}
	return strings.Join(parts, sep)
}
