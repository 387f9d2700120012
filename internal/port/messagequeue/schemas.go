package messagequeue

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/Strob0t/ActionForge/internal/domain/action"
	"github.com/Strob0t/ActionForge/internal/domain/interaction"
	"github.com/Strob0t/ActionForge/internal/domain/policy"
)

// InteractionReceivedPayload is the schema for interactions.received messages.
// Policy, when present, wins over PolicyName.
type InteractionReceivedPayload struct {
	Interaction interaction.Interaction      `json:"interaction"`
	Related     *interaction.RelatedEntities `json:"related_entities,omitempty"`
	Policy      *policy.Policy               `json:"policy,omitempty"`
	PolicyName  string                       `json:"policy_name,omitempty"`
	RequestID   string                       `json:"request_id,omitempty"`
}

// ActionsProposedPayload is the schema for actions.proposed messages.
type ActionsProposedPayload struct {
	ProposalID   string             `json:"proposal_id"`
	Fingerprint  string             `json:"fingerprint"`
	Source       interaction.Source `json:"source"`
	State        string             `json:"state"`
	Actions      []action.Action    `json:"actions"`
	Companions   []action.Action    `json:"companions,omitempty"`
	AutoEligible []int              `json:"auto_eligible"`
	CreatedAt    time.Time          `json:"created_at"`
}

// decodeStrict rejects unknown top-level fields.
func decodeStrict(data []byte, target any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(target)
}
