// Package proposal defines the audit record kept for every orchestration
// served to a caller.
package proposal

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/Strob0t/ActionForge/internal/domain/action"
	"github.com/Strob0t/ActionForge/internal/domain/interaction"
	"github.com/Strob0t/ActionForge/internal/domain/policy"
)

// Proposal is one orchestration result as shown to a reviewer.
type Proposal struct {
	ID          string                       `json:"id"`
	Fingerprint string                       `json:"fingerprint"`
	Source      interaction.Source           `json:"source"`
	Interaction interaction.Interaction      `json:"interaction"`
	Related     *interaction.RelatedEntities `json:"related_entities,omitempty"`
	PolicyName  string                       `json:"policy_name,omitempty"`
	Actions     []action.Action              `json:"actions"`
	Evaluation  policy.Evaluation            `json:"evaluation"`
	State       string                       `json:"state"`
	Dropped     int                          `json:"dropped"`
	Model       string                       `json:"model,omitempty"`
	CreatedAt   time.Time                    `json:"created_at"`
}

// fingerprintInput fixes the fields that identify a request.
type fingerprintInput struct {
	Interaction interaction.Interaction      `json:"interaction"`
	Related     *interaction.RelatedEntities `json:"related_entities,omitempty"`
	Policy      *policy.Policy               `json:"policy,omitempty"`
}

// Fingerprint hashes the canonical JSON of a request. Identical requests
// produce identical fingerprints; map keys are sorted by encoding/json.
func Fingerprint(in interaction.Interaction, related *interaction.RelatedEntities, pol *policy.Policy) string {
	data, err := json.Marshal(fingerprintInput{Interaction: in, Related: related, Policy: pol})
	if err != nil {
		// Only NaN or Inf inside untyped extras can fail; hash what we have.
		data = []byte(string(in.Source) + "\x00" + in.Subject + "\x00" + in.Body + "\x00" + in.Timestamp)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
