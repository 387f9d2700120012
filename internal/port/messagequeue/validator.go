package messagequeue

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Validate checks whether data is valid JSON conforming to the schema
// associated with the given subject. Unknown subjects only need valid JSON.
// Failures wrap ErrPoison.
func Validate(subject string, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("%w: invalid JSON on subject %s", ErrPoison, subject)
	}

	switch subject {
	case SubjectInteractionsReceived:
		var p InteractionReceivedPayload
		if err := decodeStrict(data, &p); err != nil {
			return fmt.Errorf("%w: schema validation failed for %s: %w", ErrPoison, subject, err)
		}
		if err := p.Interaction.Validate(); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrPoison, subject, err)
		}
	case SubjectActionsProposed:
		var p ActionsProposedPayload
		if err := decodeStrict(data, &p); err != nil {
			return fmt.Errorf("%w: schema validation failed for %s: %w", ErrPoison, subject, err)
		}
		if p.ProposalID == "" {
			return fmt.Errorf("%w: %s: proposal_id is required", ErrPoison, subject)
		}
	}
	return nil
}

// IsPoison reports whether err marks a message that must not be redelivered.
func IsPoison(err error) bool {
	return errors.Is(err, ErrPoison)
}
