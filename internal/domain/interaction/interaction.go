// Package interaction defines the communication events the orchestrator mines
// for CRM work, and the best-effort entity context supplied alongside them.
package interaction

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Source is the channel an interaction arrived through.
type Source string

const (
	SourceEmail   Source = "email"
	SourceVoice   Source = "voice"
	SourceMeeting Source = "meeting"
	SourceNote    Source = "note"
)

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	switch s {
	case SourceEmail, SourceVoice, SourceMeeting, SourceNote:
		return true
	}
	return false
}

// ErrSourceRequired is returned when an interaction carries no usable source.
var ErrSourceRequired = errors.New("interaction source is required")

// Interaction is a single communication event. Body is the primary payload;
// Timestamp is an ISO-8601 string echoed verbatim to the model.
type Interaction struct {
	Source    Source `json:"source"`
	Subject   string `json:"subject,omitempty"`
	Body      string `json:"body,omitempty"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Validate enforces the single input invariant checked before a model call.
func (i *Interaction) Validate() error {
	if i.Source == "" {
		return ErrSourceRequired
	}
	if !i.Source.Valid() {
		return fmt.Errorf("%w: unknown source %q", ErrSourceRequired, i.Source)
	}
	return nil
}

// RelatedEntities is the optional business context for an interaction.
type RelatedEntities struct {
	Company *EntityRef `json:"company,omitempty"`
	Contact *EntityRef `json:"contact,omitempty"`
	Deal    *EntityRef `json:"deal,omitempty"`
}

// IsZero reports whether no entity is set.
func (r *RelatedEntities) IsZero() bool {
	return r == nil || (r.Company == nil && r.Contact == nil && r.Deal == nil)
}

// EntityRef is a partial CRM record: a handful of known optional fields plus
// an open bag of additional properties that round-trips through JSON.
type EntityRef struct {
	ID          string   `json:"id,omitempty"`
	Name        string   `json:"name,omitempty"`
	Stage       string   `json:"stage,omitempty"`
	Title       string   `json:"title,omitempty"`
	Probability *float64 `json:"probability,omitempty"`
	Owner       string   `json:"owner,omitempty"`
	CloseDate   string   `json:"close_date,omitempty"`

	// Extra holds every property not covered by the fields above.
	Extra map[string]any `json:"-"`
}

// entityFields aliases EntityRef without its methods to avoid marshal recursion.
type entityFields EntityRef

var knownEntityKeys = map[string]bool{
	"id": true, "name": true, "stage": true, "title": true,
	"probability": true, "owner": true, "close_date": true,
}

// MarshalJSON flattens Extra into the object. Known fields win on collision.
func (e EntityRef) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(entityFields(e))
	if err != nil {
		return nil, err
	}
	if len(e.Extra) == 0 {
		return known, nil
	}

	merged := make(map[string]any, len(e.Extra)+len(knownEntityKeys))
	for k, v := range e.Extra {
		if !knownEntityKeys[k] {
			merged[k] = v
		}
	}
	var fields map[string]any
	if err := json.Unmarshal(known, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// UnmarshalJSON fills the known fields and collects the rest into Extra.
func (e *EntityRef) UnmarshalJSON(data []byte) error {
	var fields entityFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}

	*e = EntityRef(fields)
	for k, v := range all {
		if knownEntityKeys[k] {
			continue
		}
		if e.Extra == nil {
			e.Extra = make(map[string]any)
		}
		e.Extra[k] = v
	}
	return nil
}
