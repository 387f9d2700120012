// Package action defines the closed vocabulary of CRM actions proposed by the
// orchestrator and the validator that normalizes untrusted candidate lists.
package action

// Type is the kind of work an action proposes.
type Type string

const (
	TypeUpdateEntity  Type = "update_entity"
	TypeCreateEntity  Type = "create_entity"
	TypeCreateTask    Type = "create_task"
	TypeCreateAIDraft Type = "create_ai_draft"
	TypeCreateMeeting Type = "create_meeting"
	TypeNotifyUser    Type = "notify_user"
	TypeLogAction     Type = "log_action"
	TypeSuggest       Type = "suggest"
)

// Target names the CRM collection an action affects.
type Target string

const (
	TargetCompanies     Target = "companies"
	TargetContacts      Target = "contacts"
	TargetDeals         Target = "deals"
	TargetEmails        Target = "emails"
	TargetTasks         Target = "tasks"
	TargetAIDrafts      Target = "ai_drafts"
	TargetMeetings      Target = "meetings"
	TargetNotifications Target = "notifications"
	TargetHistory       Target = "history"
)

// Types lists every action type in declaration order.
var Types = []Type{
	TypeUpdateEntity,
	TypeCreateEntity,
	TypeCreateTask,
	TypeCreateAIDraft,
	TypeCreateMeeting,
	TypeNotifyUser,
	TypeLogAction,
	TypeSuggest,
}

// Targets lists every action target in declaration order.
var Targets = []Target{
	TargetCompanies,
	TargetContacts,
	TargetDeals,
	TargetEmails,
	TargetTasks,
	TargetAIDrafts,
	TargetMeetings,
	TargetNotifications,
	TargetHistory,
}

// Valid reports whether t is a known action type.
func (t Type) Valid() bool {
	switch t {
	case TypeUpdateEntity, TypeCreateEntity, TypeCreateTask, TypeCreateAIDraft,
		TypeCreateMeeting, TypeNotifyUser, TypeLogAction, TypeSuggest:
		return true
	}
	return false
}

// Valid reports whether t is a known action target.
func (t Target) Valid() bool {
	switch t {
	case TargetCompanies, TargetContacts, TargetDeals, TargetEmails, TargetTasks,
		TargetAIDrafts, TargetMeetings, TargetNotifications, TargetHistory:
		return true
	}
	return false
}

// Action is one atomic unit of proposed CRM work. Data and Changes are opaque
// to the core; only the envelope is validated.
type Action struct {
	Type       Type           `json:"type"`
	Target     Target         `json:"target"`
	ID         string         `json:"id,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	Changes    map[string]any `json:"changes,omitempty"`
	Reason     string         `json:"reason"`
	Confidence *float64       `json:"confidence,omitempty"`
}

// ConfidenceOr returns the action's confidence, or def when it is absent.
func (a *Action) ConfidenceOr(def float64) float64 {
	if a.Confidence == nil {
		return def
	}
	return *a.Confidence
}

// PayloadKeys returns the field names carried in Changes and Data.
// Keys present in both appear once.
func (a *Action) PayloadKeys() []string {
	keys := make([]string, 0, len(a.Changes)+len(a.Data))
	seen := make(map[string]bool, len(a.Changes)+len(a.Data))
	for _, m := range []map[string]any{a.Changes, a.Data} {
		for k := range m {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	return keys
}

// Field looks a field up in Changes first, then Data.
func (a *Action) Field(name string) (any, bool) {
	if v, ok := a.Changes[name]; ok {
		return v, true
	}
	v, ok := a.Data[name]
	return v, ok
}

// Output is the orchestrator's result envelope. Actions is never nil.
type Output struct {
	Actions []Action `json:"actions"`
}

// Empty returns an Output with no actions.
func Empty() Output {
	return Output{Actions: []Action{}}
}

// FallbackReasonModelError is the reason attached when the backend call fails.
const FallbackReasonModelError = "Model error"

// Fallback builds the single informational log_action returned on degraded
// paths. Its confidence is always 0.
func Fallback(reason string) Action {
	zero := 0.0
	return Action{
		Type:       TypeLogAction,
		Target:     TargetHistory,
		Reason:     reason,
		Confidence: &zero,
	}
}

// FallbackOutput wraps Fallback in an Output.
func FallbackOutput(reason string) Output {
	return Output{Actions: []Action{Fallback(reason)}}
}

// Float returns a pointer to v, for building actions with a confidence.
func Float(v float64) *float64 {
	return &v
}
