package policy

import (
	"fmt"
	"sort"
	"time"

	"github.com/Strob0t/ActionForge/internal/domain/action"
)

// Review reason codes attached to assessments.
const (
	ReasonSuggestion      = "suggestions always require review"
	ReasonNoConfidence    = "no confidence reported"
	ReasonBelowThreshold  = "confidence below auto-apply threshold"
	ReasonAutoDisabled    = "auto-apply disabled by policy"
	ReasonAlwaysReview    = "payload touches always-review fields"
	ReasonMeetsThreshold  = "confidence meets auto-apply threshold"
	followUpTaskTitleStem = "Follow up on deal"
)

// Assessment is the policy verdict for one action. Index refers to the
// position in the evaluated slice.
type Assessment struct {
	Index        int                `json:"index"`
	Decision     Decision           `json:"decision"`
	AutoEligible bool               `json:"auto_eligible"`
	Reasons      []string           `json:"reasons"`
	ReviewFields []string           `json:"review_fields,omitempty"`
	Probability  *ProbabilityAdvice `json:"probability,omitempty"`
	FollowUp     *FollowUp          `json:"follow_up,omitempty"`
}

// FollowUp is the suggested follow-up for a deal stage change.
type FollowUp struct {
	Stage string    `json:"stage"`
	Days  int       `json:"days"`
	DueAt time.Time `json:"due_at"`
}

// Evaluation is the advisory side output of evaluating a set of actions.
// Companions holds create_task proposals derived from follow-ups; they are
// never merged into the evaluated actions.
type Evaluation struct {
	Threshold   float64         `json:"threshold"`
	Assessments []Assessment    `json:"assessments"`
	Companions  []action.Action `json:"companions,omitempty"`
}

// AutoEligibleCount returns how many assessed actions are auto-eligible.
func (e *Evaluation) AutoEligibleCount() int {
	n := 0
	for i := range e.Assessments {
		if e.Assessments[i].AutoEligible {
			n++
		}
	}
	return n
}

// Options carries evaluation context that is not part of the policy.
type Options struct {
	// Now anchors follow-up due dates.
	Now time.Time
	// CurrentStage and CurrentProbability describe the related deal, if known.
	CurrentStage       string
	CurrentProbability *float64
}

// Evaluate assesses each action against p. It does not modify the actions.
func Evaluate(actions []action.Action, p *Policy, opts Options) Evaluation {
	ev := Evaluation{
		Threshold:   p.Threshold(),
		Assessments: make([]Assessment, 0, len(actions)),
	}
	reviewSet := p.reviewFields()

	var hours *BusinessHours
	if p != nil {
		hours = p.BusinessHours
	}

	for i := range actions {
		a := &actions[i]
		as := assess(a, ev.Threshold, reviewSet)
		as.Index = i

		if stage, ok := stageOf(a); ok {
			if adv, ok := AdviseProbability(opts.CurrentStage, stage, opts.CurrentProbability); ok {
				as.Probability = adv
			}
			if a.Target == action.TargetDeals {
				if days, ok := p.FollowupDays(stage); ok && !opts.Now.IsZero() {
					fu := &FollowUp{
						Stage: stage,
						Days:  days,
						DueAt: hours.Clip(opts.Now.AddDate(0, 0, days)),
					}
					as.FollowUp = fu
					ev.Companions = append(ev.Companions, followUpTask(a, fu))
				}
			}
		}
		ev.Assessments = append(ev.Assessments, as)
	}
	return ev
}

// assess applies the auto-eligibility rule to one action.
func assess(a *action.Action, threshold float64, reviewSet map[string]bool) Assessment {
	as := Assessment{Decision: DecisionReview, Reasons: []string{}}

	for _, k := range a.PayloadKeys() {
		if reviewSet[k] {
			as.ReviewFields = append(as.ReviewFields, k)
		}
	}
	sort.Strings(as.ReviewFields)

	switch {
	case a.Type == action.TypeSuggest:
		as.Reasons = append(as.Reasons, ReasonSuggestion)
	case threshold > 1:
		as.Reasons = append(as.Reasons, ReasonAutoDisabled)
	case a.Confidence == nil:
		as.Reasons = append(as.Reasons, ReasonNoConfidence)
	case *a.Confidence < threshold:
		as.Reasons = append(as.Reasons, ReasonBelowThreshold)
	}
	if len(as.ReviewFields) > 0 {
		as.Reasons = append(as.Reasons, ReasonAlwaysReview)
	}

	if len(as.Reasons) == 0 {
		as.Decision = DecisionAuto
		as.AutoEligible = true
		as.Reasons = append(as.Reasons, ReasonMeetsThreshold)
	}
	return as
}

// stageOf returns the stage an action sets, if any.
func stageOf(a *action.Action) (string, bool) {
	v, ok := a.Field("stage")
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func followUpTask(a *action.Action, fu *FollowUp) action.Action {
	title := followUpTaskTitleStem
	if a.ID != "" {
		title += " " + a.ID
	}
	data := map[string]any{
		"title":    fmt.Sprintf("%s (%s)", title, fu.Stage),
		"due_date": fu.DueAt.Format(time.RFC3339),
		"stage":    fu.Stage,
	}
	if a.ID != "" {
		data["deal_id"] = a.ID
	}
	return action.Action{
		Type:   action.TypeCreateTask,
		Target: action.TargetTasks,
		Data:   data,
		Reason: fmt.Sprintf("Follow-up scheduled %d days after moving deal to %s", fu.Days, fu.Stage),
	}
}
