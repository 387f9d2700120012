// Package policy defines the caller-tunable rules that decide which proposed
// actions are eligible for automatic application and which need a human,
// plus the follow-up cadence and business-hours window used for scheduling.
//
// Every field is optional. A missing or malformed field disables the feature
// it controls; it never makes evaluation fail.
package policy

import (
	"math"
	"sort"
)

// Decision is the outcome of assessing one action against a Policy.
type Decision string

const (
	DecisionAuto   Decision = "auto"
	DecisionReview Decision = "review"
)

// disabledThreshold is above any valid confidence, so nothing auto-applies.
const disabledThreshold = 1.01

// Policy holds the tuning parameters supplied with an orchestration request.
type Policy struct {
	Name        string `json:"name,omitempty" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// AutoApplyThreshold is the minimum confidence for auto eligibility.
	AutoApplyThreshold *float64 `json:"auto_apply_threshold,omitempty" yaml:"auto_apply_threshold,omitempty"`
	// AlwaysReviewFields are payload keys that force review regardless of confidence.
	AlwaysReviewFields []string `json:"always_review_fields,omitempty" yaml:"always_review_fields,omitempty"`
	// FollowupDaysByStage maps a deal stage to the follow-up delay in days.
	FollowupDaysByStage map[string]int `json:"followup_days_by_stage,omitempty" yaml:"followup_days_by_stage,omitempty"`
	// BusinessHours constrains proposed follow-up timestamps.
	BusinessHours *BusinessHours `json:"business_hours,omitempty" yaml:"business_hours,omitempty"`
}

// BusinessHours is a daily window on a set of weekdays. Start and End use
// 24h "HH:MM"; Weekdays uses three-letter names and defaults to mon-fri.
// Timezone is an IANA name; empty means the location of the reference time.
type BusinessHours struct {
	Start    string   `json:"start" yaml:"start"`
	End      string   `json:"end" yaml:"end"`
	Weekdays []string `json:"weekdays,omitempty" yaml:"weekdays,omitempty"`
	Timezone string   `json:"timezone,omitempty" yaml:"timezone,omitempty"`
}

// Threshold returns the effective auto-apply threshold. Unset or out-of-range
// values disable auto-apply.
func (p *Policy) Threshold() float64 {
	if p == nil || p.AutoApplyThreshold == nil {
		return disabledThreshold
	}
	t := *p.AutoApplyThreshold
	if math.IsNaN(t) || t < 0 || t > 1 {
		return disabledThreshold
	}
	return t
}

// AutoApplyEnabled reports whether any action could ever be auto-eligible.
func (p *Policy) AutoApplyEnabled() bool {
	return p.Threshold() <= 1
}

// reviewFields returns the always-review set, ignoring blank names.
func (p *Policy) reviewFields() map[string]bool {
	if p == nil || len(p.AlwaysReviewFields) == 0 {
		return nil
	}
	set := make(map[string]bool, len(p.AlwaysReviewFields))
	for _, f := range p.AlwaysReviewFields {
		if f != "" {
			set[f] = true
		}
	}
	return set
}

// FollowupDays returns the configured delay for stage. Negative values are
// treated as unset. Lookup tries the exact key first, then the normalized
// stage name.
func (p *Policy) FollowupDays(stage string) (int, bool) {
	if p == nil || len(p.FollowupDaysByStage) == 0 || stage == "" {
		return 0, false
	}
	days, ok := p.FollowupDaysByStage[stage]
	if !ok {
		norm := NormalizeStage(stage)
		keys := make([]string, 0, len(p.FollowupDaysByStage))
		for k := range p.FollowupDaysByStage {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if NormalizeStage(k) == norm {
				days, ok = p.FollowupDaysByStage[k], true
				break
			}
		}
	}
	if !ok || days < 0 {
		return 0, false
	}
	return days, true
}

// ModelView returns the subset of the policy that is useful to the model:
// everything except names, which only matter to operators.
func (p *Policy) ModelView() *Policy {
	if p == nil {
		return nil
	}
	v := *p
	v.Name = ""
	v.Description = ""
	if v.AutoApplyThreshold == nil && len(v.AlwaysReviewFields) == 0 &&
		len(v.FollowupDaysByStage) == 0 && v.BusinessHours == nil {
		return nil
	}
	return &v
}

// Float returns a pointer to f, for literal thresholds.
func Float(f float64) *float64 {
	return &f
}
