package policy

import (
	"fmt"
	"math"
)

// Validate checks that an operator-authored Policy is well-formed. Request
// policies are never validated this way; the evaluator degrades instead.
func (p *Policy) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("policy: name is required")
	}
	if t := p.AutoApplyThreshold; t != nil && (math.IsNaN(*t) || *t < 0 || *t > 1) {
		return fmt.Errorf("policy: auto_apply_threshold must be within [0,1], got %v", *t)
	}
	for i, f := range p.AlwaysReviewFields {
		if f == "" {
			return fmt.Errorf("policy: always_review_fields[%d] is empty", i)
		}
	}
	for stage, days := range p.FollowupDaysByStage {
		if stage == "" {
			return fmt.Errorf("policy: followup_days_by_stage has an empty stage name")
		}
		if days < 0 {
			return fmt.Errorf("policy: followup_days_by_stage[%s] must be >= 0", stage)
		}
	}
	if p.BusinessHours != nil {
		if _, err := p.BusinessHours.parse(); err != nil {
			return fmt.Errorf("policy: business_hours: %w", err)
		}
	}
	return nil
}
