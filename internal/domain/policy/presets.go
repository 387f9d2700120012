package policy

// PresetReviewEverything returns the "review-everything" preset.
// Nothing is auto-eligible; every proposal goes to a human.
func PresetReviewEverything() Policy {
	return Policy{
		Name:        "review-everything",
		Description: "No auto-apply. Every proposed action is routed to human review.",
	}
}

// PresetBalanced returns the "balanced" preset.
// High-confidence routine updates may auto-apply; money and ownership never do.
func PresetBalanced() Policy {
	return Policy{
		Name:               "balanced",
		Description:        "Auto-apply at 0.85 confidence; amounts, owners and close dates always reviewed.",
		AutoApplyThreshold: Float(0.85),
		AlwaysReviewFields: []string{"amount", "owner", "close_date", "probability"},
		FollowupDaysByStage: map[string]int{
			"lead":          3,
			"qualification": 5,
			"proposal":      3,
			"negotiation":   2,
		},
		BusinessHours: &BusinessHours{Start: "09:00", End: "17:00"},
	}
}

// PresetTrustedAssistant returns the "trusted-assistant" preset.
// For teams that let the assistant keep the CRM tidy with little oversight.
func PresetTrustedAssistant() Policy {
	return Policy{
		Name:               "trusted-assistant",
		Description:        "Auto-apply at 0.7 confidence; only amounts are always reviewed.",
		AutoApplyThreshold: Float(0.7),
		AlwaysReviewFields: []string{"amount"},
		FollowupDaysByStage: map[string]int{
			"lead":          2,
			"qualification": 3,
			"discovery":     3,
			"proposal":      2,
			"negotiation":   1,
		},
		BusinessHours: &BusinessHours{Start: "08:00", End: "18:00"},
	}
}

// PresetNames returns the names of all built-in presets.
func PresetNames() []string {
	return []string{
		"review-everything",
		"balanced",
		"trusted-assistant",
	}
}

// IsPreset returns true if the given name is a built-in preset.
func IsPreset(name string) bool {
	_, ok := PresetByName(name)
	return ok
}

// PresetByName returns a preset by name, or false if not found.
func PresetByName(name string) (Policy, bool) {
	switch name {
	case "review-everything":
		return PresetReviewEverything(), true
	case "balanced":
		return PresetBalanced(), true
	case "trusted-assistant":
		return PresetTrustedAssistant(), true
	default:
		return Policy{}, false
	}
}
