package policy

import "strings"

// StageProbability pairs a pipeline stage with its default win probability.
type StageProbability struct {
	Stage       string  `json:"stage"`
	Probability float64 `json:"probability"`
}

// StageLadder is the open pipeline in order. Probabilities never decrease
// along it.
var StageLadder = []StageProbability{
	{Stage: "lead", Probability: 0.10},
	{Stage: "qualification", Probability: 0.20},
	{Stage: "discovery", Probability: 0.30},
	{Stage: "proposal", Probability: 0.50},
	{Stage: "negotiation", Probability: 0.70},
	{Stage: "closed_won", Probability: 1.00},
}

// StageClosedLost is terminal and sits outside the ladder.
const StageClosedLost = "closed_lost"

var stageAliases = map[string]string{
	"prospecting": "lead",
	"prospect":    "lead",
	"new":         "lead",
	"qualified":   "qualification",
	"demo":        "discovery",
	"quote":       "proposal",
	"negotiating": "negotiation",
	"won":         "closed_won",
	"lost":        StageClosedLost,
}

// NormalizeStage lowercases a stage name and folds spaces and hyphens into
// underscores, then resolves common aliases.
func NormalizeStage(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	if alias, ok := stageAliases[s]; ok {
		return alias
	}
	return s
}

// stageRank returns the ladder index of stage, or -1 when unknown.
func stageRank(stage string) int {
	for i, sp := range StageLadder {
		if sp.Stage == stage {
			return i
		}
	}
	return -1
}

// ProbabilityAdvice is the advisory probability adjustment for a stage change.
type ProbabilityAdvice struct {
	FromStage   string   `json:"from_stage,omitempty"`
	ToStage     string   `json:"to_stage"`
	Current     *float64 `json:"current,omitempty"`
	Suggested   float64  `json:"suggested"`
	Explanation string   `json:"explanation"`
}

// AdviseProbability proposes a probability for a move to toStage. Forward
// moves along the ladder never lower the current probability. Unknown stages
// produce no advice.
func AdviseProbability(fromStage, toStage string, current *float64) (*ProbabilityAdvice, bool) {
	to := NormalizeStage(toStage)
	if to == StageClosedLost {
		return &ProbabilityAdvice{
			FromStage:   NormalizeStage(fromStage),
			ToStage:     to,
			Current:     current,
			Suggested:   0,
			Explanation: "deal lost",
		}, true
	}

	rank := stageRank(to)
	if rank < 0 {
		return nil, false
	}
	advice := &ProbabilityAdvice{
		FromStage:   NormalizeStage(fromStage),
		ToStage:     to,
		Current:     current,
		Suggested:   StageLadder[rank].Probability,
		Explanation: "default probability for stage " + to,
	}

	forward := advice.FromStage == "" || stageRank(advice.FromStage) <= rank
	if current != nil && forward && *current > advice.Suggested {
		advice.Suggested = *current
		advice.Explanation = "kept current probability; stage default would lower it"
	}
	return advice, true
}
