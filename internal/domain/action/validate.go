package action

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ValidationResult holds the surviving actions and how many candidates were
// dropped on the way.
type ValidationResult struct {
	Actions []Action `json:"actions"`
	Dropped int      `json:"dropped"`
}

// Validate normalizes an untrusted candidate list, typically JSON decoded from
// a model response. Entries whose type or target is not a known enum member
// are dropped, confidence is clamped into [0,1] (and removed when not
// numeric), and a missing reason is synthesized. Validate never fails; the
// returned Actions slice is never nil.
//
// Accepted shapes: []any, []map[string]any, []Action, Output, raw JSON
// ([]byte, json.RawMessage or string), or an object carrying an "actions" key.
func Validate(candidate any) ValidationResult {
	res := ValidationResult{Actions: []Action{}}

	switch v := candidate.(type) {
	case nil:
	case json.RawMessage:
		return validateRaw(v)
	case []byte:
		return validateRaw(v)
	case string:
		return validateRaw([]byte(v))
	case Output:
		return Validate(v.Actions)
	case *Output:
		if v != nil {
			return Validate(v.Actions)
		}
	case map[string]any:
		if inner, ok := v["actions"]; ok {
			return Validate(inner)
		}
		// A lone action object is treated as a one-element list.
		return Validate([]any{v})
	case []map[string]any:
		for _, m := range v {
			res.add(fromMap(m))
		}
	case []Action:
		for i := range v {
			res.add(normalize(v[i]))
		}
	case []any:
		for _, item := range v {
			switch e := item.(type) {
			case map[string]any:
				res.add(fromMap(e))
			case Action:
				res.add(normalize(e))
			case *Action:
				if e == nil {
					res.Dropped++
					continue
				}
				res.add(normalize(*e))
			default:
				res.Dropped++
			}
		}
	}
	return res
}

func (r *ValidationResult) add(a Action, ok bool) {
	if !ok {
		r.Dropped++
		return
	}
	r.Actions = append(r.Actions, a)
}

// validateRaw decodes a JSON document first. A non-blank document that does
// not parse counts as one dropped candidate.
func validateRaw(data []byte) ValidationResult {
	v := decodeLoose(data)
	if v == nil && len(bytes.TrimSpace(data)) > 0 && !bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return ValidationResult{Actions: []Action{}, Dropped: 1}
	}
	return Validate(v)
}

// decodeLoose parses JSON, returning nil for anything unparseable. Numbers
// stay json.Number so a single out-of-range literal only affects the entry
// carrying it.
func decodeLoose(data []byte) any {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	return v
}

// fromMap builds an Action from a generic JSON object.
func fromMap(m map[string]any) (Action, bool) {
	typ, _ := m["type"].(string)
	target, _ := m["target"].(string)

	a := Action{
		Type:   Type(strings.TrimSpace(typ)),
		Target: Target(strings.TrimSpace(target)),
	}
	if !a.Type.Valid() || !a.Target.Valid() {
		return Action{}, false
	}

	if id, ok := stringID(m["id"]); ok {
		a.ID = id
	}

	var ok bool
	if a.Data, ok = payload(m["data"]); !ok {
		return Action{}, false
	}
	if a.Changes, ok = payload(m["changes"]); !ok {
		return Action{}, false
	}

	a.Reason, _ = m["reason"].(string)
	if f, ok := toFloat(m["confidence"]); ok {
		a.Confidence = &f
	}
	return normalize(a)
}

// normalize applies the per-action rules shared by every input shape.
func normalize(a Action) (Action, bool) {
	if !a.Type.Valid() || !a.Target.Valid() {
		return Action{}, false
	}
	if a.Confidence != nil {
		c := *a.Confidence
		if math.IsNaN(c) || math.IsInf(c, 0) {
			a.Confidence = nil
		} else {
			c = clamp01(c)
			a.Confidence = &c
		}
	}
	a.Reason = strings.TrimSpace(a.Reason)
	if a.Reason == "" {
		a.Reason = SynthesizeReason(a.Type, a.Target)
	}
	return a, true
}

// SynthesizeReason returns the generic reason used when the model gave none.
func SynthesizeReason(t Type, target Target) string {
	return fmt.Sprintf("Proposed %s on %s", t, target)
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

// payload accepts an absent/null value or a JSON object.
func payload(v any) (map[string]any, bool) {
	if v == nil {
		return nil, true
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	for k, val := range m {
		m[k] = plainNumbers(val)
	}
	return m, true
}

// plainNumbers replaces json.Number values with float64. A literal outside
// the float64 range is kept as its string form.
func plainNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return t.String()
		}
		return f
	case map[string]any:
		for k, val := range t {
			t[k] = plainNumbers(val)
		}
	case []any:
		for i, val := range t {
			t[i] = plainNumbers(val)
		}
	}
	return v
}

func stringID(v any) (string, bool) {
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id), true
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64), true
	case json.Number:
		return id.String(), true
	}
	return "", false
}

// toFloat coerces JSON numbers and numeric strings. Everything else is
// reported as non-numeric.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, finite(n)
	case float32:
		return float64(n), finite(float64(n))
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil && finite(f)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil || !finite(f) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
