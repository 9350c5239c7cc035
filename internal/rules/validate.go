package rules

import (
	"encoding/json"
	"fmt"

	"github.com/openwelfare/sahayak/internal/domain"
)

var conditionGroups = []string{"all", "any", "disqualifiers"}

// ValidateDocument statically checks a rules document before it is trusted
// by the evaluator. Checks run in order and stop at the first failure, so
// the returned error always identifies a single offending path or index.
//
// This gate runs once at ingestion. Documents that fail are stored with
// error status and never evaluated.
func ValidateDocument(doc map[string]any) error {
	for _, key := range []string{"scheme_id", "scheme_name", "eligibility"} {
		if _, ok := doc[key]; !ok {
			return fmt.Errorf("Missing required key: %s", key)
		}
	}

	elig, ok := doc["eligibility"].(map[string]any)
	if !ok {
		return fmt.Errorf("eligibility must be an object")
	}

	for _, group := range conditionGroups {
		raw, present := elig[group]
		if !present {
			continue
		}
		list, ok := raw.([]any)
		if !ok {
			return fmt.Errorf("eligibility.%s must be a list", group)
		}
		for i, item := range list {
			cond, ok := item.(map[string]any)
			if !ok {
				return fmt.Errorf("eligibility.%s[%d] must be an object", group, i)
			}
			for _, key := range []string{"attribute", "op", "value"} {
				if _, ok := cond[key]; !ok {
					return fmt.Errorf("eligibility.%s[%d] missing '%s'", group, i, key)
				}
			}
			op, _ := cond["op"].(string)
			if !domain.OperatorKind(op).Valid() {
				return fmt.Errorf("Unsupported operator '%s' in %s[%d]", op, group, i)
			}
			if domain.OperatorKind(op) == domain.OpBetween {
				if _, _, wellFormed := rangeBounds(cond["value"]); !wellFormed {
					return fmt.Errorf("'between' operator requires value with 'min' and 'max' keys in %s[%d]", group, i)
				}
			}
		}
	}
	return nil
}

// ValidateSchemeRule validates a typed rule by round-tripping it through
// JSON into the generic document shape ValidateDocument expects. The
// round-trip also catches shapes a hand-built struct could smuggle past
// the typed model.
func ValidateSchemeRule(rule *domain.SchemeRule) error {
	raw, err := json.Marshal(rule)
	if err != nil {
		return fmt.Errorf("encode rules document: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decode rules document: %w", err)
	}
	return ValidateDocument(doc)
}
