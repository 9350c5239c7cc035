package rules

import (
	"fmt"
	"math"
	"strings"

	"github.com/openwelfare/sahayak/internal/domain"
)

// DefaultPassReason is returned when a scheme is eligible but generated no
// per-condition confirmations (e.g. a scheme with no conditions at all).
const DefaultPassReason = "All eligibility criteria met"

// Evaluator applies a scheme's criteria to a profile. It holds no state and
// is safe for concurrent use; every call produces a fresh result.
type Evaluator struct{}

// NewEvaluator returns a stateless scheme evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// EvaluateScheme runs one scheme's criteria against a profile.
//
// Groups are evaluated in a fixed order. Disqualifiers run first and
// short-circuit: a single triggered disqualifier makes the subject
// ineligible with score 0, and nothing else is evaluated. The all group is
// evaluated exhaustively so every failure is reported, not just the first.
// The any group passes when at least one alternative holds, or vacuously
// when empty.
func (e *Evaluator) EvaluateScheme(profile domain.Profile, rule *domain.SchemeRule) *domain.Evaluation {
	eval := &domain.Evaluation{
		SchemeID:   rule.SchemeID,
		SchemeName: rule.SchemeName,
	}
	crit := rule.Eligibility

	for _, d := range crit.Disqualifiers {
		triggered, _ := EvaluateCondition(profile, d)
		if triggered {
			reason := d.Reason
			if reason == "" {
				reason = fmt.Sprintf("Disqualified: %s %s %v", d.Attribute, d.Op, d.Value)
			}
			eval.Eligible = false
			eval.Score = 0
			eval.Reasons = []string{reason}
			eval.FailedConditions = []string{reason}
			return eval
		}
	}

	var passed, failed []string
	allOK := true
	passedAll := 0
	for _, c := range crit.All {
		ok, reason := EvaluateCondition(profile, c)
		if ok {
			passedAll++
			passed = append(passed, reason)
		} else {
			allOK = false
			failed = append(failed, reason)
		}
	}

	anyOK := true
	anyUnit := 0
	if len(crit.Any) > 0 {
		anyUnit = 1
		anyOK = false
		var anyFails []string
		for _, c := range crit.Any {
			ok, reason := EvaluateCondition(profile, c)
			if ok {
				anyOK = true
				passed = append(passed, "(any) "+reason)
			} else {
				anyFails = append(anyFails, reason)
			}
		}
		if !anyOK {
			failed = append(failed, "None of required alternatives met: "+strings.Join(anyFails, "; "))
		}
	}

	// The verdict comes from the booleans tracked above, not from the
	// lengths of the accumulated reason lists.
	eval.Eligible = allOK && anyOK
	eval.FailedConditions = failed

	if !eval.Eligible {
		eval.Score = 0
		eval.Reasons = failed
		return eval
	}

	eval.Score = matchScore(passedAll, len(crit.All), anyOK, anyUnit)
	if len(passed) == 0 {
		eval.Reasons = []string{DefaultPassReason}
	} else {
		eval.Reasons = passed
	}
	return eval
}

// matchScore computes the 0..100 match score, rounded to one decimal. The
// any group counts as a single unit however many alternatives it lists. A
// scheme with no conditions scores 100.
func matchScore(passedAll, totalAll int, anyOK bool, anyUnit int) float64 {
	den := totalAll + anyUnit
	if den == 0 {
		return 100
	}
	num := passedAll
	if anyUnit == 1 && anyOK {
		num++
	}
	return math.Round(float64(num)/float64(den)*100*10) / 10
}
