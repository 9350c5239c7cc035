package rules

import (
	"strings"
	"testing"

	"github.com/openwelfare/sahayak/internal/domain"
)

func TestEvaluateConditionMissingAttribute(t *testing.T) {
	profile := domain.Profile{"age": 25}
	ops := []domain.OperatorKind{
		domain.OpEq, domain.OpNe, domain.OpGt, domain.OpGte, domain.OpLt,
		domain.OpLte, domain.OpTruthy, domain.OpFalsy, domain.OpIn,
		domain.OpNotIn, domain.OpBetween,
	}
	for _, op := range ops {
		t.Run(string(op), func(t *testing.T) {
			passed, reason := EvaluateCondition(profile, domain.Condition{
				Attribute: "caste", Op: op, Value: "SC",
			})
			if passed {
				t.Errorf("expected fail for missing attribute with op %s", op)
			}
			if !strings.HasPrefix(reason, "missing:") {
				t.Errorf("reason = %q, want prefix %q", reason, "missing:")
			}
		})
	}
}

func TestEvaluateConditionNullAttribute(t *testing.T) {
	profile := domain.Profile{"income": nil}
	passed, reason := EvaluateCondition(profile, domain.Condition{
		Attribute: "income", Op: domain.OpGt, Value: 100000,
	})
	if passed || reason != "missing: income" {
		t.Errorf("got (%v, %q), want (false, %q)", passed, reason, "missing: income")
	}
}

func TestEvaluateConditionEquality(t *testing.T) {
	tests := []struct {
		name    string
		profile domain.Profile
		cond    domain.Condition
		want    bool
	}{
		{"string eq", domain.Profile{"occupation": "farmer"}, domain.Condition{Attribute: "occupation", Op: domain.OpEq, Value: "farmer"}, true},
		{"string eq mismatch", domain.Profile{"occupation": "weaver"}, domain.Condition{Attribute: "occupation", Op: domain.OpEq, Value: "farmer"}, false},
		{"int eq float", domain.Profile{"age": 25}, domain.Condition{Attribute: "age", Op: domain.OpEq, Value: 25.0}, true},
		{"digit string coerced", domain.Profile{"age": "25"}, domain.Condition{Attribute: "age", Op: domain.OpEq, Value: 25}, true},
		{"ne", domain.Profile{"state": "UP"}, domain.Condition{Attribute: "state", Op: domain.OpNe, Value: "MP"}, true},
		{"string vs number stays distinct", domain.Profile{"code": "A1"}, domain.Condition{Attribute: "code", Op: domain.OpEq, Value: 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := EvaluateCondition(tt.profile, tt.cond)
			if got != tt.want {
				t.Errorf("passed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateConditionOrdered(t *testing.T) {
	tests := []struct {
		name string
		op   domain.OperatorKind
		val  any
		want bool
	}{
		{"gt pass", domain.OpGt, 18, true},
		{"gt fail equal", domain.OpGt, 25, false},
		{"gte pass equal", domain.OpGte, 25, true},
		{"lt fail", domain.OpLt, 20, false},
		{"lte pass", domain.OpLte, 25, true},
	}
	profile := domain.Profile{"age": 25}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := EvaluateCondition(profile, domain.Condition{
				Attribute: "age", Op: tt.op, Value: tt.val,
			})
			if got != tt.want {
				t.Errorf("passed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateConditionCastFailure(t *testing.T) {
	profile := domain.Profile{"age": "twenty-five"}
	passed, reason := EvaluateCondition(profile, domain.Condition{
		Attribute: "age", Op: domain.OpGte, Value: 18,
	})
	if passed {
		t.Error("non-numeric operand must fail closed")
	}
	if reason != "evaluation error: age" {
		t.Errorf("reason = %q, want %q", reason, "evaluation error: age")
	}
}

func TestEvaluateConditionNumericString(t *testing.T) {
	profile := domain.Profile{"income": "50000"}
	passed, _ := EvaluateCondition(profile, domain.Condition{
		Attribute: "income", Op: domain.OpLte, Value: 100000,
	})
	if !passed {
		t.Error("digit string should compare numerically")
	}
}

func TestEvaluateConditionTruthyFalsy(t *testing.T) {
	tests := []struct {
		name  string
		value any
		op    domain.OperatorKind
		want  bool
	}{
		{"bool true", true, domain.OpTruthy, true},
		{"bool false", false, domain.OpTruthy, false},
		{"zero", 0, domain.OpTruthy, false},
		{"nonzero", 3, domain.OpTruthy, true},
		{"empty string falsy", "", domain.OpFalsy, true},
		{"nonempty string falsy", "yes", domain.OpFalsy, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := EvaluateCondition(domain.Profile{"flag": tt.value}, domain.Condition{
				Attribute: "flag", Op: tt.op,
			})
			if got != tt.want {
				t.Errorf("passed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateConditionMembership(t *testing.T) {
	tests := []struct {
		name    string
		profile domain.Profile
		cond    domain.Condition
		want    bool
	}{
		{"in list", domain.Profile{"caste": "SC"}, domain.Condition{Attribute: "caste", Op: domain.OpIn, Value: []any{"SC", "ST"}}, true},
		{"not in list", domain.Profile{"caste": "OBC"}, domain.Condition{Attribute: "caste", Op: domain.OpIn, Value: []any{"SC", "ST"}}, false},
		{"comma string", domain.Profile{"state": "Bihar"}, domain.Condition{Attribute: "state", Op: domain.OpIn, Value: "Bihar, Jharkhand, Odisha"}, true},
		{"not_in pass", domain.Profile{"caste": "General"}, domain.Condition{Attribute: "caste", Op: domain.OpNotIn, Value: []any{"SC", "ST"}}, true},
		{"not_in fail", domain.Profile{"caste": "SC"}, domain.Condition{Attribute: "caste", Op: domain.OpNotIn, Value: []any{"SC", "ST"}}, false},
		{"malformed set in", domain.Profile{"caste": "SC"}, domain.Condition{Attribute: "caste", Op: domain.OpIn, Value: 42}, false},
		{"malformed set not_in", domain.Profile{"caste": "SC"}, domain.Condition{Attribute: "caste", Op: domain.OpNotIn, Value: 42}, true},
		{"numeric membership", domain.Profile{"household_size": 4}, domain.Condition{Attribute: "household_size", Op: domain.OpIn, Value: []any{float64(3), float64(4)}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := EvaluateCondition(tt.profile, tt.cond)
			if got != tt.want {
				t.Errorf("passed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateConditionBetween(t *testing.T) {
	cond := domain.Condition{
		Attribute: "age", Op: domain.OpBetween,
		Value: map[string]any{"min": 18, "max": 40},
	}
	tests := []struct {
		age  any
		want bool
	}{
		{17, false},
		{18, true},
		{30, true},
		{40, true},
		{41, false},
	}
	for _, tt := range tests {
		got, _ := EvaluateCondition(domain.Profile{"age": tt.age}, cond)
		if got != tt.want {
			t.Errorf("age %v: passed = %v, want %v", tt.age, got, tt.want)
		}
	}
}

func TestEvaluateConditionBetweenMalformed(t *testing.T) {
	passed, reason := EvaluateCondition(domain.Profile{"age": 25}, domain.Condition{
		Attribute: "age", Op: domain.OpBetween, Value: map[string]any{"min": 18},
	})
	if passed {
		t.Error("malformed between range must fail")
	}
	if reason != "Invalid 'between' value format for age" {
		t.Errorf("reason = %q", reason)
	}
}

func TestEvaluateConditionUnsupportedOperator(t *testing.T) {
	passed, reason := EvaluateCondition(domain.Profile{"age": 25}, domain.Condition{
		Attribute: "age", Op: "matches", Value: ".*",
	})
	if passed {
		t.Error("unsupported operator must fail")
	}
	if reason != "Unsupported operator: matches" {
		t.Errorf("reason = %q", reason)
	}
}

func TestEvaluateConditionReasons(t *testing.T) {
	t.Run("pass confirmation", func(t *testing.T) {
		_, reason := EvaluateCondition(domain.Profile{"age": 25}, domain.Condition{
			Attribute: "age", Op: domain.OpGte, Value: 18,
		})
		if reason != "age >= 18 ✓" {
			t.Errorf("reason = %q, want %q", reason, "age >= 18 ✓")
		}
	})
	t.Run("configured failure text", func(t *testing.T) {
		_, reason := EvaluateCondition(domain.Profile{"age": 15}, domain.Condition{
			Attribute: "age", Op: domain.OpGte, Value: 18,
			ReasonIfFail: "Applicant must be an adult",
		})
		if reason != "Applicant must be an adult" {
			t.Errorf("reason = %q", reason)
		}
	})
	t.Run("generated fallback", func(t *testing.T) {
		_, reason := EvaluateCondition(domain.Profile{"age": 15}, domain.Condition{
			Attribute: "age", Op: domain.OpGte, Value: 18,
		})
		if reason != "age >= 18 failed" {
			t.Errorf("reason = %q", reason)
		}
	})
}
