package rules

import (
	"reflect"
	"testing"

	"github.com/openwelfare/sahayak/internal/domain"
)

func farmerRule() *domain.SchemeRule {
	return &domain.SchemeRule{
		SchemeID:   "pm-kisan",
		SchemeName: "PM Kisan",
		Eligibility: domain.Criteria{
			All: []domain.Condition{
				{Attribute: "age", Op: domain.OpGte, Value: 18},
				{Attribute: "is_farmer", Op: domain.OpTruthy},
			},
			Disqualifiers: []domain.Condition{
				{Attribute: "income", Op: domain.OpGt, Value: 1200000},
			},
		},
	}
}

func TestEvaluateSchemeEligible(t *testing.T) {
	ev := NewEvaluator()
	profile := domain.Profile{"age": 25, "is_farmer": true, "income": 50000}

	eval := ev.EvaluateScheme(profile, farmerRule())
	if !eval.Eligible {
		t.Fatalf("expected eligible, failed: %v", eval.FailedConditions)
	}
	if eval.Score != 100.0 {
		t.Errorf("score = %v, want 100.0", eval.Score)
	}
	if len(eval.Reasons) != 2 {
		t.Errorf("reasons = %v, want one per passed condition", eval.Reasons)
	}
}

func TestEvaluateSchemeDisqualifierDominates(t *testing.T) {
	ev := NewEvaluator()
	rule := farmerRule()
	rule.Eligibility.Disqualifiers = []domain.Condition{
		{Attribute: "income", Op: domain.OpGt, Value: 40000, Reason: "income too high"},
	}
	profile := domain.Profile{"age": 25, "is_farmer": true, "income": 50000}

	eval := ev.EvaluateScheme(profile, rule)
	if eval.Eligible {
		t.Fatal("triggered disqualifier must make scheme ineligible")
	}
	if eval.Score != 0 {
		t.Errorf("score = %v, want 0", eval.Score)
	}
	if !reflect.DeepEqual(eval.FailedConditions, []string{"income too high"}) {
		t.Errorf("failed = %v, want [income too high]", eval.FailedConditions)
	}
}

func TestEvaluateSchemeDisqualifierMissingData(t *testing.T) {
	// A disqualifier cannot trigger on data the profile does not have.
	ev := NewEvaluator()
	profile := domain.Profile{"age": 25, "is_farmer": true}

	eval := ev.EvaluateScheme(profile, farmerRule())
	if !eval.Eligible {
		t.Errorf("expected eligible, failed: %v", eval.FailedConditions)
	}
}

func TestEvaluateSchemeMissingRequiredAttribute(t *testing.T) {
	ev := NewEvaluator()
	rule := &domain.SchemeRule{
		SchemeID: "s1", SchemeName: "S1",
		Eligibility: domain.Criteria{
			All: []domain.Condition{
				{Attribute: "caste", Op: domain.OpIn, Value: []any{"SC", "ST"}},
			},
		},
	}
	eval := ev.EvaluateScheme(domain.Profile{"age": 30}, rule)
	if eval.Eligible {
		t.Fatal("missing attribute must not pass")
	}
	if !reflect.DeepEqual(eval.FailedConditions, []string{"missing: caste"}) {
		t.Errorf("failed = %v, want [missing: caste]", eval.FailedConditions)
	}
}

func TestEvaluateSchemeAnyGroup(t *testing.T) {
	ev := NewEvaluator()
	rule := &domain.SchemeRule{
		SchemeID: "s1", SchemeName: "S1",
		Eligibility: domain.Criteria{
			Any: []domain.Condition{
				{Attribute: "occupation", Op: domain.OpEq, Value: "farmer"},
				{Attribute: "occupation", Op: domain.OpEq, Value: "student"},
			},
		},
	}

	t.Run("one alternative passes", func(t *testing.T) {
		eval := ev.EvaluateScheme(domain.Profile{"occupation": "student"}, rule)
		if !eval.Eligible {
			t.Fatalf("expected eligible, failed: %v", eval.FailedConditions)
		}
		if eval.Score != 100.0 {
			t.Errorf("score = %v, want 100.0", eval.Score)
		}
		if len(eval.Reasons) != 1 || eval.Reasons[0] != "(any) occupation == student ✓" {
			t.Errorf("reasons = %v", eval.Reasons)
		}
	})

	t.Run("no alternative passes", func(t *testing.T) {
		eval := ev.EvaluateScheme(domain.Profile{"occupation": "engineer"}, rule)
		if eval.Eligible {
			t.Fatal("expected ineligible")
		}
		if len(eval.FailedConditions) != 1 {
			t.Fatalf("failed = %v, want one aggregate entry", eval.FailedConditions)
		}
		want := "None of required alternatives met: occupation == farmer failed; occupation == student failed"
		if eval.FailedConditions[0] != want {
			t.Errorf("aggregate = %q, want %q", eval.FailedConditions[0], want)
		}
	})
}

func TestEvaluateSchemeEmptyCriteria(t *testing.T) {
	ev := NewEvaluator()
	eval := ev.EvaluateScheme(domain.Profile{}, &domain.SchemeRule{
		SchemeID: "s1", SchemeName: "S1",
	})
	if !eval.Eligible {
		t.Fatal("empty criteria must be vacuously eligible")
	}
	if eval.Score != 100.0 {
		t.Errorf("score = %v, want 100.0", eval.Score)
	}
	if !reflect.DeepEqual(eval.Reasons, []string{DefaultPassReason}) {
		t.Errorf("reasons = %v", eval.Reasons)
	}
}

func TestEvaluateSchemePartialScoreIsZero(t *testing.T) {
	// Ineligible schemes always score exactly 0, however many conditions
	// passed along the way.
	ev := NewEvaluator()
	rule := farmerRule()
	eval := ev.EvaluateScheme(domain.Profile{"age": 25, "is_farmer": false}, rule)
	if eval.Eligible {
		t.Fatal("expected ineligible")
	}
	if eval.Score != 0 {
		t.Errorf("score = %v, want 0", eval.Score)
	}
}

func TestEvaluateSchemeIdempotent(t *testing.T) {
	ev := NewEvaluator()
	profile := domain.Profile{"age": 25, "is_farmer": true, "income": 50000}
	rule := farmerRule()

	first := ev.EvaluateScheme(profile, rule)
	second := ev.EvaluateScheme(profile, rule)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated evaluation differs:\n%+v\n%+v", first, second)
	}
}

func TestEvaluateSchemeScoreBounds(t *testing.T) {
	ev := NewEvaluator()
	profiles := []domain.Profile{
		{},
		{"age": 25},
		{"age": 25, "is_farmer": true},
		{"age": 25, "is_farmer": true, "income": 50000},
		{"age": 10, "is_farmer": false, "income": 9999999},
	}
	for _, p := range profiles {
		eval := ev.EvaluateScheme(p, farmerRule())
		if eval.Score < 0 || eval.Score > 100 {
			t.Errorf("profile %v: score %v out of bounds", p, eval.Score)
		}
		if !eval.Eligible && eval.Score != 0 {
			t.Errorf("profile %v: ineligible but score %v", p, eval.Score)
		}
	}
}

func TestEvaluateSchemeMalformedConditionDoesNotAbort(t *testing.T) {
	ev := NewEvaluator()
	rule := &domain.SchemeRule{
		SchemeID: "s1", SchemeName: "S1",
		Eligibility: domain.Criteria{
			All: []domain.Condition{
				{Attribute: "age", Op: "regex", Value: ".*"},
				{Attribute: "age", Op: domain.OpGte, Value: 18},
			},
		},
	}
	eval := ev.EvaluateScheme(domain.Profile{"age": 25}, rule)
	if eval.Eligible {
		t.Fatal("unsupported operator must fail its condition")
	}
	if len(eval.FailedConditions) != 1 || eval.FailedConditions[0] != "Unsupported operator: regex" {
		t.Errorf("failed = %v", eval.FailedConditions)
	}
}
