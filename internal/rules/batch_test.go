package rules

import (
	"context"
	"testing"
	"time"

	"github.com/openwelfare/sahayak/internal/domain"
)

func readyDoc(rule domain.SchemeRule) *domain.SchemeDoc {
	return &domain.SchemeDoc{
		SchemeID:   rule.SchemeID,
		Rule:       rule,
		Status:     domain.StatusReady,
		IngestedAt: time.Now(),
	}
}

func batchDocs() []*domain.SchemeDoc {
	return []*domain.SchemeDoc{
		readyDoc(domain.SchemeRule{
			SchemeID: "farmer-aid", SchemeName: "Farmer Aid",
			Eligibility: domain.Criteria{
				All: []domain.Condition{
					{Attribute: "is_farmer", Op: domain.OpTruthy},
				},
			},
			RequiredDocuments: []string{"land record"},
			NextSteps:         "Apply at the block office",
		}),
		readyDoc(domain.SchemeRule{
			SchemeID: "student-grant", SchemeName: "Student Grant",
			Eligibility: domain.Criteria{
				All: []domain.Condition{
					{Attribute: "occupation", Op: domain.OpEq, Value: "student", ReasonIfFail: "must be a student"},
					{Attribute: "age", Op: domain.OpLte, Value: 25},
				},
			},
		}),
		readyDoc(domain.SchemeRule{
			SchemeID: "widow-pension", SchemeName: "Widow Pension",
			Eligibility: domain.Criteria{
				All: []domain.Condition{
					{Attribute: "is_widow", Op: domain.OpTruthy, ReasonIfFail: "for widows only"},
					{Attribute: "age", Op: domain.OpGte, Value: 40, ReasonIfFail: "too young"},
					{Attribute: "income", Op: domain.OpLt, Value: 10000, ReasonIfFail: "income too high"},
				},
			},
		}),
		{
			SchemeID: "broken-scheme",
			Status:   domain.StatusError,
			Error:    "Unsupported operator 'regex' in all[0]",
		},
	}
}

func TestCheckerPartition(t *testing.T) {
	checker := NewChecker(domain.CheckConfig{NearMissThreshold: 2, MaxWorkers: 4}, nil)
	profile := domain.Profile{
		"is_farmer":  true,
		"occupation": "farmer",
		"age":        45,
		"income":     8000,
		"is_widow":   false,
	}

	resp := checker.Check(context.Background(), profile, batchDocs())

	if resp.SchemesChecked != 4 {
		t.Errorf("schemesChecked = %d, want 4", resp.SchemesChecked)
	}
	if len(resp.Eligible) != 1 || resp.Eligible[0].SchemeID != "farmer-aid" {
		t.Fatalf("eligible = %+v, want only farmer-aid", resp.Eligible)
	}
	if resp.Eligible[0].NextSteps != "Apply at the block office" {
		t.Errorf("next steps not carried through: %+v", resp.Eligible[0])
	}

	// student-grant failed one condition, widow-pension failed one: both
	// within the near-miss threshold.
	if len(resp.NearMisses) != 2 {
		t.Fatalf("nearMisses = %+v, want 2", resp.NearMisses)
	}

	if len(resp.SchemeErrors) != 1 || resp.SchemeErrors[0].SchemeID != "broken-scheme" {
		t.Errorf("schemeErrors = %+v", resp.SchemeErrors)
	}
	if resp.CheckID == "" {
		t.Error("checkID must be set")
	}
}

func TestCheckerNearMissThreshold(t *testing.T) {
	checker := NewChecker(domain.CheckConfig{NearMissThreshold: 1, MaxWorkers: 4}, nil)
	profile := domain.Profile{
		"is_farmer":  false,
		"occupation": "engineer",
		"age":        30,
		"income":     50000,
		"is_widow":   false,
	}

	resp := checker.Check(context.Background(), profile, batchDocs())

	if len(resp.Eligible) != 0 {
		t.Errorf("eligible = %+v, want none", resp.Eligible)
	}
	// Only schemes with a single failed condition qualify at threshold 1.
	if len(resp.NearMisses) != 1 || resp.NearMisses[0].SchemeID != "farmer-aid" {
		t.Fatalf("nearMisses = %+v, want only farmer-aid", resp.NearMisses)
	}
}

func TestCheckerErrorDocNotEvaluated(t *testing.T) {
	checker := NewChecker(domain.CheckConfig{}, nil)
	docs := []*domain.SchemeDoc{{
		SchemeID: "bad",
		Status:   domain.StatusError,
		Error:    "Missing required key: eligibility",
		Rule: domain.SchemeRule{
			SchemeID: "bad", SchemeName: "Bad",
		},
	}}

	resp := checker.Check(context.Background(), domain.Profile{"age": 30}, docs)
	if len(resp.Eligible) != 0 {
		t.Error("error-status scheme must never be eligible")
	}
	if len(resp.SchemeErrors) != 1 || resp.SchemeErrors[0].Error != "Missing required key: eligibility" {
		t.Errorf("schemeErrors = %+v", resp.SchemeErrors)
	}
}

func TestCheckerEligibleSortedByScore(t *testing.T) {
	checker := NewChecker(domain.CheckConfig{MaxWorkers: 2}, nil)
	docs := []*domain.SchemeDoc{
		readyDoc(domain.SchemeRule{SchemeID: "b-scheme", SchemeName: "B"}),
		readyDoc(domain.SchemeRule{SchemeID: "a-scheme", SchemeName: "A"}),
	}
	resp := checker.Check(context.Background(), domain.Profile{}, docs)
	if len(resp.Eligible) != 2 {
		t.Fatalf("eligible = %+v", resp.Eligible)
	}
	if resp.Eligible[0].SchemeID != "a-scheme" {
		t.Errorf("equal scores must order by scheme id: %+v", resp.Eligible)
	}
}

func TestCheckerManySchemes(t *testing.T) {
	checker := NewChecker(domain.CheckConfig{MaxWorkers: 8}, nil)
	var docs []*domain.SchemeDoc
	for i := 0; i < 200; i++ {
		docs = append(docs, readyDoc(domain.SchemeRule{
			SchemeID:   string(rune('a'+i%26)) + "-scheme",
			SchemeName: "Scheme",
			Eligibility: domain.Criteria{
				All: []domain.Condition{{Attribute: "age", Op: domain.OpGte, Value: 18}},
			},
		}))
	}
	resp := checker.Check(context.Background(), domain.Profile{"age": 30}, docs)
	if len(resp.Eligible) != 200 {
		t.Errorf("eligible = %d, want 200", len(resp.Eligible))
	}
}
