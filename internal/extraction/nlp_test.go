package extraction

import (
	"context"
	"testing"

	"github.com/openwelfare/sahayak/internal/rules"
)

const sampleSchemeText = `Kisan Samman Scheme for small farmers

This scheme provides financial assistance of Rs. 6,000 per year.
Eligibility: minimum age 18 years. Annual family income below Rs. 200,000.
Applicable to SC and ST categories. Farmers engaged in agriculture qualify.
Required documents: Aadhaar card, income certificate, bank account passbook.
`

func TestNLPExtract(t *testing.T) {
	e := NewNLPExtractor()
	doc, err := e.Extract(context.Background(), sampleSchemeText, "kisan_samman")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	if doc["scheme_id"] != "kisan_samman" {
		t.Errorf("scheme_id = %v", doc["scheme_id"])
	}
	if doc["scheme_name"] != "Kisan Samman Scheme for small farmers" {
		t.Errorf("scheme_name = %v", doc["scheme_name"])
	}

	if err := rules.ValidateDocument(doc); err != nil {
		t.Fatalf("extracted document must pass validation: %v", err)
	}

	elig := doc["eligibility"].(map[string]any)
	all := elig["all"].([]any)
	if len(all) == 0 {
		t.Fatal("expected age/income conditions in all group")
	}

	foundAge := false
	for _, c := range all {
		cond := c.(map[string]any)
		if cond["attribute"] == "age" && cond["op"] == ">=" {
			foundAge = true
			if cond["value"] != 18 {
				t.Errorf("age threshold = %v, want 18", cond["value"])
			}
		}
	}
	if !foundAge {
		t.Errorf("no minimum-age condition extracted: %v", all)
	}

	docs := doc["required_documents"].([]any)
	wantDocs := map[string]bool{"aadhaar": true, "income_certificate": true, "bank_passbook": true}
	for _, d := range docs {
		if !wantDocs[d.(string)] {
			t.Errorf("unexpected document %v", d)
		}
	}
}

func TestNLPExtractCasteAndOccupation(t *testing.T) {
	e := NewNLPExtractor()
	doc, err := e.Extract(context.Background(), sampleSchemeText, "kisan_samman")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	anyGroup := doc["eligibility"].(map[string]any)["any"].([]any)
	attrs := map[string]bool{}
	for _, c := range anyGroup {
		attrs[c.(map[string]any)["attribute"].(string)] = true
	}
	if !attrs["caste"] {
		t.Error("expected caste condition in any group")
	}
	if !attrs["occupation"] {
		t.Error("expected occupation condition in any group")
	}
}

func TestNLPExtractDefaults(t *testing.T) {
	e := NewNLPExtractor()
	doc, err := e.Extract(context.Background(), "short text", "widow_pension_scheme")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if doc["scheme_name"] != "Widow Pension Scheme" {
		t.Errorf("scheme_name = %v, want title from id", doc["scheme_name"])
	}
	docs := doc["required_documents"].([]any)
	if len(docs) != 2 {
		t.Errorf("default documents = %v", docs)
	}
	if doc["benefit_outline"] != "Government scheme benefits as per guidelines" {
		t.Errorf("benefit_outline = %v", doc["benefit_outline"])
	}
	if err := rules.ValidateDocument(doc); err != nil {
		t.Fatalf("minimal document must still validate: %v", err)
	}
}

func TestNLPExtractAgeBetween(t *testing.T) {
	e := NewNLPExtractor()
	doc, err := e.Extract(context.Background(), "Scheme for youth. Age must be between 18 and 35 years.", "youth")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	all := doc["eligibility"].(map[string]any)["all"].([]any)
	if len(all) != 1 {
		t.Fatalf("all = %v", all)
	}
	cond := all[0].(map[string]any)
	if cond["op"] != "between" {
		t.Fatalf("op = %v", cond["op"])
	}
	rng := cond["value"].(map[string]any)
	if rng["min"] != 18 || rng["max"] != 35 {
		t.Errorf("range = %v", rng)
	}
}
