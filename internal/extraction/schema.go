package extraction

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// rulesDocumentSchema is the coarse structural gate applied to extracted
// documents before the rules validator runs. It catches whole-shape
// problems (wrong types for the descriptive fields, non-object conditions)
// that an LLM is prone to produce; the rules validator then enforces the
// operator-level contract with precise messages.
const rulesDocumentSchema = `{
	"type": "object",
	"required": ["scheme_id", "scheme_name", "eligibility"],
	"properties": {
		"scheme_id": {"type": "string", "minLength": 1},
		"scheme_name": {"type": "string", "minLength": 1},
		"eligibility": {
			"type": "object",
			"properties": {
				"all": {"type": "array", "items": {"type": "object"}},
				"any": {"type": "array", "items": {"type": "object"}},
				"disqualifiers": {"type": "array", "items": {"type": "object"}}
			}
		},
		"required_inputs": {"type": "array", "items": {"type": "string"}},
		"required_documents": {"type": "array", "items": {"type": "string"}},
		"benefit_outline": {"type": "string"},
		"next_steps": {"type": "string"}
	}
}`

var rulesSchema = gojsonschema.NewStringLoader(rulesDocumentSchema)

// CheckDocumentShape validates an extracted document against the rules
// document JSON schema.
func CheckDocumentShape(doc map[string]any) error {
	result, err := gojsonschema.Validate(rulesSchema, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
	}
	return fmt.Errorf("document does not match rules schema: %s", strings.Join(msgs, "; "))
}
