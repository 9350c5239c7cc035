package domain

import "time"

// SchemeDoc status values. A scheme whose rules document failed structural
// validation is stored with StatusError so the failure is visible via the
// API, but it is never evaluated.
const (
	StatusReady = "ready"
	StatusError = "error"
)

// SchemeRule is the canonical rules document for one scheme: its identity,
// descriptive metadata, and the eligibility criteria tree.
type SchemeRule struct {
	SchemeID          string   `json:"scheme_id"`
	SchemeName        string   `json:"scheme_name"`
	Eligibility       Criteria `json:"eligibility"`
	RequiredInputs    []string `json:"required_inputs,omitempty"`
	RequiredDocuments []string `json:"required_documents,omitempty"`
	BenefitOutline    string   `json:"benefit_outline,omitempty"`
	NextSteps         string   `json:"next_steps,omitempty"`
}

// SchemeDoc is the stored envelope around a rules document: the parsed rule
// plus ingestion provenance. Error-status docs keep the raw text so the
// failure can be inspected and the document re-ingested after a fix.
type SchemeDoc struct {
	SchemeID   string     `json:"scheme_id"`
	Rule       SchemeRule `json:"rule"`
	RawText    string     `json:"raw_text,omitempty"`
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
	Extractor  string     `json:"extractor,omitempty"`
	IngestedAt time.Time  `json:"ingested_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Ready reports whether the document passed validation and may be evaluated.
func (d *SchemeDoc) Ready() bool {
	return d.Status == StatusReady
}
