package domain

import (
	"time"
)

// Evaluation is the outcome of running one scheme's criteria against one
// profile. Reasons explain every condition that was inspected; a condition
// that could not be evaluated (missing attribute, bad operand) fails closed
// and shows up in FailedConditions like any other failure.
type Evaluation struct {
	SchemeID         string   `json:"scheme_id"`
	SchemeName       string   `json:"scheme_name"`
	Eligible         bool     `json:"eligible"`
	Score            float64  `json:"score"`
	Reasons          []string `json:"reasons"`
	FailedConditions []string `json:"failed_conditions"`
}

// NearMissCount returns how many conditions failed, for near-miss ranking.
func (e *Evaluation) NearMissCount() int {
	return len(e.FailedConditions)
}

// EligibleScheme is the API projection of a passing evaluation.
type EligibleScheme struct {
	SchemeID          string   `json:"scheme_id"`
	SchemeName        string   `json:"scheme_name"`
	Score             float64  `json:"score"`
	Reasons           []string `json:"reasons"`
	RequiredDocuments []string `json:"required_documents,omitempty"`
	BenefitOutline    string   `json:"benefit_outline,omitempty"`
	NextSteps         string   `json:"next_steps,omitempty"`
}

// NearMiss is a scheme the subject narrowly failed to qualify for: the
// evaluation failed, but on no more than the configured number of
// conditions.
type NearMiss struct {
	SchemeID         string   `json:"scheme_id"`
	SchemeName       string   `json:"scheme_name"`
	Score            float64  `json:"score"`
	FailedConditions []string `json:"failed_conditions"`
}

// SchemeError flags a scheme that could not be evaluated because its stored
// rules document is in error status.
type SchemeError struct {
	SchemeID string `json:"scheme_id"`
	Error    string `json:"error"`
}

// CheckResponse is the result of checking one profile against every ready
// scheme: the schemes the subject qualifies for, the near misses, and any
// schemes skipped due to broken rule documents.
type CheckResponse struct {
	CheckID         string           `json:"check_id"`
	UserID          string           `json:"user_id,omitempty"`
	Eligible        []EligibleScheme `json:"eligible_schemes"`
	NearMisses      []NearMiss       `json:"near_misses"`
	SchemeErrors    []SchemeError    `json:"scheme_errors,omitempty"`
	SchemesChecked  int              `json:"schemes_checked"`
	ProcessMs       int64            `json:"process_ms"`
	Timestamp       time.Time        `json:"timestamp"`
}

// CheckRecord is the persisted form of a completed check, used for the
// per-user history endpoints.
type CheckRecord struct {
	ID            string    `json:"id"`
	TenantID      string    `json:"tenant_id"`
	UserID        string    `json:"user_id"`
	Profile       Profile   `json:"profile"`
	EligibleCount int       `json:"eligible_count"`
	NearMissCount int       `json:"near_miss_count"`
	Response      []byte    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
}
