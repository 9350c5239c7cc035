package domain

import "fmt"

// OperatorKind identifies a comparison operator in an eligibility condition.
// The set is closed: documents using any other operator are rejected at
// ingestion, and the evaluator reports them as unsupported rather than
// silently passing.
type OperatorKind string

// Supported operators. The wire values match what the extraction pipeline
// emits ("==", ">=", "in", ...).
const (
	OpEq      OperatorKind = "=="
	OpNe      OperatorKind = "!="
	OpGt      OperatorKind = ">"
	OpGte     OperatorKind = ">="
	OpLt      OperatorKind = "<"
	OpLte     OperatorKind = "<="
	OpTruthy  OperatorKind = "truthy"
	OpFalsy   OperatorKind = "falsy"
	OpIn      OperatorKind = "in"
	OpNotIn   OperatorKind = "not_in"
	OpBetween OperatorKind = "between"
)

// Operators lists every supported operator.
func Operators() []OperatorKind {
	return []OperatorKind{
		OpEq, OpNe, OpGt, OpGte, OpLt, OpLte,
		OpTruthy, OpFalsy, OpIn, OpNotIn, OpBetween,
	}
}

// Valid reports whether op is one of the supported operators.
func (op OperatorKind) Valid() bool {
	switch op {
	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte,
		OpTruthy, OpFalsy, OpIn, OpNotIn, OpBetween:
		return true
	}
	return false
}

// Numeric reports whether op performs an ordered numeric comparison.
func (op OperatorKind) Numeric() bool {
	switch op {
	case OpGt, OpGte, OpLt, OpLte, OpBetween:
		return true
	}
	return false
}

// Condition is a single eligibility rule leaf: one attribute compared to a
// configured value. The shape of Value depends on Op: a scalar for the
// equality and ordered operators, a list (or comma-delimited string) for
// in/not_in, a {min,max} object for between, and ignored for truthy/falsy.
type Condition struct {
	Attribute string       `json:"attribute"`
	Op        OperatorKind `json:"op"`
	Value     any          `json:"value"`

	// ReasonIfFail is the configured explanation shown when a requirement
	// condition fails.
	ReasonIfFail string `json:"reason_if_fail,omitempty"`

	// Reason is the explanation attached to disqualifiers.
	Reason string `json:"reason,omitempty"`
}

// FailReason returns the explanation for a failed condition, falling back
// to a generated description when none was configured.
func (c Condition) FailReason() string {
	if c.ReasonIfFail != "" {
		return c.ReasonIfFail
	}
	if c.Reason != "" {
		return c.Reason
	}
	return fmt.Sprintf("%s %s %v failed", c.Attribute, c.Op, c.Value)
}

// Criteria groups the conditions of one scheme.
//
// All conditions must every one hold. Any — if non-empty, at least one must
// hold; an empty group vacuously holds. Disqualifiers — if any evaluates
// true, the subject is immediately ineligible regardless of the other
// groups.
type Criteria struct {
	All           []Condition `json:"all,omitempty"`
	Any           []Condition `json:"any,omitempty"`
	Disqualifiers []Condition `json:"disqualifiers,omitempty"`
}

// ConditionCount returns the total number of conditions across all groups.
func (c Criteria) ConditionCount() int {
	return len(c.All) + len(c.Any) + len(c.Disqualifiers)
}
