// Package rules implements the eligibility rule engine: condition
// evaluation, per-scheme verdicts, document validation, and batch checks.
package rules

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/openwelfare/sahayak/internal/domain"
)

// EvaluateCondition checks a single condition against a profile.
// It returns whether the condition holds and a human-readable reason:
// a confirmation string on pass, the configured explanation on fail.
//
// A missing or null attribute never passes, for any operator. Diagnostic
// outcomes (unsupported operator, failed numeric cast, malformed between
// range) also fail closed with a distinct reason instead of panicking.
func EvaluateCondition(profile domain.Profile, c domain.Condition) (bool, string) {
	raw, ok := profile.Get(c.Attribute)
	if !ok {
		return false, fmt.Sprintf("missing: %s", c.Attribute)
	}
	val := coerceNumericString(raw)

	var passed bool
	switch c.Op {
	case domain.OpEq:
		passed = looseEqual(val, c.Value)

	case domain.OpNe:
		passed = !looseEqual(val, c.Value)

	case domain.OpGt, domain.OpGte, domain.OpLt, domain.OpLte:
		a, aok := toFloat(val)
		b, bok := toFloat(c.Value)
		if !aok || !bok {
			return false, fmt.Sprintf("evaluation error: %s", c.Attribute)
		}
		switch c.Op {
		case domain.OpGt:
			passed = a > b
		case domain.OpGte:
			passed = a >= b
		case domain.OpLt:
			passed = a < b
		case domain.OpLte:
			passed = a <= b
		}

	case domain.OpTruthy:
		passed = truthy(val)

	case domain.OpFalsy:
		passed = !truthy(val)

	case domain.OpIn:
		set, wellFormed := memberSet(c.Value)
		passed = wellFormed && containsValue(set, val)

	case domain.OpNotIn:
		set, wellFormed := memberSet(c.Value)
		// Without a well-formed set, "not in" trivially holds.
		passed = !wellFormed || !containsValue(set, val)

	case domain.OpBetween:
		lo, hi, wellFormed := rangeBounds(c.Value)
		if !wellFormed {
			return false, fmt.Sprintf("Invalid 'between' value format for %s", c.Attribute)
		}
		v, vok := toFloat(val)
		lower, lok := toFloat(lo)
		upper, hok := toFloat(hi)
		if !vok || !lok || !hok {
			return false, fmt.Sprintf("evaluation error: %s", c.Attribute)
		}
		passed = v >= lower && v <= upper

	default:
		return false, fmt.Sprintf("Unsupported operator: %s", c.Op)
	}

	if passed {
		return true, fmt.Sprintf("%s %s %v ✓", c.Attribute, c.Op, c.Value)
	}
	return false, c.FailReason()
}

// coerceNumericString converts a digit-only string to an integer so that
// declared values like "25" compare numerically. Any other value is
// returned unchanged.
func coerceNumericString(v any) any {
	s, ok := v.(string)
	if !ok || s == "" {
		return v
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return v
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return v
	}
	return n
}

// numeric extracts a float64 from any numeric Go type. Strings are not
// parsed here; equality keeps string/number distinct apart from the
// digit-string coercion applied to profile values.
func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// toFloat is the cast used by ordered comparisons: any numeric type, plus
// strings that parse as numbers.
func toFloat(v any) (float64, bool) {
	if f, ok := numeric(v); ok {
		return f, true
	}
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err == nil {
			return f, true
		}
	}
	return 0, false
}

// looseEqual compares two values, bridging numeric types (an int from a Go
// caller equals the float64 the JSON decoder produces). Non-comparable
// values fall back to deep equality instead of panicking.
func looseEqual(a, b any) bool {
	af, aok := numeric(a)
	bf, bok := numeric(b)
	if aok && bok {
		return af == bf
	}
	if aok != bok {
		return false
	}
	if a == nil || b == nil {
		return a == b
	}
	if reflect.TypeOf(a).Comparable() && reflect.TypeOf(b).Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

// truthy mirrors the declarative rule format's notion of boolean-ness:
// false, zero, empty string, empty collection, and null are all falsy.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	}
	if f, ok := numeric(v); ok {
		return f != 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	}
	return true
}

// memberSet normalizes an in/not_in operand to a slice of candidates.
// Lists are used as-is; a string is split on commas with whitespace
// trimmed. Anything else is not a well-formed set.
func memberSet(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, true
	case string:
		parts := strings.Split(t, ",")
		out := make([]any, 0, len(parts))
		for _, p := range parts {
			out = append(out, strings.TrimSpace(p))
		}
		return out, true
	}
	return nil, false
}

func containsValue(set []any, v any) bool {
	for _, item := range set {
		if looseEqual(coerceNumericString(item), v) {
			return true
		}
	}
	return false
}

// rangeBounds extracts min/max from a between operand. Any string-keyed
// map shape is accepted so both decoded JSON and typed Go maps work.
func rangeBounds(v any) (any, any, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, nil, false
	}
	lo := rv.MapIndex(reflect.ValueOf("min"))
	hi := rv.MapIndex(reflect.ValueOf("max"))
	if !lo.IsValid() || !hi.IsValid() {
		return nil, nil, false
	}
	return lo.Interface(), hi.Interface(), true
}
