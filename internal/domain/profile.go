// Package domain defines the core types and interfaces for Sahayak.
package domain

// Profile holds a user's declared attributes keyed by attribute name.
// The attribute set is open ended: any key may appear, and values are
// scalars (integer, float, boolean, or string). A key that is absent or
// nil means "unknown", which is distinct from a falsy value like 0,
// false, or "" — the evaluator reports the two cases differently.
type Profile map[string]any

// Get returns the attribute value and whether it is present and non-nil.
func (p Profile) Get(attribute string) (any, bool) {
	v, ok := p[attribute]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Clone returns a shallow copy of the profile.
func (p Profile) Clone() Profile {
	cp := make(Profile, len(p))
	for k, v := range p {
		cp[k] = v
	}
	return cp
}
