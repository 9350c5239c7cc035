package extraction

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// NLPExtractor derives rules from scheme text with regex patterns. It is
// the offline fallback when the LLM path is unconfigured or failing: crude
// but deterministic, and it always produces a structurally valid document.
type NLPExtractor struct{}

// NewNLPExtractor returns the regex-based extractor.
func NewNLPExtractor() *NLPExtractor {
	return &NLPExtractor{}
}

func (e *NLPExtractor) Name() string { return "nlp" }

var (
	ageBetweenRe = regexp.MustCompile(`age.*?between.*?(\d+).*?(\d+)`)
	ageMinRe     = regexp.MustCompile(`(?:minimum age|age above)\D*?(\d+)`)
	incomeRe     = regexp.MustCompile(`income.*?(?:rs\.?|rupees?)\D*?(\d+(?:,\d+)*)`)
	bplRe        = regexp.MustCompile(`below poverty line|bpl`)
	moneyRe      = regexp.MustCompile(`(?:rs\.?|rupees?)\D*?(\d+(?:,\d+)*)`)
	schemeWordRe  = regexp.MustCompile(`scheme|yojana|mission|program`)
	skipWordRe    = regexp.MustCompile(`page|government|ministry|department`)
	genderRe      = regexp.MustCompile(`women|female|girl|mahila`)
	scholarshipRe = regexp.MustCompile(`scholarship|education`)
	loanRe        = regexp.MustCompile(`loan|credit`)
)

var casteMarkers = []struct {
	re       *regexp.Regexp
	category string
}{
	{regexp.MustCompile(`\bsc\b|scheduled caste`), "SC"},
	{regexp.MustCompile(`\bst\b|scheduled tribe`), "ST"},
	{regexp.MustCompile(`\bobc\b|other backward`), "OBC"},
	{regexp.MustCompile(`general|unreserved`), "General"},
}

var occupationMarkers = []struct {
	re         *regexp.Regexp
	occupation string
}{
	{regexp.MustCompile(`farmer|agriculture|kisan`), "farmer"},
	{regexp.MustCompile(`student|education`), "student"},
	{regexp.MustCompile(`unemployed|job.*?seeker`), "unemployed"},
}

var documentMarkers = []struct {
	re  *regexp.Regexp
	doc string
}{
	{regexp.MustCompile(`aadhaar|aadhar`), "aadhaar"},
	{regexp.MustCompile(`income certificate|income proof`), "income_certificate"},
	{regexp.MustCompile(`caste certificate|category certificate`), "caste_certificate"},
	{regexp.MustCompile(`bank.*?passbook|bank.*?account`), "bank_passbook"},
	{regexp.MustCompile(`photograph|photo`), "photo"},
	{regexp.MustCompile(`address proof|residence proof`), "address_proof"},
}

// Extract builds a rules document from pattern matches against the text.
func (e *NLPExtractor) Extract(_ context.Context, text, schemeID string) (map[string]any, error) {
	lower := strings.ToLower(strings.TrimSpace(text))

	name := extractSchemeName(text)
	if name == "" {
		name = titleFromID(schemeID)
	}

	var all, anyGroup []map[string]any
	all = append(all, ageConditions(lower)...)
	all = append(all, incomeConditions(lower)...)
	if c := casteCondition(lower); c != nil {
		anyGroup = append(anyGroup, c)
	}
	if c := genderCondition(lower); c != nil {
		anyGroup = append(anyGroup, c)
	}
	if c := occupationCondition(lower); c != nil {
		anyGroup = append(anyGroup, c)
	}

	return map[string]any{
		"scheme_id":   schemeID,
		"scheme_name": name,
		"eligibility": map[string]any{
			"all":           toAnySlice(all),
			"any":           toAnySlice(anyGroup),
			"disqualifiers": []any{},
		},
		"required_inputs":    []any{"age", "gender", "occupation", "income", "caste", "state"},
		"required_documents": extractDocuments(lower),
		"benefit_outline":    extractBenefits(lower),
		"next_steps":         "Apply through official government portal or nearest office",
	}, nil
}

func extractSchemeName(text string) string {
	lines := strings.Split(text, "\n")
	if len(lines) > 10 {
		lines = lines[:10]
	}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if len(line) <= 10 || len(line) >= 100 {
			continue
		}
		lower := strings.ToLower(line)
		if skipWordRe.MatchString(lower) {
			continue
		}
		if schemeWordRe.MatchString(lower) {
			return line
		}
	}
	return ""
}

func titleFromID(schemeID string) string {
	words := strings.Split(strings.ReplaceAll(schemeID, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func ageConditions(text string) []map[string]any {
	var out []map[string]any
	for _, m := range ageBetweenRe.FindAllStringSubmatch(text, -1) {
		lo, _ := strconv.Atoi(m[1])
		hi, _ := strconv.Atoi(m[2])
		out = append(out, map[string]any{
			"attribute":      "age",
			"op":             "between",
			"value":          map[string]any{"min": lo, "max": hi},
			"reason_if_fail": fmt.Sprintf("Age must be between %d and %d", lo, hi),
		})
	}
	for _, m := range ageMinRe.FindAllStringSubmatch(text, -1) {
		age, err := strconv.Atoi(m[1])
		if err != nil || age < 15 || age > 70 {
			continue
		}
		out = append(out, map[string]any{
			"attribute":      "age",
			"op":             ">=",
			"value":          age,
			"reason_if_fail": fmt.Sprintf("Must be %d years or older", age),
		})
	}
	return out
}

func incomeConditions(text string) []map[string]any {
	var out []map[string]any
	for _, m := range incomeRe.FindAllStringSubmatch(text, -1) {
		income, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
		if err != nil || income <= 1000 {
			continue
		}
		out = append(out, map[string]any{
			"attribute":      "income",
			"op":             "<=",
			"value":          income,
			"reason_if_fail": fmt.Sprintf("Annual income must not exceed Rs. %d", income),
		})
	}
	if bplRe.MatchString(text) {
		out = append(out, map[string]any{
			"attribute":      "income",
			"op":             "<=",
			"value":          50000,
			"reason_if_fail": "Must be below poverty line",
		})
	}
	return out
}

func casteCondition(text string) map[string]any {
	var categories []any
	for _, m := range casteMarkers {
		if m.re.MatchString(text) {
			categories = append(categories, m.category)
		}
	}
	if len(categories) == 0 {
		return nil
	}
	return map[string]any{
		"attribute":      "caste",
		"op":             "in",
		"value":          categories,
		"reason_if_fail": fmt.Sprintf("Must belong to %s category", joinAny(categories)),
	}
}

func genderCondition(text string) map[string]any {
	if !genderRe.MatchString(text) {
		return nil
	}
	return map[string]any{
		"attribute":      "gender",
		"op":             "==",
		"value":          "female",
		"reason_if_fail": "Scheme is for women only",
	}
}

func occupationCondition(text string) map[string]any {
	var occupations []any
	for _, m := range occupationMarkers {
		if m.re.MatchString(text) {
			occupations = append(occupations, m.occupation)
		}
	}
	if len(occupations) == 0 {
		return nil
	}
	return map[string]any{
		"attribute":      "occupation",
		"op":             "in",
		"value":          occupations,
		"reason_if_fail": fmt.Sprintf("Must be %s", joinAny(occupations)),
	}
}

func extractDocuments(text string) []any {
	var docs []any
	for _, m := range documentMarkers {
		if m.re.MatchString(text) {
			docs = append(docs, m.doc)
		}
	}
	if len(docs) == 0 {
		return []any{"aadhaar_card", "application_form"}
	}
	return docs
}

func extractBenefits(text string) string {
	if m := moneyRe.FindStringSubmatch(text); m != nil {
		return "Financial assistance of Rs. " + strings.ReplaceAll(m[1], ",", "")
	}
	switch {
	case scholarshipRe.MatchString(text):
		return "Educational scholarship and support"
	case loanRe.MatchString(text):
		return "Financial loan assistance"
	case strings.Contains(text, "subsidy"):
		return "Government subsidy support"
	}
	return "Government scheme benefits as per guidelines"
}

func joinAny(items []any) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = fmt.Sprint(it)
	}
	return strings.Join(parts, ", ")
}

func toAnySlice(conds []map[string]any) []any {
	out := make([]any, len(conds))
	for i, c := range conds {
		out[i] = c
	}
	return out
}
