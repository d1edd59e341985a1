// Package redact masks sensitive customer data in free text before it is
// sent to an LLM, and reports structured findings for auditing.
package redact

import (
	"regexp"
	"sort"
)

// Category identifies the kind of sensitive data a finding covers.
type Category string

const (
	CategoryCreditCard Category = "CREDIT_CARD"
	CategoryNationalID Category = "NATIONAL_ID"
	CategoryTaxID      Category = "TAX_ID"
	CategoryEmail      Category = "EMAIL"
	CategoryPhone      Category = "PHONE"
	CategoryIPAddress  Category = "IP_ADDRESS"
)

// Finding is one detected sensitive-data instance. Start and End are byte
// offsets into the original (pre-redaction) text. Value is empty unless the
// redactor was built with KeepValues.
type Finding struct {
	Category Category `json:"category"`
	Value    string   `json:"value,omitempty"`
	Start    int      `json:"start"`
	End      int      `json:"end"`
}

// pattern couples a category with its compiled regex. Order is the overlap
// priority: when two categories match overlapping spans of the original text,
// the earlier category wins (digit runs can match both card and phone shapes).
type pattern struct {
	category Category
	re       *regexp.Regexp
}

var patterns = []pattern{
	{CategoryCreditCard, regexp.MustCompile(`\b(?:\d[ -]?){12,18}\d\b`)},
	{CategoryNationalID, regexp.MustCompile(`\b\d{4}\s?\d{4}\s?\d{4}\b`)},
	{CategoryTaxID, regexp.MustCompile(`\b[A-Za-z]{5}\d{4}[A-Za-z]\b`)},
	{CategoryEmail, regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
	{CategoryPhone, regexp.MustCompile(`\b(?:\+?\d{1,3}[- ]?)?(?:\d{10}|\d{3}[- ]\d{3}[- ]\d{4})\b`)},
	{CategoryIPAddress, regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)},
}

// Redactor masks sensitive substrings. The zero value is ready to use and
// does not retain matched values in findings.
type Redactor struct {
	// KeepValues stores the original matched text in each finding.
	// Off by default; only enable where the findings sink is itself
	// access-controlled.
	KeepValues bool
}

// Redact returns text with every detected sensitive substring replaced by a
// [REDACTED:<CATEGORY>] placeholder, plus findings ordered by position in the
// original text. All categories are matched against the original text and
// overlaps resolved by category priority, so finding offsets share one
// coordinate space. Redact is pure and total: empty input yields empty output
// and no findings, and re-redacting output is a no-op.
func (r Redactor) Redact(text string) (string, []Finding) {
	if text == "" {
		return text, nil
	}

	var findings []Finding
	for _, p := range patterns {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			if overlaps(findings, loc[0], loc[1]) {
				continue
			}
			f := Finding{Category: p.category, Start: loc[0], End: loc[1]}
			if r.KeepValues {
				f.Value = text[loc[0]:loc[1]]
			}
			findings = append(findings, f)
		}
	}
	if len(findings) == 0 {
		return text, nil
	}

	sort.Slice(findings, func(i, j int) bool { return findings[i].Start < findings[j].Start })

	// Single substitution pass over the original text.
	out := make([]byte, 0, len(text))
	prev := 0
	for _, f := range findings {
		out = append(out, text[prev:f.Start]...)
		out = append(out, "[REDACTED:"...)
		out = append(out, f.Category...)
		out = append(out, ']')
		prev = f.End
	}
	out = append(out, text[prev:]...)

	return string(out), findings
}

// overlaps reports whether [start,end) intersects any accepted finding.
// Findings are unsorted at this point so this is a linear scan; inputs are
// short ticket texts, not documents.
func overlaps(findings []Finding, start, end int) bool {
	for _, f := range findings {
		if start < f.End && end > f.Start {
			return true
		}
	}
	return false
}
