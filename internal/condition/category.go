// Package condition holds the classification vocabulary for property
// condition narratives and the policy that combines one primary category
// with a set of per-area categories into an overall verdict.
//
// Everything here is pure: no I/O, no shared state. Functions may be called
// from any number of goroutines.
package condition

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Category is a normalized classification label. The four canonical values
// are listed below; any other value is an unrecognized label that the oracle
// produced and the normalizer passed through.
type Category string

const (
	Positive              Category = "Positive"
	Negative              Category = "Negative"
	MixedOpinion          Category = "Mixed Opinion"
	NoRelevantInformation Category = "No Relevant Information"

	// SlightlyPositive is a retired label. Nothing in this package produces
	// it, but the aggregation counts it as a positive if it ever shows up.
	SlightlyPositive Category = "Slightly Positive"
)

// Categories lists the canonical categories in display order.
var Categories = []Category{Positive, Negative, MixedOpinion, NoRelevantInformation}

// Known reports whether c is one of the four canonical categories.
func (c Category) Known() bool {
	switch c {
	case Positive, Negative, MixedOpinion, NoRelevantInformation:
		return true
	}
	return false
}

// Unrecognized reports whether c is outside the canonical set.
// SlightlyPositive counts as unrecognized.
func (c Category) Unrecognized() bool {
	return !c.Known()
}

func (c Category) String() string {
	return string(c)
}

// Verdict is the overall outcome for a record.
type Verdict string

const (
	VerdictPositive              Verdict = Verdict(Positive)
	VerdictNegative              Verdict = Verdict(Negative)
	VerdictMixedOpinion          Verdict = Verdict(MixedOpinion)
	VerdictNoRelevantInformation Verdict = Verdict(NoRelevantInformation)

	// Flagged means the primary and secondary signals disagree and a person
	// has to look at the record.
	Flagged Verdict = "Flagged"
)

// Verdicts lists every verdict in display order.
var Verdicts = []Verdict{VerdictPositive, VerdictNegative, VerdictMixedOpinion, VerdictNoRelevantInformation, Flagged}

func (v Verdict) String() string {
	return string(v)
}

// Normalize maps free text to a category. Empty or blank input, and the
// spreadsheet placeholders "nan" and "none", yield NoRelevantInformation.
// Anything else is trimmed and title-cased; unknown labels are not coerced.
func Normalize(raw string) Category {
	s := strings.TrimSpace(raw)
	if IsBlank(s) {
		return NoRelevantInformation
	}
	// Casers keep state between calls, so each call gets its own.
	return Category(cases.Title(language.Und).String(s))
}

// IsBlank reports whether text carries no content: empty, whitespace only,
// or one of the placeholder tokens "nan" / "none" in any case.
func IsBlank(text string) bool {
	s := strings.TrimSpace(text)
	if s == "" {
		return true
	}
	return strings.EqualFold(s, "nan") || strings.EqualFold(s, "none")
}
