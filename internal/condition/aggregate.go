package condition

// Input is one record's classifications: the primary (overview narrative)
// category and the ordered per-area categories.
type Input struct {
	Primary     Category
	Secondaries []Category
}

// Rule names the decision-table arm that produced a verdict.
type Rule string

const (
	RulePositiveContradiction Rule = "positive-contradiction"
	RulePositiveConfirmed     Rule = "positive-confirmed"
	RulePositiveUnrecognized  Rule = "positive-unrecognized-secondary"
	RuleNegativeContradiction Rule = "negative-contradiction"
	RuleNegativeConfirmed     Rule = "negative-confirmed"
	RuleNegativeUnrecognized  Rule = "negative-unrecognized-secondary"
	RuleInferredPositive      Rule = "inferred-positive"
	RuleInferredNegative      Rule = "inferred-negative"
	RuleNoInformation         Rule = "no-information"
	RuleInferredMixed         Rule = "inferred-mixed"
	RuleMixedPartialBlank     Rule = "mixed-partial-blank"
	RuleMixedConfirmed        Rule = "mixed-confirmed"
	RulePrimaryUnrecognized   Rule = "primary-unrecognized"
)

// Decision is a verdict together with the rule that produced it.
type Decision struct {
	Verdict Verdict
	Rule    Rule
}

// counts tallies the secondary categories.
type counts struct {
	positives int
	negatives int
	mixed     int
	nori      int
	total     int
}

func tally(secondaries []Category) counts {
	c := counts{total: len(secondaries)}
	for _, s := range secondaries {
		switch s {
		case Positive, SlightlyPositive:
			c.positives++
		case Negative:
			c.negatives++
		case MixedOpinion:
			c.mixed++
		case NoRelevantInformation:
			c.nori++
		}
	}
	return c
}

// allIn reports whether every category in cs is one of allowed.
func allIn(cs []Category, allowed ...Category) bool {
	for _, c := range cs {
		found := false
		for _, a := range allowed {
			if c == a {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Aggregate returns the overall verdict for in. See Evaluate.
func Aggregate(in Input) Verdict {
	return Evaluate(in).Verdict
}

// Evaluate applies the aggregation policy to in.
//
// A positive or negative primary is confirmed unless a secondary reports the
// opposite polarity, which flags the record. An uninformative primary is
// decided from the secondaries alone. A mixed primary is flagged only when
// polarized secondaries sit next to uninformative ones. Any other primary
// falls back to MixedOpinion.
func Evaluate(in Input) Decision {
	subs := in.Secondaries
	c := tally(subs)

	switch in.Primary {
	case Positive:
		if c.negatives > 0 {
			return Decision{Flagged, RulePositiveContradiction}
		}
		if allIn(subs, Positive, SlightlyPositive, MixedOpinion, NoRelevantInformation) {
			return Decision{VerdictPositive, RulePositiveConfirmed}
		}
		return Decision{VerdictMixedOpinion, RulePositiveUnrecognized}

	case Negative:
		if c.positives > 0 {
			return Decision{Flagged, RuleNegativeContradiction}
		}
		if allIn(subs, Negative, MixedOpinion, NoRelevantInformation) {
			return Decision{VerdictNegative, RuleNegativeConfirmed}
		}
		return Decision{VerdictMixedOpinion, RuleNegativeUnrecognized}

	case NoRelevantInformation:
		switch {
		case c.positives >= 2 && c.negatives == 0:
			return Decision{VerdictPositive, RuleInferredPositive}
		case c.positives == 1 && c.positives+c.nori == c.total:
			return Decision{VerdictPositive, RuleInferredPositive}
		case c.negatives >= 2 && c.positives == 0:
			return Decision{VerdictNegative, RuleInferredNegative}
		case c.negatives == 1 && c.negatives+c.nori == c.total:
			return Decision{VerdictNegative, RuleInferredNegative}
		case c.nori == c.total:
			return Decision{VerdictNoRelevantInformation, RuleNoInformation}
		}
		return Decision{VerdictMixedOpinion, RuleInferredMixed}

	case MixedOpinion:
		if (c.positives > 0 && c.nori > 0) || (c.negatives > 0 && c.nori > 0) {
			return Decision{Flagged, RuleMixedPartialBlank}
		}
		return Decision{VerdictMixedOpinion, RuleMixedConfirmed}
	}

	return Decision{VerdictMixedOpinion, RulePrimaryUnrecognized}
}
