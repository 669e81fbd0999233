package classify

import "fmt"

const categoryGuide = `Categories:
- Positive: one or more good features are mentioned and nothing negative.
- Negative: one or more bad, broken, outdated, or missing features are mentioned and nothing positive.
- Mixed Opinion: both good and bad details (e.g. livable but outdated, needs repairs, fair or average condition).
- No Relevant Information: no physical condition details (e.g. "none", disclaimers, buyer information, comparables, unrelated remarks).`

const outputFormat = `Output format (always follow exactly):
Category: <Positive | Negative | Mixed Opinion | No Relevant Information>
Reason: <short explanation, under 40 words>`

const primaryPrompt = `[INST]
Classify the condition of this home from the broker's overall description.

%s

Ignore disclaimers, legal language, buyer information, comparables, and unrelated remarks. Focus only on physical condition details.
If several areas are discussed, judge the overall impression.

%s

Description:
%s
[/INST]`

const areaPrompt = `[INST]
Classify the condition of one area of a home (%s) from the description provided.

%s

Instructions:
- Ignore disclaimers, legal language, buyer information, comparables, and unrelated remarks.
- Focus only on physical condition details.
- If several features are described, decide based on the overall impression.

%s

Description:
%s
[/INST]`

// PrimaryPrompt builds the prompt for an overview narrative.
func PrimaryPrompt(description string) string {
	return fmt.Sprintf(primaryPrompt, categoryGuide, outputFormat, description)
}

// AreaPrompt builds the prompt for a per-area narrative.
func AreaPrompt(area, description string) string {
	return fmt.Sprintf(areaPrompt, area, categoryGuide, outputFormat, description)
}
