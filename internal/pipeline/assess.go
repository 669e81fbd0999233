package pipeline

import (
	"fmt"

	"github.com/TobiSchelling/condrater/internal/condition"
	"github.com/TobiSchelling/condrater/internal/database"
)

// AssessResult holds the results of an assessment pass.
type AssessResult struct {
	Assessed   int
	Incomplete int
	Verdicts   map[condition.Verdict]int
}

// AssessBatch applies the aggregation policy to every fully classified
// record of a batch and stores the verdicts. Records with unclassified
// slots are counted as incomplete and left alone.
func AssessBatch(db *database.DB, batchID string) (*AssessResult, error) {
	records, err := db.GetRecordsForBatch(batchID)
	if err != nil {
		return nil, fmt.Errorf("loading records: %w", err)
	}
	classes, err := db.GetClassificationsForBatch(batchID)
	if err != nil {
		return nil, fmt.Errorf("loading classifications: %w", err)
	}

	r := &AssessResult{Verdicts: make(map[condition.Verdict]int)}
	for _, rec := range records {
		in, ok := assessmentInput(rec, classes[rec.ID])
		if !ok {
			r.Incomplete++
			continue
		}

		d := condition.Evaluate(in)
		if err := db.UpsertAssessment(rec.ID, string(d.Verdict), string(d.Rule)); err != nil {
			return r, fmt.Errorf("storing verdict for %s: %w", rec.Key, err)
		}
		r.Assessed++
		r.Verdicts[d.Verdict]++
	}
	return r, nil
}

// assessmentInput builds the policy input from a record's classifications.
// It reports false unless every slot is classified.
func assessmentInput(rec database.Record, cs []database.Classification) (condition.Input, bool) {
	bySlot := make(map[int]string, len(cs))
	for _, c := range cs {
		bySlot[c.Slot] = c.Category
	}

	primary, ok := bySlot[0]
	if !ok {
		return condition.Input{}, false
	}
	in := condition.Input{Primary: condition.Category(primary)}
	for slot := 1; slot < rec.Slots(); slot++ {
		cat, ok := bySlot[slot]
		if !ok {
			return condition.Input{}, false
		}
		in.Secondaries = append(in.Secondaries, condition.Category(cat))
	}
	return in, true
}
