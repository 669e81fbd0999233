package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/TobiSchelling/condrater/internal/config"
	"github.com/TobiSchelling/condrater/internal/database"
)

// OverallColumn is the result sheet column carrying the verdict.
const OverallColumn = "Overall Condition"

// Exporter writes result sheets.
type Exporter struct {
	db    *database.DB
	input config.Input
}

// NewExporter creates an exporter. The input mapping labels the key column
// and supplies the field names when a batch has no records.
func NewExporter(db *database.DB, input config.Input) *Exporter {
	return &Exporter{db: db, input: input}
}

// ExportFile writes the result sheet of a batch to path and returns the
// number of data rows.
func (e *Exporter) ExportFile(batchID, path string) (int, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("creating export directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", path, err)
	}
	n, err := e.Export(batchID, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}

// Export writes the result sheet of a batch as CSV. Identifying columns
// come first, then the overall verdict, the per-area categories and
// reasons, the primary category and reason, and the review outcome.
func (e *Exporter) Export(batchID string, w io.Writer) (int, error) {
	records, err := e.db.GetRecordsForBatch(batchID)
	if err != nil {
		return 0, fmt.Errorf("loading records: %w", err)
	}
	classes, err := e.db.GetClassificationsForBatch(batchID)
	if err != nil {
		return 0, fmt.Errorf("loading classifications: %w", err)
	}
	assessments, err := e.db.GetAssessmentsForBatch(batchID)
	if err != nil {
		return 0, fmt.Errorf("loading assessments: %w", err)
	}
	flagged, err := e.db.GetFlaggedRecords(batchID, false)
	if err != nil {
		return 0, fmt.Errorf("loading reviews: %w", err)
	}
	reviews := make(map[int64]*database.Review, len(flagged))
	for _, it := range flagged {
		reviews[it.Record.ID] = it.Review
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(e.header(records)); err != nil {
		return 0, err
	}

	for _, r := range records {
		bySlot := make(map[int]database.Classification, r.Slots())
		for _, cl := range classes[r.ID] {
			bySlot[cl.Slot] = cl
		}

		row := []string{r.Key, r.Address, r.City, r.State, r.Zip, assessments[r.ID].Verdict}
		for slot := 1; slot < r.Slots(); slot++ {
			row = append(row, bySlot[slot].Category, bySlot[slot].Reason)
		}
		row = append(row, bySlot[0].Category, bySlot[0].Reason, assessments[r.ID].Rule)
		if rev := reviews[r.ID]; rev != nil {
			note := ""
			if rev.Note != nil {
				note = *rev.Note
			}
			row = append(row, rev.Resolution, note)
		} else {
			row = append(row, "", "")
		}

		if err := cw.Write(row); err != nil {
			return 0, err
		}
	}

	cw.Flush()
	return len(records), cw.Error()
}

// header names the columns after the first record's fields, or after the
// configured fields when there are no records.
func (e *Exporter) header(records []database.Record) []string {
	key := e.input.KeyColumn
	if key == "" {
		key = "Key"
	}
	primary := e.input.Primary.Name
	var areas []string
	if len(records) > 0 {
		primary = records[0].Primary.Name
		for _, a := range records[0].Areas {
			areas = append(areas, a.Name)
		}
	} else {
		for _, a := range e.input.Areas {
			areas = append(areas, a.Name)
		}
	}

	h := []string{key, "Address", "City", "State", "Zip", OverallColumn}
	for _, a := range areas {
		h = append(h, a+" Category", a+" Reason")
	}
	h = append(h, primary+" Category", primary+" Reason",
		"Decision Rule", "Review Resolution", "Review Note")
	return h
}
