package records

import (
	"fmt"
	"log"
	"os"

	"github.com/TobiSchelling/condrater/internal/config"
	"github.com/TobiSchelling/condrater/internal/database"
)

// Result holds the results of an import.
type Result struct {
	BatchID    string
	TotalRows  int
	NewRecords int
	Duplicates int
}

// Importer loads CSV exports into the database.
type Importer struct {
	db    *database.DB
	input config.Input
}

// NewImporter creates a new importer using the configured column mapping.
func NewImporter(db *database.DB, input config.Input) *Importer {
	return &Importer{db: db, input: input}
}

// Import reads path and stores its rows under batchID. Rows whose key is
// already in the batch are counted as duplicates and left untouched.
func (im *Importer) Import(path, batchID string, w Window) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening input: %w", err)
	}
	defer f.Close()

	rows, err := ReadCSV(f, im.input, w)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := im.db.InsertBatch(batchID, path); err != nil {
		return nil, fmt.Errorf("creating batch: %w", err)
	}

	r := &Result{BatchID: batchID, TotalRows: len(rows)}
	for _, row := range rows {
		id, err := im.db.InsertRecord(database.Record{
			BatchID: batchID,
			Key:     row.Key,
			Address: row.Address,
			City:    row.City,
			State:   row.State,
			Zip:     row.Zip,
			Primary: row.Primary,
			Areas:   row.Areas,
		})
		if err != nil {
			return r, fmt.Errorf("storing row %d: %w", row.Line, err)
		}
		if id > 0 {
			r.NewRecords++
		} else {
			r.Duplicates++
		}
	}

	log.Printf("Imported %s into %s: %d new, %d duplicates", path, batchID, r.NewRecords, r.Duplicates)
	return r, nil
}
