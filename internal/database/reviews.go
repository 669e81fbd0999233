package database

import (
	"database/sql"
	"errors"
)

// ErrNotFlagged is returned when a review targets a record whose verdict is
// not Flagged, or that has no verdict at all.
var ErrNotFlagged = errors.New("record is not flagged")

// UpsertReview inserts or updates the resolution of a flagged record.
func (db *DB) UpsertReview(recordID int64, resolution string, note *string) error {
	result, err := db.conn.Exec(
		`INSERT OR REPLACE INTO reviews (record_id, resolution, note)
		SELECT ?, ?, ? WHERE EXISTS (
			SELECT 1 FROM assessments WHERE record_id = ? AND verdict = 'Flagged'
		)`,
		recordID, resolution, note, recordID,
	)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFlagged
	}
	return nil
}

// DeleteReview removes a resolution, returning the record to the queue.
func (db *DB) DeleteReview(recordID int64) error {
	_, err := db.conn.Exec(`DELETE FROM reviews WHERE record_id = ?`, recordID)
	return err
}

// GetReview returns the resolution of a record.
func (db *DB) GetReview(recordID int64) (*Review, error) {
	row := db.conn.QueryRow(
		`SELECT record_id, resolution, note, created_at FROM reviews WHERE record_id = ?`, recordID,
	)
	var r Review
	if err := row.Scan(&r.RecordID, &r.Resolution, &r.Note, &r.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

// GetFlaggedRecords returns the flagged records of a batch (all batches when
// batchID is empty). With openOnly, resolved records are left out.
func (db *DB) GetFlaggedRecords(batchID string, openOnly bool) ([]ReviewItem, error) {
	query := `SELECT r.id, r.batch_id, r.record_key, r.address, r.city, r.state, r.zip,
		r.primary_name, r.primary_text, r.areas, r.imported_at,
		a.record_id, a.verdict, a.rule, a.decided_at,
		v.record_id, v.resolution, v.note, v.created_at
		FROM records r
		JOIN assessments a ON a.record_id = r.id
		LEFT JOIN reviews v ON v.record_id = r.id
		WHERE a.verdict = 'Flagged'`
	var args []any
	if batchID != "" {
		query += " AND r.batch_id = ?"
		args = append(args, batchID)
	}
	if openOnly {
		query += " AND v.record_id IS NULL"
	}
	query += " ORDER BY r.batch_id DESC, r.id"

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}

	var items []ReviewItem
	for rows.Next() {
		var it ReviewItem
		var areas string
		var revID *int64
		var resolution *string
		var rev Review
		if err := rows.Scan(&it.Record.ID, &it.Record.BatchID, &it.Record.Key, &it.Record.Address,
			&it.Record.City, &it.Record.State, &it.Record.Zip,
			&it.Record.Primary.Name, &it.Record.Primary.Text, &areas, &it.Record.ImportedAt,
			&it.Assessment.RecordID, &it.Assessment.Verdict, &it.Assessment.Rule, &it.Assessment.DecidedAt,
			&revID, &resolution, &rev.Note, &rev.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		if err := decodeAreas(areas, &it.Record); err != nil {
			rows.Close()
			return nil, err
		}
		if revID != nil && resolution != nil {
			rev.RecordID = *revID
			rev.Resolution = *resolution
			it.Review = &rev
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// The connection is free again; fill in the per-slot detail.
	for i := range items {
		cs, err := db.GetClassifications(items[i].Record.ID)
		if err != nil {
			return nil, err
		}
		items[i].Classifications = cs
	}
	return items, nil
}
