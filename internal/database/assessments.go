package database

import "database/sql"

// UpsertAssessment stores the overall verdict of a record.
func (db *DB) UpsertAssessment(recordID int64, verdict, rule string) error {
	_, err := db.conn.Exec(
		`INSERT OR REPLACE INTO assessments (record_id, verdict, rule) VALUES (?, ?, ?)`,
		recordID, verdict, rule,
	)
	return err
}

// GetAssessment returns the verdict of a record.
func (db *DB) GetAssessment(recordID int64) (*Assessment, error) {
	row := db.conn.QueryRow(
		`SELECT record_id, verdict, rule, decided_at FROM assessments WHERE record_id = ?`, recordID,
	)
	var a Assessment
	if err := row.Scan(&a.RecordID, &a.Verdict, &a.Rule, &a.DecidedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// GetAssessmentsForBatch returns record ID → assessment for a batch.
func (db *DB) GetAssessmentsForBatch(batchID string) (map[int64]Assessment, error) {
	rows, err := db.conn.Query(
		`SELECT a.record_id, a.verdict, a.rule, a.decided_at
		FROM assessments a JOIN records r ON r.id = a.record_id
		WHERE r.batch_id = ?`, batchID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	m := make(map[int64]Assessment)
	for rows.Next() {
		var a Assessment
		if err := rows.Scan(&a.RecordID, &a.Verdict, &a.Rule, &a.DecidedAt); err != nil {
			return nil, err
		}
		m[a.RecordID] = a
	}
	return m, rows.Err()
}

// GetVerdictCounts returns verdict → number of records for a batch.
func (db *DB) GetVerdictCounts(batchID string) (map[string]int, error) {
	rows, err := db.conn.Query(
		`SELECT a.verdict, COUNT(*)
		FROM assessments a JOIN records r ON r.id = a.record_id
		WHERE r.batch_id = ? GROUP BY a.verdict`, batchID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	m := make(map[string]int)
	for rows.Next() {
		var verdict string
		var n int
		if err := rows.Scan(&verdict, &n); err != nil {
			return nil, err
		}
		m[verdict] = n
	}
	return m, rows.Err()
}
