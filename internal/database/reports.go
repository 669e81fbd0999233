package database

import "database/sql"

// InsertReport inserts or replaces the report of a batch.
func (db *DB) InsertReport(batchID, summaryMarkdown string, recordCount, flaggedCount int) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT OR REPLACE INTO reports
		(batch_id, summary_markdown, record_count, flagged_count)
		VALUES (?, ?, ?, ?)`,
		batchID, summaryMarkdown, recordCount, flaggedCount,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetReport returns the report of a batch.
func (db *DB) GetReport(batchID string) (*Report, error) {
	row := db.conn.QueryRow(
		`SELECT id, batch_id, summary_markdown, record_count, flagged_count, generated_at
		FROM reports WHERE batch_id = ?`, batchID,
	)

	var r Report
	if err := row.Scan(&r.ID, &r.BatchID, &r.SummaryMarkdown,
		&r.RecordCount, &r.FlaggedCount, &r.GeneratedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

// GetAllReports returns all reports, newest first.
func (db *DB) GetAllReports() ([]Report, error) {
	rows, err := db.conn.Query(
		`SELECT id, batch_id, summary_markdown, record_count, flagged_count, generated_at
		FROM reports ORDER BY generated_at DESC, id DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []Report
	for rows.Next() {
		var r Report
		if err := rows.Scan(&r.ID, &r.BatchID, &r.SummaryMarkdown,
			&r.RecordCount, &r.FlaggedCount, &r.GeneratedAt); err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// GetStats returns aggregate database statistics.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}

	queries := []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(*) FROM batches", &s.Batches},
		{"SELECT COUNT(*) FROM records", &s.Records},
		{"SELECT COUNT(*) FROM classifications", &s.Classifications},
		{"SELECT COUNT(*) FROM assessments", &s.Assessed},
		{"SELECT COUNT(*) FROM assessments WHERE verdict = 'Flagged'", &s.Flagged},
		{`SELECT COUNT(*) FROM reviews v JOIN assessments a ON a.record_id = v.record_id
			WHERE a.verdict = 'Flagged'`, &s.Reviewed},
		{"SELECT COUNT(*) FROM reports", &s.Reports},
	}

	for _, q := range queries {
		if err := db.conn.QueryRow(q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	return s, nil
}
