package database

// InsertClassification inserts or replaces the classification of one slot.
func (db *DB) InsertClassification(c Classification) error {
	_, err := db.conn.Exec(
		`INSERT OR REPLACE INTO classifications
		(record_id, slot, field, category, reason, blank, model)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.RecordID, c.Slot, c.Field, c.Category, c.Reason, c.Blank, c.Model,
	)
	return err
}

// GetClassifications returns a record's classifications ordered by slot.
func (db *DB) GetClassifications(recordID int64) ([]Classification, error) {
	rows, err := db.conn.Query(
		`SELECT record_id, slot, field, category, reason, blank, model, classified_at
		FROM classifications WHERE record_id = ? ORDER BY slot`, recordID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Classification
	for rows.Next() {
		var c Classification
		if err := rows.Scan(&c.RecordID, &c.Slot, &c.Field, &c.Category, &c.Reason,
			&c.Blank, &c.Model, &c.ClassifiedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetClassificationsForBatch returns all classifications of a batch keyed
// by record ID, each slice ordered by slot.
func (db *DB) GetClassificationsForBatch(batchID string) (map[int64][]Classification, error) {
	rows, err := db.conn.Query(
		`SELECT c.record_id, c.slot, c.field, c.category, c.reason, c.blank, c.model, c.classified_at
		FROM classifications c JOIN records r ON r.id = c.record_id
		WHERE r.batch_id = ? ORDER BY c.record_id, c.slot`, batchID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	m := make(map[int64][]Classification)
	for rows.Next() {
		var c Classification
		if err := rows.Scan(&c.RecordID, &c.Slot, &c.Field, &c.Category, &c.Reason,
			&c.Blank, &c.Model, &c.ClassifiedAt); err != nil {
			return nil, err
		}
		m[c.RecordID] = append(m[c.RecordID], c)
	}
	return m, rows.Err()
}

// CountClassifications returns how many slots of a batch are classified.
func (db *DB) CountClassifications(batchID string) (int, error) {
	var n int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM classifications c JOIN records r ON r.id = c.record_id
		WHERE r.batch_id = ?`, batchID,
	).Scan(&n)
	return n, err
}
