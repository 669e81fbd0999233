package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

const recordColumns = `id, batch_id, record_key, address, city, state, zip,
	primary_name, primary_text, areas, imported_at`

// InsertRecord inserts a record. Returns the ID on success, 0 if the batch
// already holds a record with the same key.
func (db *DB) InsertRecord(r Record) (int64, error) {
	areas, err := json.Marshal(r.Areas)
	if err != nil {
		return 0, fmt.Errorf("encoding areas: %w", err)
	}

	result, err := db.conn.Exec(
		`INSERT OR IGNORE INTO records
		(batch_id, record_key, address, city, state, zip, primary_name, primary_text, areas)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.BatchID, r.Key, r.Address, r.City, r.State, r.Zip, r.Primary.Name, r.Primary.Text, string(areas),
	)
	if err != nil {
		return 0, err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return 0, nil
	}
	return result.LastInsertId()
}

// GetRecordsForBatch returns a batch's records in import order.
func (db *DB) GetRecordsForBatch(batchID string) ([]Record, error) {
	rows, err := db.conn.Query(
		`SELECT `+recordColumns+` FROM records WHERE batch_id = ? ORDER BY id`, batchID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *r)
	}
	return records, rows.Err()
}

// GetRecord returns a single record by ID.
func (db *DB) GetRecord(id int64) (*Record, error) {
	row := db.conn.QueryRow(`SELECT `+recordColumns+` FROM records WHERE id = ?`, id)
	r, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*Record, error) {
	var r Record
	var areas string
	if err := s.Scan(&r.ID, &r.BatchID, &r.Key, &r.Address, &r.City, &r.State, &r.Zip,
		&r.Primary.Name, &r.Primary.Text, &areas, &r.ImportedAt); err != nil {
		return nil, err
	}
	if err := decodeAreas(areas, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func decodeAreas(data string, r *Record) error {
	if err := json.Unmarshal([]byte(data), &r.Areas); err != nil {
		return fmt.Errorf("decoding areas of record %d: %w", r.ID, err)
	}
	return nil
}
