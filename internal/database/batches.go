package database

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

// GetToday returns today's date as YYYY-MM-DD.
func GetToday() string {
	return time.Now().Format("2006-01-02")
}

// MakeBatchID derives a batch ID from the import date and the source file
// name, e.g. "2026-02-06-bpo-notes". Re-importing the same file on the same
// day lands in the same batch.
func MakeBatchID(date, source string) string {
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(base) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		return date
	}
	return date + "-" + slug
}

// FormatBatchDisplay formats a batch ID for human-readable display:
// "2026-02-06-bpo-notes" becomes "bpo-notes (Feb 06, 2026)".
func FormatBatchDisplay(batchID string) string {
	if len(batchID) < 10 {
		return batchID
	}
	d, err := time.Parse("2006-01-02", batchID[:10])
	if err != nil {
		return batchID
	}
	rest := strings.TrimPrefix(batchID[10:], "-")
	if rest == "" {
		return d.Format("Jan 02, 2006")
	}
	return fmt.Sprintf("%s (%s)", rest, d.Format("Jan 02, 2006"))
}

// InsertBatch creates a batch if it does not exist yet.
func (db *DB) InsertBatch(id, source string) error {
	_, err := db.conn.Exec(
		`INSERT OR IGNORE INTO batches (id, source) VALUES (?, ?)`, id, source,
	)
	return err
}

// GetBatch returns a batch by ID.
func (db *DB) GetBatch(id string) (*Batch, error) {
	row := db.conn.QueryRow(
		`SELECT b.id, b.source, b.imported_at, COUNT(r.id)
		FROM batches b LEFT JOIN records r ON r.batch_id = b.id
		WHERE b.id = ? GROUP BY b.id`, id,
	)
	var b Batch
	if err := row.Scan(&b.ID, &b.Source, &b.ImportedAt, &b.RecordCount); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

// GetAllBatches returns all batches, newest first.
func (db *DB) GetAllBatches() ([]Batch, error) {
	rows, err := db.conn.Query(
		`SELECT b.id, b.source, b.imported_at, COUNT(r.id)
		FROM batches b LEFT JOIN records r ON r.batch_id = b.id
		GROUP BY b.id ORDER BY b.imported_at DESC, b.id DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		var b Batch
		if err := rows.Scan(&b.ID, &b.Source, &b.ImportedAt, &b.RecordCount); err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// GetLatestBatchID returns the most recently imported batch ID, or "" if
// there are none.
func (db *DB) GetLatestBatchID() (string, error) {
	row := db.conn.QueryRow("SELECT id FROM batches ORDER BY imported_at DESC, id DESC LIMIT 1")
	var id string
	if err := row.Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return id, nil
}
