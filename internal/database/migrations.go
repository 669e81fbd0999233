package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS batches (
    id TEXT PRIMARY KEY,
    source TEXT NOT NULL,
    imported_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS records (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    batch_id TEXT NOT NULL REFERENCES batches(id),
    record_key TEXT NOT NULL,
    address TEXT NOT NULL DEFAULT '',
    city TEXT NOT NULL DEFAULT '',
    state TEXT NOT NULL DEFAULT '',
    zip TEXT NOT NULL DEFAULT '',
    primary_name TEXT NOT NULL,
    primary_text TEXT NOT NULL DEFAULT '',
    areas TEXT NOT NULL DEFAULT '[]',
    imported_at TEXT DEFAULT (datetime('now')),
    UNIQUE (batch_id, record_key)
);

CREATE TABLE IF NOT EXISTS classifications (
    record_id INTEGER NOT NULL REFERENCES records(id),
    slot INTEGER NOT NULL,
    field TEXT NOT NULL,
    category TEXT NOT NULL,
    reason TEXT NOT NULL,
    blank INTEGER DEFAULT 0,
    classified_at TEXT DEFAULT (datetime('now')),
    PRIMARY KEY (record_id, slot)
);

CREATE TABLE IF NOT EXISTS assessments (
    record_id INTEGER PRIMARY KEY REFERENCES records(id),
    verdict TEXT NOT NULL,
    rule TEXT NOT NULL,
    decided_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS reviews (
    record_id INTEGER PRIMARY KEY REFERENCES records(id),
    resolution TEXT NOT NULL CHECK(resolution IN ('Positive', 'Negative', 'Mixed Opinion', 'No Relevant Information')),
    note TEXT,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS reports (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    batch_id TEXT UNIQUE NOT NULL REFERENCES batches(id),
    summary_markdown TEXT NOT NULL,
    record_count INTEGER DEFAULT 0,
    flagged_count INTEGER DEFAULT 0,
    generated_at TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_records_batch ON records(batch_id);
CREATE INDEX IF NOT EXISTS idx_assessments_verdict ON assessments(verdict);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "record oracle model per classification",
		Up: func(tx *sql.Tx) error {
			ok, err := hasColumn(tx, "classifications", "model")
			if err != nil || ok {
				return err
			}
			_, err = tx.Exec(`ALTER TABLE classifications ADD COLUMN model TEXT`)
			return err
		},
	},
}

// hasColumn reports whether table already has the named column.
func hasColumn(tx *sql.Tx, table, column string) (bool, error) {
	rows, err := tx.Query("SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
