package bench

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS metric_reports (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	scenario TEXT NOT NULL,
	name TEXT NOT NULL,
	value REAL NOT NULL,
	unit TEXT NOT NULL,
	direction TEXT NOT NULL,
	recorded_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_metric_reports_scenario ON metric_reports (scenario);
`

// ResultStore persists metric reports in a SQLite database so that separate
// tooling can compare runs.
type ResultStore struct {
	db *sql.DB
}

// OpenResultStore opens (creating if necessary) the results database at the
// given path. Pass ":memory:" for a throwaway store.
func OpenResultStore(path string) (*ResultStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open results database: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize results schema: %w", err)
	}
	return &ResultStore{db: db}, nil
}

func (s *ResultStore) Insert(r Report) error {
	_, err := s.db.Exec(
		`INSERT INTO metric_reports (scenario, name, value, unit, direction, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.Scenario, r.Name, r.Value, r.Unit, r.Direction.String(), r.RecordedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// Reports returns all reports recorded for one scenario, in insertion order.
func (s *ResultStore) Reports(scenario string) ([]Report, error) {
	rows, err := s.db.Query(
		`SELECT scenario, name, value, unit, direction, recorded_at
		 FROM metric_reports WHERE scenario = ? ORDER BY id`,
		scenario,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ret []Report
	for rows.Next() {
		var r Report
		var direction, recordedAt string
		if err := rows.Scan(&r.Scenario, &r.Name, &r.Value, &r.Unit, &direction, &recordedAt); err != nil {
			return nil, err
		}
		if direction == HigherIsBetter.String() {
			r.Direction = HigherIsBetter
		}
		r.RecordedAt, _ = time.Parse(time.RFC3339Nano, recordedAt)
		ret = append(ret, r)
	}
	return ret, rows.Err()
}

func (s *ResultStore) Close() error {
	return s.db.Close()
}
